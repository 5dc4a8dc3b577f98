// Package docs provides generated OpenAPI documentation.
//
// radreport API
//
//	@title			radreport API
//	@version		1.0
//	@description	Radiology report structuring API: classify free-text reports and convert them to structured JSON.
//	@termsOfService	http://swagger.io/terms/
//
//	@contact.name	API Support
//	@contact.url	https://github.com/jackzampolin/radreport
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http https
package docs

//go:generate swag init -g doc.go -d .,../internal/server/endpoints -o . --outputTypes go --parseDependency --parseInternal
