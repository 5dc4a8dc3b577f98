// Package web embeds the report structuring page served at "/".
package web

import (
	"embed"
	"io/fs"
)

// IndexFile is the page served for "/" and unknown non-API paths.
const IndexFile = "index.html"

//go:embed dist
var dist embed.FS

// Assets returns the page bundle with dist/ stripped, so the page is at
// "index.html".
func Assets() (fs.FS, error) {
	return fs.Sub(dist, "dist")
}

// Index returns the contents of the page.
func Index() ([]byte, error) {
	return dist.ReadFile("dist/" + IndexFile)
}
