package endpoints

import (
	"github.com/jackzampolin/radreport/internal/api"
)

// All returns all endpoint instances.
func All() []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{},

		// Report endpoints
		&StructureReportEndpoint{},
		&UploadReportEndpoint{},

		// Template endpoints
		&ListTemplatesEndpoint{},
		&ResolveTemplateEndpoint{},
		&GetTemplateEndpoint{},

		// Prompt endpoints
		&ListPromptsEndpoint{},
		&GetPromptEndpoint{},

		// LLM call history endpoints
		&ListLLMCallsEndpoint{},
		&GetLLMCallEndpoint{},
		&SessionTraceEndpoint{},

		// Settings endpoints
		&ListSettingsEndpoint{},
		&GetSettingEndpoint{},

		// Swagger/OpenAPI endpoints
		&SwaggerEndpoint{},
		&SwaggerUIEndpoint{},

		// Static files (catch-all, must be last)
		&StaticEndpoint{},
	}
}

// TemplateCommands returns endpoints for template operations.
// This groups template-related commands under "templates" subcommand.
func TemplateCommands() []api.Endpoint {
	return []api.Endpoint{
		&ListTemplatesEndpoint{},
		&GetTemplateEndpoint{},
		&ResolveTemplateEndpoint{},
	}
}

// PromptCommands returns endpoints for prompt operations.
// This groups prompt-related commands under "prompts" subcommand.
func PromptCommands() []api.Endpoint {
	return []api.Endpoint{
		&ListPromptsEndpoint{},
		&GetPromptEndpoint{},
	}
}

// LLMCallCommands returns endpoints for LLM call history operations.
// This groups llmcall-related commands under "llmcalls" subcommand.
func LLMCallCommands() []api.Endpoint {
	return []api.Endpoint{
		&ListLLMCallsEndpoint{},
		&GetLLMCallEndpoint{},
		&SessionTraceEndpoint{},
	}
}

// SettingsCommands returns endpoints for settings operations.
// This groups settings-related commands under "settings" subcommand.
func SettingsCommands() []api.Endpoint {
	return []api.Endpoint{
		&ListSettingsEndpoint{},
		&GetSettingEndpoint{},
	}
}
