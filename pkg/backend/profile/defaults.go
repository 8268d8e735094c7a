package profile

import (
	"strings"

	"healthchat/pkg/config"
)

// defaultTemplateName picks the embedded profile for a backend kind. The REST
// backend and OpenCode agents carry their own instructions server-side.
func defaultTemplateName(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case config.BackendKindOpenAI:
		return defaultProfileName
	default:
		return ""
	}
}
