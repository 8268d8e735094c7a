package profile

import (
	"embed"
	"fmt"
	"strings"
)

const defaultProfileName = "healthcare"

//go:embed templates/*.md
var templatesFS embed.FS

// ResolveInstructions returns the system instructions sent to backends that
// need them. A non-empty override wins over the embedded template.
func ResolveInstructions(kind string, override string) (string, error) {
	if value := strings.TrimSpace(override); value != "" {
		return value, nil
	}

	templateName := defaultTemplateName(kind)
	if templateName == "" {
		return "", nil
	}

	content, err := templatesFS.ReadFile(templatePath(templateName))
	if err != nil {
		return "", fmt.Errorf("load %s profile template: %w", templateName, err)
	}

	profile := strings.TrimSpace(string(content))
	if profile == "" {
		return "", fmt.Errorf("profile template %q is empty", templateName)
	}

	return profile, nil
}

func templatePath(templateName string) string {
	return "templates/" + strings.TrimSpace(templateName) + ".md"
}
