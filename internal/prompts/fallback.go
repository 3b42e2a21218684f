package prompts

import "strings"

const fallbackText = "Nossa IA está com alguma instabilidade no momento. Tente novamente mais tarde ou nos ajude a consertar o problema "

// FallbackReply is the fixed reply sent when the model cannot be
// reached. It never includes error details.
func FallbackReply(reportURL string) string {
	reportURL = strings.TrimSpace(reportURL)
	if reportURL == "" {
		return strings.TrimSpace(fallbackText)
	}
	return fallbackText + reportURL
}
