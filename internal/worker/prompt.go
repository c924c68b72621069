package worker

import (
	"fmt"
	"strings"
	"text/template"
)

const defaultDailyPrompt = `Go to the home page of {{.Site}}.
Extract the titles and links of the {{.Headlines}} main stories shown there.
Do not open any story, read only what the home page shows.
Format them as a list, one line per story with its link, translate the list to {{.Language}}
and send it to me with the send_telegram_notification tool.`

// PromptData fills the daily prompt template.
type PromptData struct {
	Site      string
	Headlines int
	Language  string
}

// DailyPrompt renders the default prompt of the daily headline routine.
func DailyPrompt(site string, headlines int, language string) string {
	out, err := RenderPrompt("", PromptData{Site: site, Headlines: headlines, Language: language})
	if err != nil {
		// the built-in template always parses
		panic(err)
	}
	return out
}

// RenderPrompt executes tmpl, or the default prompt when tmpl is blank.
func RenderPrompt(tmpl string, data PromptData) (string, error) {
	if strings.TrimSpace(tmpl) == "" {
		tmpl = defaultDailyPrompt
	}
	if data.Headlines <= 0 {
		data.Headlines = 5
	}
	if data.Language == "" {
		data.Language = "Portuguese"
	}
	t, err := template.New("daily").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse prompt template: %w", err)
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render prompt template: %w", err)
	}
	return b.String(), nil
}
