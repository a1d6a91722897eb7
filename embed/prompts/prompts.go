package prompts

import (
	"bytes"
	_ "embed"
	"strings"
	"text/template"
)

// Classify asks for an assist category and payload for one task title.
//
//go:embed classify.md
var Classify string

// Browser turns a task into a URL to open.
//
//go:embed browser.md
var Browser string

// Priority holds the fixed instructions appended to the prioritization context.
//
//go:embed priority.md
var Priority string

//go:embed voice.md
var Voice string

//go:embed image.md
var Image string

// Render executes one of the prompt templates with data.
func Render(name, text string, data any) (string, error) {
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
