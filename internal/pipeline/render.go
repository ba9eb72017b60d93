package pipeline

import (
	"strings"
	"text/template"

	"github.com/nhle/oohrelay/internal/model"
)

// SubjectPrefix starts every relayed subject line.
const SubjectPrefix = "Watchman call "

// Renderer turns calls into outbound messages using a body template.
// The template sees the keys status, user, problem, time and reference;
// any other key fails the render.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the body template.
func NewRenderer(text string) (*Renderer, error) {
	tmpl, err := template.New("call").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, &TemplateError{Err: err}
	}
	return &Renderer{tmpl: tmpl}, nil
}

func placeholders(c model.Call) map[string]string {
	return map[string]string{
		"status":    c.Status,
		"user":      c.Requester,
		"problem":   c.Narrative,
		"time":      c.LoggedAt,
		"reference": c.Reference,
	}
}

// Render produces the subject and body for one call.
func (r *Renderer) Render(c model.Call) (model.RenderedMessage, error) {
	var body strings.Builder
	if err := r.tmpl.Execute(&body, placeholders(c)); err != nil {
		return model.RenderedMessage{}, &TemplateError{Reference: c.Reference, Err: err}
	}

	return model.RenderedMessage{
		Reference: c.Reference,
		Status:    c.Status,
		Subject:   SubjectPrefix + c.LoggedAt,
		Body:      body.String(),
	}, nil
}
