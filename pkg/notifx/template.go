package notifx

import (
	"bytes"
	htmltemplate "html/template"
	"sync"
	texttemplate "text/template"
)

type pair struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

// TemplateRegistry holds named templates, each with an HTML and a plain text
// body. Either body may be empty.
type TemplateRegistry struct {
	mu        sync.RWMutex
	templates map[string]pair
}

func NewTemplateRegistry() *TemplateRegistry {
	return &TemplateRegistry{templates: make(map[string]pair)}
}

func (r *TemplateRegistry) Register(name, html, text string) error {
	var p pair
	var err error
	if html != "" {
		if p.html, err = htmltemplate.New(name).Parse(html); err != nil {
			return notifxErrors.NewWithCause(ErrTemplateParse, err).WithDetail("template", name)
		}
	}
	if text != "" {
		if p.text, err = texttemplate.New(name).Parse(text); err != nil {
			return notifxErrors.NewWithCause(ErrTemplateParse, err).WithDetail("template", name)
		}
	}

	r.mu.Lock()
	r.templates[name] = p
	r.mu.Unlock()
	return nil
}

// Render executes both bodies of the named template.
func (r *TemplateRegistry) Render(name string, data any) (html, text string, err error) {
	r.mu.RLock()
	p, ok := r.templates[name]
	r.mu.RUnlock()
	if !ok {
		return "", "", notifxErrors.New(ErrTemplateNotFound).WithDetail("template", name)
	}

	var buf bytes.Buffer
	if p.html != nil {
		if err := p.html.Execute(&buf, data); err != nil {
			return "", "", notifxErrors.NewWithCause(ErrTemplateRender, err).WithDetail("template", name)
		}
		html = buf.String()
		buf.Reset()
	}
	if p.text != nil {
		if err := p.text.Execute(&buf, data); err != nil {
			return "", "", notifxErrors.NewWithCause(ErrTemplateRender, err).WithDetail("template", name)
		}
		text = buf.String()
	}
	return html, text, nil
}
