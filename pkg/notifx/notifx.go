// Package notifx sends operator e-mail through a pluggable provider.
package notifx

import (
	"context"
	"strings"
)

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, msg Message, opts ...Option) error
}

// Client validates messages, fills the sender address and renders templates
// before handing off to the provider.
type Client struct {
	provider  Sender
	from      string
	templates *TemplateRegistry
}

func NewClient(provider Sender, from string) *Client {
	return &Client{
		provider:  provider,
		from:      from,
		templates: NewTemplateRegistry(),
	}
}

func (c *Client) Send(ctx context.Context, msg Message, opts ...Option) error {
	if c.provider == nil {
		return notifxErrors.New(ErrNoProvider)
	}
	if msg.From == "" {
		msg.From = c.from
	}
	msg.To = compact(msg.To)
	if len(msg.To) == 0 {
		return notifxErrors.New(ErrInvalidMessage).WithDetail("reason", "no recipients")
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return notifxErrors.New(ErrInvalidMessage).WithDetail("reason", "empty subject")
	}
	if msg.Text == "" && msg.HTML == "" {
		return notifxErrors.New(ErrInvalidMessage).WithDetail("reason", "empty body")
	}
	return c.provider.Send(ctx, msg, opts...)
}

// Templates exposes the registry used by SendTemplate.
func (c *Client) Templates() *TemplateRegistry {
	return c.templates
}

// SendTemplate renders the named template into msg's bodies and sends it.
func (c *Client) SendTemplate(ctx context.Context, name string, data any, msg Message, opts ...Option) error {
	html, text, err := c.templates.Render(name, data)
	if err != nil {
		return err
	}
	msg.HTML, msg.Text = html, text
	return c.Send(ctx, msg, opts...)
}

func compact(addrs []string) []string {
	out := addrs[:0:0]
	for _, a := range addrs {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}
