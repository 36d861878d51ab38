package notifxconsole

import (
	"context"
	"strings"

	"github.com/Abraxas-365/drugcontent/pkg/logx"
	"github.com/Abraxas-365/drugcontent/pkg/notifx"
)

// Provider logs messages instead of sending them. For development.
type Provider struct {
	log *logx.Entry
}

func New() *Provider {
	return &Provider{log: logx.Component("notifx")}
}

var _ notifx.Sender = (*Provider)(nil)

func (p *Provider) Send(_ context.Context, msg notifx.Message, opts ...notifx.Option) error {
	so := notifx.ApplyOptions(opts)
	entry := p.log.WithFields(logx.Fields{
		"from":    msg.From,
		"to":      strings.Join(msg.To, ", "),
		"subject": msg.Subject,
	})
	for k, v := range so.Tags {
		entry = entry.WithField("tag_"+k, v)
	}
	entry.Info("email (console)")

	if msg.Text != "" {
		p.log.Debugf("text body:\n%s", msg.Text)
	}
	return nil
}
