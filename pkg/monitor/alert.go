package monitor

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Abraxas-365/drugcontent/pkg/logx"
	"github.com/Abraxas-365/drugcontent/pkg/notifx"
)

const healthTemplate = "queue-health"

const healthHTML = `<h2>Job queues unhealthy</h2>
<p>Checked at {{.CheckedAt.Format "2006-01-02 15:04:05 MST"}}</p>
<ul>{{range .Queues}}{{if not .Healthy}}
<li><strong>{{.Queue}}</strong><ul>{{range .Issues}}<li>{{.}}</li>{{end}}</ul></li>{{end}}{{end}}
</ul>`

const healthText = `Job queues unhealthy (checked at {{.CheckedAt.Format "2006-01-02 15:04:05 MST"}})
{{range .Queues}}{{if not .Healthy}}
{{.Queue}}:{{range .Issues}}
  - {{.}}{{end}}
{{end}}{{end}}`

type AlertOptions struct {
	To            []string
	CheckInterval time.Duration
	// Interval is the minimum time between two alert e-mails.
	Interval time.Duration
}

// Alerter mails operators when the health check fails.
type Alerter struct {
	monitor *Monitor
	mail    *notifx.Client
	opts    AlertOptions
	log     *logx.Entry

	mu   sync.Mutex
	last time.Time
}

func NewAlerter(m *Monitor, mail *notifx.Client, opts AlertOptions) (*Alerter, error) {
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = 5 * time.Minute
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Hour
	}
	if err := mail.Templates().Register(healthTemplate, healthHTML, healthText); err != nil {
		return nil, err
	}
	return &Alerter{monitor: m, mail: mail, opts: opts, log: logx.Component("monitor")}, nil
}

// Check runs one health check and sends an alert when it fails and the
// last alert is older than the interval. It reports whether mail was sent.
func (a *Alerter) Check(ctx context.Context) (bool, error) {
	h := a.monitor.Health(ctx)
	if h.Healthy || len(a.opts.To) == 0 {
		return false, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.last.IsZero() && h.CheckedAt.Sub(a.last) < a.opts.Interval {
		return false, nil
	}

	queues := make([]string, 0, len(h.Queues))
	for _, q := range h.Queues {
		if !q.Healthy {
			queues = append(queues, q.Queue)
		}
	}
	msg := notifx.Message{
		To:      a.opts.To,
		Subject: "[drugcontent] unhealthy queues: " + strings.Join(queues, ", "),
	}
	err := a.mail.SendTemplate(ctx, healthTemplate, h, msg, notifx.WithTags(map[string]string{"kind": "queue-health"}))
	if err != nil {
		return false, err
	}
	a.last = h.CheckedAt
	a.log.WithField("queues", queues).Warn("health alert sent")
	return true, nil
}

// Run checks health every CheckInterval until ctx is cancelled.
func (a *Alerter) Run(ctx context.Context) error {
	t := time.NewTicker(a.opts.CheckInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := a.Check(ctx); err != nil {
				a.log.WithError(err).Error("health alert failed")
			}
		}
	}
}
