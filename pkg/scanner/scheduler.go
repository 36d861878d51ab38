package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/Abraxas-365/drugcontent/pkg/logx"
	"github.com/robfig/cron/v3"
)

// Scheduler runs the scans on cron schedules. A scan still running when its
// next tick fires is skipped rather than stacked.
type Scheduler struct {
	scanner *Scanner
	cron    *cron.Cron
	timeout time.Duration
	log     *logx.Entry
}

// ScheduleConfig holds standard five-field cron specs. An empty spec leaves
// that scan unscheduled.
type ScheduleConfig struct {
	Missing  string
	Outdated string
	// Timeout bounds a single scheduled scan.
	Timeout time.Duration
}

func NewScheduler(s *Scanner, cfg ScheduleConfig) (*Scheduler, error) {
	log := logx.Component("scanner")
	logger := cronLogger{log: log}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}

	sch := &Scheduler{
		scanner: s,
		timeout: cfg.Timeout,
		log:     log,
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
	}

	for kind, spec := range map[Kind]string{KindMissing: cfg.Missing, KindOutdated: cfg.Outdated} {
		if spec == "" {
			continue
		}
		kind := kind
		if _, err := sch.cron.AddFunc(spec, func() { sch.run(kind) }); err != nil {
			return nil, fmt.Errorf("schedule %s scan %q: %w", kind, spec, err)
		}
		log.WithFields(logx.Fields{"kind": string(kind), "spec": spec}).Info("scan scheduled")
	}
	return sch, nil
}

func (sch *Scheduler) run(kind Kind) {
	ctx, cancel := context.WithTimeout(context.Background(), sch.timeout)
	defer cancel()
	if _, err := sch.scanner.Scan(ctx, kind); err != nil {
		sch.log.WithError(err).WithField("kind", string(kind)).Error("scheduled scan failed")
	}
}

// Run starts the schedule and blocks until ctx is done and any running scan
// has returned.
func (sch *Scheduler) Run(ctx context.Context) error {
	sch.cron.Start()
	<-ctx.Done()
	<-sch.cron.Stop().Done()
	sch.log.Info("scheduler stopped")
	return nil
}

// Next lists the next run time of each scheduled scan.
func (sch *Scheduler) Next() []time.Time {
	entries := sch.cron.Entries()
	out := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Next)
	}
	return out
}

// cronLogger routes cron's logr-style calls into logx.
type cronLogger struct {
	log *logx.Entry
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(pairs(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithError(err).WithFields(pairs(keysAndValues)).Error(msg)
}

func pairs(kv []interface{}) logx.Fields {
	f := make(logx.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		f[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return f
}
