package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/zulandar/trainer/internal/history"
	"github.com/zulandar/trainer/internal/trainer"
)

// digestWindow is the period a digest covers.
const digestWindow = 24 * time.Hour

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// nextCronDuration parses a 5-field cron expression and returns the duration
// from now until the next fire time. Returns 0 on parse error.
func nextCronDuration(expr string, now time.Time) time.Duration {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return 0
	}
	d := sched.Next(now).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// digester builds the practice digest on a cron schedule and keeps the
// most recent one.
type digester struct {
	ctrl *trainer.Controller
	log  *zap.Logger
	now  func() time.Time

	mu   sync.Mutex
	last *history.Digest
}

func newDigester(ctrl *trainer.Controller, log *zap.Logger) *digester {
	return &digester{ctrl: ctrl, log: log, now: time.Now}
}

func (d *digester) build(ctx context.Context) history.Digest {
	return history.Summarize(d.ctrl.History(ctx), d.now().Add(-digestWindow))
}

// fire builds a digest, logs it and stores it as the latest.
func (d *digester) fire(ctx context.Context) {
	dg := d.build(ctx)
	d.mu.Lock()
	d.last = &dg
	d.mu.Unlock()

	if dg.Completed == 0 {
		d.log.Info("digest: no sessions completed", zap.Time("since", dg.Since))
		return
	}
	d.log.Info("digest",
		zap.Time("since", dg.Since),
		zap.Int("completed", dg.Completed),
		zap.Int("total", dg.TotalAllTime),
		zap.Float64("average_score", dg.AverageScore),
		zap.Int("topics", len(dg.Topics)),
	)
}

func (d *digester) latest() (history.Digest, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last == nil {
		return history.Digest{}, false
	}
	return *d.last, true
}

// run fires the digest on every cron tick until ctx is cancelled.
func (d *digester) run(ctx context.Context, expr string) {
	wait := nextCronDuration(expr, d.now())
	if wait <= 0 {
		d.log.Warn("digest: schedule disabled", zap.String("cron", expr))
		return
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			d.fire(ctx)
			if next := nextCronDuration(expr, d.now()); next > 0 {
				timer.Reset(next)
			}
		}
	}
}
