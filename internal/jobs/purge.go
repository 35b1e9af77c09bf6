package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultPurgeSchedule runs shortly after midnight so the previous day's
// ledger is swept before the first morning bookings.
const DefaultPurgeSchedule = "5 0 * * *"

type dayPurger interface {
	DeleteAllByDate(ctx context.Context, date time.Time) (int, error)
}

// Purger clears out the previous day's appointments on a cron schedule.
type Purger struct {
	svc      dayPurger
	logger   *slog.Logger
	schedule string
	cron     *cron.Cron
	now      func() time.Time
}

func NewPurger(svc dayPurger, schedule string, logger *slog.Logger) *Purger {
	if schedule == "" {
		schedule = DefaultPurgeSchedule
	}
	return &Purger{
		svc:      svc,
		logger:   logger.With(slog.String("component", "jobs.purge")),
		schedule: schedule,
		now:      time.Now,
	}
}

func (p *Purger) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(p.schedule, p.runOnce); err != nil {
		return err
	}
	c.Start()
	p.cron = c
	p.logger.Info("purge job started", slog.String("schedule", p.schedule))
	return nil
}

// Stop waits for an in-flight run to finish.
func (p *Purger) Stop() {
	if p.cron == nil {
		return
	}
	<-p.cron.Stop().Done()
	p.logger.Info("purge job stopped")
}

func (p *Purger) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	yesterday := p.now().AddDate(0, 0, -1)
	deleted, err := p.svc.DeleteAllByDate(ctx, yesterday)
	if err != nil {
		p.logger.Error("purge failed",
			slog.String("date", yesterday.Format(time.DateOnly)),
			slog.String("error", err.Error()),
		)
		return
	}
	p.logger.Info("purged previous day",
		slog.String("date", yesterday.Format(time.DateOnly)),
		slog.Int("deleted", deleted),
	)
}
