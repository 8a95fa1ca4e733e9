package sweeper

import (
	"github.com/robfig/cron/v3"
)

// Scheduler runs the Sweeper's two tasks on the recommended cadence of
// §4.8: PurgeExpiredStaging hourly, PurgeExpiredObjects daily.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler wires the sweeper's periodic tasks onto a cron instance
// and starts it. Call Stop to end the background goroutine.
func NewScheduler(sw *Sweeper) (*Scheduler, error) {
	c := cron.New()

	if _, err := c.AddFunc("@hourly", sw.PurgeExpiredStaging); err != nil {
		return nil, err
	}
	if _, err := c.AddFunc("@daily", sw.PurgeExpiredObjects); err != nil {
		return nil, err
	}

	c.Start()
	return &Scheduler{cron: c}, nil
}

// Stop halts the scheduler, waiting for any in-flight task to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
