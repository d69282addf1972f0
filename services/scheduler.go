// services/scheduler.go
package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartPhaseScheduler checks answer timers every interval and moves expired
// turns to reading. The caller shuts the scheduler down.
func (s *TurnService) StartPhaseScheduler(interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			n, err := s.AdvanceExpiredTurns(context.Background())
			if err != nil {
				log.Printf("[Scheduler] DB error: %v", err)
				return
			}
			if n > 0 {
				log.Printf("✅ [Scheduler] moved %d timed-out turns to reading", n)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, err
	}
	sched.Start()
	return sched, nil
}
