package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"
)

// DefaultSweepSchedule runs the retention sweep at the top of every hour.
const DefaultSweepSchedule = "0 * * * *"

// DefaultRetention keeps a week of history.
const DefaultRetention = 7 * 24 * time.Hour

// StartSweeper deletes events older than retention on the given cron
// schedule until ctx is cancelled. The schedule is validated up front;
// individual sweep failures are logged and the sweeper keeps going.
func (j *Journal) StartSweeper(ctx context.Context, schedule string, retention time.Duration) error {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	if !gronx.New().IsValid(schedule) {
		return fmt.Errorf("journal sweeper: invalid cron schedule %q", schedule)
	}
	go j.sweepLoop(ctx, schedule, retention)
	return nil
}

func (j *Journal) sweepLoop(ctx context.Context, schedule string, retention time.Duration) {
	for {
		next, err := gronx.NextTick(schedule, false)
		if err != nil {
			j.log.Error("journal sweeper: %v", err)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}
		n, err := j.deleteOlderThan(j.now().Add(-retention))
		if err != nil {
			j.log.Warning("journal sweep: %v", err)
			continue
		}
		if n > 0 {
			j.log.Info("journal sweep: removed %d events older than %s", n, retention)
		}
	}
}
