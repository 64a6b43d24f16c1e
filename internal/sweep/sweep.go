// Package sweep settles challenges that blew past their deadline.
package sweep

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/Erik-Lamers1/os3-rll-bot/internal/announce"
	"github.com/Erik-Lamers1/os3-rll-bot/internal/ladder"
	"github.com/Erik-Lamers1/os3-rll-bot/internal/obslog"
)

// Runner periodically forfeits expired pending challenges and queues the
// resulting announcements.
type Runner struct {
	mgr     *ladder.Manager
	builder *announce.Builder
	queue   *announce.Queue // nil disables announcements
	sched   gocron.Scheduler
}

func New(mgr *ladder.Manager, builder *announce.Builder, queue *announce.Queue) *Runner {
	return &Runner{mgr: mgr, builder: builder, queue: queue}
}

// Start schedules the sweep at the given interval.
func (r *Runner) Start(interval time.Duration) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	if _, err := sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { r.RunOnce(context.Background()) }),
	); err != nil {
		return err
	}
	sched.Start()
	r.sched = sched
	obslog.L().Info("sweep_started", zap.Duration("interval", interval))
	return nil
}

// Stop shuts the scheduler down, waiting for a running sweep to finish.
func (r *Runner) Stop() error {
	if r.sched == nil {
		return nil
	}
	return r.sched.Shutdown()
}

// RunOnce sweeps immediately. Exposed for tests and for the startup pass.
func (r *Runner) RunOnce(ctx context.Context) {
	results, err := r.mgr.ForfeitExpired(ctx)
	if err != nil {
		obslog.L().Error("sweep_error", zap.Error(err))
	}
	for _, res := range results {
		obslog.L().Info("sweep_forfeit",
			zap.Int64("challenge_id", res.Challenge.ID),
			zap.String("challenger", res.Challenger.Gamertag),
			zap.String("defender", res.Defender.Gamertag),
		)
		if r.queue == nil || r.builder == nil {
			continue
		}
		msg, err := r.builder.Forfeit(res)
		if err != nil {
			obslog.L().Error("sweep_announce_build_error", zap.Error(err))
			continue
		}
		if err := r.queue.Publish(ctx, msg); err != nil {
			obslog.L().Error("sweep_announce_publish_error", zap.Error(err))
		}
	}
}
