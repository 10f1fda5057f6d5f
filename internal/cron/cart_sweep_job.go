package cron

import (
	"context"
	"errors"
	"time"

	"github.com/vendorr/vendorr-edge/pkg/logger"
)

const cartSweepJobName = "cart-session-sweep"

// IdleEvicter drops cart sessions nobody used recently.
type IdleEvicter interface {
	EvictIdle(ctx context.Context) (int, error)
}

// CartSweepJob disposes idle cart engines held by this process.
type CartSweepJob struct {
	sessions IdleEvicter
	logg     *logger.Logger
	interval time.Duration
}

func NewCartSweepJob(sessions IdleEvicter, logg *logger.Logger, interval time.Duration) (*CartSweepJob, error) {
	if sessions == nil {
		return nil, errors.New("cart sessions required")
	}
	return &CartSweepJob{sessions: sessions, logg: logg, interval: interval}, nil
}

func (j *CartSweepJob) Name() string { return cartSweepJobName }

func (j *CartSweepJob) Interval() time.Duration { return j.interval }

// ProcessLocal marks state that lives in this process only, so the job must
// not wait on a lease shared with other instances.
func (j *CartSweepJob) ProcessLocal() bool { return true }

func (j *CartSweepJob) Run(ctx context.Context) error {
	evicted, err := j.sessions.EvictIdle(ctx)
	if evicted > 0 && j.logg != nil {
		j.logg.Debug(j.logg.WithField(ctx, "evicted", evicted), "idle cart sessions disposed")
	}
	return err
}
