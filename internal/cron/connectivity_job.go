package cron

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/vendorr/vendorr-edge/internal/controller"
	"github.com/vendorr/vendorr-edge/internal/pending"
	"github.com/vendorr/vendorr-edge/pkg/logger"
	"github.com/vendorr/vendorr-edge/pkg/vendorrapi"
)

const connectivityJobName = "connectivity-probe"

// Prober checks whether the backend answers.
type Prober interface {
	Health(ctx context.Context) error
}

// Dispatcher posts commands to the controller mailbox.
type Dispatcher interface {
	Send(cmd controller.Command) (string, error)
}

// CacheRecoverer retries a failed cache install; it is a no-op otherwise.
type CacheRecoverer interface {
	Recover(ctx context.Context) error
}

// ConnectivityJobParams wires the probe. Cache is optional.
type ConnectivityJobParams struct {
	Prober     Prober
	Dispatcher Dispatcher
	Cache      CacheRecoverer
	Logger     *logger.Logger
	Interval   time.Duration
}

// ConnectivityJob probes the backend and fires both sync tags whenever the
// edge goes from offline to online. The edge starts out offline so the first
// successful probe flushes anything queued before a restart.
type ConnectivityJob struct {
	prober     Prober
	dispatcher Dispatcher
	cache      CacheRecoverer
	logg       *logger.Logger
	interval   time.Duration

	mu     sync.Mutex
	online bool
}

func NewConnectivityJob(params ConnectivityJobParams) (*ConnectivityJob, error) {
	if params.Prober == nil {
		return nil, errors.New("prober required")
	}
	if params.Dispatcher == nil {
		return nil, errors.New("dispatcher required")
	}
	return &ConnectivityJob{
		prober:     params.Prober,
		dispatcher: params.Dispatcher,
		cache:      params.Cache,
		logg:       params.Logger,
		interval:   params.Interval,
	}, nil
}

func (j *ConnectivityJob) Name() string { return connectivityJobName }

func (j *ConnectivityJob) Interval() time.Duration { return j.interval }

// Online reports the result of the last probe.
func (j *ConnectivityJob) Online() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.online
}

func (j *ConnectivityJob) Run(ctx context.Context) error {
	err := j.prober.Health(ctx)
	reachable := err == nil || vendorrapi.StatusOf(err) != 0

	j.mu.Lock()
	wasOnline := j.online
	j.online = reachable
	j.mu.Unlock()

	if reachable && j.cache != nil {
		if err := j.cache.Recover(ctx); err != nil {
			j.warn(ctx, "cache generation install retry failed", err)
		}
	}

	switch {
	case !reachable && wasOnline:
		j.warn(ctx, "backend unreachable, edge is offline", err)
		return nil
	case !reachable:
		return nil
	case wasOnline:
		return nil
	}

	if j.logg != nil {
		j.logg.Info(ctx, "backend reachable again, triggering background sync")
	}
	var errs error
	for _, tag := range []string{pending.TagOrderSync, pending.TagNotificationSync} {
		if _, err := j.dispatcher.Send(controller.Command{Type: controller.CommandSync, Tag: tag}); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if errs != nil {
		// retry the transition on the next tick
		j.mu.Lock()
		j.online = false
		j.mu.Unlock()
	}
	return errs
}

func (j *ConnectivityJob) warn(ctx context.Context, msg string, err error) {
	if j.logg == nil {
		return
	}
	j.logg.Warn(j.logg.WithField(ctx, "error", err.Error()), msg)
}
