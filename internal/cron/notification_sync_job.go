package cron

import (
	"context"
	"errors"
	"time"

	"github.com/vendorr/vendorr-edge/internal/controller"
	"github.com/vendorr/vendorr-edge/internal/pending"
)

const notificationSyncJobName = "notification-sync"

type onlineState interface {
	Online() bool
}

// NotificationSyncJob periodically asks the controller to reconcile the inbox
// with the backend. Ticks are skipped while the edge is offline.
type NotificationSyncJob struct {
	dispatcher Dispatcher
	state      onlineState
	interval   time.Duration
}

func NewNotificationSyncJob(dispatcher Dispatcher, state onlineState, interval time.Duration) (*NotificationSyncJob, error) {
	if dispatcher == nil {
		return nil, errors.New("dispatcher required")
	}
	return &NotificationSyncJob{dispatcher: dispatcher, state: state, interval: interval}, nil
}

func (j *NotificationSyncJob) Name() string { return notificationSyncJobName }

func (j *NotificationSyncJob) Interval() time.Duration { return j.interval }

func (j *NotificationSyncJob) Run(ctx context.Context) error {
	if j.state != nil && !j.state.Online() {
		return nil
	}
	_, err := j.dispatcher.Send(controller.Command{Type: controller.CommandSync, Tag: pending.TagNotificationSync})
	return err
}
