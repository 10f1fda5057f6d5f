package cron

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/vendorr/vendorr-edge/internal/controller"
	"github.com/vendorr/vendorr-edge/internal/pending"
	"github.com/vendorr/vendorr-edge/pkg/vendorrapi"
)

type fakeProber struct {
	err error
}

func (f *fakeProber) Health(context.Context) error { return f.err }

type fakeDispatcher struct {
	err  error
	sent []controller.Command
}

func (f *fakeDispatcher) Send(cmd controller.Command) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, cmd)
	return fmt.Sprintf("req-%d", len(f.sent)), nil
}

func tags(cmds []controller.Command) []string {
	out := make([]string, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, c.Tag)
	}
	return out
}

func TestConnectivityJobFiresSyncOnReconnect(t *testing.T) {
	ctx := context.Background()
	prober := &fakeProber{err: fmt.Errorf("%w: refused", vendorrapi.ErrUnreachable)}
	dispatcher := &fakeDispatcher{}
	job, err := NewConnectivityJob(ConnectivityJobParams{Prober: prober, Dispatcher: dispatcher})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	if err := job.Run(ctx); err != nil {
		t.Fatalf("offline probe should not fail the job: %v", err)
	}
	if job.Online() || len(dispatcher.sent) != 0 {
		t.Fatalf("nothing should fire while offline")
	}

	prober.err = nil
	if err := job.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	got := tags(dispatcher.sent)
	if len(got) != 2 || got[0] != pending.TagOrderSync || got[1] != pending.TagNotificationSync {
		t.Fatalf("expected both sync tags, got %v", got)
	}

	if err := job.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(dispatcher.sent) != 2 {
		t.Fatalf("staying online must not fire again, sent %d", len(dispatcher.sent))
	}

	prober.err = vendorrapi.ErrUnreachable
	_ = job.Run(ctx)
	prober.err = nil
	_ = job.Run(ctx)
	if len(dispatcher.sent) != 4 {
		t.Fatalf("second reconnect should fire again, sent %d", len(dispatcher.sent))
	}
}

func TestConnectivityJobTreatsHTTPErrorsAsOnline(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	job, _ := NewConnectivityJob(ConnectivityJobParams{
		Prober:     &fakeProber{err: &vendorrapi.APIError{Status: 503}},
		Dispatcher: dispatcher,
	})
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !job.Online() || len(dispatcher.sent) != 2 {
		t.Fatalf("a backend that answers is reachable, online=%v sent=%d", job.Online(), len(dispatcher.sent))
	}
}

func TestConnectivityJobRetriesWhenMailboxFull(t *testing.T) {
	dispatcher := &fakeDispatcher{err: errors.New("mailbox full")}
	job, _ := NewConnectivityJob(ConnectivityJobParams{Prober: &fakeProber{}, Dispatcher: dispatcher})

	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected dispatch error")
	}
	if job.Online() {
		t.Fatalf("failed dispatch should leave the transition pending")
	}
	dispatcher.err = nil
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(dispatcher.sent) != 2 {
		t.Fatalf("expected sync tags on retry, sent %d", len(dispatcher.sent))
	}
}

type fakeRecoverer struct {
	err   error
	calls int
}

func (f *fakeRecoverer) Recover(context.Context) error {
	f.calls++
	return f.err
}

func TestConnectivityJobRetriesCacheInstallWhileOnline(t *testing.T) {
	ctx := context.Background()
	prober := &fakeProber{err: vendorrapi.ErrUnreachable}
	cache := &fakeRecoverer{err: errors.New("installing cache generation v1: /offline.html")}
	dispatcher := &fakeDispatcher{}
	job, err := NewConnectivityJob(ConnectivityJobParams{Prober: prober, Dispatcher: dispatcher, Cache: cache})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	_ = job.Run(ctx)
	if cache.calls != 0 {
		t.Fatalf("no install retry while offline, got %d", cache.calls)
	}

	prober.err = nil
	if err := job.Run(ctx); err != nil {
		t.Fatalf("a failed cache retry must not fail the probe: %v", err)
	}
	if cache.calls != 1 || len(dispatcher.sent) != 2 {
		t.Fatalf("expected one retry and both sync tags, calls=%d sent=%d", cache.calls, len(dispatcher.sent))
	}

	cache.err = nil
	if err := job.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if cache.calls != 2 {
		t.Fatalf("install retries on every online tick, calls=%d", cache.calls)
	}
}

type staticState bool

func (s staticState) Online() bool { return bool(s) }

func TestNotificationSyncJobSkipsWhileOffline(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	job, err := NewNotificationSyncJob(dispatcher, staticState(false), 0)
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(dispatcher.sent) != 0 {
		t.Fatalf("offline tick should not dispatch")
	}

	job.state = staticState(true)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(dispatcher.sent) != 1 || dispatcher.sent[0].Tag != pending.TagNotificationSync {
		t.Fatalf("expected one notification-sync, got %v", tags(dispatcher.sent))
	}
}

type fakeEvicter struct {
	evicted int
	err     error
	calls   int
}

func (f *fakeEvicter) EvictIdle(context.Context) (int, error) {
	f.calls++
	return f.evicted, f.err
}

func TestCartSweepJob(t *testing.T) {
	if _, err := NewCartSweepJob(nil, nil, 0); err == nil {
		t.Fatal("expected missing sessions error")
	}

	evicter := &fakeEvicter{evicted: 3}
	job, err := NewCartSweepJob(evicter, testLogger(), time.Minute)
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if job.Name() != "cart-session-sweep" || job.Interval() != time.Minute || !job.ProcessLocal() {
		t.Fatalf("unexpected job wiring: %s %v", job.Name(), job.Interval())
	}
	if err := job.Run(context.Background()); err != nil || evicter.calls != 1 {
		t.Fatalf("run: err=%v calls=%d", err, evicter.calls)
	}

	evicter.err = errors.New("dispose cart s1: disk full")
	if err := job.Run(context.Background()); !errors.Is(err, evicter.err) {
		t.Fatalf("expected dispose error surfaced, got %v", err)
	}
}
