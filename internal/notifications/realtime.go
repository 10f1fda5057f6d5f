package notifications

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vendorr/vendorr-edge/pkg/logger"
)

// Presenter receives decoded realtime notifications.
type Presenter interface {
	Present(ctx context.Context, env Envelope) (Delivery, error)
}

// RealtimeConfig tunes the realtime channel.
type RealtimeConfig struct {
	URL            string
	Token          string
	Heartbeat      time.Duration
	ReconnectDelay time.Duration
}

// Realtime keeps a WebSocket open to the backend notification feed. A
// dropped connection is retried after a constant delay until ctx ends.
type Realtime struct {
	cfg       RealtimeConfig
	dialer    *websocket.Dialer
	presenter Presenter
	logg      *logger.Logger
	now       func() time.Time
	connected atomic.Bool
}

func NewRealtime(cfg RealtimeConfig, presenter Presenter, logg *logger.Logger) (*Realtime, error) {
	if cfg.URL == "" {
		return nil, errors.New("realtime url required")
	}
	if presenter == nil {
		return nil, errors.New("realtime presenter required")
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 30 * time.Second
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 3 * time.Second
	}
	return &Realtime{
		cfg:       cfg,
		dialer:    &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		presenter: presenter,
		logg:      logg,
		now:       time.Now,
	}, nil
}

// Connected reports whether a session is currently open.
func (r *Realtime) Connected() bool {
	return r.connected.Load()
}

// Run holds the connection open until ctx is cancelled.
func (r *Realtime) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		if err := r.session(ctx); err != nil && ctx.Err() == nil && r.logg != nil {
			r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "realtime connection closed, reconnecting")
		}
		if ctx.Err() != nil {
			return nil
		}
		timer.Reset(r.cfg.ReconnectDelay)
	}
}

func (r *Realtime) endpoint() (string, error) {
	u, err := url.Parse(r.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parsing realtime url: %w", err)
	}
	if r.cfg.Token != "" {
		q := u.Query()
		q.Set("token", r.cfg.Token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (r *Realtime) session(ctx context.Context) error {
	endpoint, err := r.endpoint()
	if err != nil {
		return err
	}
	conn, _, err := r.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dialing realtime feed: %w", err)
	}
	r.connected.Store(true)
	defer r.connected.Store(false)
	if r.logg != nil {
		r.logg.Info(ctx, "realtime connection established")
	}

	var writeMu sync.Mutex
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(r.cfg.Heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				writeMu.Lock()
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
				writeMu.Unlock()
				_ = conn.Close()
				return
			case <-ticker.C:
				writeMu.Lock()
				err := conn.WriteMessage(websocket.TextMessage, []byte("ping"))
				writeMu.Unlock()
				if err != nil {
					_ = conn.Close()
					return
				}
			}
		}
	}()
	defer func() {
		close(done)
		wg.Wait()
		_ = conn.Close()
	}()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		r.handleFrame(ctx, frame)
	}
}

func (r *Realtime) handleFrame(ctx context.Context, frame []byte) {
	env, ok, err := DecodeRealtime(frame, r.now())
	if err != nil {
		if r.logg != nil {
			r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "dropping unreadable realtime frame")
		}
		return
	}
	if !ok {
		return
	}
	if _, err := r.presenter.Present(ctx, env); err != nil && r.logg != nil {
		r.logg.Error(ctx, "presenting realtime notification failed", err)
	}
}
