// Package pubsub connects the edge to the Pub/Sub subscription that fans push
// notifications out to edge instances.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vendorr/vendorr-edge/pkg/config"
	"github.com/vendorr/vendorr-edge/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoSubscription    = errors.New("pubsub push subscription name is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

type Client struct {
	client         *pubsub.Client
	subscription   string
	maxOutstanding int
}

// NewClient dials Pub/Sub and fails when the push subscription is missing.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	subscription := subscriptionResourceName(projectID, cfg.PushSubscription)
	if subscription == "" {
		return nil, errNoSubscription
	}

	psClient, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: psClient, subscription: subscription, maxOutstanding: cfg.MaxOutstanding}
	if err := c.Ping(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "subscription", subscription), "pubsub client initialized")
	}
	return c, nil
}

// PushSubscription returns a subscriber for push deliveries, with flow
// control bounded by the configured outstanding limit.
func (c *Client) PushSubscription() *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	sub := c.client.Subscriber(c.subscription)
	if c.maxOutstanding > 0 {
		sub.ReceiveSettings.MaxOutstandingMessages = c.maxOutstanding
	}
	return sub
}

// Ping checks that the push subscription still exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{
		Subscription: c.subscription,
	})
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("subscription %q does not exist", c.subscription)
	default:
		return fmt.Errorf("checking subscription %q: %w", c.subscription, err)
	}
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// subscriptionResourceName accepts a short name or a full resource path.
func subscriptionResourceName(projectID, name string) string {
	name = strings.TrimSpace(name)
	projectID = strings.TrimSpace(projectID)
	switch {
	case name == "":
		return ""
	case strings.HasPrefix(name, "projects/") && strings.Contains(name, "/subscriptions/"):
		return name
	case projectID == "":
		return ""
	default:
		return "projects/" + projectID + "/subscriptions/" + name
	}
}
