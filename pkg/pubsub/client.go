package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/coachledger-backend/pkg/config"
	"github.com/angelmondragon/coachledger-backend/pkg/logger"
)

var (
	ErrNotConnected = errors.New("pubsub client not connected")

	errProjectIDRequired    = errors.New("gcp project id is required")
	errSubscriptionRequired = errors.New("sales subscription is required")
)

// Client owns the Pub/Sub connection the worker pulls sale-completed events from.
type Client struct {
	ps        *pubsub.Client
	sales     string
	receive   pubsub.ReceiveSettings
	projectID string
}

// NewClient connects and verifies the sales subscription exists.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	sales := qualify(projectID, cfg.SalesSubscription)
	if sales == "" {
		return nil, errSubscriptionRequired
	}

	ps, err := pubsub.NewClient(ctx, projectID, credentialOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	c := &Client{
		ps:        ps,
		sales:     sales,
		receive:   receiveSettings(cfg),
		projectID: projectID,
	}

	sub, err := c.describe(ctx)
	if err != nil {
		_ = ps.Close()
		return nil, err
	}
	if logg != nil {
		fields := map[string]any{
			"subscription":         sales,
			"ack_deadline_seconds": sub.GetAckDeadlineSeconds(),
			"max_outstanding":      c.receive.MaxOutstandingMessages,
		}
		if dlq := sub.GetDeadLetterPolicy(); dlq != nil {
			fields["dead_letter_topic"] = dlq.GetDeadLetterTopic()
		}
		logg.Info(logg.WithFields(ctx, fields), "pubsub sales subscription ready")
	}
	return c, nil
}

func credentialOptions(gcp config.GCPConfig) []option.ClientOption {
	if raw := strings.TrimSpace(gcp.CredentialsJSON); raw != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

func receiveSettings(cfg config.PubSubConfig) pubsub.ReceiveSettings {
	settings := pubsub.DefaultReceiveSettings
	if cfg.MaxOutstanding > 0 {
		settings.MaxOutstandingMessages = cfg.MaxOutstanding
	}
	if cfg.ReceiveGoroutines > 0 {
		settings.NumGoroutines = cfg.ReceiveGoroutines
	}
	return settings
}

func (c *Client) describe(ctx context.Context) (*pubsubpb.Subscription, error) {
	sub, err := c.ps.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: c.sales})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("subscription %s does not exist", c.sales)
		}
		return nil, fmt.Errorf("describe subscription %s: %w", c.sales, err)
	}
	return sub, nil
}

// SalesSubscription returns a subscriber for sale-completed events with the
// configured flow control applied.
func (c *Client) SalesSubscription() *pubsub.Subscriber {
	if c == nil || c.ps == nil {
		return nil
	}
	sub := c.ps.Subscriber(c.sales)
	sub.ReceiveSettings = c.receive
	return sub
}

// Ping confirms the sales subscription is still visible.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.ps == nil {
		return ErrNotConnected
	}
	_, err := c.describe(ctx)
	return err
}

func (c *Client) Close() error {
	if c == nil || c.ps == nil {
		return nil
	}
	return c.ps.Close()
}

// qualify accepts a bare subscription id or a full resource name.
func qualify(projectID, name string) string {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return ""
	case strings.HasPrefix(name, "projects/") && strings.Contains(name, "/subscriptions/"):
		return name
	case projectID == "":
		return ""
	}
	return "projects/" + projectID + "/subscriptions/" + name
}
