package pubsub

import (
	"context"
	"errors"
	"testing"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/coachledger-backend/pkg/config"
)

func TestQualify(t *testing.T) {
	cases := []struct {
		project, name, want string
	}{
		{"proj", "coach-sales-ledger", "projects/proj/subscriptions/coach-sales-ledger"},
		{"proj", " projects/other/subscriptions/sales ", "projects/other/subscriptions/sales"},
		{"", "coach-sales-ledger", ""},
		{"proj", "  ", ""},
	}
	for _, tc := range cases {
		if got := qualify(tc.project, tc.name); got != tc.want {
			t.Fatalf("qualify(%q, %q) = %q, want %q", tc.project, tc.name, got, tc.want)
		}
	}
}

func TestReceiveSettings(t *testing.T) {
	got := receiveSettings(config.PubSubConfig{MaxOutstanding: 25, ReceiveGoroutines: 3})
	if got.MaxOutstandingMessages != 25 || got.NumGoroutines != 3 {
		t.Fatalf("overrides not applied: %+v", got)
	}
	defaults := receiveSettings(config.PubSubConfig{})
	if defaults.MaxOutstandingMessages != pubsub.DefaultReceiveSettings.MaxOutstandingMessages {
		t.Fatalf("expected library default, got %d", defaults.MaxOutstandingMessages)
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	ctx := context.Background()
	if _, err := NewClient(ctx, config.GCPConfig{}, config.PubSubConfig{SalesSubscription: "s"}, nil); !errors.Is(err, errProjectIDRequired) {
		t.Fatalf("expected project error, got %v", err)
	}
	if _, err := NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.PubSubConfig{}, nil); !errors.Is(err, errSubscriptionRequired) {
		t.Fatalf("expected subscription error, got %v", err)
	}
}

func TestNilClient(t *testing.T) {
	var c *Client
	if c.SalesSubscription() != nil {
		t.Fatal("nil client has no subscriber")
	}
	if err := c.Ping(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}
