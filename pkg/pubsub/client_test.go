package pubsub

import (
	"testing"

	"github.com/gasflow/ops-console/pkg/config"
)

func TestSubscriptionResourceName(t *testing.T) {
	cases := []struct {
		project, name, want string
	}{
		{"proj", "subscribe-orders", "projects/proj/subscriptions/subscribe-orders"},
		{"proj", "projects/other/subscriptions/s1", "projects/other/subscriptions/s1"},
		{"", "subscribe-orders", ""},
		{"proj", "  ", ""},
	}
	for _, tc := range cases {
		if got := subscriptionResourceName(tc.project, tc.name); got != tc.want {
			t.Fatalf("subscriptionResourceName(%q, %q) = %q, want %q", tc.project, tc.name, got, tc.want)
		}
	}
}

func TestClientOptions(t *testing.T) {
	if got := clientOptions(config.GCPConfig{}); len(got) != 0 {
		t.Fatalf("expected no options, got %d", len(got))
	}
	if got := clientOptions(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`}); len(got) != 1 {
		t.Fatalf("expected json credentials option, got %d", len(got))
	}
	if got := clientOptions(config.GCPConfig{CredentialsFile: "/tmp/creds.json"}); len(got) != 1 {
		t.Fatalf("expected file credentials option, got %d", len(got))
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if c.OrdersSubscription() != nil {
		t.Fatal("expected nil subscriber from nil client")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close on nil client: %v", err)
	}
}
