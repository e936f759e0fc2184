package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/angelmondragon/listingforge-backend/pkg/config"
	"github.com/angelmondragon/listingforge-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

// keyPrefixes lists the secret and restricted key prefixes accepted per env.
var keyPrefixes = map[string][]string{
	testEnv: {"sk_test_", "rk_test_"},
	liveEnv: {"sk_live_", "rk_live_"},
}

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// Client verifies credit-grant webhooks and resolves the subscriptions they
// reference.
type Client struct {
	api           *stripe.Client
	environment   string
	signingSecret string
}

// NewClient checks that the key matches LISTINGFORGE_STRIPE_ENV before building
// the API client, so a live key can never run against a test deployment.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env := cfg.Environment()
	prefixes, ok := keyPrefixes[env]
	if !ok {
		return nil, errInvalidStripeEnv
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	signingSecret := strings.TrimSpace(cfg.Secret)
	switch {
	case apiKey == "":
		return nil, errAPIKeyRequired
	case signingSecret == "":
		return nil, errSecretRequired
	case !hasAnyPrefix(apiKey, prefixes):
		return nil, fmt.Errorf("stripe environment %q requires a key starting with one of %s", env, strings.Join(prefixes, ", "))
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "stripe_env", env), "stripe client ready")
	}
	return &Client{
		api:           stripe.NewClient(apiKey),
		environment:   env,
		signingSecret: signingSecret,
	}, nil
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret returns the webhook signing secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

// ConstructEvent verifies the Stripe-Signature header and decodes the event.
// Events from other API versions are accepted; handlers only read stable fields.
func (c *Client) ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	if c == nil || c.signingSecret == "" {
		return stripe.Event{}, errSecretRequired
	}
	return webhook.ConstructEventWithOptions(payload, sigHeader, c.signingSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

// GetSubscription fetches a subscription so invoice events can be resolved to an
// account through the subscription metadata.
func (c *Client) GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("subscription id is required")
	}
	if c == nil || c.api == nil {
		return nil, errAPIKeyRequired
	}
	return c.api.V1Subscriptions.Retrieve(ctx, id, &stripe.SubscriptionRetrieveParams{})
}
