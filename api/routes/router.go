package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/listingforge-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/listingforge-backend/api/controllers/webhooks"
	"github.com/angelmondragon/listingforge-backend/api/middleware"
	"github.com/angelmondragon/listingforge-backend/internal/channels"
	"github.com/angelmondragon/listingforge-backend/internal/credits"
	"github.com/angelmondragon/listingforge-backend/internal/generation"
	"github.com/angelmondragon/listingforge-backend/internal/listings"
	stripewebhook "github.com/angelmondragon/listingforge-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/listingforge-backend/pkg/config"
	"github.com/angelmondragon/listingforge-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/listingforge-backend/pkg/redis"
	"github.com/angelmondragon/listingforge-backend/pkg/stripe"
)

// Cache is the redis surface the HTTP layer needs.
type Cache interface {
	pkgredis.IdempotencyStore
	pkgredis.RateLimiter
	Ping(ctx context.Context) error
}

// StripeWebhook bundles the optional payment webhook surface. The route is only
// mounted when every part is present.
type StripeWebhook struct {
	Client  *stripe.Client
	Service *stripewebhook.Service
	Guard   *stripewebhook.IdempotencyGuard
}

func (s StripeWebhook) enabled() bool {
	return s.Client != nil && s.Service != nil && s.Guard != nil
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	cache Cache,
	metricsHandler http.Handler,
	creditsService credits.Service,
	listingService listings.Service,
	channelService channels.Service,
	generationService generation.Service,
	stripeWebhook StripeWebhook,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	generatePolicy := middleware.NewRateLimitPolicy(
		"generate",
		cfg.Generation.RateLimitWindow,
		cfg.Generation.RateLimitMax,
	)

	readiness := map[string]controllers.Pinger{"database": dbP}
	if cache != nil {
		readiness["redis"] = cache
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Get("/api/v1/plans", controllers.PlanList())

	if stripeWebhook.enabled() {
		r.Route("/api/v1/webhooks", func(r chi.Router) {
			r.Post("/stripe", webhookcontrollers.StripeWebhook(stripeWebhook.Service, stripeWebhook.Client, stripeWebhook.Guard, logg))
		})
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Post("/accounts", controllers.AccountProvision(creditsService, logg))

		r.Route("/credits", func(r chi.Router) {
			r.Get("/", controllers.CreditsBalance(creditsService, logg))
			r.Get("/usage", controllers.CreditsUsage(creditsService, logg))
			r.Post("/check", controllers.CreditsCheck(creditsService, logg))
		})

		r.Route("/listings", func(r chi.Router) {
			r.Post("/", controllers.ListingSave(listingService, logg))
			r.Get("/", controllers.ListingList(listingService, logg))
			r.Delete("/", controllers.ListingDelete(listingService, logg))
			r.Get("/{listingId}", controllers.ListingGet(listingService, logg))
		})

		r.Route("/channels", func(r chi.Router) {
			r.Get("/", controllers.ChannelList(channelService, logg))
			r.Post("/{slug}/validate", controllers.ChannelValidate(channelService, logg))
		})

		r.Group(func(r chi.Router) {
			if cache != nil {
				r.Use(middleware.RateLimit(generatePolicy, cache, logg))
				r.Use(middleware.Idempotency(cache, logg))
			}
			r.Post("/generate/{action}", controllers.Generate(generationService, logg))
		})
	})

	return r
}
