// Package server implements the AppOrbit backend API: credential exchange,
// user and role management, product submission and moderation, reviews,
// coupons, membership payments, and admin statistics. It is the
// server-authoritative counterpart of the client SDK under client/ — route
// middleware enforces the same role rules the client guards apply
// optimistically.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/apporbit/apporbit"
	"github.com/apporbit/apporbit/api"
	"github.com/apporbit/apporbit/errors"
	"github.com/apporbit/apporbit/eventbus"
	"github.com/apporbit/apporbit/idp"
	"github.com/apporbit/apporbit/logging"
	"github.com/apporbit/apporbit/storage"
	"github.com/go-chi/chi/v5"
)

// TopicProductReported is published on the event bus when a user reports a
// product, so moderation tooling can react without polling.
const TopicProductReported = "product.reported"

// ProductReported is the payload published on TopicProductReported.
type ProductReported struct {
	ProductID     string
	ReporterEmail string
}

// Option configures a Server.
type Option func(*Server)

// WithSigningKey overrides the auth.signingKey config value.
func WithSigningKey(key []byte) Option {
	return func(s *Server) {
		s.signingKey = key
	}
}

// WithTokenExpiry overrides the auth.tokenExpiry config value.
func WithTokenExpiry(d time.Duration) Option {
	return func(s *Server) {
		s.tokenExpiry = d
	}
}

// WithAddress overrides the server.host/server.port config values.
func WithAddress(addr string) Option {
	return func(s *Server) {
		s.addr = addr
	}
}

// WithEventBus sets the bus that domain events are published on.
func WithEventBus(bus eventbus.EventBus) Option {
	return func(s *Server) {
		s.bus = bus
	}
}

// WithLogger sets the logger used for request scopes. Defaults to the
// production zap logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithAdminEmails grants the admin role to these accounts when their user
// record is first created. Overrides the auth.adminEmails config value.
func WithAdminEmails(emails ...string) Option {
	return func(s *Server) {
		s.adminEmails = emails
	}
}

// New creates a server backed by the given store and identity verifier.
// Options default to the corresponding config values; a missing signing key
// is a programming error surfaced on the first request rather than a silent
// pass-through, so prefer validating config at startup (see cmd/apporbit).
func New(store storage.Store, verifier idp.Verifier, opts ...Option) *Server {
	s := &Server{
		store:       store,
		verifier:    verifier,
		signingKey:  apporbit.Config.Bytes("auth.signingKey"),
		tokenExpiry: apporbit.Config.Duration("auth.tokenExpiry"),
		adminEmails: apporbit.Config.Strings("auth.adminEmails"),
		addr:        apporbit.Address(),
		logger:      logging.NewProdLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if init, ok := store.(storage.ModelInitializer); ok {
		for _, m := range []storage.Model{
			&api.User{}, &api.Product{}, &api.Review{}, &api.Coupon{}, &api.Payment{},
		} {
			if err := init.InitModel(m); err != nil {
				panic("server: init model: " + err.Error())
			}
		}
	}
	return s
}

// Server is the AppOrbit backend API server.
type Server struct {
	store    storage.Store
	verifier idp.Verifier
	bus      eventbus.EventBus
	logger   logging.Logger

	signingKey  []byte
	tokenExpiry time.Duration
	adminEmails []string
	addr        string

	httpServer *http.Server
}

// Handler returns the full route tree, including logging and gzip middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(logging.Middleware(s.logger))
	r.Use(gziphandler.GzipHandler)

	// Public routes: anyone can browse accepted products and reviews, and
	// exchange an IdP credential for a bearer token.
	r.Method(http.MethodPost, "/api/auth/jwt", handler(s.handleIssueToken))
	r.Method(http.MethodGet, "/api/products", handler(s.handleListProducts))
	r.Method(http.MethodGet, "/api/products/featured", handler(s.handleFeaturedProducts))
	r.Method(http.MethodGet, "/api/products/trending", handler(s.handleTrendingProducts))
	r.Method(http.MethodGet, "/api/reviews/product/{id}", handler(s.handleProductReviews))
	r.Method(http.MethodGet, "/api/coupons/valid", handler(s.handleValidCoupons))

	// Authenticated routes.
	r.Group(func(r chi.Router) {
		r.Use(s.requireIdentity)

		r.Method(http.MethodGet, "/api/auth/verify", handler(s.handleVerify))

		r.Method(http.MethodGet, "/users/role/{email}", handler(s.handleUserRole))
		r.Method(http.MethodGet, "/users/profile/{email}", handler(s.handleUserProfile))

		r.Method(http.MethodGet, "/products/{id}", handler(s.handleGetProduct))
		r.Method(http.MethodPost, "/products/add-product", handler(s.handleAddProduct))
		r.Method(http.MethodGet, "/products/my-products/{email}", handler(s.handleMyProducts))
		r.Method(http.MethodPatch, "/products/{id}", handler(s.handleUpdateProduct))
		r.Method(http.MethodDelete, "/products/{id}", handler(s.handleDeleteProduct))
		r.Method(http.MethodPatch, "/products/{id}/upvote", handler(s.handleUpvote))
		r.Method(http.MethodPost, "/products/{id}/report", handler(s.handleReport))

		r.Method(http.MethodPost, "/reviews", handler(s.handleAddReview))

		r.Method(http.MethodGet, "/coupons/{code}", handler(s.handleCheckCoupon))

		r.Method(http.MethodPost, "/payments/create-payment-intent", handler(s.handleCreatePaymentIntent))
		r.Method(http.MethodPost, "/payments/confirm-payment", handler(s.handleConfirmPayment))

		// Moderator routes.
		r.Group(func(r chi.Router) {
			r.Use(s.requireRole(api.RoleModerator))
			r.Method(http.MethodGet, "/products/review-queue", handler(s.handleReviewQueue))
			r.Method(http.MethodGet, "/products/reported", handler(s.handleReportedProducts))
			r.Method(http.MethodPatch, "/products/{id}/mark-featured", handler(s.handleMarkFeatured))
			r.Method(http.MethodPatch, "/products/{id}/{status}", handler(s.handleSetStatus))
		})

		// Admin routes.
		r.Group(func(r chi.Router) {
			r.Use(s.requireRole(api.RoleAdmin))
			r.Method(http.MethodGet, "/users/all-users", handler(s.handleAllUsers))
			r.Method(http.MethodPatch, "/users/make-{role}/{id}", handler(s.handleMakeRole))
			r.Method(http.MethodDelete, "/products/admin-delete/{id}", handler(s.handleAdminDeleteProduct))
			r.Method(http.MethodGet, "/coupons", handler(s.handleListCoupons))
			r.Method(http.MethodPost, "/coupons", handler(s.handleAddCoupon))
			r.Method(http.MethodPatch, "/coupons/{code}", handler(s.handleUpdateCoupon))
			r.Method(http.MethodDelete, "/coupons/{code}", handler(s.handleDeleteCoupon))
			r.Method(http.MethodGet, "/admin/stats", handler(s.handleStats))
		})
	})

	return r
}

// Start listens on the configured address until ctx is cancelled, then
// drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()
	logging.Infow(ctx, "server listening", "address", s.addr)

	select {
	case err := <-errCh:
		return errors.WrapPrefix(err, "server", 0)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return errors.WrapPrefix(err, "server shutdown", 0)
		}
		return nil
	}
}

// publish emits a domain event when a bus is configured.
func (s *Server) publish(topic string, data any) {
	if s.bus != nil {
		s.bus.Publish(topic, data)
	}
}
