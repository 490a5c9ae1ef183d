// The apporbit command runs the AppOrbit backend API server.
//
// Configuration comes from apporbit.yaml and AO__ environment variables; the
// only required keys are auth.signingKey and, for Google sign-in,
// auth.google.id. An in-memory store is the default so the server runs out of
// the box; point storage.driver at sqlite or postgres for persistence.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/apporbit/apporbit"
	"github.com/apporbit/apporbit/eventbus"
	"github.com/apporbit/apporbit/idp"
	"github.com/apporbit/apporbit/idp/googleidp"
	"github.com/apporbit/apporbit/logging"
	"github.com/apporbit/apporbit/server"
	"github.com/apporbit/apporbit/storage"
	"github.com/apporbit/apporbit/storage/memorystore"
	"github.com/apporbit/apporbit/storage/postgres"
	"github.com/apporbit/apporbit/storage/sqlitestore"
)

func main() {
	configFile := flag.String("config", "", "additional config file to load")
	flag.Parse()

	if *configFile != "" {
		apporbit.LoadConfigFile(*configFile)
	}
	apporbit.EnsureConfigDefaults()

	logger := logging.NewProdLogger()
	ctx := logging.With(context.Background(), logger)

	for _, warning := range apporbit.ValidateConfigKeys() {
		logging.Warnw(ctx, "config: "+warning)
	}
	if !apporbit.ConfigExists("auth.signingKey") {
		logging.Fatal(ctx, "config: auth.signingKey is required; tokens cannot be signed without it")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := eventbus.NewBus(ctx)
	srv := server.New(newStore(ctx), newVerifier(ctx),
		server.WithEventBus(bus),
		server.WithLogger(logger),
	)

	if err := srv.Start(ctx); err != nil {
		logging.Errorw(ctx, "server exited", "error", err)
		os.Exit(1)
	}
	if err := bus.Shutdown(context.Background()); err != nil {
		logging.Warnw(ctx, "event bus shutdown", "error", err)
	}
}

func newStore(ctx context.Context) storage.Store {
	driver := apporbit.ConfigString("storage.driver")
	dsn := apporbit.ConfigString("storage.dsn")
	switch driver {
	case "", "memory":
		logging.Info(ctx, "storage: using in-memory store; data will not survive restarts")
		return memorystore.New()
	case "sqlite":
		return sqlitestore.New(dsn)
	case "postgres":
		return postgres.New(dsn)
	default:
		logging.Fatalf(ctx, "storage: unknown driver %q", driver)
		return nil
	}
}

// newVerifier picks the identity verifier. Google is the only provider in
// production; without a configured client id the server refuses credential
// exchange rather than accepting tokens it cannot validate.
func newVerifier(ctx context.Context) idp.Verifier {
	if clientID := apporbit.ConfigString("auth.google.id"); clientID != "" {
		return googleidp.NewVerifier(clientID)
	}
	logging.Warn(ctx, "auth: no identity provider configured; credential exchange will fail")
	return rejectAllVerifier{}
}

type rejectAllVerifier struct{}

func (rejectAllVerifier) Verify(ctx context.Context, idToken string) (idp.Credential, error) {
	return idp.Credential{}, idp.ErrInvalidToken
}
