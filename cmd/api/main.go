package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"datamart/auth"
	"datamart/config"
	"datamart/db"
	"datamart/dispute"
	"datamart/exchange"
	"datamart/identity"
	"datamart/ledger"
	"datamart/listing"
	"datamart/reputation"
	"datamart/review"
)

func main() {
	configPath := flag.String("config", "datamart.toml", "path to config file")
	flag.Parse()

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("bootstrap database pool")
	}
	defer pool.Close()

	if err := db.MigrateUp(cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("run migrations")
	}

	configService := config.NewService(config.NewRepository(pool))
	ledgerStore := ledger.NewStore(pool)

	server := &Server{
		log:               log,
		authService:       auth.NewService(auth.NewRepository(pool), cfg.JWTSecret),
		configService:     configService,
		identityService:   identity.NewService(identity.NewRepository(pool), configService),
		listingService:    listing.NewService(listing.NewRepository(pool)),
		exchangeService:   exchange.NewService(pool, ledgerStore),
		disputeService:    dispute.NewService(pool),
		reputationService: reputation.NewService(pool, configService),
		reviewService:     review.NewService(review.NewRepository(pool)),
		ledgerService:     ledgerStore,
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}
