package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/lumenboard/lumenboard/contracts"
	signuphandler "github.com/lumenboard/lumenboard/domains/signup/be/handler"
	signupservice "github.com/lumenboard/lumenboard/domains/signup/be/service"
	workspaceshandler "github.com/lumenboard/lumenboard/domains/workspaces/be/handler"
	workspacesprov "github.com/lumenboard/lumenboard/domains/workspaces/be/provisioning"
	workspacesrepo "github.com/lumenboard/lumenboard/domains/workspaces/be/repo"
	workspacesservice "github.com/lumenboard/lumenboard/domains/workspaces/be/service"
	platformemail "github.com/lumenboard/lumenboard/platform/go/email"
	platformlogging "github.com/lumenboard/lumenboard/platform/go/logging"
	platformmiddleware "github.com/lumenboard/lumenboard/platform/go/middleware"
	"github.com/lumenboard/lumenboard/platform/go/persistence"
)

type config struct {
	Port            string        `env:"PORT" envDefault:"3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL     string        `env:"DATABASE_URL,required"`

	BaseDomain string `env:"BASE_DOMAIN" envDefault:"lumenboard.app"`

	ResendAPIKey string `env:"RESEND_API_KEY,required"`
	EmailFrom    string `env:"EMAIL_FROM" envDefault:"no-reply@lumenboard.app"`
	EmailName    string `env:"EMAIL_FROM_NAME" envDefault:"Lumenboard"`

	ProviderBaseURL string `env:"DB_PROVIDER_BASE_URL,required"`
	ProviderAPIKey  string `env:"DB_PROVIDER_API_KEY,required"`
	ProviderRegion  string `env:"DB_PROVIDER_REGION" envDefault:"aws-us-east-1"`

	// ProvisionTimeout bounds the whole create-workspace request; it has to
	// cover provider allocation, readiness polling, migrations and seeding.
	ProvisionTimeout time.Duration `env:"PROVISION_TIMEOUT" envDefault:"5m"`
	ReadyTimeout     time.Duration `env:"DB_READY_TIMEOUT" envDefault:"2m"`
}

func main() {
	ctx := context.Background()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "api-server",
		Level:     cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: cfg.DatabaseURL})
	if err != nil {
		logger.Fatal("init postgres pool", zap.Error(err))
	}
	defer persistence.ClosePool(pool)

	verificationStore, err := persistence.NewVerificationStore(ctx, pool)
	if err != nil {
		logger.Fatal("init verification store", zap.Error(err))
	}

	sender, err := platformemail.NewResendSender(platformemail.ResendConfig{
		APIKey:    cfg.ResendAPIKey,
		FromName:  cfg.EmailName,
		FromEmail: cfg.EmailFrom,
	})
	if err != nil {
		logger.Fatal("init resend sender", zap.Error(err))
	}

	signupService := signupservice.New(verificationStore, sender)
	signupHTTPHandler := signuphandler.New(signupService, logger)

	workspaceStore, err := persistence.NewWorkspaceStore(ctx, pool)
	if err != nil {
		logger.Fatal("init workspace store", zap.Error(err))
	}

	provider, err := workspacesprov.NewProviderClient(workspacesprov.ProviderConfig{
		BaseURL: cfg.ProviderBaseURL,
		APIKey:  cfg.ProviderAPIKey,
	})
	if err != nil {
		logger.Fatal("init database provider client", zap.Error(err))
	}

	workspacesService := workspacesservice.New(
		workspacesrepo.NewPostgresRepository(workspaceStore),
		provider,
		workspacesprov.NewWaiter(0, nil),
		workspacesprov.NewBootstrapper(),
		tokenBridge{signup: signupService},
		logger,
		workspacesservice.Config{
			Region:       cfg.ProviderRegion,
			BaseDomain:   cfg.BaseDomain,
			ReadyTimeout: cfg.ReadyTimeout,
		},
	)
	workspacesHTTPHandler := workspaceshandler.New(workspacesService, logger)

	contractValidator, err := platformmiddleware.ContractValidator(contracts.SignupYAML)
	if err != nil {
		logger.Fatal("init contract validator", zap.Error(err))
	}

	rootRouter := chi.NewRouter()

	rootRouter.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		platformmiddleware.DefaultCORS(),
	)

	rootRouter.Use(platformlogging.RequestLogger(logger))

	rootRouter.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	apiRouter := chi.NewRouter()
	apiRouter.Use(contractValidator)

	apiRouter.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
		signupHTTPHandler.Register(r)
		workspacesHTTPHandler.Register(r)
	})

	// Workspace creation blocks for the whole provisioning saga, so it gets
	// its own, much longer timeout budget.
	apiRouter.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(cfg.ProvisionTimeout))
		workspacesHTTPHandler.RegisterProvisioning(r)
	})

	rootRouter.Mount("/api/v1", apiRouter)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      rootRouter,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.ProvisionTimeout + 30*time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("starting api server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server listen failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// tokenBridge adapts the signup service to the workspaces token contract,
// translating the signup sentinel into the one workspaces callers match on.
type tokenBridge struct {
	signup *signupservice.Service
}

func (b tokenBridge) CheckToken(ctx context.Context, email, token string) error {
	if err := b.signup.CheckToken(ctx, email, token); err != nil {
		if errors.Is(err, signupservice.ErrInvalidToken) {
			return workspacesservice.ErrInvalidToken
		}
		return err
	}
	return nil
}

func (b tokenBridge) ConsumeToken(ctx context.Context, email string) error {
	return b.signup.ConsumeToken(ctx, email)
}

var _ workspacesservice.TokenVerifier = tokenBridge{}
