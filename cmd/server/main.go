package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"antigravity2api-go/internal/config"
	"antigravity2api-go/internal/constants"
	"antigravity2api-go/internal/credential"
	"antigravity2api-go/internal/discovery"
	"antigravity2api-go/internal/imagestore"
	"antigravity2api-go/internal/logging"
	"antigravity2api-go/internal/monitoring"
	"antigravity2api-go/internal/netutil"
	"antigravity2api-go/internal/oauth"
	"antigravity2api-go/internal/relay"
	"antigravity2api-go/internal/runtime"
	"antigravity2api-go/internal/server"
	"antigravity2api-go/internal/signature"
	"antigravity2api-go/internal/storage"
	"antigravity2api-go/internal/streaming"
	"antigravity2api-go/internal/translator"
	"antigravity2api-go/internal/upstream"
	"antigravity2api-go/internal/usage"
	"antigravity2api-go/internal/version"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to a YAML or JSON config file")
	flag.Parse()

	cfg, err := config.LoadWithFile(*configPath)
	if err != nil {
		log.WithError(err).Error("configuration load failed")
		os.Exit(1)
	}

	logging.Setup(logging.Options{Debug: cfg.Debug, File: cfg.LogFile})
	logging.InstallHook()

	if missing := cfg.MissingRequired(); len(missing) > 0 {
		log.WithField("missing", strings.Join(missing, ", ")).
			Error("required configuration is missing")
		os.Exit(1)
	}
	result := cfg.Validate()
	for _, warn := range result.Warnings {
		log.WithFields(log.Fields{"field": warn.Field, "value": warn.Value}).Warn(warn.Message)
	}
	if !result.Valid {
		for _, verr := range result.Errors {
			log.WithFields(log.Fields{"field": verr.Field, "value": verr.Value}).Error(verr.Message)
		}
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	traceShutdown, err := monitoring.InitTracing(ctx, cfg.TracingEnabled, cfg.TracingEndpoint)
	if err != nil {
		log.WithError(err).Warn("tracing initialization failed, continuing without it")
	}

	backend, err := storage.NewFromConfig(cfg)
	if err != nil {
		log.WithError(err).Error("storage backend construction failed")
		os.Exit(1)
	}
	if err := backend.Initialize(ctx); err != nil {
		log.WithError(err).Error("storage backend initialization failed")
		os.Exit(1)
	}
	defer backend.Close()

	credStore := credential.NewStore(backend)
	logs := usage.NewStore(backend, cfg.MaxLogItems, cfg.LogRetentionDays)
	if err := logs.Initialize(ctx); err != nil {
		log.WithError(err).Error("usage log initialization failed")
		os.Exit(1)
	}

	upstreamTimeout := time.Duration(cfg.UpstreamTimeoutSec) * time.Second
	oauthClient := oauth.NewClient(cfg.OAuthClientID, cfg.OAuthClientSecret,
		oauth.WithHTTPClient(netutil.NewHTTPClient(cfg.ProxyURL, 30*time.Second)),
		oauth.WithAllowRandomProjectID(cfg.AllowRandomProjectID),
	)
	refresher := credential.RefresherFunc(func(ctx context.Context, refreshToken string) (credential.TokenUpdate, error) {
		tok, err := oauthClient.Refresh(ctx, refreshToken)
		if err != nil {
			return credential.TokenUpdate{}, err
		}
		return credential.TokenUpdate{AccessToken: tok.AccessToken, ExpiresIn: tok.ExpiresIn}, nil
	})

	pool := credential.NewPool(credStore, refresher, logs, cfg.HourlyLimit)
	if err := pool.Initialize(ctx); err != nil {
		log.WithError(err).Error("credential pool initialization failed")
		os.Exit(1)
	}
	if pool.Size() == 0 {
		log.Warn("credential store is empty, onboard accounts through the panel")
	}

	upClient := upstream.NewClient(
		upstream.WithHTTPClient(netutil.NewHTTPClient(cfg.ProxyURL, upstreamTimeout)),
		upstream.WithEndpoint(cfg.UpstreamBaseURL+"/"+constants.UpstreamVersion),
		upstream.WithRetryStatuses(cfg.RetryStatusCodes),
	)

	images, err := buildImageStore(cfg)
	if err != nil {
		log.WithError(err).Error("image store construction failed")
		os.Exit(1)
	}

	adapter := translator.New(translator.Options{
		Temperature:     cfg.Temperature,
		TopP:            cfg.TopP,
		TopK:            cfg.TopK,
		MaxOutputTokens: cfg.MaxOutputTokens,
	}, signature.NewStore(0))

	orch := relay.New(pool, upClient, adapter, streaming.NewEngine(images), logs, cfg.RetryMaxAttempts)

	tasks := runtime.NewTaskManager(ctx)
	if cfg.StorageBackend == "file" {
		credPath := cfg.CredentialsPath()
		if err := tasks.Go("credential-watcher", func(ctx context.Context) error {
			return credential.WatchFile(ctx, credPath, pool)
		}); err != nil {
			log.WithError(err).Warn("credential watcher not started")
		}
	}

	srv := server.New(cfg, server.Dependencies{
		Store:        credStore,
		Pool:         pool,
		OAuth:        oauthClient,
		Logs:         logs,
		Hub:          logging.GetHub(),
		Orchestrator: orch,
		Discovery:    discovery.New(upClient, pool, 0),
		Sessions:     server.NewSessionStore(time.Duration(cfg.SessionTTLHours) * time.Hour),
	})

	log.WithFields(log.Fields{
		"version": version.Version,
		"addr":    cfg.Host + ":" + cfg.Port,
		"storage": cfg.StorageBackend,
	}).Info("gateway starting")

	runErr := srv.Run(ctx)

	drainCtx, cancel := context.WithTimeout(context.Background(), constants.ServerShutdownTimeout)
	defer cancel()
	if err := tasks.Shutdown(drainCtx); err != nil {
		log.WithError(err).Warn("background tasks did not drain in time")
	}
	logging.GetHub().Stop()
	if traceShutdown != nil {
		if err := traceShutdown(context.Background()); err != nil {
			log.WithError(err).Warn("tracing shutdown failed")
		}
	}

	if runErr != nil {
		log.WithError(runErr).Error("server exited with error")
		os.Exit(1)
	}
	log.Info("gateway stopped")
}

func buildImageStore(cfg *config.Config) (imagestore.Store, error) {
	switch cfg.ImageStorageMode {
	case "local":
		return imagestore.NewLocalStore(cfg.ImageLocalDir, cfg.ImageBaseURL+"/images")
	case "minio":
		return imagestore.NewMinioStore(imagestore.MinioOptions{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
	default:
		return imagestore.NewBase64Store(), nil
	}
}
