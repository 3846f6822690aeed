// Command authcore serves the credential API for the user and host apps.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/adapter/bizno"
	"github.com/MrEthical07/authcore/adapter/mail"
	"github.com/MrEthical07/authcore/adapter/oauth"
	"github.com/MrEthical07/authcore/adapter/provisioning"
	"github.com/MrEthical07/authcore/credential"
	otelexport "github.com/MrEthical07/authcore/metrics/export/otel"
	"github.com/MrEthical07/authcore/metrics/export/prometheus"
	"github.com/bwmarrin/snowflake"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("authcore stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg serviceConfig, logger *zap.Logger) error {
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.RedisAddr},
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	db, err := openDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.AutoMigrate {
		if err := credential.CreateSchema(ctx, db); err != nil {
			return err
		}
	}

	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return fmt.Errorf("snowflake node: %w", err)
	}

	engine, err := buildEngine(cfg, logger, rdb, credential.NewStore(db, node))
	if err != nil {
		return err
	}
	defer engine.Close()

	closeOTel, err := registerOTelMetrics(cfg.OTelMetrics, otel.Meter("github.com/MrEthical07/authcore"), engine)
	if err != nil {
		return err
	}
	defer closeOTel()

	router := newRouter(engine, logger, prometheus.NewPrometheusExporter(engine).Handler())
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func buildEngine(cfg serviceConfig, logger *zap.Logger, rdb redis.UniversalClient, store authcore.CredentialStore) (*authcore.Engine, error) {
	b := authcore.New().
		WithConfig(cfg.Engine).
		WithLogger(logger).
		WithRedis(rdb).
		WithCredentialStore(store).
		WithProvisioner(provisioning.New(provisioning.Config{
			UserServiceURL: cfg.UserServiceURL,
			HostServiceURL: cfg.HostServiceURL,
		})).
		WithNotifier(mail.NewSender(mail.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			CodeTTL:  cfg.Engine.Verification.CodeTTL,
			Timeout:  cfg.SMTPTimeout,
		})).
		WithSocialResolver(authcore.ProviderKakao, oauth.NewKakaoResolver(cfg.KakaoUserInfo, nil))

	if cfg.BiznoAPIKey != "" {
		b = b.WithBusinessVerifier(bizno.New(cfg.BiznoEndpoint, cfg.BiznoAPIKey, nil))
	} else {
		logger.Warn("BIZNO_API_KEY not set; host registration disabled")
	}
	if cfg.Engine.Audit.Enabled {
		b = b.WithAuditSink(authcore.NewZapAuditSink(logger.Named("audit")))
	}

	engine, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("engine build: %w", err)
	}
	return engine, nil
}

// registerOTelMetrics publishes engine metrics on meter when enabled. The
// global meter provider is a no-op until the deployment installs an SDK.
func registerOTelMetrics(enabled bool, meter metric.Meter, engine *authcore.Engine) (func(), error) {
	if !enabled {
		return func() {}, nil
	}
	exp, err := otelexport.NewOTelExporter(meter, engine)
	if err != nil {
		return nil, fmt.Errorf("otel metrics: %w", err)
	}
	return func() { _ = exp.Close() }, nil
}

func openDB(ctx context.Context, dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqldb.SetMaxOpenConns(20)
	sqldb.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := sqldb.PingContext(pingCtx); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

func newLogger(level string, dev bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	zcfg := zap.NewProductionConfig()
	if dev {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}
