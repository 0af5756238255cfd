// cmd/referral-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	commonaws "referralbridge/internal/common/aws"
	"referralbridge/internal/common/config"
	"referralbridge/internal/common/database"
	"referralbridge/internal/common/logger"
	"referralbridge/internal/common/observability"
	"referralbridge/internal/mail"
	"referralbridge/internal/notify"
	"referralbridge/internal/otp"
	"referralbridge/internal/payment"
	"referralbridge/internal/server"
	"referralbridge/internal/store"
	"referralbridge/internal/upload"
	"referralbridge/internal/workflow"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting referral service...",
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New("referral-service")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch (optional) with retry ---
	var searchIndex *store.SearchIndex
	if cfg.Database.Elasticsearch.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

		if err != nil {
			// Search is a mirror, not the source of truth. Run without it.
			zapLog.Warn("elasticsearch unavailable, search view disabled", zap.Error(err))
		} else {
			searchIndex = store.NewSearchIndex(esClient.Client, cfg.Database.Elasticsearch.Index, log)
			zapLog.Info("Elasticsearch connected successfully")
		}
	}

	// --- Init payment provider ---
	gateway, err := payment.NewGateway(cfg.Payment, log)
	if err != nil {
		zapLog.Fatal("payment gateway init failed", zap.Error(err))
	}
	verifier, err := payment.NewVerifier(cfg.Payment.KeySecret)
	if err != nil {
		zapLog.Fatal("payment verifier init failed", zap.Error(err))
	}

	// --- Init AWS clients ---
	var mailer mail.Mailer
	if cfg.AWS.SES.Enabled {
		sesClient, err := commonaws.NewSESClient(ctx, cfg.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client init failed", zap.Error(err))
		}
		mailer = mail.NewSESMailer(sesClient, cfg.AWS.SES.FromEmail, log)
	} else {
		mailer = mail.NewLogMailer(log)
		zapLog.Warn("SES disabled, verification codes are logged instead of emailed")
	}

	var uploader upload.Uploader
	if cfg.AWS.S3.Bucket != "" {
		s3Client, err := commonaws.NewS3Client(ctx, cfg.AWS.Region)
		if err != nil {
			zapLog.Fatal("s3 client init failed", zap.Error(err))
		}
		uploader = upload.NewS3Uploader(s3Client, cfg.AWS.S3.Bucket, log)
	}

	var alerter notify.Alerter
	if cfg.AWS.SNS.Enabled {
		snsClient, err := commonaws.NewSNSClient(ctx, cfg.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
		alerter = notify.NewSNSAlerter(snsClient, cfg.AWS.SNS.AlertsTopicARN, log)
	}

	// --- Wire the workflow ---
	otpService := otp.NewService(redis.Client, mailer, time.Duration(cfg.Workflow.OTPTTL)*time.Second, log)
	recordStore := store.NewStore(pg.DB, log)

	var searchIndexer workflow.SearchIndexer
	var companySearch server.CompanySearcher
	if searchIndex != nil {
		searchIndexer = searchIndex
		companySearch = searchIndex
	}

	manager := workflow.NewManager(workflow.Deps{
		OTP:      otpService,
		Gateway:  gateway,
		Verifier: verifier,
		Uploader: uploader,
		Records:  recordStore,
		Search:   searchIndexer,
		Alerts:   alerter,
		Logger:   log,
		Obs:      obs,
	}, workflow.Settings{
		AmountMinor:     cfg.Payment.AmountMinor,
		Currency:        cfg.Payment.Currency,
		StageTimeout:    time.Duration(cfg.Workflow.StageTimeout) * time.Millisecond,
		CheckoutTimeout: time.Duration(cfg.Workflow.CheckoutTimeout) * time.Millisecond,
	})

	srv, err := server.New(manager, gateway, verifier, recordStore, companySearch, cfg.Payment.AmountMinor, log)
	if err != nil {
		zapLog.Fatal("http server init failed", zap.Error(err))
	}

	mux := http.NewServeMux()
	mux.Handle("/", srv.Handler())
	mux.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:         cfg.Server.ListenAddress,
		Handler:      mux,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Millisecond,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.ListenAddress))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Referral service stopped gracefully")
}
