// Command ac-server starts the Authentic Caller HTTP API and gRPC health endpoint.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"

	"github.com/and161185/authentic-caller/internal/config"
	"github.com/and161185/authentic-caller/internal/directory"
	"github.com/and161185/authentic-caller/internal/limiter"
	"github.com/and161185/authentic-caller/internal/metrics"
	"github.com/and161185/authentic-caller/internal/migrate"
	"github.com/and161185/authentic-caller/internal/notify"
	"github.com/and161185/authentic-caller/internal/repository"
	"github.com/and161185/authentic-caller/internal/repository/postgres"
	redisstore "github.com/and161185/authentic-caller/internal/repository/redis"
	grpcserver "github.com/and161185/authentic-caller/internal/server/grpc"
	httpserver "github.com/and161185/authentic-caller/internal/server/http"
	"github.com/and161185/authentic-caller/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const cleanupInterval = 5 * time.Minute

// main loads configuration, runs migrations, and serves until SIGINT/SIGTERM.
func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(2)
	}

	logger := newLogger(cfg.Dev)
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("grpcAddr", cfg.GRPCAddr),
		zap.String("otpStore", cfg.OTPStore),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func newLogger(dev bool) *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if dev {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if err := migrate.Up(ctx, cfg.DSN, logger); err != nil {
		return err
	}

	// DB pool
	db, err := postgres.New(ctx, cfg.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	hs := health.NewServer()
	prober := grpcserver.NewProber(hs, logger, 10*time.Second)
	prober.Add("postgres", db.Ping)

	// Repositories
	contacts := postgres.NewContactRepo(db)
	var challenges repository.ChallengeStore
	switch cfg.OTPStore {
	case config.OTPStoreRedis:
		rdb, err := redisstore.Open(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		prober.Add("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		challenges = redisstore.NewChallengeStore(rdb)
	default:
		pgChallenges := postgres.NewChallengeRepo(db)
		challenges = pgChallenges
		go cleanupExpired(ctx, pgChallenges, logger)
	}

	lim := limiter.NewPG(db.Pool, cfg.LoginWindow, cfg.LoginMaxFails, cfg.LoginBlock)

	var emailSender notify.Sender = notify.NewLog(logger, "email")
	if cfg.SMTPEnabled() {
		emailSender = notify.NewSMTP(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.EmailUsername,
			Password: cfg.EmailPassword,
		})
	} else {
		logger.Warn("smtp credentials not set, one-time codes are only logged")
	}

	// Services
	authSvc := service.NewAuthService(contacts, challenges, lim,
		service.Notifiers{Email: emailSender, Phone: notify.NewLog(logger, "phone")},
		service.AuthConfig{
			SignKey:        []byte(cfg.JWTSecret),
			AccessTTL:      cfg.AccessTTL,
			OTPTTL:         cfg.OTPTTL,
			OTPMaxAttempts: cfg.OTPMaxAttempts,
		},
		logger, m)
	contactSvc := service.NewContactService(contacts, cfg.MaxImportRows, logger, m,
		directory.WithLanguage(cfg.Collation))

	api := httpserver.New(authSvc, contactSvc, logger, m, httpserver.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
		Ready:          prober.Ready,
		Timeout:        30 * time.Second,
	})
	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("listening (HTTP)", zap.String("addr", cfg.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var gs *grpc.Server
	if cfg.GRPCAddr != "" {
		var opts []grpc.ServerOption
		if cfg.TLSCert != "" {
			creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
			if err != nil {
				return err
			}
			opts = append(opts, grpc.Creds(creds))
		}
		gs = grpcserver.New(logger, hs, cfg.Dev, opts...)
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return err
		}
		go func() {
			logger.Info("listening (gRPC health)", zap.String("addr", cfg.GRPCAddr), zap.Bool("tls", cfg.TLSCert != ""))
			if err := gs.Serve(lis); err != nil {
				errCh <- err
			}
		}()
	}
	go prober.Run(ctx)

	// Wait for stop
	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	// graceful shutdown
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	hs.Shutdown()
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if gs != nil {
		done := make(chan struct{})
		go func() {
			gs.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-shutCtx.Done():
			gs.Stop()
		}
	}
	return serveErr
}

// cleanupExpired removes stale one-time code rows until ctx is done.
func cleanupExpired(ctx context.Context, repo *postgres.ChallengeRepo, logger *zap.Logger) {
	t := time.NewTicker(cleanupInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := repo.DeleteExpired(ctx)
			if err != nil {
				logger.Warn("otp cleanup", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Debug("otp cleanup", zap.Int64("deleted", n))
			}
		}
	}
}
