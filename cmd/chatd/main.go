package main

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cwrk-planet/glasschat/config"
	"github.com/cwrk-planet/glasschat/internal/attachments"
	"github.com/cwrk-planet/glasschat/internal/backend"
	"github.com/cwrk-planet/glasschat/internal/call"
	"github.com/cwrk-planet/glasschat/internal/chat"
	"github.com/cwrk-planet/glasschat/internal/domain"
	"github.com/cwrk-planet/glasschat/internal/identity"
	"github.com/cwrk-planet/glasschat/internal/media"
	"github.com/cwrk-planet/glasschat/internal/notify"
	"github.com/cwrk-planet/glasschat/internal/realtime"
	"github.com/cwrk-planet/glasschat/internal/repository"
	"github.com/cwrk-planet/glasschat/internal/repository/postgres"
	"github.com/cwrk-planet/glasschat/internal/repository/sqlite"
	"github.com/cwrk-planet/glasschat/internal/security"
	"github.com/cwrk-planet/glasschat/internal/session"
	grpcx "github.com/cwrk-planet/glasschat/internal/transport/grpc"
	httpx "github.com/cwrk-planet/glasschat/internal/transport/http"
	"github.com/cwrk-planet/glasschat/internal/transport/ws"
	"github.com/cwrk-planet/glasschat/pkg/logger"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.ParseEnv(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	stopTracing := logger.InitTracing()
	defer func() { _ = stopTracing(context.Background()) }()

	slog.Info("starting chatd",
		slog.String("env", cfg.Logging.Env),
		slog.String("version", cfg.Logging.Version),
		slog.String("storage", cfg.Storage.Driver),
		slog.String("realtime", cfg.Realtime.Driver))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("chatd stopped with error", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	// --- storage ---
	repos, closeStorage, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer closeStorage()

	// --- realtime ---
	bus, err := openBus(ctx, cfg.Realtime)
	if err != nil {
		return fmt.Errorf("realtime: %w", err)
	}
	defer bus.Close()

	// --- identity ---
	signer, err := newSigner(cfg.Security.JWT)
	if err != nil {
		return fmt.Errorf("jwt: %w", err)
	}
	be := backend.New(repos, bus, nil)
	provider := identity.NewProvider(repos.Credentials, repos.Sessions, be, signer,
		cfg.Security.RefreshTTL,
		security.BcryptConfig{Cost: cfg.Security.Password.BcryptCost, MinLength: cfg.Security.Password.MinLength},
		nil)

	// --- stores ---
	hub := ws.NewHub()
	prefs := session.NewPreferences()
	notifier := notify.NewBroadcaster(prefs.NotificationsEnabled, notify.Log{}, hub)

	var sess *session.Store
	chatStore := chat.New(be, chat.IdentityFunc(func() string { return sess.UserID() }))
	sess = session.New(provider, be, chatStore, notifier, prefs, cfg.Session.HeartbeatInterval)
	callStore := call.New(be,
		media.NewPionDevices(cfg.Media.Audio, cfg.Media.Video),
		media.NewPeerManager(cfg.Media.ICEServers),
		notifier, sess)
	sess.SetCall(callStore)

	// --- attachments ---
	files, err := openAttachments(ctx, cfg.Attachments)
	if err != nil {
		return fmt.Errorf("attachments: %w", err)
	}
	uploads := attachments.NewService(files, cfg.Attachments.MaxBytes, cfg.Attachments.URLTTL)

	// --- WS ---
	wsServer := ws.NewServer(hub, provider, sess, func() any {
		return snapshot{
			Chat:        chatStore.Snapshot(),
			Call:        callStore.State(),
			User:        sess.Current(),
			Preferences: prefs.Values(),
		}
	}, cfg.HTTP.AllowedOrigins)
	defer chatStore.OnChange(wsServer.ChatChanged)()
	defer callStore.OnChange(wsServer.CallChanged)()
	defer sess.OnChange(wsServer.SessionChanged)()

	sess.Init(ctx)

	// --- HTTP ---
	deps := httpx.Deps{
		Identity:       provider,
		Session:        sess,
		Chat:           chatStore,
		Call:           callStore,
		Attachments:    uploads,
		WS:             http.HandlerFunc(wsServer.HandleWS),
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		MaxUploadBytes: cfg.Attachments.MaxBytes,
	}
	if local, ok := files.(*attachments.LocalStorage); ok {
		deps.Files = http.FileServer(http.Dir(local.BasePath()))
		deps.FilesPrefix = local.PublicPrefix()
	}
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      httpx.NewRouter(deps),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// --- gRPC ---
	grpcSrv := grpcx.NewServer(10 * time.Second)
	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	// --- run both servers ---
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("http listen", slog.String("addr", cfg.HTTP.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		slog.Info("grpc listen", slog.String("addr", cfg.GRPC.Addr))
		grpcSrv.SetServing(true)
		return grpcSrv.Serve(lis)
	})

	// --- graceful shutdown ---
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		grpcSrv.GracefulStop()
		hub.CloseAll()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http shutdown failed", slog.Any("err", err))
		}
		callStore.Close()
		sess.Close()
		chatStore.Reset()
		return nil
	})

	return g.Wait()
}

// snapshot is the state frame sent to every new websocket client.
type snapshot struct {
	Chat        chat.Snapshot            `json:"chat"`
	Call        call.State               `json:"call"`
	User        *domain.User             `json:"user"`
	Preferences session.PreferenceValues `json:"preferences"`
}

func openStorage(ctx context.Context, cfg config.Storage) (repository.Set, func(), error) {
	switch cfg.Driver {
	case "postgres":
		pool, err := postgres.NewPool(ctx, postgres.Config{
			DSN:               cfg.Postgres.DSN,
			MaxConns:          cfg.Postgres.MaxConns,
			MinConns:          cfg.Postgres.MinConns,
			MaxConnLifetime:   cfg.Postgres.MaxConnLifetime,
			MaxConnIdleTime:   cfg.Postgres.MaxConnIdleTime,
			HealthCheckPeriod: cfg.Postgres.HealthCheckPeriod,
			ApplicationName:   cfg.Postgres.ApplicationName,
		})
		if err != nil {
			return repository.Set{}, nil, err
		}
		return postgres.Repositories(pool), pool.Close, nil
	default:
		db, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return repository.Set{}, nil, err
		}
		return db.Repositories(), func() { _ = db.Close() }, nil
	}
}

func openBus(ctx context.Context, cfg config.Realtime) (realtime.Bus, error) {
	if cfg.Driver == "redis" {
		return realtime.NewRedisBus(ctx, realtime.RedisConfig{
			Address:      cfg.Redis.Address,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		}, cfg.BufferSize)
	}
	return realtime.NewMemoryBus(cfg.BufferSize), nil
}

func newSigner(cfg config.JWT) (*security.JWTSigner, error) {
	var (
		priv *rsa.PrivateKey
		pub  *rsa.PublicKey
		err  error
	)
	if cfg.Ephemeral {
		slog.Warn("using an ephemeral jwt key, tokens will not survive a restart")
		priv, err = security.GenerateEphemeralKey()
		if err != nil {
			return nil, err
		}
		pub = &priv.PublicKey
	} else {
		if priv, pub, err = security.LoadKeyPair(cfg.PrivateKeyPath, cfg.PublicKeyPath); err != nil {
			return nil, err
		}
	}
	return security.NewJWTSigner(priv, pub, cfg.Issuer, cfg.Audience, cfg.AccessTTL, cfg.ClockSkew), nil
}

func openAttachments(ctx context.Context, cfg config.Attachments) (attachments.Storage, error) {
	if cfg.Driver == "s3" {
		return attachments.NewS3Storage(ctx, attachments.S3Config{
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UsePathStyle:    cfg.S3.UsePathStyle,
			PublicURL:       cfg.S3.PublicURL,
		})
	}
	return attachments.NewLocalStorage(cfg.Local.BasePath, cfg.Local.PublicPrefix)
}
