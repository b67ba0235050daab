package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jbrand/leadintake/internal/api"
	"github.com/jbrand/leadintake/internal/archive"
	"github.com/jbrand/leadintake/internal/config"
	"github.com/jbrand/leadintake/internal/notify"
	"github.com/jbrand/leadintake/internal/pkg/distlock"
	"github.com/jbrand/leadintake/internal/pkg/logger"
	"github.com/jbrand/leadintake/internal/repository/memory"
	"github.com/jbrand/leadintake/internal/repository/postgres"
	"github.com/jbrand/leadintake/internal/service/contact"
	"github.com/jbrand/leadintake/internal/service/subscriber"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("address %s is already in use: %v", addr, err)
	}
	ln.Close()
	return nil
}

// extractHost returns the host part of a DSN without credentials.
func extractHost(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	if at < 0 {
		if i := strings.Index(dsn, "host="); i >= 0 {
			if f := strings.Fields(dsn[i+len("host="):]); len(f) > 0 {
				return f[0]
			}
		}
		return "(unknown)"
	}
	rest := dsn[at+1:]
	if slash := strings.IndexAny(rest, "/?"); slash >= 0 {
		rest = rest[:slash]
	}
	return rest
}

// connectRedis returns nil when Redis is not configured or unreachable.
func connectRedis(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	if !cfg.Enabled() {
		return nil
	}
	var client *redis.Client
	if cfg.URL != "" {
		opts, err := redis.ParseURL(cfg.URL)
		if err != nil {
			client = redis.NewClient(&redis.Options{Addr: cfg.URL})
		} else {
			client = redis.NewClient(opts)
		}
	} else {
		client = redis.NewClient(&redis.Options{Addr: cfg.Addr})
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Printf("Warning: Redis connection failed: %v, falling back", err)
		client.Close()
		return nil
	}
	return client
}

func main() {
	log.Println("JBrand lead intake server starting")

	cfg, err := config.LoadFromEnv(envOr("CONFIG_PATH", "config/config.yaml"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	logger.SetRedactPII(cfg.Environment.IsProduction())
	log.Printf("Mode: %s", cfg.Environment)

	addr := cfg.Server.Addr()
	if err := checkPortAvailable(addr); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	var (
		contactRepo    contact.Repository
		subscriberRepo subscriber.Repository
		locks          distlock.Backend
		health         = api.HealthDeps{Mode: string(cfg.Environment)}
	)
	redisClient := connectRedis(ctx, cfg.Redis)
	locks.Redis = redisClient
	health.Redis = redisClient

	switch cfg.Database.Driver {
	case config.DriverMemory:
		log.Println("Storage: in-memory (records are lost on restart)")
		contactRepo = memory.NewContactRepo()
		subscriberRepo = memory.NewSubscriberRepo()
		health.Database = func(context.Context) error { return nil }
		health.DatabaseLabel = "in-memory"
	default:
		dsn := postgres.BuildDSN(cfg.Database.URL, cfg.Database.Name)
		db := postgres.NewHandle(dsn)
		defer db.Close()
		if db.Configured() {
			log.Printf("Storage: PostgreSQL at %s", extractHost(dsn))
			health.Database = db.Ping
			if locks.Redis == nil {
				locks.DB = db.DB
			}
		} else {
			log.Println("Warning: DATABASE_URL not set, storage operations will fail")
		}
		contactRepo = postgres.NewContactRepo(db.DB)
		subscriberRepo = postgres.NewSubscriberRepo(db.DB)
	}

	contacts := contact.NewService(contactRepo,
		contact.WithLocks(locks),
		contact.WithTimeout(cfg.Database.Timeout()),
		contact.WithDedupWindow(cfg.Contact.DedupWindow()))
	subscribers := subscriber.NewService(subscriberRepo,
		subscriber.WithLocks(locks),
		subscriber.WithTimeout(cfg.Database.Timeout()))

	// Mail
	var mailer notify.Mailer
	if cfg.SES.Configured() {
		m, err := notify.NewSESMailer(ctx, cfg.SES.AccessKey, cfg.SES.SecretKey, cfg.SES.Region)
		if err != nil {
			log.Printf("Warning: SES client init failed: %v", err)
		} else {
			mailer = m
			log.Printf("Mail: SES in %s", cfg.SES.Region)
		}
	}
	dispatcher, err := notify.NewDispatcher(notify.Options{
		Mode:     cfg.Environment,
		From:     cfg.Mail.From,
		FromName: cfg.Mail.FromName,
		AlertTo:  cfg.Mail.To,
		Timeout:  cfg.Mail.Timeout(),
	}, mailer)
	if err != nil {
		log.Fatalf("Failed to parse email templates: %v", err)
	}
	health.MailStatus = dispatcher.Status

	// Archive
	var archiver api.Archiver
	if cfg.Archive.Bucket != "" {
		a, err := archive.NewS3Archiver(ctx, archive.Config{
			Bucket: cfg.Archive.Bucket,
			Prefix: cfg.Archive.Prefix,
			Region: cfg.Archive.Region,
		})
		if err != nil {
			log.Printf("Warning: lead archive disabled: %v", err)
		} else {
			archiver = a
			log.Printf("Archive: s3://%s/%s", cfg.Archive.Bucket, cfg.Archive.Prefix)
		}
	}

	handlers := api.NewHandlers(api.Deps{
		Mode:        cfg.Environment,
		Contacts:    contacts,
		Subscribers: subscribers,
		Notifier:    dispatcher,
		Archiver:    archiver,
	})
	server := api.NewServer(handlers, api.NewHealthChecker(health), cfg.Server.CORSAllowedOrigins)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if redisClient != nil {
		redisClient.Close()
	}

	log.Println("Server stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
