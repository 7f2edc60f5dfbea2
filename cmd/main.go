/**
 * @description
 * This is the main entry point for the SmartPay wallet service. It is
 * responsible for initializing all components of the service, including
 * configuration, database connection, the OTP store, the mailer, the
 * geolocation client, the message broker, repositories, the core application
 * services, the statement scheduler, and the HTTP server.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/redis/go-redis/v9: OTP store backend.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/geoip, pkg/mailer, pkg/rabbitmq: External service clients.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/SharathVaidya/Smartpay/internal/api"
	"github.com/SharathVaidya/Smartpay/internal/app"
	"github.com/SharathVaidya/Smartpay/internal/config"
	"github.com/SharathVaidya/Smartpay/internal/store"
	"github.com/SharathVaidya/Smartpay/pkg/geoip"
	"github.com/SharathVaidya/Smartpay/pkg/mailer"
	smrabbit "github.com/SharathVaidya/Smartpay/pkg/rabbitmq"
)

func main() {
	// Load a local .env file if present before reading configuration.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"jwt secret must be configured\" env=JWT_SECRET")
	}

	log.Printf("level=info component=bootstrap msg=\"starting smartpay\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	repository := store.NewPostgresRepository(dbpool)
	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	if err := repository.Migrate(migrateCtx); err != nil {
		cancelMigrate()
		log.Fatalf("level=fatal component=bootstrap msg=\"schema migration failed\" err=%v", err)
	}
	cancelMigrate()
	log.Println("level=info component=bootstrap msg=\"schema ready\"")

	// OTP records live in Redis so lockouts survive restarts. Fall back to an
	// in-memory store when Redis is not available.
	var otpStore store.OtpStore
	if strings.TrimSpace(cfg.RedisURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"redis url missing; using in-memory otp store\" env=REDIS_URL")
		otpStore = store.NewMemoryOtpStore()
	} else {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; using in-memory otp store\" err=%v", parseErr)
			otpStore = store.NewMemoryOtpStore()
		} else {
			redisClient := redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			pingErr := redisClient.Ping(pingCtx).Err()
			cancelPing()
			if pingErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis ping failed; using in-memory otp store\" err=%v", pingErr)
				redisClient.Close()
				otpStore = store.NewMemoryOtpStore()
			} else {
				defer redisClient.Close()
				log.Println("level=info component=bootstrap msg=\"redis connected\"")
				otpStore = store.NewRedisOtpStore(redisClient, cfg.RedisOtpPrefix)
			}
		}
	}

	// Initialize the RabbitMQ producer to publish wallet events.
	var events smrabbit.Publisher
	rabbitProducer, err := smrabbit.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		events = &smrabbit.EventProducerFallback{}
	} else {
		defer rabbitProducer.Close()
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
		events = rabbitProducer
	}

	// Initialize the SMTP mailer used for OTP delivery, receiver
	// notifications, and monthly statements.
	var mail mailer.Sender
	if strings.TrimSpace(cfg.SMTPHost) == "" {
		log.Println("level=warn component=bootstrap msg=\"smtp host missing; email delivery disabled\" env=SMTP_HOST")
		mail = mailer.Disabled{}
	} else {
		mail = mailer.New(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom)
		log.Printf("level=info component=bootstrap msg=\"smtp mailer configured\" host=%s", cfg.SMTPHost)
	}

	// Geolocation is best-effort; transfers record "Unknown" when the lookup
	// cannot be performed.
	var geo app.GeoResolver
	if strings.TrimSpace(cfg.IPInfoToken) == "" {
		log.Println("level=warn component=bootstrap msg=\"ipinfo token missing; transfer locations will be Unknown\" env=IPINFO_TOKEN")
	} else {
		geo = geoip.NewClient(cfg.IPInfoToken)
	}

	// Initialize the core application services with their dependencies.
	walletService := app.NewService(repository, mail, geo, events, cfg.MonthlyCapPaise)
	otpService := app.NewOtpService(repository, otpStore, mail, events)

	// Monthly statement scheduler.
	slogger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	statementJobs := app.NewStatementJobs(repository, mail, slogger)
	scheduler := app.NewScheduler(statementJobs, slogger, cfg.StatementSchedule)
	scheduler.Start()
	defer scheduler.Stop()

	// Initialize the API handlers and router.
	tokens := api.NewTokenManager(cfg.JWTSecret, time.Duration(cfg.SessionTTLMinutes)*time.Minute)
	walletHandlers := api.NewWalletHandlers(walletService, otpService, statementJobs, tokens)
	router := api.WalletRoutes(walletHandlers, tokens)

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
