package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/sethvargo/go-retry"

	"github.com/sbilibin2017/gw-shop-auth/internal/docs"
	"github.com/sbilibin2017/gw-shop-auth/internal/handlers"
	"github.com/sbilibin2017/gw-shop-auth/internal/hasher"
	"github.com/sbilibin2017/gw-shop-auth/internal/jwt"
	"github.com/sbilibin2017/gw-shop-auth/internal/logger"
	"github.com/sbilibin2017/gw-shop-auth/internal/middlewares"
	"github.com/sbilibin2017/gw-shop-auth/internal/migrations"
	"github.com/sbilibin2017/gw-shop-auth/internal/models"
	"github.com/sbilibin2017/gw-shop-auth/internal/notify"
	"github.com/sbilibin2017/gw-shop-auth/internal/ratelimit"
	"github.com/sbilibin2017/gw-shop-auth/internal/repositories"
	"github.com/sbilibin2017/gw-shop-auth/internal/services"

	_ "github.com/jackc/pgx/v5/stdlib"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Build info variables, set via ldflags at build time.
var (
	buildVersion = "N/A" // Version of the service
	buildDate    = "N/A" // Build date
	buildCommit  = "N/A" // Git commit hash
)

// Storage drivers accepted by STORAGE_DRIVER.
const (
	storagePostgres = "postgres"
	storageMemory   = "memory"
)

// config holds every setting read from the environment.
type config struct {
	AppHost   string
	AppPort   string
	LogLevel  string
	PublicURL string

	StorageDriver  string
	PGHost         string
	PGPort         int
	PGUser         string
	PGPassword     string
	PGDB           string
	PGMaxOpenConns int
	PGMaxIdleConns int

	RedisHost         string
	RedisPort         int
	RedisDB           int
	RedisPassword     string
	RedisPoolSize     int
	RedisMinIdleConns int
	RateLimitRPS      float64
	RateLimitBurst    float64

	KafkaBrokers []string
	KafkaTopic   string

	SMTP notify.Config

	AccessSecret  string
	AccessExp     time.Duration
	RefreshSecret string
	RefreshExp    time.Duration
	ResetExp      time.Duration
	CookieSecure  bool
}

// @title gw-shop-auth API
// @version 1.0.0
// @description Authentication and user management service for the shop backend
// @host localhost:8080
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	printBuildInfo()
	configPath := parseFlags()

	cfg, err := parseConfig(configPath)
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	if err := run(context.Background(), cfg); err != nil {
		log.Fatalf("application stopped with error: %v", err)
	}
}

// printBuildInfo prints the build version, commit hash, and build date.
func printBuildInfo() {
	fmt.Printf("Version: %s\nCommit: %s\nBuild: %s\n", buildVersion, buildCommit, buildDate)
}

// parseFlags parses command-line flags and returns the config file path.
func parseFlags() string {
	c := flag.String("c", "config.env", "Path to configuration file")
	flag.Parse()
	return *c
}

// parseConfig loads environment variables from a file and returns
// the application, storage, Redis, Kafka, SMTP and JWT configuration.
func parseConfig(path string) (*config, error) {
	_ = godotenv.Load(path)

	getEnv := func(key, defaultValue string) string {
		if val, ok := os.LookupEnv(key); ok && val != "" {
			return val
		}
		return defaultValue
	}

	var err error
	getInt := func(key, defaultValue string) int {
		if err != nil {
			return 0
		}
		var n int
		if n, err = strconv.Atoi(getEnv(key, defaultValue)); err != nil {
			err = fmt.Errorf("%s: %w", key, err)
		}
		return n
	}
	getFloat := func(key, defaultValue string) float64 {
		if err != nil {
			return 0
		}
		var f float64
		if f, err = strconv.ParseFloat(getEnv(key, defaultValue), 64); err != nil {
			err = fmt.Errorf("%s: %w", key, err)
		}
		return f
	}
	getSeconds := func(key, defaultValue string) time.Duration {
		return time.Duration(getInt(key, defaultValue)) * time.Second
	}

	cfg := &config{
		// Application config
		AppHost:   getEnv("APP_HOST", "localhost"),
		AppPort:   getEnv("APP_PORT", "8080"),
		LogLevel:  getEnv("APP_LOG_LEVEL", "info"),
		PublicURL: strings.TrimRight(getEnv("APP_PUBLIC_URL", ""), "/"),

		// Storage config
		StorageDriver:  getEnv("STORAGE_DRIVER", storagePostgres),
		PGHost:         getEnv("POSTGRES_HOST", "localhost"),
		PGPort:         getInt("POSTGRES_PORT", "5432"),
		PGUser:         getEnv("POSTGRES_USER", "user"),
		PGPassword:     getEnv("POSTGRES_PASSWORD", "password"),
		PGDB:           getEnv("POSTGRES_DB", "database"),
		PGMaxOpenConns: getInt("POSTGRES_MAX_OPEN_CONNS", "16"),
		PGMaxIdleConns: getInt("POSTGRES_MAX_IDLE_CONNS", "8"),

		// Redis config
		RedisHost:         getEnv("REDIS_HOST", "localhost"),
		RedisPort:         getInt("REDIS_PORT", "6379"),
		RedisDB:           getInt("REDIS_DB", "0"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisPoolSize:     getInt("REDIS_POOL_SIZE", "10"),
		RedisMinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", "2"),
		RateLimitRPS:      getFloat("RATE_LIMIT_RPS", "0"),
		RateLimitBurst:    getFloat("RATE_LIMIT_BURST", "10"),

		// Kafka config
		KafkaTopic: getEnv("KAFKA_TOPIC", "auth-events"),

		// SMTP config
		SMTP: notify.Config{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getInt("SMTP_PORT", "587"),
			User:     getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", ""),
		},

		// JWT config
		AccessSecret:  getEnv("JWT_ACCESS_SECRET_KEY", "my_super_secret_access_key"),
		AccessExp:     getSeconds("JWT_ACCESS_EXP_SECOND", "1800"),
		RefreshSecret: getEnv("JWT_REFRESH_SECRET_KEY", "my_super_secret_refresh_key"),
		RefreshExp:    getSeconds("JWT_REFRESH_EXP_SECOND", "604800"),
		ResetExp:      getSeconds("RESET_TOKEN_EXP_SECOND", "1800"),
	}
	if err != nil {
		return nil, err
	}

	for _, broker := range strings.Split(getEnv("KAFKA_BROKERS", ""), ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			cfg.KafkaBrokers = append(cfg.KafkaBrokers, broker)
		}
	}

	if cfg.CookieSecure, err = strconv.ParseBool(getEnv("COOKIE_SECURE", "true")); err != nil {
		return nil, fmt.Errorf("COOKIE_SECURE: %w", err)
	}

	switch cfg.StorageDriver {
	case storagePostgres, storageMemory:
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	// Reset links must never be built from client supplied Host headers
	// outside throwaway memory deployments.
	if cfg.PublicURL != "" {
		u, perr := url.Parse(cfg.PublicURL)
		if perr != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("APP_PUBLIC_URL %q must be an absolute http(s) URL", cfg.PublicURL)
		}
	} else if cfg.StorageDriver != storageMemory {
		return nil, errors.New("APP_PUBLIC_URL is required unless STORAGE_DRIVER=memory")
	}

	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("JWT_ACCESS_SECRET_KEY and JWT_REFRESH_SECRET_KEY must differ")
	}

	return cfg, nil
}

// storage groups the backends used by the services.
type storage struct {
	reader   services.UserReader
	writer   services.UserWriter
	products services.ProductCounter
	db       *sqlx.DB
}

// openStorage connects to the configured backend and applies migrations.
func openStorage(ctx context.Context, cfg *config) (*storage, error) {
	if cfg.StorageDriver == storageMemory {
		logger.Log.Warn("Using in-memory storage, data is lost on restart")
		users := repositories.NewUserMemoryRepository()
		return &storage{
			reader:   users,
			writer:   users,
			products: repositories.NewProductMemoryRepository(),
		}, nil
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.PGUser, cfg.PGPassword, cfg.PGHost, cfg.PGPort, cfg.PGDB)
	logger.Log.Infow("Connecting to PostgreSQL", "host", cfg.PGHost, "port", cfg.PGPort, "db", cfg.PGDB)

	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.PGMaxOpenConns)
	db.SetMaxIdleConns(cfg.PGMaxIdleConns)

	backoff := retry.WithMaxRetries(5, retry.NewExponential(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			logger.Log.Warnw("PostgreSQL ping failed, retrying", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := migrations.Up(ctx, db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &storage{
		reader:   repositories.NewUserReadRepository(db, middlewares.GetTxFromContext),
		writer:   repositories.NewUserWriteRepository(db, middlewares.GetTxFromContext),
		products: repositories.NewProductReadRepository(db),
		db:       db,
	}, nil
}

// run initializes the logger, storage, Redis, Kafka and HTTP server.
// It sets up routes, applies middleware, and handles graceful shutdown.
func run(ctx context.Context, cfg *config) error {
	// Initialize logger
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		fmt.Println("failed to initialize logger:", err)
		return err
	}
	defer logger.Sync()
	log := logger.Log
	log.Infof("Logger initialized with level %s", cfg.LogLevel)

	// Storage
	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	if store.db != nil {
		defer store.db.Close()
	}

	// Rate limiter, backed by Redis only when enabled
	var limiter *ratelimit.Limiter
	if cfg.RateLimitRPS > 0 {
		rdb := redis.NewClient(&redis.Options{
			Addr:         fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort),
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			PoolSize:     cfg.RedisPoolSize,
			MinIdleConns: cfg.RedisMinIdleConns,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warnw("Redis is unreachable, rate limiting fails open until it recovers", "error", err)
		}
		limiter = ratelimit.New(rdb, "", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	// Kafka event publisher
	var kafkaWriter services.KafkaWriter
	if len(cfg.KafkaBrokers) > 0 {
		writer := &kafka.Writer{
			Addr:                   kafka.TCP(cfg.KafkaBrokers...),
			Topic:                  cfg.KafkaTopic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		}
		kafkaWriter = writer
	} else {
		log.Info("KAFKA_BROKERS is empty, auth events are not published")
	}
	events := services.NewEventPublisher(kafkaWriter)
	defer events.Close()

	r := newRouter(cfg, store, limiter, events)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.AppHost, cfg.AppPort),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	errChan := make(chan error, 1)
	ctxShutdown, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	go func() {
		log.Infof("HTTP server listening on %s:%s", cfg.AppHost, cfg.AppPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	select {
	case <-ctxShutdown.Done():
		log.Info("Shutdown signal received, stopping HTTP server...")
	case serveErr := <-errChan:
		return serveErr
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("HTTP server shutdown error", "error", err)
	}

	log.Info("HTTP server stopped gracefully")
	return nil
}

// newRouter builds the services and mounts every route.
// Password recovery sends mail and stays outside the request transaction.
func newRouter(cfg *config, store *storage, limiter *ratelimit.Limiter, events *services.EventPublisher) http.Handler {
	// Tokens and passwords
	accessJWT := jwt.New(jwt.WithSecretKey(cfg.AccessSecret), jwt.WithExpiration(cfg.AccessExp))
	refreshJWT := jwt.New(jwt.WithSecretKey(cfg.RefreshSecret), jwt.WithExpiration(cfg.RefreshExp))
	cookie := jwt.RefreshCookie{Secure: cfg.CookieSecure, MaxAge: cfg.RefreshExp}

	// Initialize services
	authService := services.NewAuthService(
		store.reader, store.writer,
		accessJWT, refreshJWT,
		hasher.New(),
		notify.NewEmailNotifier(cfg.SMTP),
		events,
		services.WithResetTokenTTL(cfg.ResetExp),
	)
	userService := services.NewUserService(store.reader, store.writer, store.products, events)

	// Setup router
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middlewares.LoggingMiddleware(logger.Log))

	authenticated := middlewares.RequireAuthenticated(accessJWT, store.reader)
	limited := func(route string) func(http.Handler) http.Handler {
		return middlewares.RateLimitMiddleware(limiter, route)
	}
	inTx := func(r chi.Router) {
		if store.db != nil {
			r.Use(middlewares.TxMiddleware(store.db))
		}
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middlewares.RequireAnonymous(), limited("recover")).
				Post("/password/recover", handlers.NewRecoverPasswordHandler(authService, cfg.PublicURL))

			r.Group(func(r chi.Router) {
				inTx(r)

				r.Group(func(r chi.Router) {
					r.Use(middlewares.RequireAnonymous())
					r.With(limited("register")).Post("/register", handlers.NewRegisterHandler(authService, cookie))
					r.With(limited("login")).Post("/login", handlers.NewLoginHandler(authService, cookie))
					r.Put("/password/reset/{token}", handlers.NewResetPasswordHandler(authService, cookie))
				})

				logout := handlers.NewLogoutHandler(authService, cookie)
				r.Get("/logout", logout)
				r.Post("/logout", logout)
				r.Get("/refresh", handlers.NewRefreshHandler(authService))

				r.With(authenticated).Put("/password", handlers.NewChangePasswordHandler(authService, cookie))
			})
		})

		r.Route("/users", func(r chi.Router) {
			inTx(r)
			r.Use(authenticated)
			r.Get("/me", handlers.NewGetMeHandler())
			r.Put("/me", handlers.NewUpdateMeHandler(userService))
		})

		r.Route("/admin/users", func(r chi.Router) {
			inTx(r)
			r.Use(authenticated)
			r.Use(middlewares.RequireRole(models.RoleAdmin))
			r.Get("/", handlers.NewListUsersHandler(userService))
			r.Get("/{id}", handlers.NewGetUserHandler(userService))
			r.Put("/{id}", handlers.NewUpdateUserHandler(userService))
			r.Delete("/{id}", handlers.NewDeleteUserHandler(userService))
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	docs.SwaggerInfo.Host = fmt.Sprintf("%s:%s", cfg.AppHost, cfg.AppPort)
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL(fmt.Sprintf("http://%s:%s/swagger/doc.json", cfg.AppHost, cfg.AppPort)),
	))

	return r
}
