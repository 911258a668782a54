package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	limiterstdlib "github.com/ulule/limiter/v3/drivers/middleware/stdlib"

	"github.com/agrilink/backend-agrilink/internal/app"
	"github.com/agrilink/backend-agrilink/internal/auth"
	"github.com/agrilink/backend-agrilink/internal/calc"
	"github.com/agrilink/backend-agrilink/internal/catalog"
	"github.com/agrilink/backend-agrilink/internal/chat"
	"github.com/agrilink/backend-agrilink/internal/common"
	"github.com/agrilink/backend-agrilink/internal/config"
	"github.com/agrilink/backend-agrilink/internal/events"
	"github.com/agrilink/backend-agrilink/internal/favorites"
	"github.com/agrilink/backend-agrilink/internal/health"
	"github.com/agrilink/backend-agrilink/internal/lock"
	"github.com/agrilink/backend-agrilink/internal/obs"
	"github.com/agrilink/backend-agrilink/internal/product"
	"github.com/agrilink/backend-agrilink/internal/ratelimit"
	"github.com/agrilink/backend-agrilink/internal/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "agrilink")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "agrilink-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				ctx := context.Background()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bootCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	deps, err := app.Build(bootCtx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("build dependencies")
	}
	defer deps.Close()

	if err := deps.DB.Ping(bootCtx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	if err := deps.Redis.Ping(bootCtx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	if envBool("MIGRATE_ON_START", false) {
		source := envOrDefault("MIGRATIONS_PATH", "file://db/migrations")
		m, err := migrate.New(source, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("open migrations")
		}
		if err := app.RunMigrations(m); err != nil {
			logger.Fatal().Err(err).Msg("apply migrations")
		}
		logger.Info().Msg("migrations applied")
	}

	bus := &events.Bus{Store: events.NewStore(deps.DB)}

	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Queries:      catalog.NewStore(deps.DB),
		Cache:        catalog.NewCache(deps.Redis, cfg.CatalogCacheTTL),
		Locker:       &lock.Locker{R: deps.Redis},
		DefaultPage:  cfg.CatalogDefaultPage,
		DefaultLimit: cfg.CatalogDefaultLimit,
		MaxLimit:     cfg.CatalogMaxLimit,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}
	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: catalogService})

	authService, err := auth.NewService(auth.Config{
		Store:           auth.NewStore(deps.DB),
		Bus:             bus,
		Secret:          cfg.JWTSecret,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	authHandlers := auth.NewHandlers(authService, auth.CookieConfig{
		RefreshName: cfg.RefreshCookieName,
		CSRFName:    cfg.CSRFCookieName,
		Domain:      cfg.CookieDomain,
		Secure:      cfg.CookieSecure,
		SameSite:    cfg.CookieSameSite,
	})

	productService, err := product.NewService(product.ServiceConfig{
		Store:     product.NewStore(deps.DB),
		Validator: deps.Validator,
		Bus:       bus,
		Logger:    logger,
		PerPage:   cfg.CatalogDefaultLimit,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise product service")
	}
	productHandler := product.NewHandler(product.HandlerConfig{Service: productService, Logger: logger})

	calcService, err := calc.NewService(calc.ServiceConfig{
		Store:        calc.NewStore(deps.DB),
		Bus:          bus,
		Logger:       logger,
		HistoryLimit: cfg.CalcHistoryLimit,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise calculator service")
	}
	calcHandler := calc.NewHandler(calc.HandlerConfig{Service: calcService, Logger: logger})

	favoritesHandler := &favorites.Handler{Store: favorites.NewStore(deps.DB)}

	chatService, err := chat.NewService(chat.ServiceConfig{
		Store:    chat.NewStore(deps.DB),
		Bus:      bus,
		Tasks:    deps.TaskClient,
		Logger:   logger,
		PageSize: cfg.ChatPageSize,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise chat service")
	}
	chatHandler := chat.NewHandler(chat.HandlerConfig{Service: chatService, Logger: logger})

	idem := common.Idem{R: deps.Redis, TTL: cfg.IdempotencyTTL}
	calcLimiter := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: deps.Redis, Prefix: "ratelimit:"},
		Config: ratelimit.Config{
			Key:    ratelimit.PerUser("calc:save"),
			Window: cfg.CalcRateWindow,
			Max:    cfg.CalcRateMax,
		},
		OnError: func(err error) { logger.Error().Err(err).Msg("rate limiter") },
	}
	csrf := security.CSRF{Header: cfg.CSRFHeaderName, Cookie: cfg.CSRFCookieName}
	bodyLimit := security.BodyLimit{Max: cfg.BodyLimitBytes}
	secHeaders := security.Headers{Enable: true, EnableHSTS: cfg.CookieSecure, HSTSMaxAge: 31536000}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(secHeaders.Middleware)
	r.Use(bodyLimit.Middleware)
	r.Use(limiterstdlib.NewMiddleware(deps.Limiter).Handler)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", cfg.CSRFHeaderName, "Idempotency-Key"},
		ExposedHeaders:   []string{"Link", "X-Total-Count"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	pprofEnabled := envBool("OBS_ENABLE_PPROF", true)
	if pprofEnabled {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      readinessChecker{db: deps.DB, redis: deps.Redis},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(authHandlers.Authenticate)

		v.Get("/categories", catalogHandler.Categories)
		v.Get("/products", catalogHandler.Products)
		v.Get("/products/{id}", catalogHandler.ProductDetail)

		v.Get("/favorites/{id}", favoritesHandler.Check)
		v.Group(func(fav chi.Router) {
			fav.Use(auth.RequireAuth)
			fav.Get("/favorites", favoritesHandler.List)
			fav.Post("/favorites", favoritesHandler.Toggle)
		})

		v.Route("/auth", func(a chi.Router) {
			a.Post("/register", authHandlers.Register)
			a.Post("/login", authHandlers.Login)
			a.Post("/refresh", authHandlers.Refresh)
			a.Post("/logout", authHandlers.Logout)
			a.With(auth.RequireAuth).Get("/me", authHandlers.Me)
		})

		v.Group(func(farm chi.Router) {
			farm.Use(auth.RequireAuth)
			farm.With(idem.Middleware).Post("/products", productHandler.Create)
			farm.Put("/products/{id}", productHandler.Update)
			farm.Delete("/products/{id}", productHandler.Delete)
			farm.Get("/my/products", productHandler.MyProducts)
		})

		v.Route("/chat", func(c chi.Router) {
			c.Use(auth.RequireAuth)
			c.Get("/", chatHandler.List)
			c.Post("/start/{productID}", chatHandler.Start)
			c.Get("/{id}", chatHandler.Messages)
			c.Post("/{id}/send", chatHandler.Send)
			c.Get("/{id}/messages/new", chatHandler.NewMessages)
			c.Post("/{id}/mark-read", chatHandler.MarkRead)
			c.Post("/{id}/delete", chatHandler.Delete)
		})

		v.Route("/tools/fair-price", func(tools chi.Router) {
			tools.Use(auth.RequireAuth)
			tools.Use(csrf.Middleware)
			tools.Get("/history", calcHandler.History)
			tools.Group(func(writes chi.Router) {
				writes.Use(calcLimiter.Middleware)
				writes.Use(idem.Middleware)
				writes.Post("/", calcHandler.Save)
				writes.Post("/{id}/delete", calcHandler.Delete)
			})
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	case <-ctx.Done():
	}

	health.SetReady(false)
	drain := envDurationMillis("SHUTDOWN_DRAIN_MS", 2000)
	time.Sleep(drain)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown server")
	}
	logger.Info().Msg("server stopped")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/block", pprof.Handler("block"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	mux.Handle("/threadcreate", pprof.Handler("threadcreate"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
