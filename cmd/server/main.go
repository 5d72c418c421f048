package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hisabkitab/backend/docs"
	"github.com/hisabkitab/backend/internal/config"
	"github.com/hisabkitab/backend/internal/database"
	"github.com/hisabkitab/backend/internal/handlers"
	"github.com/hisabkitab/backend/internal/logger"
	mW "github.com/hisabkitab/backend/internal/middleware"
	"github.com/hisabkitab/backend/internal/services"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// @title HisabKitab Ledger API
// @version 1.0
// @description Personal ledger: entities, transactions between them, user connections and payment-mode wallets
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.SetConfigType("env")
	viper.AutomaticEnv() // allow environment variables to override .env

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")
	viper.BindEnv("database.auto_migrate", "DATABASE_AUTO_MIGRATE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")

	viper.BindEnv("ledger.allow_self_transfer", "LEDGER_ALLOW_SELF_TRANSFER")
	viper.BindEnv("ledger.allow_rerequest_after_rejection", "LEDGER_ALLOW_REREQUEST_AFTER_REJECTION")
	viper.BindEnv("ledger.max_retries", "LEDGER_MAX_RETRIES")
	viper.BindEnv("ledger.retry_base_delay", "LEDGER_RETRY_BASE_DELAY")
	viper.BindEnv("events.queue_key", "EVENTS_QUEUE_KEY")
	viper.BindEnv("catalog.cache_ttl", "CATALOG_CACHE_TTL")

	viper.BindEnv("log.level", "LOG_LEVEL")
	viper.BindEnv("log.format", "LOG_FORMAT")

	viper.BindEnv("server.port", "PORT")
	viper.BindEnv("server.allowed_origins", "SERVER_ALLOWED_ORIGINS")

	configErr := viper.ReadInConfig()

	log := logger.Must()
	defer log.Sync()

	if configErr != nil {
		log.Info("config file not found, using environment and defaults", zap.Error(configErr))
	}
	if viper.GetString("jwt.secret_key") == "" {
		log.Fatal("JWT_SECRET_KEY must be set")
	}

	ledgerCfg := config.LoadLedgerConfig()
	serverCfg := config.LoadServerConfig()

	// Initialize Swagger docs
	docs.SwaggerInfo.Host = "localhost:" + serverCfg.Port

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	db := database.InitDatabase(startupCtx, log)
	defer db.Close()

	redisClient := database.InitRedis(startupCtx, log)
	if redisClient != nil {
		defer redisClient.Close()
	}
	cancelStartup()

	// Initialize services
	uow := services.NewUnitOfWork(db, ledgerCfg, log)
	events := services.NewRedisEventPublisher(redisClient, ledgerCfg.EventQueueKey, log)
	entityService := services.NewEntityService(db, uow, events, log)
	ledgerService := services.NewLedgerService(db, uow, events, ledgerCfg, log)
	connectionService := services.NewConnectionService(db, uow, ledgerCfg, log)
	catalogService := services.NewCatalogService(db, redisClient, ledgerCfg.CatalogCacheTTL, log)
	paymentModeService := services.NewPaymentModeService(db, catalogService, log)
	walletService := services.NewWalletService(uow, catalogService, events, log)

	entityHandler := handlers.NewEntityHandler(entityService, log)
	connectionHandler := handlers.NewConnectionHandler(connectionService, log)
	transactionHandler := handlers.NewTransactionHandler(ledgerService, entityService, connectionService, paymentModeService, log)
	paymentModeHandler := handlers.NewPaymentModeHandler(paymentModeService, walletService, log)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.RequestID)
	r.Use(mW.RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(serverCfg.RequestTimeout))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   serverCfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mW.AuthMiddleware)

		r.Get("/entities", entityHandler.ListEntities)
		r.Post("/entities", entityHandler.CreateEntity)
		r.Get("/entities/{entityId}", entityHandler.GetEntity)
		r.Patch("/entities/{entityId}", entityHandler.RenameEntity)
		r.Delete("/entities/{entityId}", entityHandler.DeleteEntity)
		r.Post("/entities/{entityId}/adjust", entityHandler.AdjustBalance)

		r.Get("/transactions", transactionHandler.ListTransactions)
		r.Post("/transactions", transactionHandler.CreateTransaction)
		r.Get("/transactions/{txId}", transactionHandler.GetTransaction)
		r.Patch("/transactions/{txId}/status", transactionHandler.UpdateTransactionStatus)
		r.Delete("/transactions/{txId}", transactionHandler.DeleteTransaction)

		r.Get("/connections", connectionHandler.ListConnections)
		r.Post("/connections", connectionHandler.RequestConnection)
		r.Get("/connections/{connectionId}", connectionHandler.GetConnection)
		r.Post("/connections/{connectionId}/accept", connectionHandler.AcceptConnection)
		r.Post("/connections/{connectionId}/reject", connectionHandler.RejectConnection)

		r.Get("/payment-modes", paymentModeHandler.ListPaymentModes)
		r.Post("/payment-modes", paymentModeHandler.CreatePaymentMode)
		r.Get("/payment-modes/options", paymentModeHandler.PaymentModeOptions)
		r.Get("/payment-modes/{modeId}", paymentModeHandler.GetPaymentMode)
		r.Post("/payment-modes/{modeId}/wallet", paymentModeHandler.CreateWallet)
	})

	// Start server
	server := &http.Server{
		Addr:         ":" + serverCfg.Port,
		Handler:      r,
		ReadTimeout:  serverCfg.ReadTimeout,
		WriteTimeout: serverCfg.WriteTimeout,
		IdleTimeout:  serverCfg.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		log.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
		return
	}

	log.Info("server stopped")
}
