package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inventory-service/config"
	"inventory-service/internal/api"
	"inventory-service/internal/audit"
	"inventory-service/internal/auth"
	"inventory-service/internal/backup"
	"inventory-service/internal/broker"
	"inventory-service/internal/cache"
	"inventory-service/internal/documents"
	"inventory-service/internal/feed"
	"inventory-service/internal/inventory"
	"inventory-service/internal/notify"
	"inventory-service/internal/redisclient"
	"inventory-service/internal/service"
	"inventory-service/internal/store"
	"inventory-service/internal/util"
	"inventory-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const serviceName = "inventory-service"

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, serviceName); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting inventory service")

	if cfg.Observ.TracingEnabled {
		tp, err := util.InitTracer(serviceName, cfg.Observ.JaegerEndpoint)
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Warn("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	var (
		st    store.DocumentStore
		ready []func(ctx context.Context) error
	)
	switch cfg.Database.Driver {
	case "memory":
		st = store.NewMemoryStore()
		logger.Warn("Using in-memory document store; data is lost on restart")
	default:
		pg, err := store.NewPostgresStore(cfg.Database.URL)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		ready = append(ready, pg.GetDB().PingContext)
		st = pg
		logger.Info("Database connected")
	}
	defer st.Close()

	var (
		kv     cache.KV
		locker inventory.Locker
	)
	if cfg.Redis.Enabled {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		ready = append(ready, redisClient.Ping)
		kv = redisClient
		locker = inventory.NewRedisLocker(redisClient, time.Duration(cfg.Business.InventoryLockSeconds)*time.Second)
		logger.Info("Redis connected")
	} else {
		kv = cache.NewMemoryKV()
		locker = inventory.NewLocalLocker()
	}

	biz := cfg.Business
	auditWriter := audit.NewWriter(st, biz.AuditMaxPerCollection, biz.AuditRetentionDays)
	hub := feed.NewHub()
	docs := documents.NewService(st, cache.NewCache(kv, time.Duration(biz.CacheTTLMinutes)*time.Minute), auditWriter, hub)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var feedWorker *worker.FeedWorker
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicChanges)
		defer producer.Close()
		docs.SetRemote(broker.NewChangePublisher(producer))
		logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicChanges))

		// every instance needs every event, so each gets its own group
		group := cfg.Kafka.ConsumerGroup + "-" + docs.Origin()
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicChanges, group)
		feedWorker = worker.NewFeedWorker(consumer, hub, docs.Origin())
		go func() {
			if err := feedWorker.Start(workerCtx); err != nil && workerCtx.Err() == nil {
				logger.Error("Feed worker error", zap.Error(err))
			}
		}()
	}

	reconciler := inventory.NewReconciler(docs, locker)
	catalog := service.NewCatalogService(docs)
	orders := service.NewOrderService(docs, reconciler, locker)
	deriver := notify.NewDeriver(docs, time.Duration(biz.LowStockSuppressMinutes)*time.Minute)
	history := notify.NewHistory(st, biz.NotificationHistoryMax)
	initializer := service.NewServiceInitializer(reconciler, deriver)
	backups := backup.NewService(docs, auditWriter)

	if low, err := initializer.CheckLowInventory(context.Background()); err != nil {
		logger.Warn("Startup low inventory check failed", zap.Error(err))
	} else if len(low) > 0 {
		logger.Info("Low stock at startup", zap.Int("products", len(low)))
	}

	retention := worker.NewRetentionWorker(auditWriter, history, biz.NotificationHistoryMax,
		time.Duration(biz.RetentionIntervalMinutes)*time.Minute)
	go func() {
		if err := retention.Start(workerCtx); err != nil && workerCtx.Err() == nil {
			logger.Error("Retention worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Deps{
		Documents:   docs,
		Catalog:     catalog,
		Orders:      orders,
		Reconciler:  reconciler,
		Deriver:     deriver,
		History:     history,
		Initializer: initializer,
		Audit:       auditWriter,
		Backups:     backups,
		Verifier:    auth.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		Profiles:    auth.NewProfiles(st),
		Ready: func(ctx context.Context) error {
			for _, ping := range ready {
				if err := ping(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if feedWorker != nil {
		if err := feedWorker.Stop(); err != nil {
			logger.Warn("Error stopping feed worker", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}
