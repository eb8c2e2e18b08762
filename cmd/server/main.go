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

	"order-platform/config"
	"order-platform/internal/api"
	"order-platform/internal/broker"
	"order-platform/internal/cache"
	"order-platform/internal/external"
	"order-platform/internal/redisclient"
	"order-platform/internal/service"
	"order-platform/internal/store"
	"order-platform/internal/util"
	"order-platform/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting order platform")

	tp, err := util.InitTracer("order-platform", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	externalCache := cache.New(cfg.Cache.MaxEntries, cfg.Cache.DefaultTTL)
	erpClient := external.NewERPClient(
		cfg.ERP.BaseURL, cfg.ERP.APIKey, cfg.ERP.Timeout,
		externalCache, cfg.ERP.ContractTTL, cfg.ERP.ProductTTL)
	carrierClient := external.NewCarrierClient(
		cfg.Carrier.BaseURL, cfg.Carrier.APIKey, cfg.Carrier.Timeout)

	var mailer service.EmailSender
	var contacts service.ContactResolver
	if cfg.SMTP.Host != "" {
		mailer = service.NewMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
		contacts = &service.StaticContactResolver{Address: cfg.SMTP.From}
		log.Println("SMTP notification email enabled")
	}

	dispatcher := service.NewNotificationDispatcher(db, mailer, contacts)
	engine := service.NewTransitionEngine(db, redisClient, dispatcher, eventPublisher)
	reconciler := service.NewReconciler(db, carrierClient, engine, eventPublisher)
	orderService := service.NewOrderService(db, redisClient, carrierClient, engine, reconciler, dispatcher, eventPublisher)
	bulkIngestor := service.NewBulkIngestor(erpClient)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	reconcileConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
	reconcileWorker := worker.NewReconcileWorker(reconcileConsumer, orderService)
	go func() {
		if err := reconcileWorker.Start(workerCtx); err != nil {
			log.Printf("Reconcile worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(orderService, dispatcher, bulkIngestor, erpClient, externalCache, cfg.ERP.StatusTTL)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	reconcileWorker.Stop()

	log.Println("Server exited")
}
