package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/deivygoficial/supermercado-app/internal/cache"
	h "github.com/deivygoficial/supermercado-app/internal/http"
	"github.com/deivygoficial/supermercado-app/internal/hub"
	"github.com/deivygoficial/supermercado-app/internal/publisher"
	"github.com/deivygoficial/supermercado-app/internal/repository"
	"github.com/deivygoficial/supermercado-app/internal/service"
	"github.com/deivygoficial/supermercado-app/pkg/metrics"
)

type Config struct {
	HTTPPort        string
	MongoURI        string
	MongoDB         string
	RedisAddr       string
	KafkaBrokers    []string
	KafkaTopic      string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:         getEnv("MONGO_DB", "supermercado"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers:    splitBrokers(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:      getEnv("KAFKA_TOPIC", "order-events"),
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitBrokers(csv string) []string {
	var brokers []string
	for _, b := range strings.Split(csv, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func main() {
	cfg := loadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connectCtx, connectCancel := context.WithTimeout(ctx, 15*time.Second)
	db, err := repository.ConnectMongoDB(connectCtx, cfg.MongoURI, cfg.MongoDB)
	connectCancel()
	if err != nil {
		log.Fatalf("mongodb: %v", err)
	}

	repo := repository.NewMongoRepository(db)
	if idx, ok := repo.(interface{ CreateIndexes(context.Context) error }); ok {
		if err := idx.CreateIndexes(ctx); err != nil {
			log.Fatalf("mongodb indexes: %v", err)
		}
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	orderCache := cache.NewRedisCache(redisClient)

	notifHub := hub.New()
	defer notifHub.Close()

	if len(cfg.KafkaBrokers) > 0 {
		mirror := publisher.NewMirror(notifHub, publisher.NewKafkaWriter(cfg.KafkaTopic, cfg.KafkaBrokers...))
		defer mirror.Close()
		go mirror.Run(ctx)
		log.Printf("kafka mirror enabled on topic %s", cfg.KafkaTopic)
	}

	svc := service.NewOrderService(repo, orderCache, notifHub)
	ordersHandler := h.NewOrdersHandler(svc, cfg.RequestTimeout)
	notificationsHandler := h.NewNotificationsHandler(notifHub)

	srvMetrics := metrics.NewServerMetrics("orders")

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(h.RequestIDMiddleware)
	r.Use(h.MetricsMiddleware(srvMetrics))
	r.Use(h.HeaderAuthMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/orders", func(r chi.Router) {
		r.Post("/", ordersHandler.CreateOrder)
		r.Get("/mine", ordersHandler.ListMyOrders)
		r.Put("/{order_id}/cancel", ordersHandler.CancelOrder)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireAdmin)
			r.Get("/", ordersHandler.ListOrders)
			// The stream stays open far past any request timeout, so the
			// timeout middleware is deliberately absent from this route.
			r.Get("/notifications", notificationsHandler.Stream)
			r.Put("/{order_id}/status", ordersHandler.UpdateStatus)
		})

		r.Get("/{order_id}", ordersHandler.GetOrder)
	})

	srv := &http.Server{
		Addr:        ":" + cfg.HTTPPort,
		Handler:     r,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("orders API listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	cancel() // stops the kafka mirror

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("server exited")
}
