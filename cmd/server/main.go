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

	"sushi-chatbot/config"
	"sushi-chatbot/internal/api"
	"sushi-chatbot/internal/assistant"
	"sushi-chatbot/internal/broker"
	"sushi-chatbot/internal/chat"
	"sushi-chatbot/internal/notify"
	"sushi-chatbot/internal/realtime"
	"sushi-chatbot/internal/redisclient"
	"sushi-chatbot/internal/service"
	"sushi-chatbot/internal/store"
	"sushi-chatbot/internal/util"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting sushi chatbot backend")

	tp, err := util.InitTracer("sushi-chatbot", cfg.Observ.JaegerEndpoint)
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

	catalogService := service.NewCatalogService(db)
	dispatcher := notify.NewDispatcher(redisClient)
	orderService := service.NewOrderService(db, catalogService, dispatcher, eventPublisher)

	chatRouter := chat.NewRouter(orderService, catalogService, cfg.Chat.TimezoneOffset)
	openaiClient := assistant.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.AssistantID)
	bridge := assistant.NewBridge(openaiClient, chatRouter, cfg.OpenAI.PollInterval)
	chatRouter.SetBridge(bridge)

	hub := realtime.NewHub(chatRouter, cfg.Chat.AllowedOrigin)

	subCtx, subCancel := context.WithCancel(context.Background())
	defer subCancel()
	go func() {
		if err := hub.RunSubscriber(subCtx, redisClient); err != nil && err != context.Canceled {
			log.Printf("Realtime subscriber error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(orderService, catalogService, hub, cfg.Server.Env)
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

	subCancel()

	log.Println("Server exited")
}
