package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"tenant-provisioner/internal/api"
	"tenant-provisioner/internal/audit"
	"tenant-provisioner/internal/auth"
	"tenant-provisioner/internal/bootstrap"
	"tenant-provisioner/internal/config"
	"tenant-provisioner/internal/metrics"
	"tenant-provisioner/internal/notify"
	"tenant-provisioner/internal/provisioner"
	"tenant-provisioner/internal/registry"
	"tenant-provisioner/internal/saga"
	"tenant-provisioner/internal/schema"
)

// @title Tenant Provisioning API
// @version 1.0
// @description Control-plane API for provisioning and deprovisioning isolated tenant databases
// @host localhost:8080
// @BasePath /
// @schemes http

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	// Init Metrics
	metrics.Init()

	// Load Configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Info("Configuration loaded")

	// Setup JWT Secret
	auth.SetSecret(cfg.Auth.JWTSecret)

	// Init registry (central control-plane store)
	reg, err := registry.NewRegistry(cfg.Registry.URL)
	if err != nil {
		log.Fatalf("Failed to init registry: %v", err)
	}
	defer reg.DB.Close()

	if err := reg.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("Failed to ensure registry schema: %v", err)
	}
	log.Info("Registry connected")

	// Init RabbitMQ (lifecycle notifications)
	rabbitClient, err := notify.NewRabbitClient(cfg.RabbitMQ.URL, log)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer rabbitClient.Close()

	if err := rabbitClient.DeclareQueue(); err != nil {
		log.Fatalf("Failed to declare lifecycle queue: %v", err)
	}
	log.Info("RabbitMQ connected")

	// Init the provisioning saga
	dbs := provisioner.New(provisioner.HostConfig{
		Host:     cfg.TenantHost.Host,
		Port:     cfg.TenantHost.Port,
		User:     cfg.TenantHost.User,
		Password: cfg.TenantHost.Password,
		SSLMode:  cfg.TenantHost.SSLMode,
	})
	templates := schema.NewTemplates(cfg.Templates.Dir)
	initializer := bootstrap.NewInitializer(templates, log)
	hubLinker := bootstrap.NewHubLinker(reg, log)

	orch := saga.NewOrchestrator(
		reg, dbs, initializer, hubLinker,
		auth.BcryptHasher{}, rabbitClient,
		cfg.TenantHost.Host, log,
	)

	// Start the audit consumer
	consumer, err := audit.StartConsumer(rabbitClient.GetConnection(), reg, cfg.Audit.Workers, log)
	if err != nil {
		log.Fatalf("Failed to start audit consumer: %v", err)
	}

	// Background loop for the lifecycle queue depth gauge
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			rabbitClient.UpdateQueueDepth()
		}
	}()

	// Init API
	apiHandler := api.NewAPI(orch, reg, cfg, log)
	server := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: apiHandler.Router(),
	}

	// Graceful Shutdown Setup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Infof("Starting API server on %s", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done() // Wait for interrupt signal
	log.Info("Shutdown initiated...")

	// Shutdown sequence
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Stop HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("HTTP shutdown error: %v", err)
	}

	// Stop the audit consumer
	consumer.Stop()

	log.Info("Graceful shutdown complete")
}
