package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loiht2/ai-vision-portal/config"
	"github.com/loiht2/ai-vision-portal/handlers"
	"github.com/loiht2/ai-vision-portal/k8s"
	"github.com/loiht2/ai-vision-portal/middleware"
	"github.com/loiht2/ai-vision-portal/reconciler"
	"github.com/loiht2/ai-vision-portal/remote"
	"github.com/loiht2/ai-vision-portal/repository"
	"github.com/loiht2/ai-vision-portal/security"
	"github.com/loiht2/ai-vision-portal/storage"
	"github.com/loiht2/ai-vision-portal/web"
)

func main() {
	// Parse command line arguments
	configFile := flag.String("config", os.Getenv("CONFIG_FILE"), "Path to a YAML config file (optional)")
	port := flag.String("port", "", "Server port (overrides PORT)")
	flag.Parse()

	log.Println("Starting AI Vision portal")

	settings, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}
	if *port != "" {
		settings.Port = *port
	}

	// Initialize configuration
	cfg, err := config.New(settings)
	if err != nil {
		log.Fatalf("Failed to initialize configuration: %v", err)
	}
	defer cfg.Close()

	issuer, err := security.NewTokenIssuer(settings.SecretKey, settings.Algorithm,
		time.Duration(settings.AccessTokenExpireMinutes)*time.Minute)
	if err != nil {
		log.Fatalf("Failed to initialize token issuer: %v", err)
	}

	repo := repository.NewRepository(cfg.DB)
	remoteClient := remote.NewClient(settings, nil)
	trainer := reconciler.New(repo, remoteClient)

	// Image archive is optional
	var images handlers.ImageStore
	if settings.MinIO.Enabled() {
		var k8sClient *k8s.Client
		if cfg.K8sClient != nil {
			k8sClient = k8s.NewClient(cfg.K8sClient)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		minioClient, err := storage.NewFromSettings(ctx, settings.MinIO, k8sClient)
		if err == nil {
			err = minioClient.EnsureBucket(ctx)
		}
		cancel()
		if err != nil {
			log.Printf("Warning: image archive disabled: %v", err)
		} else {
			images = minioClient
		}
	}

	// Initialize handlers
	handler := handlers.NewHandler(repo, remoteClient, trainer, images, issuer)

	if settings.SeedAdmin {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := handlers.SeedAdmin(ctx, repo); err != nil {
			log.Printf("Warning: failed to seed admin user: %v", err)
		}
		cancel()
	}

	tmpl, err := web.Templates()
	if err != nil {
		log.Fatalf("Failed to load templates: %v", err)
	}

	// Setup Gin router
	router := gin.Default()
	router.SetHTMLTemplate(tmpl)

	// Enable CORS (must be first)
	router.Use(middleware.CORSMiddleware(settings.AllowedOrigins))

	// Resolve the session cookie into an identity
	router.Use(middleware.SessionMiddleware(issuer))

	router.StaticFS("/static", web.Static())

	handler.Routes(router)

	// Create HTTP server with proper configuration. The write timeout leaves
	// room for the slowest outbound call.
	srv := &http.Server{
		Addr:         ":" + settings.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: settings.PredictTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on port %s", settings.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with 10-second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped gracefully")
}
