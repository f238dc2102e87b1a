package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/marketing-engine/internal/analytics"
	"github.com/ignite/marketing-engine/internal/api"
	"github.com/ignite/marketing-engine/internal/automation"
	"github.com/ignite/marketing-engine/internal/config"
	"github.com/ignite/marketing-engine/internal/maintenance"
	"github.com/ignite/marketing-engine/internal/provider"
	"github.com/ignite/marketing-engine/internal/repository/postgres"
	"github.com/ignite/marketing-engine/internal/segment"
	"github.com/ignite/marketing-engine/internal/service/campaign"
	"github.com/ignite/marketing-engine/internal/template"
	"github.com/ignite/marketing-engine/internal/tracking"
)

// checkPortAvailable verifies the target port is not already in use, so a
// stale process does not silently keep serving old behavior.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v", port, addr, err)
	}
	ln.Close()
	return nil
}

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("database.url (or DATABASE_URL) is required")
	}

	host := cfg.Server.GetHost()
	if err := checkPortAvailable(host, cfg.Server.Port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("Connected to database")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var emailProvider provider.EmailProvider
	if cfg.SES.AccessKey != "" {
		emailProvider, err = provider.NewSESProvider(ctx, cfg.SES)
		if err != nil {
			log.Fatalf("Failed to initialize SES provider: %v", err)
		}
		log.Println("Email provider: SES")
	} else {
		emailProvider = provider.NewLogProvider()
		log.Println("Email provider: log (no SES credentials configured)")
	}

	tmpl := template.NewEngine()
	instrumenter := tracking.NewInstrumenter(cfg.Tracking.BaseURL)

	automationStore := automation.NewStore(db)
	scheduler := automation.NewScheduler(automationStore, cfg.Queue.MaxRetries)
	processor := automation.NewProcessor(automationStore, emailProvider, tmpl,
		cfg.Sending.FromName, cfg.Sending.FromEmail, cfg.SES.Timeout(), cfg.Queue.BatchLimit)

	segmentStore := segment.NewStore(db)
	resolver := segment.NewResolver(db)

	campaigns := campaign.NewService(postgres.NewCampaignRepo(db), resolver, emailProvider,
		tmpl, instrumenter, campaign.Options{
			FromName:    cfg.Sending.FromName,
			FromEmail:   cfg.Sending.FromEmail,
			BatchSize:   cfg.Sending.BatchSize,
			MaxInFlight: cfg.Sending.MaxInFlight,
			SendTimeout: cfg.SES.Timeout(),
		})

	ingestor := tracking.NewIngestor(db)
	trackingHandler := tracking.NewHandler(ingestor, cfg.Tracking.FallbackURL)

	runner := maintenance.NewRunner(redisClient, processor, campaigns)

	handlers := &api.Handlers{
		Scheduler:       scheduler,
		AutomationStore: automationStore,
		Campaigns:       campaigns,
		Segments:        segmentStore,
		Resolver:        resolver,
		Analytics:       analytics.NewAggregator(db),
		Maintenance:     runner,
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, cfg.Server.Port),
		Handler:      api.SetupRoutes(handlers, trackingHandler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
