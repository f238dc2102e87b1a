// Command maintenance runs one scheduled-maintenance pass and exits. It is
// meant to be invoked by cron or a container scheduler; overlap with the
// HTTP trigger is handled by the shared Redis lock.
package main

import (
	"context"
	"database/sql"
	"log"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

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

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("database.url (or DATABASE_URL) is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	var emailProvider provider.EmailProvider
	if cfg.SES.AccessKey != "" {
		emailProvider, err = provider.NewSESProvider(ctx, cfg.SES)
		if err != nil {
			log.Fatalf("Failed to initialize SES provider: %v", err)
		}
	} else {
		emailProvider = provider.NewLogProvider()
	}

	tmpl := template.NewEngine()
	store := automation.NewStore(db)
	processor := automation.NewProcessor(store, emailProvider, tmpl,
		cfg.Sending.FromName, cfg.Sending.FromEmail, cfg.SES.Timeout(), cfg.Queue.BatchLimit)

	campaigns := campaign.NewService(postgres.NewCampaignRepo(db), segment.NewResolver(db),
		emailProvider, tmpl, tracking.NewInstrumenter(cfg.Tracking.BaseURL), campaign.Options{
			FromName:    cfg.Sending.FromName,
			FromEmail:   cfg.Sending.FromEmail,
			BatchSize:   cfg.Sending.BatchSize,
			MaxInFlight: cfg.Sending.MaxInFlight,
			SendTimeout: cfg.SES.Timeout(),
		})

	runner := maintenance.NewRunner(redisClient, processor, campaigns)

	report, err := runner.RunScheduledMaintenance(ctx)
	if err != nil {
		log.Fatalf("Maintenance run failed: %v", err)
	}
	if !report.Ran {
		log.Println("Another maintenance run holds the lock, nothing to do")
		return
	}
	log.Printf("Maintenance done: queue=%+v campaigns_published=%d",
		report.Queue, report.CampaignsPublished)
}
