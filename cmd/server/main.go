package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/crm-contacts/internal/api"
	"github.com/ignite/crm-contacts/internal/config"
	"github.com/ignite/crm-contacts/internal/events"
	"github.com/ignite/crm-contacts/internal/mail"
	"github.com/ignite/crm-contacts/internal/pkg/logger"
	"github.com/ignite/crm-contacts/internal/repository/postgres"
	"github.com/ignite/crm-contacts/internal/service/contact"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	applyLogConfig(cfg.Log)

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		pingCancel()
		log.Fatalf("Database unreachable: %v", err)
	}
	pingCancel()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	var bus events.Publisher = events.NopPublisher{}
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Printf("Warning: redis unreachable, contact events disabled: %v", err)
		} else {
			bus = events.NewRedisPublisher(rdb, cfg.Redis.Channel)
			defer rdb.Close()
			log.Printf("Contact events publishing to redis at %s", cfg.Redis.Addr)
		}
	}

	catalog := postgres.NewFieldCatalog(db)

	svc := contact.NewService(contact.Deps{
		Contacts: postgres.NewContactRepo(db),
		Pivots:   postgres.NewPivotRepo(db),
		Meta:     postgres.NewMetaRepo(db),
		Stats:    postgres.NewStatsRepo(db),
		Users:    postgres.NewUserDirectory(db),
		Catalog:  catalog,
		Bus:      bus,
		Mailer: mail.NewSender(mail.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			User:     cfg.SMTP.User,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			Subject:  cfg.OptIn.Subject,
			Body:     cfg.OptIn.Body,
		}),
	})

	contactsAPI := api.NewContactsAPI(svc, func(ctx context.Context) []string {
		defs, err := catalog.CustomFieldDefs(ctx)
		if err != nil {
			logger.Warn("custom field catalog lookup failed", "error", err.Error())
			return nil
		}
		slugs := make([]string, 0, len(defs))
		for _, d := range defs {
			slugs = append(slugs, d.Slug)
		}
		return slugs
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port),
		Handler:      api.NewRouter(contactsAPI),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

func applyLogConfig(lc config.LogConfig) {
	switch lc.Level {
	case "debug":
		logger.SetLevel(logger.DEBUG)
	case "warn":
		logger.SetLevel(logger.WARN)
	case "error":
		logger.SetLevel(logger.ERROR)
	default:
		logger.SetLevel(logger.INFO)
	}
	if lc.RedactPII != nil {
		logger.SetRedactPII(*lc.RedactPII)
	}
}
