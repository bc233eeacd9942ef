// Command notifier relays stored contact messages to the site operator by
// email. It follows inserts on the contact collection through a MongoDB
// change stream, so it needs a replica set.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gracefellowship/churchsite/backend/go-services/internal/config"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/contact"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/database"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/email"
	"github.com/gracefellowship/churchsite/backend/go-services/pkg/logger"
)

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	if cfg.MongoDB.URI == "" {
		logger.Fatalf("MONGODB_URI is required")
	}
	if cfg.Contact.OperatorEmail == "" {
		logger.Fatalf("CONTACT_OPERATOR_EMAIL is required")
	}
	mailer := email.NewService(email.Config{
		Host: cfg.SMTP.Host, Port: cfg.SMTP.Port,
		Username: cfg.SMTP.Username, Password: cfg.SMTP.Password,
		From: cfg.SMTP.From, FromName: cfg.SMTP.FromName,
	})
	if !mailer.IsConfigured() {
		logger.Fatalf("SMTP_HOST and SMTP_FROM are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	repo := contact.NewMongoRepo(client.Database(cfg.MongoDB.Database).Collection(cfg.Contact.Collection))
	notifier := contact.NewNotifier(mailer, cfg.Contact.OperatorEmail, cfg.Site.Name)

	logger.Infof("notifier watching %s.%s", cfg.MongoDB.Database, cfg.Contact.Collection)
	// A dropped change stream is reopened after a pause until shutdown.
	for {
		err := notifier.Run(ctx, repo)
		if ctx.Err() != nil {
			break
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Errorf("change stream ended: %v", err)
		}
		select {
		case <-ctx.Done():
		case <-time.After(5 * time.Second):
		}
	}
	logger.Info("notifier stopped")
}
