package main

import (
	"context"
	"log"
	"time"

	mongoadapter "github.com/robertarktes/event-ticketing/internal/adapters/mongo"
	"github.com/robertarktes/event-ticketing/internal/config"
	"github.com/robertarktes/event-ticketing/internal/observability"
	"github.com/robertarktes/event-ticketing/internal/seed"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := observability.NewLogger(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer client.Disconnect(context.Background())
	db := client.Database(cfg.MongoDB)

	if err := mongoadapter.EnsureIndexes(ctx, db); err != nil {
		log.Fatalf("failed to create mongo indexes: %v", err)
	}

	events, err := seed.Catalogue(time.Now().UTC())
	if err != nil {
		log.Fatalf("failed to build catalogue: %v", err)
	}
	if err := mongoadapter.NewEventRepository(db, logger).ReplaceAll(ctx, events); err != nil {
		log.Fatalf("failed to seed events: %v", err)
	}
	logger.WithField("count", len(events)).Info("events seeded")
}
