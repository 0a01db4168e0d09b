// Package main implements the classtrack-events binary: the queue consumer
// that turns Avro event containers into normalized event rows.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/classtrack/classtrack/internal/config"
	"github.com/classtrack/classtrack/internal/events"
	"github.com/classtrack/classtrack/internal/objectstore"
	"github.com/classtrack/classtrack/internal/processor"
	"github.com/classtrack/classtrack/internal/queue"
	"github.com/classtrack/classtrack/internal/store"
)

func main() {
	daemonize := flag.Bool("daemonize", false, "poll continuously instead of processing a single batch")
	migrate := flag.Bool("migrate", false, "create missing tables before processing")
	tuningPath := flag.String("tuning", "", "path to an optional tuning file (YAML or JSON)")
	flag.Parse()

	log.Printf("Starting events processor...")
	config.LoadEnvFile()

	cfg, err := config.EventsFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	tuning := config.DefaultTuning()
	if *tuningPath != "" {
		if tuning, err = config.LoadTuningFile(*tuningPath); err != nil {
			log.Fatalf("Failed to load tuning file: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dsn := tuning.Database.DSN
	if dsn == "" {
		dsn = cfg.Database.DSN()
	}
	db, err := store.Open(tuning.Database.Driver, dsn)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	if *migrate {
		if err := store.Migrate(ctx, db); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
	}

	s3Client, err := objectstore.NewS3Client(ctx, objectstore.S3Config{
		Region:       tuning.Storage.Region,
		Endpoint:     tuning.Storage.Endpoint,
		UsePathStyle: tuning.Storage.UsePathStyle,
	})
	if err != nil {
		log.Fatalf("Failed to initialize S3 client: %v", err)
	}

	p, err := processor.NewEventProcessor(
		objectstore.NewS3Store(s3Client),
		events.OCFDecoder{},
		store.NewWriter(db),
		events.Kind(cfg.EventType),
	)
	if err != nil {
		log.Fatalf("Failed to initialize processor: %v", err)
	}

	sqsClient, err := queue.NewSQSClient(ctx, tuning.Storage.Region)
	if err != nil {
		log.Fatalf("Failed to initialize SQS client: %v", err)
	}
	consumer, err := queue.NewConsumer(ctx, sqsClient, cfg.Queue)
	if err != nil {
		log.Fatalf("Failed to resolve queue %s: %v", cfg.Queue, err)
	}

	log.Printf("Consuming %s events from %s", cfg.EventType, cfg.Queue)
	runner := queue.NewRunner(consumer, p.Process, cfg.PollInterval, *daemonize)
	if err := runner.Run(ctx); err != nil {
		log.Fatalf("Processor stopped with error: %v", err)
	}
	log.Printf("Processor stopped")
}
