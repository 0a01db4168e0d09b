// Package main implements the classtrack-collector binary: the queue
// consumer that folds raw decoded events into a single JSON document in
// the object store.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/classtrack/classtrack/internal/collector"
	"github.com/classtrack/classtrack/internal/config"
	"github.com/classtrack/classtrack/internal/events"
	"github.com/classtrack/classtrack/internal/objectstore"
	"github.com/classtrack/classtrack/internal/queue"
)

func main() {
	daemonize := flag.Bool("daemonize", false, "poll continuously instead of processing a single batch")
	tuningPath := flag.String("tuning", "", "path to an optional tuning file (YAML or JSON)")
	flag.Parse()

	log.Printf("Starting collector...")
	config.LoadEnvFile()

	cfg, err := config.CollectorFromEnv()
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

	s3Client, err := objectstore.NewS3Client(ctx, objectstore.S3Config{
		Region:       tuning.Storage.Region,
		Endpoint:     tuning.Storage.Endpoint,
		UsePathStyle: tuning.Storage.UsePathStyle,
	})
	if err != nil {
		log.Fatalf("Failed to initialize S3 client: %v", err)
	}

	c := collector.New(
		objectstore.NewS3Store(s3Client),
		events.OCFDecoder{},
		cfg.OutputBucket,
		cfg.OutputKey,
	)

	sqsClient, err := queue.NewSQSClient(ctx, tuning.Storage.Region)
	if err != nil {
		log.Fatalf("Failed to initialize SQS client: %v", err)
	}
	consumer, err := queue.NewConsumer(ctx, sqsClient, cfg.Queue)
	if err != nil {
		log.Fatalf("Failed to resolve queue %s: %v", cfg.Queue, err)
	}

	log.Printf("Collecting events from %s into s3://%s/%s", cfg.Queue, cfg.OutputBucket, cfg.OutputKey)
	runner := queue.NewRunner(consumer, c.Process, cfg.PollInterval, *daemonize)
	if err := runner.Run(ctx); err != nil {
		log.Fatalf("Collector stopped with error: %v", err)
	}
	log.Printf("Collector stopped")
}
