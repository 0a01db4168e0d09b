// Package main implements the classtrack-replay binary: it walks an S3
// prefix and enqueues synthetic creation notifications so processors can
// re-ingest historical object versions.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/classtrack/classtrack/internal/config"
	"github.com/classtrack/classtrack/internal/objectstore"
	"github.com/classtrack/classtrack/internal/queue"
	"github.com/classtrack/classtrack/internal/replay"
)

func main() {
	latestOnly := flag.Bool("latest-only", false, "only replay the current version of each object")
	tuningPath := flag.String("tuning", "", "path to an optional tuning file (YAML or JSON)")
	flag.Parse()
	if flag.NArg() != 3 {
		log.Fatalf("Usage: classtrack-replay [flags] <s3-bucket> <s3-prefix> <sqs-queue>")
	}
	bucket, prefix, queueName := flag.Arg(0), flag.Arg(1), flag.Arg(2)

	config.LoadEnvFile()
	tuning := config.DefaultTuning()
	var err error
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
	sqsClient, err := queue.NewSQSClient(ctx, tuning.Storage.Region)
	if err != nil {
		log.Fatalf("Failed to initialize SQS client: %v", err)
	}

	r := replay.New(s3Client, sqsClient)
	r.LatestOnly = *latestOnly

	sent, err := r.Run(ctx, bucket, prefix, queueName)
	if err != nil {
		log.Fatalf("Replay failed after %d messages: %v", sent, err)
	}
	log.Printf("Replayed %d object versions to %s", sent, queueName)
}
