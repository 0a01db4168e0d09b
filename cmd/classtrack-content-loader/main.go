// Package main implements the classtrack-content-loader binary: a one-shot
// command that imports a course content CSV into the relational store.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/classtrack/classtrack/internal/config"
	"github.com/classtrack/classtrack/internal/loader"
	"github.com/classtrack/classtrack/internal/objectstore"
	"github.com/classtrack/classtrack/internal/store"
)

func main() {
	migrate := flag.Bool("migrate", false, "create missing tables before loading")
	tuningPath := flag.String("tuning", "", "path to an optional tuning file (YAML or JSON)")
	flag.Parse()
	if flag.NArg() != 2 {
		log.Fatalf("Usage: classtrack-content-loader [flags] <s3-bucket> <s3-key>")
	}
	bucket, key := flag.Arg(0), flag.Arg(1)

	config.LoadEnvFile()
	cfg, err := config.LoaderFromEnv()
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

	l := loader.New(objectstore.NewS3Store(s3Client), db)
	if err := l.LoadCourseContent(ctx, bucket, key); err != nil {
		log.Fatalf("Failed to load course content from s3://%s/%s: %v", bucket, key, err)
	}
}
