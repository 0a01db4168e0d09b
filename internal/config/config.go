// Package config assembles per-role settings for the pipeline commands.
// Required settings come from environment variables and fail fast at
// startup; optional tuning (alternate storage endpoints, database driver)
// comes from a YAML or JSON file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/classtrack/classtrack/internal/errors"
	"github.com/classtrack/classtrack/internal/store"
)

// LoadEnvFile folds a .env file, if present, into the process environment.
// Missing files are not an error; deployments set real variables.
func LoadEnvFile() {
	_ = godotenv.Load()
}

func requireEnv(name string) (string, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return "", errors.NewConfigError(errors.CodeMissingEnv,
			fmt.Sprintf("missing expected environment variable: %s", name))
	}
	return v, nil
}

func pollIntervalFromEnv() (time.Duration, error) {
	raw, err := requireEnv("POLL_INTERVAL_MINS")
	if err != nil {
		return 0, err
	}
	mins, err := strconv.Atoi(raw)
	if err != nil || mins <= 0 {
		return 0, errors.NewConfigError(errors.CodeInvalidConfig,
			fmt.Sprintf("POLL_INTERVAL_MINS must be a positive integer, got %q", raw))
	}
	return time.Duration(mins) * time.Minute, nil
}

// Database identifies the relational store.
type Database struct {
	Server   string
	Name     string
	User     string
	Password string
}

// DSN renders the postgres connection string.
func (d Database) DSN() string {
	return store.PostgresDSN(d.Server, d.Name, d.User, d.Password)
}

func databaseFromEnv() (Database, error) {
	var db Database
	var err error
	if db.Server, err = requireEnv("POSTGRES_SERVER"); err != nil {
		return db, err
	}
	if db.Name, err = requireEnv("POSTGRES_DB"); err != nil {
		return db, err
	}
	if db.User, err = requireEnv("POSTGRES_USER"); err != nil {
		return db, err
	}
	if db.Password, err = requireEnv("POSTGRES_PASSWORD"); err != nil {
		return db, err
	}
	return db, nil
}

// Events configures the event processor role.
type Events struct {
	Queue        string
	PollInterval time.Duration
	EventType    string
	Database     Database
}

// EventsFromEnv reads the event processor settings, failing before any
// queue interaction when a variable is missing.
func EventsFromEnv() (*Events, error) {
	queue, err := requireEnv("SQS_QUEUE")
	if err != nil {
		return nil, err
	}
	interval, err := pollIntervalFromEnv()
	if err != nil {
		return nil, err
	}
	eventType, err := requireEnv("EVENT_TYPE")
	if err != nil {
		return nil, err
	}
	db, err := databaseFromEnv()
	if err != nil {
		return nil, err
	}
	return &Events{
		Queue:        queue,
		PollInterval: interval,
		EventType:    eventType,
		Database:     db,
	}, nil
}

// Snapshots configures the snapshot processor role.
type Snapshots struct {
	Queue        string
	PollInterval time.Duration
	DataType     string
	Database     Database
}

func SnapshotsFromEnv() (*Snapshots, error) {
	queue, err := requireEnv("SQS_QUEUE")
	if err != nil {
		return nil, err
	}
	interval, err := pollIntervalFromEnv()
	if err != nil {
		return nil, err
	}
	dataType, err := requireEnv("DATA_TYPE")
	if err != nil {
		return nil, err
	}
	db, err := databaseFromEnv()
	if err != nil {
		return nil, err
	}
	return &Snapshots{
		Queue:        queue,
		PollInterval: interval,
		DataType:     dataType,
		Database:     db,
	}, nil
}

// Collector configures the JSON accumulator role. It has no database; its
// output is a single object-store document.
type Collector struct {
	Queue        string
	PollInterval time.Duration
	OutputBucket string
	OutputKey    string
}

func CollectorFromEnv() (*Collector, error) {
	queue, err := requireEnv("SQS_QUEUE")
	if err != nil {
		return nil, err
	}
	interval, err := pollIntervalFromEnv()
	if err != nil {
		return nil, err
	}
	bucket, err := requireEnv("JSON_OUTPUT_S3_BUCKET")
	if err != nil {
		return nil, err
	}
	key, err := requireEnv("JSON_OUTPUT_S3_KEY")
	if err != nil {
		return nil, err
	}
	return &Collector{
		Queue:        queue,
		PollInterval: interval,
		OutputBucket: bucket,
		OutputKey:    key,
	}, nil
}

// Loader configures the one-shot CSV loader commands, which only need the
// database.
type Loader struct {
	Database Database
}

func LoaderFromEnv() (*Loader, error) {
	db, err := databaseFromEnv()
	if err != nil {
		return nil, err
	}
	return &Loader{Database: db}, nil
}

// Tuning holds optional operational settings with working defaults.
type Tuning struct {
	// Storage configures the object store client.
	Storage StorageTuning `json:"storage" yaml:"storage"`

	// Database overrides the driver and connection string, mainly so
	// local runs can point at SQLite.
	Database DatabaseTuning `json:"database" yaml:"database"`
}

// StorageTuning holds object store client settings.
type StorageTuning struct {
	// Region is the AWS region.
	Region string `json:"region" yaml:"region"`

	// Endpoint is an alternate S3 endpoint, for S3-compatible storage.
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle forces path-style addressing, required by most
	// S3-compatible endpoints.
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// DatabaseTuning overrides the relational store connection.
type DatabaseTuning struct {
	// Driver is the database/sql driver name: pgx or sqlite3.
	Driver string `json:"driver" yaml:"driver"`

	// DSN replaces the environment-derived connection string entirely.
	DSN string `json:"dsn" yaml:"dsn"`
}

// DefaultTuning returns the production defaults.
func DefaultTuning() *Tuning {
	return &Tuning{
		Database: DatabaseTuning{Driver: "pgx"},
	}
}

// Validate validates the tuning settings.
func (t *Tuning) Validate() error {
	if t.Database.Driver != "pgx" && t.Database.Driver != "sqlite3" {
		return errors.NewConfigError(errors.CodeInvalidConfig,
			fmt.Sprintf("invalid database driver: %s (must be pgx or sqlite3)", t.Database.Driver))
	}
	if t.Database.Driver == "sqlite3" && t.Database.DSN == "" {
		return errors.NewConfigError(errors.CodeInvalidConfig,
			"database.dsn is required when the driver is sqlite3")
	}
	return nil
}

// LoadTuningFile loads tuning from a YAML or JSON file over the defaults.
func LoadTuningFile(path string) (*Tuning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfigError(errors.CodeInvalidConfig,
			fmt.Sprintf("failed to read tuning file: %v", err))
	}

	tuning := DefaultTuning()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, tuning); err != nil {
			return nil, errors.NewConfigError(errors.CodeInvalidConfig,
				fmt.Sprintf("failed to parse YAML tuning file: %v", err))
		}
	case ".json":
		if err := json.Unmarshal(data, tuning); err != nil {
			return nil, errors.NewConfigError(errors.CodeInvalidConfig,
				fmt.Sprintf("failed to parse JSON tuning file: %v", err))
		}
	default:
		return nil, errors.NewConfigError(errors.CodeInvalidConfig,
			fmt.Sprintf("unsupported tuning file format: %s", ext))
	}

	if err := tuning.Validate(); err != nil {
		return nil, err
	}
	return tuning, nil
}
