package main

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config carries everything the process reads from the environment.
// Backend adapters receive the whole struct so path layout stays in one place.
type Config struct {
	Backend      string
	Port         int
	CallbackURL  string
	WorkloadDir  string
	DatabasePath string
	SnapshotPath string
	SQLDriver    string
	SQLDSN       string
}

func StringEnv(key string, def string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	return value
}

func IntEnv(key string, def int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func LoadConfig() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		Logger.Warnf("failed to load .env file: %v", err)
	}
	return Config{
		Backend:      StringEnv("GRAPH_BENCHMARK_DB", "memory"),
		Port:         IntEnv("API_PORT", 50080),
		CallbackURL:  StringEnv("PROGRESS_CALLBACK_URL", ""),
		WorkloadDir:  StringEnv("WORKLOAD_DIR", "/data/workloads"),
		DatabasePath: StringEnv("DB_PATH", "/tmp/graph-benchmark-db"),
		SnapshotPath: StringEnv("SNAPSHOT_PATH", "/tmp/graph-benchmark-snapshot"),
		SQLDriver:    StringEnv("SQL_DRIVER", "sqlite3"),
		SQLDSN:       StringEnv("SQL_DSN", ""),
	}
}
