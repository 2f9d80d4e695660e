// cmd/migrate/main.go
package main

import (
	"context"
	"log"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/unclebandit/contractor-followups/internal/config"
	"github.com/unclebandit/contractor-followups/internal/db"
	"github.com/unclebandit/contractor-followups/internal/logger"
)

// Applies the schema, then runs each file in SEED_FILES (comma separated) in order.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg.AppEnv)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logr.Sync()

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.DatabaseURL, logr)
	if err != nil {
		logr.Fatal("failed to connect to database", zap.Error(err))
	}
	defer conn.Close()

	if err := db.Migrate(ctx, conn); err != nil {
		logr.Fatal("failed to apply schema", zap.Error(err))
	}
	logr.Info("schema applied")

	for _, file := range seedFiles(os.Getenv("SEED_FILES")) {
		content, err := os.ReadFile(file)
		if err != nil {
			logr.Fatal("failed to read seed file", zap.String("file", file), zap.Error(err))
		}
		if _, err := conn.ExecContext(ctx, string(content)); err != nil {
			logr.Fatal("failed to execute seed file", zap.String("file", file), zap.Error(err))
		}
		logr.Info("seeded", zap.String("file", file))
	}
}

func seedFiles(v string) []string {
	var files []string
	for _, f := range strings.Split(v, ",") {
		if f = strings.TrimSpace(f); f != "" {
			files = append(files, f)
		}
	}
	return files
}
