// Command seed bulk-loads a directory of CSV exports (users.csv,
// items.csv, ...) in foreign key order.
package main

import (
	"context"
	"errors"
	"flag"
	"os"

	"github.com/joho/godotenv"

	"github.com/iliyamo/bidmaster/internal/config"
	"github.com/iliyamo/bidmaster/internal/database"
	"github.com/iliyamo/bidmaster/internal/importer"
	"github.com/iliyamo/bidmaster/internal/utils"
)

func main() {
	dir := flag.String("dir", "data_import", "directory holding <kind>.csv files")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		utils.Warn("could not read .env", map[string]any{"error": err.Error()})
	}
	if os.Getenv("APP_PORT") == "" {
		// Load insists on APP_PORT; the seeder never listens.
		_ = os.Setenv("APP_PORT", "0")
	}
	cfg := config.Load()
	utils.SetLevel(cfg.LogLevel)

	db, err := database.Open(cfg)
	if err != nil {
		utils.Fatal("database unavailable", map[string]any{"driver": cfg.DBDriver, "error": err.Error()})
	}
	defer db.Close()

	results, err := importer.New(db, cfg.BcryptCost).ImportDir(context.Background(), *dir)
	for _, r := range results {
		utils.Info("imported", map[string]any{"kind": r.Kind, "file": r.File, "imported_count": r.Count})
	}
	if err != nil {
		db.Close()
		utils.Fatal("seed failed", map[string]any{"dir": *dir, "error": err.Error()})
	}
}
