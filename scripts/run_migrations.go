package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/erfanyeganegi/droplinked-market/internal/config"
	"github.com/erfanyeganegi/droplinked-market/internal/database"
)

const migrationDir = "migrations"

func main() {
	if len(os.Args) < 2 || (os.Args[1] != "up" && os.Args[1] != "down") {
		logrus.Fatal("usage: go run scripts/run_migrations.go [up|down]")
	}
	direction := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("connect to database")
	}
	defer db.Close()

	files, err := migrationFiles(direction)
	if err != nil {
		logrus.WithError(err).Fatal("collect migrations")
	}

	ctx := context.Background()
	for _, filename := range files {
		if err := applyMigration(ctx, db, filename); err != nil {
			logrus.WithError(err).WithField("migration", filename).Fatal("apply migration")
		}
		logrus.WithField("migration", filename).Info("applied")
	}

	logrus.WithFields(logrus.Fields{
		"count":     len(files),
		"direction": direction,
	}).Info("migrations complete")
}

// migrationFiles lists the migration files for one direction, ordered for
// application: ascending for up, descending for down.
func migrationFiles(direction string) ([]string, error) {
	entries, err := os.ReadDir(migrationDir)
	if err != nil {
		return nil, fmt.Errorf("read migration directory: %w", err)
	}

	var files []string
	suffix := fmt.Sprintf(".%s.sql", direction)
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), suffix) {
			files = append(files, entry.Name())
		}
	}

	sort.Strings(files)
	if direction == "down" {
		for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
			files[i], files[j] = files[j], files[i]
		}
	}
	return files, nil
}

// applyMigration runs one migration file as a single transaction, so a failing
// statement leaves the schema as it was.
func applyMigration(ctx context.Context, db *sql.DB, filename string) error {
	content, err := os.ReadFile(filepath.Join(migrationDir, filename))
	if err != nil {
		return fmt.Errorf("read migration file: %w", err)
	}

	return database.WithTransaction(ctx, db, database.TxOptions{
		IsolationLevel: sql.LevelReadCommitted,
	}, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
		return nil
	})
}
