package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/clearsight/adscope/internal/config"
	"github.com/clearsight/adscope/internal/pkg/logger"
)

// Applies every .sql file in the migrations directory, one transaction per
// file, in lexical order. --list only reports which core tables exist.
func main() {
	dir := "migrations"
	listOnly := false
	for _, a := range os.Args[1:] {
		if a == "--list" {
			listOnly = true
		} else {
			dir = a
		}
	}

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		logger.Error("config load failed", "error", err.Error())
		os.Exit(1)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logger.Error("database open failed", "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := db.PingContext(pingCtx); err != nil {
		logger.Error("database ping failed", "error", err.Error())
		os.Exit(1)
	}
	logger.Info("database connected")

	if listOnly {
		if err := listTables(db); err != nil {
			logger.Error("table listing failed", "error", err.Error())
			os.Exit(1)
		}
		return
	}

	okCount, errCount, err := applyDir(db, dir)
	if err != nil {
		logger.Error("migration run aborted", "error", err.Error())
		os.Exit(1)
	}
	logger.Info("migrations complete", "applied", okCount, "failed", errCount)
	if errCount > 0 {
		os.Exit(1)
	}
}

func listTables(db *sql.DB) error {
	rows, err := db.Query("SELECT tablename FROM pg_tables WHERE schemaname='public' AND tablename IN ('advertisers','domains','ads','snapshots','alerts') ORDER BY tablename")
	if err != nil {
		return err
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return err
		}
		fmt.Println(" ", t)
		n++
	}
	logger.Info("core tables present", "count", n)
	return rows.Err()
}

func applyDir(db *sql.DB, dir string) (okCount, errCount int, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("read migrations dir %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		path := filepath.Join(dir, f)
		data, err := os.ReadFile(path)
		if err != nil {
			return okCount, errCount, fmt.Errorf("read %s: %w", path, err)
		}
		content := string(data)
		if strings.TrimSpace(content) == "" {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			logger.Error("migration begin failed", "file", f, "error", err.Error())
			errCount++
			continue
		}
		if _, err := tx.Exec(content); err != nil {
			tx.Rollback()
			logger.Error("migration failed", "file", f, "error", err.Error())
			errCount++
			continue
		}
		if err := tx.Commit(); err != nil {
			logger.Error("migration commit failed", "file", f, "error", err.Error())
			errCount++
			continue
		}
		logger.Info("migration applied", "file", f)
		okCount++
	}
	return okCount, errCount, nil
}
