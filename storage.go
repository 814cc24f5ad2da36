package main

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

// Storage persists benchmark measurements to a results database: a local
// sqlite file by default, or a remote libsql database when the DSN carries
// the libsql scheme.
type Storage struct {
	Dsn string
}

func (s *Storage) Connect() (*sql.DB, error) {
	driver := "sqlite3"
	if strings.HasPrefix(s.Dsn, "libsql://") {
		driver = "libsql"
	}
	db, err := sql.Open(driver, s.Dsn)
	if err != nil {
		return nil, wrapPipelineError(KindIO, "persist", fmt.Errorf("failed to open results db %v: %w", s.Dsn, err))
	}
	return db, nil
}

// Init creates the results schema and records the run parameters.
func (s *Storage) Init(db *sql.DB, meta map[string]any) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS parameters (
		run_id TEXT,
		name TEXT,
		value,
		PRIMARY KEY (run_id, name)
	)`)
	if err != nil {
		return wrapPipelineError(KindIO, "persist", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS measurements (
		run_id TEXT,
		pipeline TEXT,
		measurement TEXT,
		value REAL,
		PRIMARY KEY (run_id, pipeline, measurement)
	)`)
	if err != nil {
		return wrapPipelineError(KindIO, "persist", err)
	}

	runID := fmt.Sprintf("%v", meta["run_id"])
	parameters := make([]any, 0)
	parameters = append(parameters, runID, "time", time.Now().Format("2006-01-02 15:04:05"))
	for key, value := range meta {
		if key == "run_id" {
			continue
		}
		parameters = append(parameters, runID, key, fmt.Sprintf("%v", value))
	}
	placeholders := strings.Join(slices.Repeat([]string{"(?, ?, ?)"}, len(parameters)/3), ", ")
	_, err = db.Exec(
		fmt.Sprintf("INSERT INTO parameters VALUES %v ON CONFLICT DO NOTHING", placeholders),
		parameters...,
	)
	if err != nil {
		return wrapPipelineError(KindIO, "persist", err)
	}
	Logger.Infof("initialized results database %v for run %v", s.Dsn, runID)
	return nil
}

// SaveReport writes one row per pipeline and metric inside a transaction.
func (s *Storage) SaveReport(db *sql.DB, report Report) error {
	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		return wrapPipelineError(KindIO, "persist", err)
	}
	defer tx.Rollback()

	for _, m := range report.Measurements {
		rows := [][2]any{
			{"duration_seconds", m.Duration.Seconds()},
			{"peak_rss_bytes", float64(m.PeakRSS)},
			{"rows_processed", float64(m.Rows)},
		}
		for _, row := range rows {
			_, err = tx.Exec(
				"INSERT INTO measurements VALUES (?, ?, ?, ?)",
				report.RunID, m.Pipeline, row[0], row[1],
			)
			if err != nil {
				return wrapPipelineError(KindIO, "persist", err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return wrapPipelineError(KindIO, "persist", err)
	}
	Logger.Infof("persisted %v measurements for run %v", len(report.Measurements)*3, report.RunID)
	return nil
}

// Persist is the whole results-db flow for one report.
func (s *Storage) Persist(report Report, config Config) error {
	db, err := s.Connect()
	if err != nil {
		return err
	}
	defer db.Close()

	err = s.Init(db, map[string]any{
		"run_id":   report.RunID,
		"arch":     report.Host.Arch,
		"hostname": report.Host.Hostname,
		"platform": report.Host.Platform,
		"cpu":      report.Host.CPUCount,
		"freq":     report.Host.CPUFreq,
		"ram":      report.Host.RAM,
		"dataset":  config.DatasetPath,
		"rows":     config.Rows,
	})
	if err != nil {
		return err
	}
	return s.SaveReport(db, report)
}
