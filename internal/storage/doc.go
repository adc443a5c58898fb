// Package storage provides SQLite-based persistence for analysis runs.
//
// Every analysis, finished or failed, can be journaled with its per-chunk
// extractions so answers can be inspected and audited later.
//
// # Database Schema
//
// Tables:
//   - runs: one row per analysis (question, mode, answer, record counts)
//   - chunk_results: one row per chunk (count, items as JSON, summary, outcome)
//   - schema_version: applied migrations, ordered by semantic version
//
// Deleting a run removes its chunk results through ON DELETE CASCADE.
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("~/.chunkwise/runs.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.SaveRun(ctx, run); err != nil {
//	    return err
//	}
//
//	recent, err := db.ListRuns(ctx, 10)
//
// # Transactions
//
// SaveRun is atomic on its own. Use BeginTx to group several operations:
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	_ = tx.DeleteRun(ctx, oldID)
//	_ = tx.SaveRun(ctx, run)
//
//	if err := tx.Commit(); err != nil {
//	    return err
//	}
//
// # Drivers
//
// The default build uses modernc.org/sqlite (pure Go). Build with
// -tags sqlite_cgo to use github.com/mattn/go-sqlite3 instead.
package storage
