package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/marksync/internal/apperr"
	"github.com/starford/marksync/internal/models"
)

// Journal defines the cycle-history operations. Consumers should depend on
// this interface rather than the concrete *DB type.
type Journal interface {
	Record(rec Record) (int64, error)
	Recent(limit int) ([]Record, error)
	Get(id int64) (*Record, error)
	Prune(keep int) error
	Close() error
}

// Verify *DB satisfies Journal at compile time.
var _ Journal = (*DB)(nil)

// Record is one journaled cycle.
type Record struct {
	ID                int64            `json:"id"`
	Source            string           `json:"source"`
	Direction         models.Direction `json:"direction"`
	StartedAt         time.Time        `json:"started_at"`
	FinishedAt        time.Time        `json:"finished_at"`
	UpdatedEntryCount int              `json:"updated_entry_count"`
	WroteTimeline     bool             `json:"wrote_timeline"`
	Drift             bool             `json:"drift"`
	// Error is the cycle failure message; empty on success.
	Error            string   `json:"error,omitempty"`
	TimelineChecksum string   `json:"timeline_checksum,omitempty"`
	WarningCount     int      `json:"warning_count"`
	Warnings         []string `json:"warnings,omitempty"`
}

// FromResult builds a Record from a finished cycle.
func FromResult(source string, res *models.CycleResult) Record {
	return Record{
		Source:            source,
		Direction:         res.Direction,
		StartedAt:         res.StartedAt,
		FinishedAt:        res.FinishedAt,
		UpdatedEntryCount: res.UpdatedEntryCount,
		WroteTimeline:     res.WroteTimeline,
		Drift:             res.Drift,
		WarningCount:      len(res.Warnings),
		Warnings:          res.Warnings,
	}
}

// Record stores a cycle and its warnings in one transaction.
func (db *DB) Record(rec Record) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("journal: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.Exec(`
		INSERT INTO cycles (source, direction, started_at, finished_at, updated_entries, wrote_timeline, drift, error, timeline_checksum)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.Source, string(rec.Direction), rec.StartedAt.UTC(), rec.FinishedAt.UTC(),
		rec.UpdatedEntryCount, rec.WroteTimeline, rec.Drift, rec.Error, rec.TimelineChecksum)
	if err != nil {
		return 0, fmt.Errorf("journal: insert cycle: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("journal: last insert id: %w", err)
	}

	if len(rec.Warnings) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO cycle_warnings (cycle_id, seq, message) VALUES (?, ?, ?)`)
		if err != nil {
			return 0, fmt.Errorf("journal: prepare warning insert: %w", err)
		}
		defer stmt.Close()
		for i, w := range rec.Warnings {
			if _, err := stmt.Exec(id, i, w); err != nil {
				return 0, fmt.Errorf("journal: insert warning: %w", err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("journal: commit: %w", err)
	}
	return id, nil
}

const selectCycle = `
	SELECT c.id, c.source, c.direction, c.started_at, c.finished_at, c.updated_entries,
	       c.wrote_timeline, c.drift, c.error, c.timeline_checksum,
	       (SELECT count(*) FROM cycle_warnings w WHERE w.cycle_id = c.id)
	FROM cycles c`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var (
		r   Record
		dir string
	)
	err := s.Scan(&r.ID, &r.Source, &dir, &r.StartedAt, &r.FinishedAt, &r.UpdatedEntryCount,
		&r.WroteTimeline, &r.Drift, &r.Error, &r.TimelineChecksum, &r.WarningCount)
	r.Direction = models.Direction(dir)
	return r, err
}

// Recent returns up to limit cycles, newest first, without warning text.
func (db *DB) Recent(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(selectCycle+` ORDER BY c.id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Get returns one cycle with its warnings.
func (db *DB) Get(id int64) (*Record, error) {
	r, err := scanRecord(db.conn.QueryRow(selectCycle+` WHERE c.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("journal: cycle %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("journal: get: %w", err)
	}

	rows, err := db.conn.Query(`SELECT message FROM cycle_warnings WHERE cycle_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("journal: warnings: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return nil, err
		}
		r.Warnings = append(r.Warnings, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Prune keeps the newest keep cycles and deletes the rest.
func (db *DB) Prune(keep int) error {
	if keep <= 0 {
		return nil
	}
	_, err := db.conn.Exec(`DELETE FROM cycles WHERE id NOT IN (SELECT id FROM cycles ORDER BY id DESC LIMIT ?)`, keep)
	if err != nil {
		return fmt.Errorf("journal: prune: %w", err)
	}
	return nil
}
