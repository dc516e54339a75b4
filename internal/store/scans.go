package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgallion1/omrgest/internal/omr"
)

// timeLayout is fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Scan is one processed document and its recognition result.
type Scan struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id,omitempty"`
	Filename  string     `json:"filename"`
	CreatedAt time.Time  `json:"created_at"`
	Result    omr.Result `json:"result"`
}

// Filter narrows List.
type Filter struct {
	UserID string
	Limit  int
}

// ScanRepository reads and writes scans.
type ScanRepository struct {
	db *DB
}

func NewScanRepository(db *DB) *ScanRepository {
	return &ScanRepository{db: db}
}

// Save inserts or replaces a scan and its items in one transaction.
func (r *ScanRepository) Save(ctx context.Context, s Scan) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	warnings, err := json.Marshal(nonNil(s.Result.Warnings))
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}

	tx, err := r.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM scan_items WHERE scan_id = ?`, s.ID); err != nil {
		return fmt.Errorf("failed to clear items: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO scans (id, user_id, filename, success, confidence_avg, processing_time_ms, warnings, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.UserID, s.Filename, s.Result.Success, s.Result.ConfidenceAvg, s.Result.ProcessingTimeMs,
		string(warnings), s.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to insert scan: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO scan_items (scan_id, position, item_id, type, value, raw, confidence, bbox, warnings)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, it := range s.Result.Items {
		bbox, _ := json.Marshal(it.BBox)
		itemWarnings, _ := json.Marshal(nonNil(it.Warnings))
		if _, err := stmt.ExecContext(ctx, s.ID, i, it.ID, string(it.Type), it.Value, it.Raw,
			it.Confidence, string(bbox), string(itemWarnings)); err != nil {
			return fmt.Errorf("failed to insert item %s: %w", it.ID, err)
		}
	}

	return tx.Commit()
}

// Get returns the scan with the given ID, or nil if it does not exist.
func (r *ScanRepository) Get(ctx context.Context, id string) (*Scan, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	row := r.db.conn.QueryRowContext(ctx, `
		SELECT id, user_id, filename, success, confidence_avg, processing_time_ms, warnings, created_at
		FROM scans WHERE id = ?
	`, id)
	s, err := scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	items, err := r.itemsLocked(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Result.Items = items
	return s, nil
}

// List returns scans newest first. Items are not loaded.
func (r *ScanRepository) List(ctx context.Context, f Filter) ([]Scan, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `SELECT id, user_id, filename, success, confidence_avg, processing_time_ms, warnings, created_at FROM scans`
	var args []any
	if f.UserID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, f.UserID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}
	defer rows.Close()

	scans := []Scan{}
	for rows.Next() {
		s, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		s.Result.Items = []omr.Item{}
		scans = append(scans, *s)
	}
	return scans, rows.Err()
}

// Delete removes a scan and its items. It reports whether a scan existed.
func (r *ScanRepository) Delete(ctx context.Context, id string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	res, err := r.db.conn.ExecContext(ctx, `DELETE FROM scans WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete scan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *ScanRepository) itemsLocked(ctx context.Context, scanID string) ([]omr.Item, error) {
	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT item_id, type, value, raw, confidence, bbox, warnings
		FROM scan_items WHERE scan_id = ? ORDER BY position
	`, scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	items := []omr.Item{}
	for rows.Next() {
		var (
			it                 omr.Item
			typ, bbox, warning string
		)
		if err := rows.Scan(&it.ID, &typ, &it.Value, &it.Raw, &it.Confidence, &bbox, &warning); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		it.Type = omr.ItemType(typ)
		if err := json.Unmarshal([]byte(bbox), &it.BBox); err != nil {
			return nil, fmt.Errorf("decode bbox for %s: %w", it.ID, err)
		}
		if err := json.Unmarshal([]byte(warning), &it.Warnings); err != nil {
			return nil, fmt.Errorf("decode warnings for %s: %w", it.ID, err)
		}
		if len(it.Warnings) == 0 {
			it.Warnings = nil
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(row rowScanner) (*Scan, error) {
	var (
		s         Scan
		warnings  string
		createdAt string
	)
	err := row.Scan(&s.ID, &s.UserID, &s.Filename, &s.Result.Success, &s.Result.ConfidenceAvg,
		&s.Result.ProcessingTimeMs, &warnings, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}
	if err := json.Unmarshal([]byte(warnings), &s.Result.Warnings); err != nil {
		return nil, fmt.Errorf("decode warnings: %w", err)
	}
	if s.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &s, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
