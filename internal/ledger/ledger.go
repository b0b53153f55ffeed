// Package ledger persists logbook entries and upload results in SQLite. It
// is the reference implementation of the publish.RecordStore contract, used
// by the worker binary and the CLI; systems embedding the pipelines can
// substitute their own store.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".

	"github.com/fieldlogger/evidencedrive/internal/batch"
	"github.com/fieldlogger/evidencedrive/internal/category"
	"github.com/fieldlogger/evidencedrive/internal/publish"
)

// ErrNotFound reports a lookup for an entry id that does not exist.
var ErrNotFound = errors.New("ledger: entry not found")

const (
	dateFormat = "2006-01-02"
	timeFormat = time.RFC3339
)

// Store is a SQLite-backed record store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	nowFunc func() time.Time // injectable for deterministic tests
}

// Open opens (creating if needed) the database at dbPath and runs pending
// migrations. The database uses WAL mode with synchronous=FULL so a crash
// mid-publication never loses an acknowledged write.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// DSN parameters ensure pragmas apply to every connection from the pool.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)"+
			"&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)",
		dbPath,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: opening database %s: %w", dbPath, err)
	}

	// Sole-writer pattern: only one connection writes at a time.
	db.SetMaxOpenConns(1)

	if err := runMigrations(context.Background(), db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("ledger opened", slog.String("db_path", dbPath))

	return &Store{db: db, logger: logger, nowFunc: time.Now}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateEntry inserts a new logbook entry. Publication fields are ignored;
// they are only ever set through MarkPublished.
func (s *Store) CreateEntry(ctx context.Context, rec *publish.Record) error {
	activities, err := json.Marshal(rec.Activities)
	if err != nil {
		return fmt.Errorf("ledger: encoding activities for %s: %w", rec.ID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO logbook_entries (id, owner_id, owner_name, entry_date, activities, notes)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.OwnerID, rec.OwnerName, rec.Date.Format(dateFormat),
		string(activities), rec.Notes,
	)
	if err != nil {
		return fmt.Errorf("ledger: inserting entry %s: %w", rec.ID, err)
	}

	return nil
}

// Record loads one entry by id.
func (s *Store) Record(ctx context.Context, id string) (*publish.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, owner_name, entry_date, activities, notes,
		        folder_id, folder_url, published_at
		 FROM logbook_entries WHERE id = ?`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("ledger: loading entry %s: %w", id, err)
	}

	return rec, nil
}

// MarkPublished stores the folder id/url and publication time on an entry.
func (s *Store) MarkPublished(ctx context.Context, id, folderID, folderURL string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE logbook_entries SET folder_id = ?, folder_url = ?, published_at = ?
		 WHERE id = ?`,
		folderID, folderURL, at.UTC().Format(timeFormat), id,
	)
	if err != nil {
		return fmt.Errorf("ledger: marking entry %s published: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ledger: marking entry %s published: %w", id, err)
	}

	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return nil
}

// PublishedInMonth returns all published entries dated within the given
// calendar month, ordered by publication time, then entry date, then owner
// name. The report generator relies on this ordering.
func (s *Store) PublishedInMonth(ctx context.Context, year int, month time.Month) ([]publish.Record, error) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	next := first.AddDate(0, 1, 0)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, owner_name, entry_date, activities, notes,
		        folder_id, folder_url, published_at
		 FROM logbook_entries
		 WHERE published_at IS NOT NULL AND entry_date >= ? AND entry_date < ?
		 ORDER BY published_at, entry_date, owner_name`,
		first.Format(dateFormat), next.Format(dateFormat),
	)
	if err != nil {
		return nil, fmt.Errorf("ledger: listing entries for %d-%02d: %w", year, month, err)
	}
	defer rows.Close()

	var out []publish.Record

	for rows.Next() {
		rec, scanErr := scanRecord(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("ledger: scanning entry: %w", scanErr)
		}

		out = append(out, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: listing entries for %d-%02d: %w", year, month, err)
	}

	return out, nil
}

// SaveUploadResults records the outcome of a completed (possibly partial)
// upload batch in a single transaction.
func (s *Store) SaveUploadResults(ctx context.Context, batchID, ownerID string, results []batch.Result) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger: begin saving results for %s: %w", batchID, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO upload_results
			(batch_id, owner_id, category, period_label, file_name, file_url, folder_url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("ledger: prepare saving results for %s: %w", batchID, err)
	}
	defer stmt.Close()

	createdAt := s.nowFunc().UTC().Format(timeFormat)

	for i := range results {
		r := &results[i]

		if _, err := stmt.ExecContext(ctx, batchID, ownerID,
			string(r.Category), r.PeriodLabel, r.FileName, r.FileURL, r.FolderURL, createdAt,
		); err != nil {
			return fmt.Errorf("ledger: saving result %s: %w", r.FileName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ledger: committing results for %s: %w", batchID, err)
	}

	s.logger.Info("upload results saved",
		slog.String("batch_id", batchID),
		slog.Int("count", len(results)),
	)

	return nil
}

// UploadResultsForOwner returns an owner's saved results, newest batch first.
func (s *Store) UploadResultsForOwner(ctx context.Context, ownerID string) ([]batch.Result, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, period_label, file_name, file_url, folder_url
		 FROM upload_results WHERE owner_id = ?
		 ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ledger: listing results for %s: %w", ownerID, err)
	}
	defer rows.Close()

	var out []batch.Result

	for rows.Next() {
		var r batch.Result
		var cat string

		if err := rows.Scan(&cat, &r.PeriodLabel, &r.FileName, &r.FileURL, &r.FolderURL); err != nil {
			return nil, fmt.Errorf("ledger: scanning result: %w", err)
		}

		r.Category = category.Category(cat)
		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: listing results for %s: %w", ownerID, err)
	}

	return out, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*publish.Record, error) {
	var (
		rec         publish.Record
		entryDate   string
		activities  string
		publishedAt sql.NullString
	)

	if err := sc.Scan(&rec.ID, &rec.OwnerID, &rec.OwnerName, &entryDate,
		&activities, &rec.Notes, &rec.FolderID, &rec.FolderURL, &publishedAt,
	); err != nil {
		return nil, err
	}

	date, err := time.Parse(dateFormat, entryDate)
	if err != nil {
		return nil, fmt.Errorf("parsing entry date %q: %w", entryDate, err)
	}

	rec.Date = date

	if err := json.Unmarshal([]byte(activities), &rec.Activities); err != nil {
		return nil, fmt.Errorf("parsing activities: %w", err)
	}

	if publishedAt.Valid {
		at, err := time.Parse(timeFormat, publishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing publication time %q: %w", publishedAt.String, err)
		}

		rec.PublishedAt = &at
	}

	return &rec, nil
}
