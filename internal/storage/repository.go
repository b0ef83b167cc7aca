// Package storage persists the dev server's records in SQLite. Each record
// is kept as a JSON document next to the few columns the server filters and
// sorts on.
package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"finflow/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no record matches the domain and id.
var ErrNotFound = errors.New("record not found")

// Document is a record's JSON payload. Numbers decode as json.Number so
// amounts keep their exact decimal text.
type Document map[string]any

// Record is one stored row.
type Record struct {
	ID     int64
	Domain core.Domain
	UserID int64
	Amount decimal.Decimal
	Date   string // YYYY-MM-DD, "" when the record has no date
	Doc    Document
}

// SortField names a column a page can be ordered by.
type SortField string

const (
	SortByID     SortField = "id"
	SortByAmount SortField = "amount"
	SortByDate   SortField = "date"
)

var sortColumns = map[SortField]string{
	SortByID:     "id",
	SortByAmount: "CAST(amount AS REAL)",
	SortByDate:   "record_date",
}

// PageQuery selects one zero-based page of a user's records.
type PageQuery struct {
	Page int
	Size int
	Sort SortField
	Desc bool
}

type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens dbPath, creating its directory, and migrates
// the schema.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection: SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Debug("SQLite schema ready", "path", dbPath, "version", version)

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Create inserts rec and returns it with its new id, which is also written
// into the document.
func (r *SQLiteRepository) Create(ctx context.Context, rec Record) (Record, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO records (domain, user_id, amount, record_date) VALUES (?, ?, ?, ?)`,
		string(rec.Domain), rec.UserID, rec.Amount.String(), rec.Date)
	if err != nil {
		return Record{}, fmt.Errorf("insert %s record: %w", rec.Domain, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Record{}, fmt.Errorf("read inserted id: %w", err)
	}

	rec.ID = id
	payload, err := rec.encode()
	if err != nil {
		return Record{}, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE records SET payload = ? WHERE id = ?`, payload, id); err != nil {
		return Record{}, fmt.Errorf("store %s payload: %w", rec.Domain, err)
	}
	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Record saved to SQLite", "domain", rec.Domain, "id", id, "user_id", rec.UserID)
	return rec, nil
}

// Get returns the record of domain with the given id.
func (r *SQLiteRepository) Get(ctx context.Context, domain core.Domain, id int64) (Record, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, domain, user_id, amount, record_date, payload FROM records WHERE domain = ? AND id = ?`,
		string(domain), id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get %s %d: %w", domain, id, err)
	}
	return rec, nil
}

// Update replaces the stored record with rec. The id is kept.
func (r *SQLiteRepository) Update(ctx context.Context, rec Record) (Record, error) {
	payload, err := rec.encode()
	if err != nil {
		return Record{}, err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE records
		 SET user_id = ?, amount = ?, record_date = ?, payload = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE domain = ? AND id = ?`,
		rec.UserID, rec.Amount.String(), rec.Date, payload, string(rec.Domain), rec.ID)
	if err != nil {
		return Record{}, fmt.Errorf("update %s %d: %w", rec.Domain, rec.ID, err)
	}
	if err := expectOne(res); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Delete removes the record of domain with the given id.
func (r *SQLiteRepository) Delete(ctx context.Context, domain core.Domain, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE domain = ? AND id = ?`, string(domain), id)
	if err != nil {
		return fmt.Errorf("delete %s %d: %w", domain, id, err)
	}
	if err := expectOne(res); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Record deleted from SQLite", "domain", domain, "id", id)
	return nil
}

// DeleteForUser removes the record only when userID owns it.
func (r *SQLiteRepository) DeleteForUser(ctx context.Context, domain core.Domain, userID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM records WHERE domain = ? AND user_id = ? AND id = ?`, string(domain), userID, id)
	if err != nil {
		return fmt.Errorf("delete %s %d for user %d: %w", domain, id, userID, err)
	}
	return expectOne(res)
}

// ListByUser returns every record of domain owned by userID in id order.
func (r *SQLiteRepository) ListByUser(ctx context.Context, domain core.Domain, userID int64) ([]Record, error) {
	return r.query(ctx,
		`SELECT id, domain, user_id, amount, record_date, payload FROM records
		 WHERE domain = ? AND user_id = ? ORDER BY id`,
		string(domain), userID)
}

// Between returns the user's records dated within [start, end]. An empty
// bound is open. Records without a date never match a bounded range.
func (r *SQLiteRepository) Between(ctx context.Context, domain core.Domain, userID int64, start, end string) ([]Record, error) {
	var (
		sb   strings.Builder
		args = []any{string(domain), userID}
	)
	sb.WriteString(`SELECT id, domain, user_id, amount, record_date, payload FROM records WHERE domain = ? AND user_id = ?`)
	if start != "" || end != "" {
		sb.WriteString(` AND record_date != ''`)
	}
	if start != "" {
		sb.WriteString(` AND record_date >= ?`)
		args = append(args, start)
	}
	if end != "" {
		sb.WriteString(` AND record_date <= ?`)
		args = append(args, end)
	}
	sb.WriteString(` ORDER BY record_date, id`)
	return r.query(ctx, sb.String(), args...)
}

// Page returns one page of the user's records and the total count.
func (r *SQLiteRepository) Page(ctx context.Context, domain core.Domain, userID int64, q PageQuery) ([]Record, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE domain = ? AND user_id = ?`, string(domain), userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count %s records: %w", domain, err)
	}

	col, ok := sortColumns[q.Sort]
	if !ok {
		col = sortColumns[SortByID]
	}
	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}
	if q.Size <= 0 {
		q.Size = 10
	}
	if q.Page < 0 {
		q.Page = 0
	}

	// col and dir come from the whitelist above, never from the request.
	recs, err := r.query(ctx,
		`SELECT id, domain, user_id, amount, record_date, payload FROM records
		 WHERE domain = ? AND user_id = ?
		 ORDER BY `+col+` `+dir+`, id `+dir+`
		 LIMIT ? OFFSET ?`,
		string(domain), userID, q.Size, q.Page*q.Size)
	if err != nil {
		return nil, 0, err
	}
	return recs, total, nil
}

// Top returns the user's limit largest records by amount.
func (r *SQLiteRepository) Top(ctx context.Context, domain core.Domain, userID int64, limit int) ([]Record, error) {
	return r.query(ctx,
		`SELECT id, domain, user_id, amount, record_date, payload FROM records
		 WHERE domain = ? AND user_id = ?
		 ORDER BY CAST(amount AS REAL) DESC, id ASC LIMIT ?`,
		string(domain), userID, limit)
}

func (r *SQLiteRepository) query(ctx context.Context, q string, args ...any) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	recs := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return recs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var (
		rec     Record
		domain  string
		amount  string
		payload string
	)
	if err := s.Scan(&rec.ID, &domain, &rec.UserID, &amount, &rec.Date, &payload); err != nil {
		return Record{}, err
	}
	rec.Domain = core.Domain(domain)

	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return Record{}, fmt.Errorf("record %d amount %q: %w", rec.ID, amount, err)
	}
	rec.Amount = amt

	doc, err := DecodeDocument([]byte(payload))
	if err != nil {
		return Record{}, fmt.Errorf("record %d payload: %w", rec.ID, err)
	}
	rec.Doc = doc
	return rec, nil
}

// encode writes the id and owner into the document and marshals it.
func (rec Record) encode() (string, error) {
	if rec.Doc == nil {
		rec.Doc = Document{}
	}
	rec.Doc["id"] = rec.ID
	rec.Doc["userId"] = rec.UserID
	raw, err := json.Marshal(rec.Doc)
	if err != nil {
		return "", fmt.Errorf("encode %s payload: %w", rec.Domain, err)
	}
	return string(raw), nil
}

// DecodeDocument parses a JSON object keeping numbers as json.Number.
func DecodeDocument(raw []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

// String returns the field as text. Numbers keep their literal form.
func (d Document) String(field string) string {
	switch v := d[field].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		if v {
			return "true"
		}
		return "false"
	}
	return ""
}

// Decimal returns the field as an amount, zero when absent or malformed.
func (d Document) Decimal(field string) decimal.Decimal {
	s := d.String(field)
	if s == "" {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return v
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
