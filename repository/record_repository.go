package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"certificatePortal/internal/db"
	"certificatePortal/models"

	"github.com/google/uuid"
)

// RecordRepository stores participant records. Every Replace writes a new
// generation and repoints record_state in the same transaction, so readers
// see either the previous set or the new one.
type RecordRepository struct {
	db *sql.DB
}

func NewRecordRepository(d *sql.DB) *RecordRepository {
	return &RecordRepository{db: d}
}

const currentGeneration = `(SELECT generation FROM record_state WHERE id = 1)`

// Replace swaps the whole record set for recs and returns the new generation id.
func (r *RecordRepository) Replace(ctx context.Context, recs []models.Record) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	gen := uuid.NewString()
	err := db.WithTx(ctx, r.db, nil, func(ctx context.Context, tx db.DBTX) error {
		for i, rec := range recs {
			if _, err := tx.ExecContext(ctx, `INSERT INTO records (generation, position, name, certificate, college, link) VALUES (?, ?, ?, ?, ?, ?)`,
				gen, i, nullable(rec.Name), nullable(rec.Certificate), nullable(rec.College), nullable(rec.Link)); err != nil {
				return fmt.Errorf("insert record %d: %w", i, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE record_state SET generation = ?, updated_at = CURRENT_TIMESTAMP WHERE id = 1`, gen); err != nil {
			return fmt.Errorf("switch generation: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE generation <> ?`, gen); err != nil {
			return fmt.Errorf("prune generations: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return gen, nil
}

// Count returns the size of the current record set.
func (r *RecordRepository) Count(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE generation = `+currentGeneration).Scan(&n)
	return n, err
}

// FindByName returns the first record (in upload order) whose name equals
// name exactly, or (nil, nil).
func (r *RecordRepository) FindByName(ctx context.Context, name string) (*models.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var rec models.Record
	var cert, college, link sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT name, certificate, college, link FROM records WHERE generation = `+currentGeneration+` AND name = ? ORDER BY position LIMIT 1`, name).
		Scan(&rec.Name, &cert, &college, &link)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	rec.Certificate = cert.String
	rec.College = college.String
	rec.Link = link.String
	return &rec, nil
}

// List returns a page of the current record set in upload order.
func (r *RecordRepository) List(ctx context.Context, limit, offset int) ([]models.Record, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT name, certificate, college, link FROM records WHERE generation = `+currentGeneration+` ORDER BY position LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Record
	for rows.Next() {
		var name, cert, college, link sql.NullString
		if err := rows.Scan(&name, &cert, &college, &link); err != nil {
			return nil, err
		}
		out = append(out, models.Record{Name: name.String, Certificate: cert.String, College: college.String, Link: link.String})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Generation returns the id of the visible generation ("" before the first ingest).
func (r *RecordRepository) Generation(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var gen string
	err := r.db.QueryRowContext(ctx, `SELECT generation FROM record_state WHERE id = 1`).Scan(&gen)
	return gen, err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
