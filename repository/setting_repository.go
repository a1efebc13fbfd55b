package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"certificatePortal/internal/db"
	"certificatePortal/models"
)

// TemplateSettingKey is the settings row that selects the certificate layout.
const TemplateSettingKey = "certificate_template"

type SettingRepository struct {
	db db.DBTX
}

func NewSettingRepository(d db.DBTX) *SettingRepository {
	return &SettingRepository{db: d}
}

// GetTemplate returns the stored setting, or (nil, nil) if none exists yet.
func (r *SettingRepository) GetTemplate(ctx context.Context) (*models.TemplateSetting, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var value, updated string
	err := r.db.QueryRowContext(ctx, `SELECT value, updated_at FROM settings WHERE key = ?`, TemplateSettingKey).Scan(&value, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &models.TemplateSetting{Template: models.Template(value), UpdatedAt: parseTime(updated)}, nil
}

// UpsertTemplate creates or overwrites the setting.
func (r *SettingRepository) UpsertTemplate(ctx context.Context, t models.Template, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		TemplateSettingKey, string(t), at.UTC().Format(time.RFC3339Nano))
	return err
}

// InsertTemplateIfAbsent stores t only when no setting exists. It reports
// whether a row was written.
func (r *SettingRepository) InsertTemplateIfAbsent(ctx context.Context, t models.Template, at time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?) ON CONFLICT(key) DO NOTHING`,
		TemplateSettingKey, string(t), at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
