package repository

import (
	"context"
	"time"

	"certificatePortal/models"
)

// CredentialStore defines operations on registered identities.
type CredentialStore interface {
	Create(ctx context.Context, u *models.User) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// RecordStore defines operations on the participant record set.
type RecordStore interface {
	Replace(ctx context.Context, recs []models.Record) (string, error)
	Count(ctx context.Context) (int, error)
	FindByName(ctx context.Context, name string) (*models.Record, error)
}

// ConfigStore defines operations on the template setting singleton.
type ConfigStore interface {
	GetTemplate(ctx context.Context) (*models.TemplateSetting, error)
	UpsertTemplate(ctx context.Context, t models.Template, at time.Time) error
	InsertTemplateIfAbsent(ctx context.Context, t models.Template, at time.Time) (bool, error)
}

var (
	_ CredentialStore = (*UserRepository)(nil)
	_ RecordStore     = (*RecordRepository)(nil)
	_ ConfigStore     = (*SettingRepository)(nil)
)
