package storage

import (
	"context"
	"time"
)

// InstallationRecord stores app installation metadata gathered from
// installation lifecycle events.
type InstallationRecord struct {
	Provider       string
	AccountID      string
	AccountName    string
	InstallationID string
	Status         string
	MetadataJSON   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RepositoryRecord stores repository metadata gathered from installation
// repository events.
type RepositoryRecord struct {
	Provider       string
	InstallationID string
	RepoID         string
	Owner          string
	Name           string
	FullName       string
	Private        bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// InstallationStore defines persistence for installation records.
type InstallationStore interface {
	UpsertInstallation(ctx context.Context, record InstallationRecord) error
	GetInstallation(ctx context.Context, provider, installationID string) (*InstallationRecord, error)
	ListInstallations(ctx context.Context, provider string) ([]InstallationRecord, error)
	Close() error
}

// RepositoryStore defines persistence for repository records.
type RepositoryStore interface {
	UpsertRepository(ctx context.Context, record RepositoryRecord) error
	RemoveRepository(ctx context.Context, provider, installationID, repoID string) error
	ListRepositories(ctx context.Context, provider, installationID string) ([]RepositoryRecord, error)
	Close() error
}
