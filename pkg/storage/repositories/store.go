package repositories

import (
	"context"
	"errors"
	"time"

	"hookgate/pkg/storage"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store implements storage.RepositoryStore on top of GORM. It shares a
// connection with the installations store.
type Store struct {
	db    *gorm.DB
	table string
}

type row struct {
	Provider       string    `gorm:"column:provider;size:32;not null;uniqueIndex:idx_repository,priority:1"`
	InstallationID string    `gorm:"column:installation_id;size:128;not null;uniqueIndex:idx_repository,priority:2"`
	RepoID         string    `gorm:"column:repo_id;size:128;not null;uniqueIndex:idx_repository,priority:3"`
	Owner          string    `gorm:"column:owner;size:255"`
	Name           string    `gorm:"column:name;size:255"`
	FullName       string    `gorm:"column:full_name;size:512"`
	Private        bool      `gorm:"column:private"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Open wraps an existing GORM connection.
func Open(db *gorm.DB, table string, autoMigrate bool) (*Store, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if table == "" {
		table = "hookgate_repositories"
	}
	store := &Store{db: db, table: table}
	if autoMigrate {
		if err := store.tableDB().AutoMigrate(&row{}); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// Close is a no-op; the shared connection is closed by its owner.
func (s *Store) Close() error {
	return nil
}

// UpsertRepository inserts or updates a repository record.
func (s *Store) UpsertRepository(ctx context.Context, record storage.RepositoryRecord) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	if record.Provider == "" || record.RepoID == "" {
		return errors.New("provider and repo id are required")
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	data := toRow(record)
	return s.tableDB().
		WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "installation_id"}, {Name: "repo_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"owner", "name", "full_name", "private", "updated_at"}),
		}).
		Create(&data).Error
}

// RemoveRepository deletes a repository record.
func (s *Store) RemoveRepository(ctx context.Context, provider, installationID, repoID string) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	return s.tableDB().
		WithContext(ctx).
		Where("provider = ? AND installation_id = ? AND repo_id = ?", provider, installationID, repoID).
		Delete(&row{}).Error
}

// ListRepositories lists repositories for an installation. An empty
// installation id lists every repository for the provider.
func (s *Store) ListRepositories(ctx context.Context, provider, installationID string) ([]storage.RepositoryRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	query := s.tableDB().WithContext(ctx).Where("provider = ?", provider)
	if installationID != "" {
		query = query.Where("installation_id = ?", installationID)
	}
	var data []row
	if err := query.Order("full_name").Find(&data).Error; err != nil {
		return nil, err
	}
	records := make([]storage.RepositoryRecord, 0, len(data))
	for _, item := range data {
		records = append(records, fromRow(item))
	}
	return records, nil
}

func (s *Store) tableDB() *gorm.DB {
	return s.db.Table(s.table)
}

func toRow(record storage.RepositoryRecord) row {
	return row{
		Provider:       record.Provider,
		InstallationID: record.InstallationID,
		RepoID:         record.RepoID,
		Owner:          record.Owner,
		Name:           record.Name,
		FullName:       record.FullName,
		Private:        record.Private,
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	}
}

func fromRow(data row) storage.RepositoryRecord {
	return storage.RepositoryRecord{
		Provider:       data.Provider,
		InstallationID: data.InstallationID,
		RepoID:         data.RepoID,
		Owner:          data.Owner,
		Name:           data.Name,
		FullName:       data.FullName,
		Private:        data.Private,
		CreatedAt:      data.CreatedAt,
		UpdatedAt:      data.UpdatedAt,
	}
}
