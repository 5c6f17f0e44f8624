package installations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hookgate/pkg/storage"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Config mirrors the storage configuration for the installations table.
type Config struct {
	Driver      string
	DSN         string
	Table       string
	AutoMigrate bool
}

// Store implements storage.InstallationStore on top of GORM.
type Store struct {
	db    *gorm.DB
	table string
}

type row struct {
	Provider       string    `gorm:"column:provider;size:32;not null;uniqueIndex:idx_installation,priority:1"`
	AccountID      string    `gorm:"column:account_id;size:128;not null"`
	AccountName    string    `gorm:"column:account_name;size:255"`
	InstallationID string    `gorm:"column:installation_id;size:128;not null;uniqueIndex:idx_installation,priority:2"`
	Status         string    `gorm:"column:status;size:32"`
	MetadataJSON   string    `gorm:"column:metadata_json;type:text"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Open creates a GORM-backed installations store.
func Open(cfg Config) (*Store, error) {
	if cfg.Driver == "" {
		return nil, errors.New("storage driver is required")
	}
	if cfg.DSN == "" {
		return nil, errors.New("storage dsn is required")
	}
	driver := NormalizeDriver(cfg.Driver)
	if driver == "" {
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}

	gormDB, err := OpenGorm(driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	table := cfg.Table
	if table == "" {
		table = "hookgate_installations"
	}
	store := &Store{
		db:    gormDB,
		table: table,
	}
	if cfg.AutoMigrate {
		if err := store.migrate(); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// OpenWith wraps an existing GORM connection, for stores sharing one DB.
func OpenWith(db *gorm.DB, table string, autoMigrate bool) (*Store, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if table == "" {
		table = "hookgate_installations"
	}
	store := &Store{db: db, table: table}
	if autoMigrate {
		if err := store.migrate(); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// DB exposes the underlying connection so sibling stores can share it.
func (s *Store) DB() *gorm.DB {
	if s == nil {
		return nil
	}
	return s.db
}

// Close closes the underlying DB connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// UpsertInstallation inserts or updates an installation record.
func (s *Store) UpsertInstallation(ctx context.Context, record storage.InstallationRecord) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	if record.Provider == "" {
		return errors.New("provider is required")
	}
	if record.InstallationID == "" {
		return errors.New("installation id is required")
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
			Columns:   []clause.Column{{Name: "provider"}, {Name: "installation_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"account_id", "account_name", "status", "metadata_json", "updated_at"}),
		}).
		Create(&data).Error
}

// GetInstallation fetches a single installation record.
func (s *Store) GetInstallation(ctx context.Context, provider, installationID string) (*storage.InstallationRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	var data row
	err := s.tableDB().
		WithContext(ctx).
		Where("provider = ? AND installation_id = ?", provider, installationID).
		Take(&data).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	record := fromRow(data)
	return &record, nil
}

// ListInstallations lists installations for a provider. An empty provider
// lists everything.
func (s *Store) ListInstallations(ctx context.Context, provider string) ([]storage.InstallationRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	query := s.tableDB().WithContext(ctx)
	if provider != "" {
		query = query.Where("provider = ?", provider)
	}
	var data []row
	if err := query.Order("updated_at desc").Find(&data).Error; err != nil {
		return nil, err
	}
	records := make([]storage.InstallationRecord, 0, len(data))
	for _, item := range data {
		records = append(records, fromRow(item))
	}
	return records, nil
}

func (s *Store) migrate() error {
	return s.tableDB().AutoMigrate(&row{})
}

func (s *Store) tableDB() *gorm.DB {
	return s.db.Table(s.table)
}

func toRow(record storage.InstallationRecord) row {
	return row{
		Provider:       record.Provider,
		AccountID:      record.AccountID,
		AccountName:    record.AccountName,
		InstallationID: record.InstallationID,
		Status:         record.Status,
		MetadataJSON:   record.MetadataJSON,
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	}
}

func fromRow(data row) storage.InstallationRecord {
	return storage.InstallationRecord{
		Provider:       data.Provider,
		AccountID:      data.AccountID,
		AccountName:    data.AccountName,
		InstallationID: data.InstallationID,
		Status:         data.Status,
		MetadataJSON:   data.MetadataJSON,
		CreatedAt:      data.CreatedAt,
		UpdatedAt:      data.UpdatedAt,
	}
}

// NormalizeDriver maps driver aliases to canonical names.
func NormalizeDriver(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	switch value {
	case "postgres", "postgresql", "pgx":
		return "postgres"
	case "mysql":
		return "mysql"
	case "sqlite", "sqlite3":
		return "sqlite"
	default:
		return ""
	}
}

// OpenGorm opens a GORM connection for a canonical driver name.
func OpenGorm(driver, dsn string) (*gorm.DB, error) {
	switch driver {
	case "postgres":
		return gorm.Open(postgres.Open(dsn), &gorm.Config{})
	case "mysql":
		return gorm.Open(mysql.Open(dsn), &gorm.Config{})
	case "sqlite":
		return gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", driver)
	}
}
