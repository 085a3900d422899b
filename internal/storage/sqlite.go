package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/spigell/chat-applier/internal/records"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultPath is the database file used when none is configured.
const DefaultPath = "chat-applier.db"

// DB is a gorm-backed Store.
type DB struct {
	*gorm.DB
}

// Open connects to the SQLite database at path and migrates the schema.
func Open(path string, log *zap.Logger) (*DB, error) {
	if path == "" {
		path = DefaultPath
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: newGormLogger(log),
	})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	if err := db.AutoMigrate(&profileRow{}, &companyRow{}, &jobRow{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &DB{db}, nil
}

// Close releases the underlying connection pool.
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (db *DB) GetProfile(ctx context.Context, id string) (*records.Profile, error) {
	var row profileRow
	if err := db.first(ctx, &row, id); err != nil {
		return nil, fmt.Errorf("get profile %s: %w", id, err)
	}
	return row.toRecord()
}

func (db *DB) SaveProfile(ctx context.Context, profile *records.Profile) error {
	row, err := toProfileRow(profile)
	if err != nil {
		return err
	}
	if err := db.upsert(ctx, row); err != nil {
		return fmt.Errorf("save profile %s: %w", profile.ID, err)
	}
	return nil
}

func (db *DB) GetCompany(ctx context.Context, id string) (*records.Company, error) {
	var row companyRow
	if err := db.first(ctx, &row, id); err != nil {
		return nil, fmt.Errorf("get company %s: %w", id, err)
	}
	return row.toRecord()
}

func (db *DB) SaveCompany(ctx context.Context, company *records.Company) error {
	row, err := toCompanyRow(company)
	if err != nil {
		return err
	}
	if err := db.upsert(ctx, row); err != nil {
		return fmt.Errorf("save company %s: %w", company.ID, err)
	}
	return nil
}

func (db *DB) ListCompanies(ctx context.Context) ([]*records.Company, error) {
	var rows []companyRow
	if err := db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}

	companies := make([]*records.Company, 0, len(rows))
	for i := range rows {
		company, err := rows[i].toRecord()
		if err != nil {
			return nil, err
		}
		companies = append(companies, company)
	}
	return companies, nil
}

func (db *DB) GetJob(ctx context.Context, id string) (*records.Job, error) {
	var row jobRow
	if err := db.first(ctx, &row, id); err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return row.toRecord()
}

func (db *DB) SaveJob(ctx context.Context, job *records.Job) error {
	row, err := toJobRow(job)
	if err != nil {
		return err
	}
	if err := db.upsert(ctx, row); err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return nil
}

func (db *DB) first(ctx context.Context, dest any, id string) error {
	err := db.WithContext(ctx).Where("id = ?", id).Take(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (db *DB) upsert(ctx context.Context, row any) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error
}
