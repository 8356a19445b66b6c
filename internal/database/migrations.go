package database

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationCompletedRequiresPreview = "2026-10-16_customizations_completed_requires_preview"

// completedRequiresPreview guards the customization lifecycle: a record only becomes
// completed together with its preview URL.
var completedRequiresPreview = []string{
	`CREATE TRIGGER IF NOT EXISTS customizations_completed_preview_insert
	BEFORE INSERT ON customizations
	WHEN NEW.status = 'completed' AND NEW.preview_url = ''
	BEGIN SELECT RAISE(ABORT, 'completed customization requires a preview url'); END`,
	`CREATE TRIGGER IF NOT EXISTS customizations_completed_preview_update
	BEFORE UPDATE OF status, preview_url ON customizations
	WHEN NEW.status = 'completed' AND NEW.preview_url = ''
	BEGIN SELECT RAISE(ABORT, 'completed customization requires a preview url'); END`,
}

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationCompletedRequiresPreview, apply: createCompletedPreviewTriggers},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := db.Transaction(migration.apply); err != nil {
			return fmt.Errorf("migration %s: %w", migration.name, err)
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		logger.Info("database migration applied", zap.String("migration", migration.name))
	}
	return nil
}

func createCompletedPreviewTriggers(db *gorm.DB) error {
	for _, statement := range completedRequiresPreview {
		if err := db.Exec(statement).Error; err != nil {
			return err
		}
	}
	return nil
}
