package database

import (
	"errors"
	"time"

	"github.com/hikawa-dev/stagecal/backend/internal/schedule"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationSeedScanSettings = "2026-08-12_seed_scan_settings"

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
		{name: migrationSeedScanSettings, apply: seedScanSettings},
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
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

func seedScanSettings(db *gorm.DB) error {
	var existing schedule.ScanSettings
	err := db.Where("settings_id = ?", 1).Take(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return db.Create(&schedule.ScanSettings{
		SettingsID:    1,
		Enabled:       true,
		IntervalHours: 6,
		RangeDays:     3,
	}).Error
}
