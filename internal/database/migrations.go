package database

import (
	"fmt"
	"time"

	"github.com/aethra/krishi/internal/config"
	"github.com/aethra/krishi/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MigrationRecord tracks which migrations have been applied
type MigrationRecord struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"uniqueIndex;size:255"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

// TableName returns the table name for migrations
func (MigrationRecord) TableName() string {
	return "_krishi_migrations"
}

// Migration is one named, ordered schema or data step
type Migration struct {
	Name string
	Up   func(tx *gorm.DB) error
}

// Models lists every persisted entity in dependency order
func Models() []interface{} {
	return []interface{}{
		&config.SystemConfiguration{},
		&models.Account{},
		&models.UserProfile{},
		&models.FarmProfile{},
		&models.DiaryEntry{},
		&models.FinancialLedgerEntry{},
		&models.WeatherAlert{},
		&models.APIUsageLog{},
		&models.KnowledgeArticle{},
		&models.ChatSession{},
		&models.ChatMessage{},
		&models.ChatMessageContext{},
	}
}

// Migrations returns the ordered migration list
func Migrations() []Migration {
	return []Migration{
		{
			Name: "001_schema",
			Up: func(tx *gorm.DB) error {
				return tx.AutoMigrate(Models()...)
			},
		},
		{
			Name: "002_default_configuration",
			Up: func(tx *gorm.DB) error {
				return config.NewConfigService(tx).SetupDefaults()
			},
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(db *gorm.DB, log *zap.Logger) error {
	// Ensure migrations table exists
	if err := db.AutoMigrate(&MigrationRecord{}); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, m := range Migrations() {
		// Check if already applied
		var count int64
		if err := db.Model(&MigrationRecord{}).Where("name = ?", m.Name).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check migration %s: %w", m.Name, err)
		}
		if count > 0 {
			log.Debug("migration already applied", zap.String("name", m.Name))
			continue
		}

		log.Info("applying migration", zap.String("name", m.Name))
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := m.Up(tx); err != nil {
				return err
			}
			return tx.Create(&MigrationRecord{Name: m.Name}).Error
		})
		if err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", m.Name, err)
		}
	}

	return nil
}
