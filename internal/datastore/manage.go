package datastore

import (
	"log/slog"
	"time"

	"github.com/camf-project/camf-go/internal/errors"
	"gorm.io/gorm"
)

// performAutoMigration automates database migrations with per-table logging.
func performAutoMigration(db *gorm.DB, debug bool, logger *slog.Logger) error {
	migrationStart := time.Now()

	tableMappings := []struct {
		model any
		name  string
	}{
		{&Project{}, "projects"},
		{&Scene{}, "scenes"},
		{&Angle{}, "angles"},
		{&Take{}, "takes"},
		{&Frame{}, "frames"},
		{&DetectorResult{}, "detector_results"},
	}

	successCount := 0
	for _, table := range tableMappings {
		if err := migrateTable(db, table.model, table.name, logger); err != nil {
			return err
		}
		successCount++
	}

	// The reference-take foreign key carries SET NULL, but SQLite applies
	// FK actions only on connections with enforcement enabled; the trigger
	// keeps the null-out policy for any other delete path.
	if err := createReferenceClearTrigger(db); err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "create_reference_clear_trigger").
			Build()
	}

	if debug {
		logger.Debug("database migration completed",
			"tables_migrated", successCount,
			"duration", time.Since(migrationStart))
	}
	return nil
}

// migrateTable migrates a single table with detailed logging.
func migrateTable(db *gorm.DB, model any, tableName string, logger *slog.Logger) error {
	tableStart := time.Now()
	tableExists := db.Migrator().HasTable(model)

	if err := db.AutoMigrate(model); err != nil {
		enhancedErr := errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "auto_migrate_table").
			Context("table", tableName).
			Build()
		logger.Error("table migration failed", "table", tableName, "error", enhancedErr)
		return enhancedErr
	}

	action := "updated"
	if !tableExists {
		action = "created"
	}
	logger.Debug("table migration completed",
		"table", tableName,
		"action", action,
		"duration", time.Since(tableStart))
	return nil
}

// createReferenceClearTrigger installs the null-out policy for the
// Angle -> reference-Take link: deleting the referenced take clears the
// pointer on any angle that held it. The trigger is idempotent and also
// covers takes deleted outside the normal API.
func createReferenceClearTrigger(db *gorm.DB) error {
	triggerSQL := `
		CREATE TRIGGER IF NOT EXISTS trg_take_delete_clear_reference
		BEFORE DELETE ON takes
		FOR EACH ROW
		BEGIN
			UPDATE angles SET reference_take_id = NULL WHERE reference_take_id = OLD.id;
		END
	`
	return db.Exec(triggerSQL).Error
}
