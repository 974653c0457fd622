package datastore

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/snakeguard/snakeguard-go/internal/logging"
)

// DefaultSlowQueryThreshold defines the duration after which a query is
// considered slow. 1 second accommodates migration batch queries.
const DefaultSlowQueryThreshold = 1 * time.Second

var datastoreLogger = logging.ForService("datastore")

// createGormLogger configures and returns a new GORM logger instance.
func createGormLogger() gormlogger.Interface {
	return gormlogger.Default.LogMode(gormlogger.Warn)
}

// performAutoMigration runs GORM auto-migration for all pipeline
// tables. The unique indexes it creates (assignment per detection,
// notification log per user/detection/channel) are load-bearing for
// idempotency, not just lookup speed.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(
		&Detection{},
		&Playbook{},
		&PlaybookStep{},
		&PlaybookContact{},
		&IncidentAssignment{},
		&AssignmentStep{},
		&NotificationLog{},
		&PipelineMetric{},
		&UserProfile{},
		&UserSettings{},
		&StoredSettings{},
	); err != nil {
		return fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)
	}

	if debug {
		datastoreLogger.Debug("database connection initialized",
			slog.String("type", dbType),
			slog.String("connection", connectionInfo))
	}
	return nil
}
