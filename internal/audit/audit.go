package audit

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// OperationType represents the type of operation performed
type OperationType string

const (
	OperationCreate OperationType = "CREATE"
	OperationUpdate OperationType = "UPDATE"
	OperationDelete OperationType = "DELETE"
	OperationReset  OperationType = "RESET"
)

// ResourceType represents the type of resource being changed
type ResourceType string

const (
	ResourceMedication ResourceType = "medication"
	ResourceDoseLog    ResourceType = "dose_log"
	ResourceReport     ResourceType = "report"
)

// Entry represents an audit log entry
type Entry struct {
	OperationType  OperationType
	ResourceType   ResourceType
	ResourceID     string
	Timestamp      time.Time
	AdditionalData map[string]any
}

// Logger writes audit entries to the structured log and, when a database
// pool is configured, to the audit_logs table
type Logger struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewLogger creates a new audit logger; db may be nil
func NewLogger(db *pgxpool.Pool, logger *zap.Logger) *Logger {
	return &Logger{
		db:     db,
		logger: logger,
	}
}

// Log creates an audit log entry
func (l *Logger) Log(ctx context.Context, entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	l.logger.Info("Audit log entry",
		zap.String("operation", string(entry.OperationType)),
		zap.String("resource_type", string(entry.ResourceType)),
		zap.String("resource_id", entry.ResourceID),
		zap.Time("timestamp", entry.Timestamp),
		zap.Any("additional_data", entry.AdditionalData),
	)

	if l.db == nil {
		return nil
	}

	query := `
		INSERT INTO audit_logs (
			operation_type, resource_type, resource_id,
			timestamp, additional_data
		) VALUES ($1, $2, $3, $4, $5)
	`

	_, err := l.db.Exec(ctx, query,
		string(entry.OperationType),
		string(entry.ResourceType),
		entry.ResourceID,
		entry.Timestamp,
		entry.AdditionalData,
	)

	if err != nil {
		l.logger.Error("Failed to write audit log to database",
			zap.Error(err),
			zap.String("operation", string(entry.OperationType)),
			zap.String("resource_type", string(entry.ResourceType)),
			zap.String("resource_id", entry.ResourceID),
		)
		return err
	}

	return nil
}

// Recent retrieves the most recent audit entries for a resource type
func (l *Logger) Recent(ctx context.Context, resourceType ResourceType, limit int) ([]Entry, error) {
	if l.db == nil {
		return nil, nil
	}

	query := `
		SELECT operation_type, resource_type, resource_id, timestamp, additional_data
		FROM audit_logs
		WHERE resource_type = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`

	rows, err := l.db.Query(ctx, query, string(resourceType), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry     Entry
			operation string
			resource  string
		)
		if err := rows.Scan(&operation, &resource, &entry.ResourceID, &entry.Timestamp, &entry.AdditionalData); err != nil {
			l.logger.Error("Failed to scan audit log", zap.Error(err))
			continue
		}
		entry.OperationType = OperationType(operation)
		entry.ResourceType = ResourceType(resource)
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
