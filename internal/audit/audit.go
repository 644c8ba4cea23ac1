package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oakline/cabinetry-backend/pkg/db/models"
	"github.com/oakline/cabinetry-backend/pkg/logger"
)

// Entry describes a mutation to record after it commits.
type Entry struct {
	ActorUserID uuid.UUID
	Action      string
	EntityType  string
	EntityID    uuid.UUID
	Detail      any
}

// Recorder appends audit rows outside the mutating transaction. A failed
// write is reported to the caller as a warning, never as a request failure.
type Recorder struct {
	db   *gorm.DB
	logg *logger.Logger
}

// NewRecorder builds an audit recorder bound to the provided GORM DB.
func NewRecorder(db *gorm.DB, logg *logger.Logger) (*Recorder, error) {
	if db == nil {
		return nil, fmt.Errorf("audit db is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Recorder{db: db, logg: logg}, nil
}

// Record inserts an audit row. It returns a warning string instead of an
// error so callers can attach it to an otherwise successful response.
func (r *Recorder) Record(ctx context.Context, entry Entry) string {
	row := &models.AuditLog{
		ID:          uuid.New(),
		ActorUserID: entry.ActorUserID,
		Action:      entry.Action,
		EntityType:  entry.EntityType,
		EntityID:    entry.EntityID,
	}
	if entry.Detail != nil {
		detail, err := json.Marshal(entry.Detail)
		if err != nil {
			r.logg.Error(ctx, "audit detail marshal failed", err)
			return "audit trail not recorded"
		}
		row.Detail = detail
	}

	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		r.logg.Error(ctx, "audit write failed", err)
		return "audit trail not recorded"
	}
	return ""
}

// ListForEntity returns the audit history of one entity, newest first.
func (r *Recorder) ListForEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var rows []models.AuditLog
	err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
