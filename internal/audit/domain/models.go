// Package domain holds the append-only admin audit trail.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Entry records one administrative action. Entries are written once and
// never updated or deleted.
type Entry struct {
	ID         snowflake.ID   `json:"id" gorm:"primaryKey" bson:"_id"`
	ActorID    string         `json:"actor_id" gorm:"type:varchar(64);not null;index" bson:"actor_id"`
	Action     string         `json:"action" gorm:"type:varchar(100);not null;index" bson:"action"`
	TargetType string         `json:"target_type" gorm:"type:varchar(50);not null" bson:"target_type"`
	TargetID   string         `json:"target_id" gorm:"type:varchar(100)" bson:"target_id"`
	Metadata   datatypes.JSON `json:"metadata,omitempty" gorm:"type:text" bson:"-"`
	// MetadataDoc carries the same payload on the document backend.
	MetadataDoc map[string]any `json:"-" gorm:"-" bson:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at" gorm:"not null;index" bson:"created_at"`
}

func (Entry) TableName() string { return "audit_logs" }

type ListFilter struct {
	ActorID string
	Action  string
	Limit   int
	Offset  int
}

type Repository interface {
	Insert(ctx context.Context, entry *Entry) error
	List(ctx context.Context, filter ListFilter) ([]Entry, error)
}

type Service interface {
	// Record writes one trail entry. Failures are logged, never propagated;
	// an audit miss must not fail the admin action itself.
	Record(ctx context.Context, actorID, action, targetType, targetID string, metadata map[string]any)
	List(ctx context.Context, filter ListFilter) ([]Entry, error)
}
