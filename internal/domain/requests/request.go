package requests

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle of a GenerationRequest or UpdateRequest.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// GenerationRequest is a user-submitted app idea. Only the pipeline mutates
// Status, TokensUsed and ErrorMessage.
type GenerationRequest struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Content        string     `gorm:"column:content;type:text;not null" json:"content"`
	OrganizationID uuid.UUID  `gorm:"type:uuid;column:organization_id;not null;index" json:"organization_id"`
	UserID         uuid.UUID  `gorm:"type:uuid;column:user_id;not null;index" json:"user_id"`
	Status         Status     `gorm:"column:status;not null;index" json:"status"`
	TokensUsed     int64      `gorm:"column:tokens_used;not null;default:0" json:"tokens_used"`
	ErrorMessage   *string    `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	AppID          *uuid.UUID `gorm:"type:uuid;column:app_id;index" json:"app_id,omitempty"`
	CreatedAt      time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null" json:"updated_at"`
}

func (GenerationRequest) TableName() string { return "generation_request" }

// UpdateRequest asks the pipeline to modify an app that an earlier
// GenerationRequest produced.
type UpdateRequest struct {
	ID                  uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	GenerationRequestID uuid.UUID `gorm:"type:uuid;column:generation_request_id;not null;index" json:"generation_request_id"`
	AppID               uuid.UUID `gorm:"type:uuid;column:app_id;not null;index" json:"app_id"`
	UserID              uuid.UUID `gorm:"type:uuid;column:user_id;not null;index" json:"user_id"`
	Content             string    `gorm:"column:content;type:text;not null" json:"content"`
	Status              Status    `gorm:"column:status;not null;index" json:"status"`
	TokensUsed          int64     `gorm:"column:tokens_used;not null;default:0" json:"tokens_used"`
	ErrorMessage        *string   `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	CreatedAt           time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt           time.Time `gorm:"not null" json:"updated_at"`
}

func (UpdateRequest) TableName() string { return "update_request" }
