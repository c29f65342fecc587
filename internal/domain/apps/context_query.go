package apps

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type QueryType string

const (
	QueryLookup QueryType = "lookup"
	QuerySelect QueryType = "select"
	QueryCount  QueryType = "count"
)

// ContextQuery is evaluated before a page renders; its result is bound to Key.
// Expression holds a querydsl AST, never executable text.
type ContextQuery struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	PageID     uuid.UUID      `gorm:"type:uuid;column:page_id;not null;uniqueIndex:idx_context_query_page_key" json:"page_id"`
	Key        string         `gorm:"column:key;not null;uniqueIndex:idx_context_query_page_key" json:"key"`
	Order      int            `gorm:"column:sort_order;not null;default:0" json:"order"`
	QueryType  QueryType      `gorm:"column:query_type;not null" json:"query_type"`
	Expression datatypes.JSON `gorm:"column:expression" json:"expression"`
	CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null" json:"updated_at"`
}

func (ContextQuery) TableName() string { return "context_query" }
