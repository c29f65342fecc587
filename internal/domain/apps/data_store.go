package apps

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type ValueType string

const (
	ValueStr      ValueType = "str"
	ValueInt      ValueType = "int"
	ValueFloat    ValueType = "float"
	ValueBool     ValueType = "bool"
	ValueJSON     ValueType = "json"
	ValueDate     ValueType = "date"
	ValueDateTime ValueType = "datetime"
)

var valueTypes = map[ValueType]bool{
	ValueStr: true, ValueInt: true, ValueFloat: true, ValueBool: true,
	ValueJSON: true, ValueDate: true, ValueDateTime: true,
}

func (t ValueType) Valid() bool { return valueTypes[t] }

// NormalizeValueType maps the loose spellings models tend to emit onto a
// known ValueType. Unknown spellings fall back to str.
func NormalizeValueType(s string) ValueType {
	s = strings.ToLower(strings.TrimSpace(s))
	switch ValueType(s) {
	case ValueStr, ValueInt, ValueFloat, ValueBool, ValueJSON, ValueDate, ValueDateTime:
		return ValueType(s)
	}
	switch s {
	case "string", "text", "email", "url", "char":
		return ValueStr
	case "integer", "number", "bigint":
		return ValueInt
	case "decimal", "double", "real":
		return ValueFloat
	case "boolean":
		return ValueBool
	case "object", "array", "list", "dict":
		return ValueJSON
	case "timestamp", "date_time":
		return ValueDateTime
	}
	return ValueStr
}

// DataStoreEntry is one row of an app's schema-less store. Value is always
// the raw string; TypedValue interprets it according to ValueType.
type DataStoreEntry struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AppID       uuid.UUID `gorm:"type:uuid;column:app_id;not null;uniqueIndex:idx_data_store_app_table_key" json:"app_id"`
	Table       string    `gorm:"column:table_name;not null;default:'default';uniqueIndex:idx_data_store_app_table_key" json:"table_name"`
	Key         string    `gorm:"column:key;not null;uniqueIndex:idx_data_store_app_table_key" json:"key"`
	Value       string    `gorm:"column:value;type:text;not null;default:''" json:"value"`
	ValueType   ValueType `gorm:"column:value_type;not null;default:'str'" json:"value_type"`
	Description string    `gorm:"column:description;type:text" json:"description"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null;index" json:"updated_at"`
}

func (DataStoreEntry) TableName() string { return "data_store_entry" }

// Parsed returns the tagged value, or nil when Value is empty or does not
// parse as ValueType.
func (e *DataStoreEntry) Parsed() Value {
	if e == nil {
		return nil
	}
	v, err := ParseValue(e.ValueType, e.Value)
	if err != nil {
		return nil
	}
	return v
}

// TypedValue is the plain Go form of Parsed, suitable for JSON responses.
func (e *DataStoreEntry) TypedValue() any {
	v := e.Parsed()
	if v == nil {
		return nil
	}
	return v.Interface()
}
