package models

import "time"

// KVItem is one durable key/value pair. The history store keeps its whole
// serialized collection in a single row.
type KVItem struct {
	Key       string `gorm:"primaryKey;column:item_key;size:191"`
	Value     string `gorm:"type:longtext;not null"`
	UpdatedAt time.Time
}

// TableName pins the table name independent of naming strategy.
func (KVItem) TableName() string {
	return "kv_items"
}
