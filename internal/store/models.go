// Package store implements the SQLite exchange repository of spec.md §4.7:
// one database file per collection (keyed by canonicalised path), storing
// requests_v2/ui_state_v2 rows behind gorm, with a forward-only migration
// runner grounded on the original implementation's M::up/M::up_with_hook
// list (crates/core/src/database/migrations.rs), and gorm+sqlite wiring
// grounded on the pack's own persistence/sqlite package.
package store

import "time"

// CollectionRow is the `collections` table (spec.md §4.7).
type CollectionRow struct {
	ID   string `gorm:"column:id;primaryKey"`
	Path []byte `gorm:"column:path;unique"`
	Name *string `gorm:"column:name"`
}

func (CollectionRow) TableName() string { return "collections" }

// RequestRow is the `requests_v2` table (spec.md §4.7).
type RequestRow struct {
	ID           string  `gorm:"column:id;primaryKey"`
	CollectionID string  `gorm:"column:collection_id;index"`
	ProfileID    *string `gorm:"column:profile_id"`
	RecipeID     string  `gorm:"column:recipe_id;index"`
	StartTime    time.Time `gorm:"column:start_time"`
	EndTime      time.Time `gorm:"column:end_time"`

	Method          string `gorm:"column:method"`
	URL             string `gorm:"column:url"`
	RequestHeaders  []byte `gorm:"column:request_headers"`
	RequestBody     []byte `gorm:"column:request_body"`

	StatusCode      int    `gorm:"column:status_code"`
	ResponseHeaders []byte `gorm:"column:response_headers"`
	ResponseBody    []byte `gorm:"column:response_body"`
	HTTPVersion     string `gorm:"column:http_version;default:HTTP/1.1"`
}

func (RequestRow) TableName() string { return "requests_v2" }

// UIStateRow is the `ui_state_v2` table (spec.md §4.7), keyed by a composite
// primary key of (collection_id, key_type, key).
type UIStateRow struct {
	CollectionID string `gorm:"column:collection_id;primaryKey"`
	KeyType      string `gorm:"column:key_type;primaryKey"`
	Key          string `gorm:"column:key;primaryKey"`
	Value        string `gorm:"column:value"`
}

func (UIStateRow) TableName() string { return "ui_state_v2" }
