package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"slumber/internal/slumbererr"
)

// migrationTableRow tracks which migrations have already run against a
// given database file.
type migrationTableRow struct {
	ID int `gorm:"column:id;primaryKey"`
}

func (migrationTableRow) TableName() string { return "schema_migrations" }

// Migration is one forward-only, ordered schema step. Hook, when set, runs
// user-facing logic inside the same transaction as the schema change — e.g.
// confirming destructive data removal when jumping across an incompatible
// schema version — mirroring M::up_with_hook in the original implementation.
type Migration struct {
	Name string
	SQL  string
	Hook func(ctx context.Context, tx *gorm.DB, confirm func(string) bool) error
}

// migrations is the full ordered list. Downgrades are not supported: there
// is no down-migration mechanism, matching the original implementation's
// comment that "there's no need for any down migrations here, because we
// have no mechanism for going backwards".
var migrations = []Migration{
	{
		Name: "001_create_collections",
		SQL: `CREATE TABLE IF NOT EXISTS collections (
			id   TEXT PRIMARY KEY NOT NULL,
			path BLOB NOT NULL UNIQUE,
			name TEXT
		)`,
	},
	{
		Name: "002_create_requests_v2",
		SQL: `CREATE TABLE IF NOT EXISTS requests_v2 (
			id                  TEXT PRIMARY KEY NOT NULL,
			collection_id       TEXT NOT NULL,
			profile_id          TEXT,
			recipe_id           TEXT NOT NULL,
			start_time          TEXT NOT NULL,
			end_time            TEXT NOT NULL,

			method              TEXT NOT NULL,
			url                 TEXT NOT NULL,
			request_headers     BLOB NOT NULL,
			request_body        BLOB,

			status_code         INTEGER NOT NULL,
			response_headers    BLOB NOT NULL,
			response_body       BLOB NOT NULL,
			http_version        TEXT NOT NULL DEFAULT 'HTTP/1.1',

			FOREIGN KEY(collection_id) REFERENCES collections(id)
		)`,
	},
	{
		Name: "003_create_ui_state_v2",
		SQL: `CREATE TABLE IF NOT EXISTS ui_state_v2 (
			collection_id   TEXT NOT NULL,
			key_type        TEXT NOT NULL,
			key             TEXT NOT NULL,
			value           TEXT NOT NULL,
			PRIMARY KEY (collection_id, key_type, key),
			FOREIGN KEY(collection_id) REFERENCES collections(id)
		)`,
	},
}

// runMigrations applies every not-yet-applied migration in order, each in
// its own transaction, recording success in schema_migrations.
func runMigrations(ctx context.Context, db *gorm.DB, confirm func(string) bool) error {
	if err := db.AutoMigrate(&migrationTableRow{}); err != nil {
		return fmt.Errorf("%w: preparing migration tracking table: %v", slumbererr.ErrMigration, err)
	}

	for i, m := range migrations {
		id := i + 1
		var existing migrationTableRow
		err := db.Where("id = ?", id).First(&existing).Error
		if err == nil {
			continue // already applied
		}
		if !isRecordNotFound(err) {
			return fmt.Errorf("%w: checking migration %s: %v", slumbererr.ErrMigration, m.Name, err)
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			if m.SQL != "" {
				if execErr := tx.Exec(m.SQL).Error; execErr != nil {
					return execErr
				}
			}
			if m.Hook != nil {
				if hookErr := m.Hook(ctx, tx, confirm); hookErr != nil {
					return hookErr
				}
			}
			return tx.Create(&migrationTableRow{ID: id}).Error
		})
		if err != nil {
			return fmt.Errorf("%w: applying migration %s: %v", slumbererr.ErrMigration, m.Name, err)
		}
	}
	return nil
}

func isRecordNotFound(err error) bool {
	return err == gorm.ErrRecordNotFound
}
