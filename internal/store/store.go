package store

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"slumber/internal/model"
	"slumber/internal/slumbererr"
	"slumber/internal/value"
)

// ProfileFilter selects which requests_v2 rows a query considers, matching
// spec.md §4.7's three-way profile filter.
type ProfileFilter struct {
	kind profileFilterKind
	id   model.ProfileId
}

type profileFilterKind int

const (
	profileFilterNone profileFilterKind = iota // profile_id IS NULL
	profileFilterSome                          // profile_id = <id>
	profileFilterAll                           // no constraint
)

// ProfileFilterNone matches only exchanges sent with no profile.
func ProfileFilterNone() ProfileFilter { return ProfileFilter{kind: profileFilterNone} }

// ProfileFilterSome matches only exchanges sent under the given profile.
func ProfileFilterSome(id model.ProfileId) ProfileFilter {
	return ProfileFilter{kind: profileFilterSome, id: id}
}

// ProfileFilterAll matches exchanges under any profile, including none.
func ProfileFilterAll() ProfileFilter { return ProfileFilter{kind: profileFilterAll} }

func (f ProfileFilter) apply(q *gorm.DB) *gorm.DB {
	switch f.kind {
	case profileFilterNone:
		return q.Where("profile_id IS NULL")
	case profileFilterSome:
		return q.Where("profile_id = ?", string(f.id))
	default:
		return q
	}
}

// Summary is a lightweight projection of a requests_v2 row, enough to
// populate a history list without loading full header/body blobs.
type Summary struct {
	ID         model.RequestId
	RecipeID   model.RecipeId
	ProfileID  *model.ProfileId
	Method     string
	URL        string
	StatusCode int
	StartTime  string
	EndTime    string
}

// Store is the handle described by spec.md §4.7: cheap to share, since every
// method takes its own mutex round-trip rather than holding a connection
// open across calls. One Store is opened per collection file.
type Store struct {
	mu           sync.Mutex
	db           *gorm.DB
	collectionID string
}

// Open opens (creating if absent) the SQLite database file at path, enables
// WAL, and runs migrations to latest. confirm is invoked by any migration
// hook that needs to confirm a destructive change with the user; a nil
// confirm always answers "no".
func Open(ctx context.Context, path string, collectionPath []byte, confirm func(string) bool) (*Store, error) {
	if confirm == nil {
		confirm = func(string) bool { return false }
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", slumbererr.ErrDatabase, path, err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		return nil, fmt.Errorf("%w: enabling WAL: %v", slumbererr.ErrDatabase, err)
	}

	if err := runMigrations(ctx, db, confirm); err != nil {
		return nil, err
	}

	s := &Store{db: db}
	id, err := s.ensureCollection(collectionPath)
	if err != nil {
		return nil, err
	}
	s.collectionID = id
	return s, nil
}

// ensureCollection looks up (or creates) the collections row for path,
// returning its id. path is the canonicalised absolute path, stored as a
// byte blob with a UNIQUE constraint (spec.md §4.7).
func (s *Store) ensureCollection(path []byte) (string, error) {
	var row CollectionRow
	err := s.db.Where("path = ?", path).First(&row).Error
	if err == nil {
		return row.ID, nil
	}
	if !isRecordNotFound(err) {
		return "", fmt.Errorf("%w: looking up collection: %v", slumbererr.ErrDatabase, err)
	}

	row = CollectionRow{ID: string(model.NewCollectionId()), Path: path}
	if err := s.db.Create(&row).Error; err != nil {
		return "", fmt.Errorf("%w: creating collection: %v", slumbererr.ErrDatabase, err)
	}
	return row.ID, nil
}

// InsertExchange persists a completed exchange. Any Stream on the response
// is collected into bytes first: the schema only has blob columns, so a
// lazily-streamed body must be fully materialised before it can be stored.
func (s *Store) InsertExchange(ctx context.Context, ex *model.Exchange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	body := ex.Response.Body
	if ex.Response.Stream != nil {
		collected, err := collectStream(ex.Response.Stream)
		if err != nil {
			return fmt.Errorf("%w: collecting response stream for persistence: %v", slumbererr.ErrDatabase, err)
		}
		body = collected
	}

	var profileID *string
	if ex.ProfileID != "" {
		p := string(ex.ProfileID)
		profileID = &p
	}

	row := RequestRow{
		ID:              string(ex.RequestID),
		CollectionID:    s.collectionID,
		ProfileID:       profileID,
		RecipeID:        string(ex.RecipeID),
		StartTime:       ex.StartTime,
		EndTime:         ex.EndTime,
		Method:          ex.Request.Method,
		URL:             ex.Request.URL,
		RequestHeaders:  encodeHeaders(ex.Request.Headers),
		RequestBody:     ex.Request.Body.Raw,
		StatusCode:      ex.Response.Status,
		ResponseHeaders: encodeHeaders(ex.Response.Headers),
		ResponseBody:    body,
		HTTPVersion:     ex.Response.HTTPVersion,
	}
	if row.HTTPVersion == "" {
		row.HTTPVersion = "HTTP/1.1"
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("%w: inserting exchange: %v", slumbererr.ErrDatabase, err)
	}
	return nil
}

// LatestExchange returns the most recent exchange for (collection,
// profile_id or null, recipe_id), ordered by start_time descending, or nil
// if there is none.
func (s *Store) LatestExchange(ctx context.Context, profile ProfileFilter, recipe model.RecipeId) (*model.Exchange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.db.WithContext(ctx).
		Where("collection_id = ? AND recipe_id = ?", s.collectionID, string(recipe))
	q = profile.apply(q)

	var row RequestRow
	err := q.Order("start_time DESC").First(&row).Error
	if isRecordNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: loading latest exchange: %v", slumbererr.ErrDatabase, err)
	}
	return rowToExchange(row)
}

// ListSummaries lists exchange summaries for (collection, profile filter,
// recipe), most recent first.
func (s *Store) ListSummaries(ctx context.Context, profile ProfileFilter, recipe model.RecipeId) ([]Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.db.WithContext(ctx).
		Model(&RequestRow{}).
		Where("collection_id = ? AND recipe_id = ?", s.collectionID, string(recipe))
	q = profile.apply(q)

	var rows []RequestRow
	if err := q.Order("start_time DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: listing exchange summaries: %v", slumbererr.ErrDatabase, err)
	}

	out := make([]Summary, 0, len(rows))
	for _, r := range rows {
		sum := Summary{
			ID:         model.RequestId(r.ID),
			RecipeID:   model.RecipeId(r.RecipeID),
			Method:     r.Method,
			URL:        r.URL,
			StatusCode: r.StatusCode,
			StartTime:  r.StartTime.Format(timeLayout),
			EndTime:    r.EndTime.Format(timeLayout),
		}
		if r.ProfileID != nil {
			p := model.ProfileId(*r.ProfileID)
			sum.ProfileID = &p
		}
		out = append(out, sum)
	}
	return out, nil
}

// DeleteExchange removes a single exchange by id.
func (s *Store) DeleteExchange(ctx context.Context, id model.RequestId) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.WithContext(ctx).
		Where("collection_id = ? AND id = ?", s.collectionID, string(id)).
		Delete(&RequestRow{}).Error
	if err != nil {
		return fmt.Errorf("%w: deleting exchange: %v", slumbererr.ErrDatabase, err)
	}
	return nil
}

// DeleteExchangesForRecipe removes every exchange for a recipe matching the
// given profile filter.
func (s *Store) DeleteExchangesForRecipe(ctx context.Context, profile ProfileFilter, recipe model.RecipeId) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.db.WithContext(ctx).
		Where("collection_id = ? AND recipe_id = ?", s.collectionID, string(recipe))
	q = profile.apply(q)
	if err := q.Delete(&RequestRow{}).Error; err != nil {
		return fmt.Errorf("%w: deleting exchanges for recipe: %v", slumbererr.ErrDatabase, err)
	}
	return nil
}

// GetUIState reads a ui_state_v2 value keyed by (collection, keyType, key).
func (s *Store) GetUIState(ctx context.Context, keyType, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var row UIStateRow
	err := s.db.WithContext(ctx).
		Where("collection_id = ? AND key_type = ? AND key = ?", s.collectionID, keyType, key).
		First(&row).Error
	if isRecordNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: reading ui state: %v", slumbererr.ErrDatabase, err)
	}
	return row.Value, true, nil
}

// SetUIState upserts a ui_state_v2 value keyed by (collection, keyType, key).
func (s *Store) SetUIState(ctx context.Context, keyType, key, val string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := UIStateRow{CollectionID: s.collectionID, KeyType: keyType, Key: key, Value: val}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "collection_id"}, {Name: "key_type"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("%w: writing ui state: %v", slumbererr.ErrDatabase, err)
	}
	return nil
}

// DeleteUIState removes a ui_state_v2 row keyed by (collection, keyType, key).
func (s *Store) DeleteUIState(ctx context.Context, keyType, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.WithContext(ctx).
		Where("collection_id = ? AND key_type = ? AND key = ?", s.collectionID, keyType, key).
		Delete(&UIStateRow{}).Error
	if err != nil {
		return fmt.Errorf("%w: deleting ui state: %v", slumbererr.ErrDatabase, err)
	}
	return nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func rowToExchange(r RequestRow) (*model.Exchange, error) {
	reqHeaders, err := decodeHeaders(r.RequestHeaders)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding request headers: %v", slumbererr.ErrDatabase, err)
	}
	respHeaders, err := decodeHeaders(r.ResponseHeaders)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding response headers: %v", slumbererr.ErrDatabase, err)
	}

	ex := &model.Exchange{
		RequestID: model.RequestId(r.ID),
		RecipeID:  model.RecipeId(r.RecipeID),
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		Request: model.Request{
			ID:      model.RequestId(r.ID),
			Method:  r.Method,
			URL:     r.URL,
			Headers: reqHeaders,
			Body:    model.RenderedBody{Kind: model.BodyRaw, Raw: r.RequestBody},
		},
		Response: model.Response{
			Status:      r.StatusCode,
			Headers:     respHeaders,
			Body:        r.ResponseBody,
			HTTPVersion: r.HTTPVersion,
		},
	}
	if r.ProfileID != nil {
		ex.ProfileID = model.ProfileId(*r.ProfileID)
	}
	return ex, nil
}

func collectStream(s *value.Stream) ([]byte, error) {
	rc, err := s.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// encodeHeaders serialises a HeaderMap as newline-delimited "name:value"
// lines (spec.md §4.7). This round-trips because HTTP disallows ':' in
// header names and '\n' in header values.
func encodeHeaders(h model.HeaderMap) []byte {
	var b strings.Builder
	for _, e := range h.Entries {
		b.WriteString(e.Name)
		b.WriteByte(':')
		b.WriteString(e.Value)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

func decodeHeaders(blob []byte) (model.HeaderMap, error) {
	var h model.HeaderMap
	if len(blob) == 0 {
		return h, nil
	}
	lines := strings.Split(strings.TrimSuffix(string(blob), "\n"), "\n")
	for _, line := range lines {
		if line == "" {
			continue
		}
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			return h, fmt.Errorf("malformed header line %q", line)
		}
		h.Add(line[:idx], line[idx+1:])
	}
	return h, nil
}
