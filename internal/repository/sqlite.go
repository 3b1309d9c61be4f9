package repository

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strings"
	"sync"

	"randechat/internal/utils"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS places (
	id            TEXT PRIMARY KEY,
	name          TEXT,
	categories    TEXT NOT NULL DEFAULT '[]',
	district      TEXT,
	municipality  TEXT,
	micro_region  TEXT,
	street        TEXT,
	longitude     REAL,
	latitude      REAL,
	description   TEXT,
	accessibility TEXT,
	website       TEXT,
	source        TEXT,
	museum_type   TEXT,
	museum_focus  TEXT
);
CREATE INDEX IF NOT EXISTS idx_places_name ON places(name);
CREATE INDEX IF NOT EXISTS idx_places_district ON places(district);
CREATE INDEX IF NOT EXISTS idx_places_municipality ON places(municipality);

CREATE TABLE IF NOT EXISTS search_logs (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id       TEXT,
	intent           TEXT,
	branch           TEXT,
	filter           TEXT,
	result_count     INTEGER,
	place_ids        TEXT,
	response_time_ms INTEGER,
	created_at       TIMESTAMP
);
`

var registerSQLiteFuncs sync.Once

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// SQLiteRepository is the embedded places store backed by pure-Go SQLite
type SQLiteRepository struct {
	sqlStore
}

// NewSQLiteRepository opens (and creates if needed) a SQLite places database.
// Use ":memory:" for a throwaway in-process store.
func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	registerSQLiteFuncs.Do(registerSQLiteFunctions)

	dsn := path
	if !strings.Contains(dsn, "_pragma=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// A memory database exists per connection, and SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)

	repo := &SQLiteRepository{sqlStore{db: db, dialect: DialectSQLite}}
	if err := repo.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// Migrate creates the schema if it does not exist
func (r *SQLiteRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("failed to migrate sqlite schema: %w", err)
	}
	return nil
}

func registerSQLiteFunctions() {
	_ = sqlite.RegisterDeterministicScalarFunction("geo_distance_km", 4, sqliteGeoDistance)
	_ = sqlite.RegisterDeterministicScalarFunction("ci_contains", 2, sqliteContainsFold)
	_ = sqlite.RegisterDeterministicScalarFunction("text_match", 2, sqliteTextMatch)
}

// geo_distance_km(lat1, lon1, lat2, lon2) returns NULL when any coordinate is NULL
func sqliteGeoDistance(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	coords := make([]float64, len(args))
	for i, a := range args {
		v, ok := toFloat(a)
		if !ok {
			return nil, nil
		}
		coords[i] = v
	}
	return haversineKm(coords[0], coords[1], coords[2], coords[3]), nil
}

// ci_contains(haystack, needle) is a Unicode aware case-insensitive substring test
func sqliteContainsFold(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	haystack, ok1 := toText(args[0])
	needle, ok2 := toText(args[1])
	if !ok1 || !ok2 {
		return int64(0), nil
	}
	return boolInt(utils.ContainsFold(haystack, needle)), nil
}

// text_match(document, query) is true when any query word of two or more
// letters occurs in the document, ignoring case.
func sqliteTextMatch(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	doc, ok1 := toText(args[0])
	query, ok2 := toText(args[1])
	if !ok1 || !ok2 {
		return int64(0), nil
	}
	doc = strings.ToLower(doc)
	for _, word := range strings.Fields(strings.ToLower(query)) {
		if len([]rune(word)) >= 2 && strings.Contains(doc, word) {
			return int64(1), nil
		}
	}
	return int64(0), nil
}

func toFloat(v driver.Value) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}

func toText(v driver.Value) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case []byte:
		return string(x), true
	default:
		return "", false
	}
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
