package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"randechat/internal/intent"
	"randechat/internal/model"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when a place id does not exist
var ErrNotFound = errors.New("place not found")

// SearchLog is one executed search recorded for analytics
type SearchLog struct {
	SessionID      string
	Intent         model.SearchIntent
	Branch         string
	Filter         string
	ResultCount    int
	PlaceIDs       []string
	ResponseTimeMs int
}

// sqlStore holds the dialect-independent query code shared by both backends
type sqlStore struct {
	db      *sqlx.DB
	dialect Dialect
}

// Close closes the database connection
func (s *sqlStore) Close() error {
	return s.db.Close()
}

// Dialect reports the SQL dialect of the store
func (s *sqlStore) Dialect() Dialect {
	return s.dialect
}

// Find runs a compiled query and returns at most q.Limit places
func (s *sqlStore) Find(ctx context.Context, q intent.Query) ([]model.Place, error) {
	query, args, err := buildSelect(s.dialect, q)
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	places := []model.Place{}
	if err := s.db.SelectContext(ctx, &places, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch places: %w", err)
	}
	return places, nil
}

// GetByID retrieves a single place by its id
func (s *sqlStore) GetByID(ctx context.Context, id string) (*model.Place, error) {
	var place model.Place
	query := s.db.Rebind("SELECT " + placeColumns + " FROM places WHERE id = ?")
	if err := s.db.GetContext(ctx, &place, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get place: %w", err)
	}
	return &place, nil
}

// Count returns the total number of places
func (s *sqlStore) Count(ctx context.Context) (int, error) {
	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM places"); err != nil {
		return 0, fmt.Errorf("failed to count places: %w", err)
	}
	return total, nil
}

// Ping checks the database connection
func (s *sqlStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InsertPlaces upserts places in a single transaction
func (s *sqlStore) InsertPlaces(ctx context.Context, places []model.Place) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamedContext(ctx, s.upsertPlaceSQL())
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i := range places {
		if _, err := stmt.ExecContext(ctx, &places[i]); err != nil {
			return 0, fmt.Errorf("place %s: %w", places[i].ID, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return inserted, nil
}

func (s *sqlStore) upsertPlaceSQL() string {
	categories := ":categories"
	if s.dialect == DialectPostgres {
		categories = "CAST(:categories AS jsonb)"
	}
	return `INSERT INTO places (id, name, categories, district, municipality, micro_region, street,
		longitude, latitude, description, accessibility, website, source, museum_type, museum_focus)
	VALUES (:id, :name, ` + categories + `, :district, :municipality, :micro_region, :street,
		:longitude, :latitude, :description, :accessibility, :website, :source, :museum_type, :museum_focus)
	ON CONFLICT (id) DO UPDATE SET
		name = excluded.name, categories = excluded.categories, district = excluded.district,
		municipality = excluded.municipality, micro_region = excluded.micro_region, street = excluded.street,
		longitude = excluded.longitude, latitude = excluded.latitude, description = excluded.description,
		accessibility = excluded.accessibility, website = excluded.website, source = excluded.source,
		museum_type = excluded.museum_type, museum_focus = excluded.museum_focus`
}

// LogSearch records an executed search
func (s *sqlStore) LogSearch(ctx context.Context, entry SearchLog) error {
	intentJSON, err := jsonString(entry.Intent)
	if err != nil {
		return fmt.Errorf("failed to encode intent: %w", err)
	}
	ids, err := model.JSONArray(entry.PlaceIDs).Value()
	if err != nil {
		return fmt.Errorf("failed to encode place ids: %w", err)
	}

	query := s.db.Rebind(`
		INSERT INTO search_logs (session_id, intent, branch, filter, result_count, place_ids, response_time_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err = s.db.ExecContext(ctx, query,
		entry.SessionID, intentJSON, entry.Branch, entry.Filter,
		entry.ResultCount, ids, entry.ResponseTimeMs, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to log search: %w", err)
	}
	return nil
}

func jsonString(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
