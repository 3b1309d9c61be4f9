package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"randechat/internal/intent"
	"randechat/internal/model"
	"randechat/internal/repository"
)

// Store is the read side of the places database
type Store interface {
	Find(ctx context.Context, q intent.Query) ([]model.Place, error)
	GetByID(ctx context.Context, id string) (*model.Place, error)
	Count(ctx context.Context) (int, error)
}

// SearchLogger records executed searches. Stores may optionally implement it.
type SearchLogger interface {
	LogSearch(ctx context.Context, entry repository.SearchLog) error
}

// SearchService compiles intents, runs them against the store with the
// category fallback and shapes the results for the model
type SearchService struct {
	store     Store
	compiler  *intent.Compiler
	timeout   time.Duration
	logger    *zap.Logger
	searchLog SearchLogger

	wg sync.WaitGroup
}

// SearchOption configures a SearchService
type SearchOption func(*SearchService)

// WithStoreTimeout bounds each store query
func WithStoreTimeout(d time.Duration) SearchOption {
	return func(s *SearchService) { s.timeout = d }
}

// WithLogger sets the service logger
func WithLogger(l *zap.Logger) SearchOption {
	return func(s *SearchService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSearchLog records every search through l
func WithSearchLog(l SearchLogger) SearchOption {
	return func(s *SearchService) { s.searchLog = l }
}

// NewSearchService creates a new search service
func NewSearchService(store Store, compiler *intent.Compiler, opts ...SearchOption) *SearchService {
	s := &SearchService{
		store:    store,
		compiler: compiler,
		timeout:  10 * time.Second,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search executes an intent and returns the tool response. Store failures
// are returned as errors, never folded into the response.
func (s *SearchService) Search(ctx context.Context, sessionID string, in model.SearchIntent) (*model.ToolResponse, error) {
	startTime := time.Now()

	q := s.compiler.Compile(in)
	places, err := s.find(ctx, q)
	if err != nil {
		return nil, err
	}

	used := q
	if intent.NeedsFallback(q, len(places)) {
		if wide, ok := s.compiler.Widen(in); ok {
			widened, err := s.find(ctx, wide)
			if err != nil {
				return nil, err
			}
			s.logger.Debug("category fallback",
				zap.String("session_id", sessionID),
				zap.Int("primary", len(places)),
				zap.Int("widened", len(widened)))
			if len(widened) > len(places) {
				places, used = widened, wide
			}
		}
	}

	results := FormatPlaces(places)
	took := time.Since(startTime)

	s.logger.Info("search executed",
		zap.String("session_id", sessionID),
		zap.String("branch", string(used.Branch)),
		zap.String("filter", used.Description()),
		zap.Int("count", len(results)),
		zap.Duration("latency", took))

	s.recordSearch(sessionID, in, used, results, took)

	return &model.ToolResponse{
		Success:           true,
		Count:             len(results),
		FilterDescription: used.Description(),
		Places:            results,
	}, nil
}

// GetPlace retrieves a single formatted place by id
func (s *SearchService) GetPlace(ctx context.Context, id string) (*model.PlaceResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r := FormatPlace(*p)
	return &r, nil
}

// Count returns the number of stored places
func (s *SearchService) Count(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.Count(ctx)
}

// Wait blocks until pending search log writes finish
func (s *SearchService) Wait() {
	s.wg.Wait()
}

func (s *SearchService) find(ctx context.Context, q intent.Query) ([]model.Place, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	places, err := s.store.Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%s query failed: %w", q.Branch, err)
	}
	return places, nil
}

// recordSearch writes the search log in the background
func (s *SearchService) recordSearch(sessionID string, in model.SearchIntent, q intent.Query, results []model.PlaceResult, took time.Duration) {
	if s.searchLog == nil {
		return
	}

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	entry := repository.SearchLog{
		SessionID:      sessionID,
		Intent:         in,
		Branch:         string(q.Branch),
		Filter:         q.Description(),
		ResultCount:    len(results),
		PlaceIDs:       ids,
		ResponseTimeMs: int(took.Milliseconds()),
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.searchLog.LogSearch(ctx, entry); err != nil {
			s.logger.Warn("failed to log search", zap.Error(err))
		}
	}()
}
