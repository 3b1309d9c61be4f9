package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"randechat/internal/catalog"
	"randechat/internal/chat"
	"randechat/internal/intent"
	"randechat/internal/llm"
	"randechat/internal/middleware"
	"randechat/internal/model"
	"randechat/internal/repository"
	"randechat/internal/service"
	"randechat/internal/tools"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// queuedModel replays responses in order across every conversation
type queuedModel struct {
	mu      sync.Mutex
	replies []*llm.Response
}

func (m *queuedModel) Name() string { return "queued" }

func (m *queuedModel) NewConversation(string, []llm.Tool) llm.Conversation { return &queuedConv{m: m} }

type queuedConv struct {
	m    *queuedModel
	sent int
}

func (c *queuedConv) Send(ctx context.Context, msg llm.Message) (*llm.Response, error) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if len(c.m.replies) == 0 {
		return &llm.Response{Parts: []llm.Part{{Text: "Nevím."}}}, nil
	}
	r := c.m.replies[0]
	c.m.replies = c.m.replies[1:]
	c.sent++
	return r, nil
}

func (c *queuedConv) Mark() int { return c.sent }
func (c *queuedConv) Rewind(mark int) { c.sent = mark }

func str(s string) *string { return &s }

type testServer struct {
	router *gin.Engine
	chat   *ChatHandler
}

func newTestServer(t *testing.T, replies []*llm.Response, limiter *middleware.KeyedRateLimiter, withChat bool) *testServer {
	t.Helper()

	repo, err := repository.NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	_, err = repo.InsertPlaces(context.Background(), []model.Place{
		{ID: "hk-1", Name: str("Hrad Kost"), Categories: model.JSONArray{"hrad"}, District: str("Jičín")},
		{ID: "hk-2", Name: str("Hrad Pecka"), Categories: model.JSONArray{"hrad"}, District: str("Jičín")},
		{ID: "hk-3", Name: str("Hrad Trosky"), Categories: model.JSONArray{"hrad"}, District: str("Semily")},
		{ID: "hk-4", Name: str("Pivovar Náchod"), Categories: model.JSONArray{"pivovar"}, District: str("Náchod")},
	})
	require.NoError(t, err)

	svc := service.NewSearchService(repo, intent.NewCompiler(catalog.Default()))
	registry := tools.NewRegistry(svc)

	var manager *chat.Manager
	if withChat {
		manager = chat.NewManager(&queuedModel{replies: replies}, registry)
	}
	chatHandler := NewChatHandler(manager, limiter)
	searchHandler := NewSearchHandler(svc, registry)
	healthHandler := NewHealthHandler(svc, chatHandler, BuildInfo{Version: "test"}, "queued")

	r := gin.New()
	r.GET("/health", healthHandler.Health)
	r.GET("/version", healthHandler.Version)
	api := r.Group("/api/v1")
	api.POST("/chat/message", chatHandler.Message)
	api.POST("/chat/stream", chatHandler.Stream)
	api.GET("/chat/history", chatHandler.History)
	api.POST("/chat/reset", chatHandler.Reset)
	api.POST("/search", searchHandler.Search)
	api.GET("/places/:id", searchHandler.GetPlace)
	api.POST("/places/batch", NewPlaceHandler(repo).BatchUpsert)

	return &testServer{router: r, chat: chatHandler}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func searchHrady() *llm.Response {
	return &llm.Response{Parts: []llm.Part{{Call: &llm.FunctionCall{
		ID:   "c1",
		Name: "search_places",
		Args: map[string]any{"query_type": "category", "category": "hrady"},
	}}}}
}

func text(s string) *llm.Response {
	return &llm.Response{Parts: []llm.Part{{Text: s}}}
}

func TestChatMessage(t *testing.T) {
	s := newTestServer(t, []*llm.Response{searchHrady(), text("Tři hrady pro vás.")}, nil, true)

	rec := s.do(http.MethodPost, "/api/v1/chat/message", `{"session_id":"abc","message":"najdi hrady"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var res model.TurnResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "Tři hrady pro vás.", res.Response)
	assert.Len(t, res.Locations, 3)
	assert.Equal(t, "Hrad Kost", res.Locations[0].Name)
	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, "search_places", res.ToolCalls[0].Function)
	assert.Empty(t, res.Error)

	rec = s.do(http.MethodGet, "/api/v1/chat/history?session_id=abc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap model.SessionSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Len(t, snap.History, 2)
	assert.Len(t, snap.LastLocations, 3)
}

func TestChatMessage_DefaultSession(t *testing.T) {
	s := newTestServer(t, []*llm.Response{text("Ahoj!")}, nil, true)

	rec := s.do(http.MethodPost, "/api/v1/chat/message", `{"message":"ahoj"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/chat/history", "")
	var snap model.SessionSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.History, 2)
	assert.Equal(t, "Ahoj!", snap.History[1].Content)
}

func TestChatMessage_BadRequest(t *testing.T) {
	s := newTestServer(t, nil, nil, true)

	rec := s.do(http.MethodPost, "/api/v1/chat/message", `{"session_id":"abc"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
}

func TestChatMessage_RateLimited(t *testing.T) {
	s := newTestServer(t, nil, middleware.NewKeyedRateLimiter(1, 1), true)

	first := s.do(http.MethodPost, "/api/v1/chat/message", `{"session_id":"a","message":"ahoj"}`)
	second := s.do(http.MethodPost, "/api/v1/chat/message", `{"session_id":"a","message":"ahoj"}`)
	other := s.do(http.MethodPost, "/api/v1/chat/message", `{"session_id":"b","message":"ahoj"}`)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, http.StatusOK, other.Code)
}

func TestChatDisabled(t *testing.T) {
	s := newTestServer(t, nil, nil, false)

	rec := s.do(http.MethodPost, "/api/v1/chat/message", `{"message":"ahoj"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = s.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"active_sessions":0`)
}

func TestChatStream(t *testing.T) {
	s := newTestServer(t, []*llm.Response{searchHrady(), text("Hotovo.")}, nil, true)

	rec := s.do(http.MethodPost, "/api/v1/chat/stream", `{"session_id":"s","message":"najdi hrady"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/event-stream")

	var events []string
	data := map[string]string{}
	sc := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	var current string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current = strings.TrimPrefix(line, "event: ")
			events = append(events, current)
		case strings.HasPrefix(line, "data: "):
			data[current] = strings.TrimPrefix(line, "data: ")
		}
	}

	assert.Equal(t, []string{"start", "tool_call", "tool_result", "response", "done"}, events)
	assert.Contains(t, data["tool_result"], `"count":3`)
	assert.Contains(t, data["tool_result"], `categories in [hrad]`)
	assert.Contains(t, data["response"], `"response":"Hotovo."`)
}

func TestChatReset(t *testing.T) {
	s := newTestServer(t, []*llm.Response{text("Ahoj!")}, nil, true)

	s.do(http.MethodPost, "/api/v1/chat/message", `{"session_id":"r","message":"ahoj"}`)
	require.Equal(t, 1, s.chat.Sessions())

	rec := s.do(http.MethodPost, "/api/v1/chat/reset", `{"session_id":"r"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)
	assert.Equal(t, 0, s.chat.Sessions())

	rec = s.do(http.MethodPost, "/api/v1/chat/reset", "")
	assert.Equal(t, http.StatusOK, rec.Code, "reset is idempotent and accepts an empty body")
}

func TestSearch(t *testing.T) {
	s := newTestServer(t, nil, nil, true)

	rec := s.do(http.MethodPost, "/api/v1/search", `{"query_type":"category","category":"pivovary"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var res model.ToolResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, "Pivovar Náchod", res.Places[0].Name)

	rec = s.do(http.MethodPost, "/api/v1/search", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPlace(t *testing.T) {
	s := newTestServer(t, nil, nil, true)

	rec := s.do(http.MethodGet, "/api/v1/places/hk-2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var place model.PlaceResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &place))
	assert.Equal(t, "Hrad Pecka", place.Name)
	assert.Equal(t, "Jičín", place.District)
	assert.Equal(t, model.WebsiteNotAvailable, place.Website)

	rec = s.do(http.MethodGet, "/api/v1/places/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndVersion(t *testing.T) {
	s := newTestServer(t, nil, nil, true)

	rec := s.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(4), body["places"])
	assert.Equal(t, true, body["chat_enabled"])

	rec = s.do(http.MethodGet, "/version", "")
	assert.Contains(t, rec.Body.String(), `"version":"test"`)
}

func TestPlaceBatchUpsert(t *testing.T) {
	s := newTestServer(t, nil, nil, true)

	rec := s.do(http.MethodPost, "/api/v1/places/batch", `{"places":[
		{"id":"hk-9","name":"Rozhledna Žaltman","categories":["rozhledna"],"district":"Trutnov"},
		{"name":"Bez identifikátoru"}
	]}`)
	require.Equal(t, http.StatusPartialContent, rec.Code)
	var res model.PlaceBatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Success)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, []string{"place at index 1 has no id"}, res.Errors)

	rec = s.do(http.MethodGet, "/api/v1/places/hk-9", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Rozhledna Žaltman")

	rec = s.do(http.MethodPost, "/api/v1/places/batch", `{"places":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
