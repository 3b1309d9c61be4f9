package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"randechat/internal/intent"
	"randechat/internal/llm"
	"randechat/internal/model"
)

func TestManager_CategoryAliasSearch(t *testing.T) {
	store := &recordingStore{byTag: map[string][]model.Place{"hrad": namedPlaces("hrad", 3)}}
	fm := &fakeModel{respond: script(
		callReply(searchCall("c1", map[string]any{"query_type": "category", "category": "hrady"})),
		textReply("Našla jsem tři hrady."),
	)}
	m := newTestManager(t, fm, store)

	res := m.Send(context.Background(), "s1", "najdi hrady")

	require.Empty(t, res.Error)
	assert.Equal(t, "Našla jsem tři hrady.", res.Response)
	assert.Len(t, res.Locations, 3)
	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, "search_places", res.ToolCalls[0].Function)
	assert.Equal(t, "hrady", res.ToolCalls[0].Arguments["category"])

	queries := store.seen()
	require.Len(t, queries, 1)
	assert.Empty(t, cmp.Diff(intent.In(intent.FieldCategories, "hrad"), queries[0].Filter))
	assert.Equal(t, 5, queries[0].Limit)
}

func TestManager_CategoryWithRegion(t *testing.T) {
	store := &recordingStore{byTag: map[string][]model.Place{"pivovar": namedPlaces("pivovar", 4)}}
	fm := &fakeModel{respond: script(
		callReply(searchCall("c1", map[string]any{"query_type": "category", "category": "pivovary", "region": "Hradec"})),
		textReply("Tady jsou pivovary."),
	)}
	m := newTestManager(t, fm, store)

	res := m.Send(context.Background(), "s1", "ukaž mi pivovary v Hradci")
	require.Empty(t, res.Error)

	want := intent.And(
		intent.In(intent.FieldCategories, "pivovar"),
		intent.Or(
			intent.Contains(intent.FieldDistrict, "Hradec"),
			intent.Contains(intent.FieldMunicipality, "Hradec"),
			intent.Contains(intent.FieldMicroRegion, "Hradec"),
		),
	)
	queries := store.seen()
	require.Len(t, queries, 1)
	assert.Empty(t, cmp.Diff(want, queries[0].Filter))
}

func TestManager_TwoCallsOneFollowUp(t *testing.T) {
	store := &recordingStore{byTag: map[string][]model.Place{
		"hrad":    namedPlaces("hrad", 3),
		"pivovar": namedPlaces("pivovar", 3),
	}}
	fm := &fakeModel{respond: script(
		callReply(
			searchCall("a", map[string]any{"query_type": "category", "category": "hrady"}),
			searchCall("b", map[string]any{"query_type": "category", "category": "pivovary"}),
		),
		textReply("Hrady i pivovary."),
	)}
	m := newTestManager(t, fm, store)

	var events []EventKind
	res := m.SendWithEvents(context.Background(), "s1", "hrady a pivovary", func(e Event) {
		events = append(events, e.Kind)
	})
	require.Empty(t, res.Error)

	sent := fm.conv(0).messages()
	require.Len(t, sent, 2, "one user message and one batched follow-up")
	assert.Equal(t, "hrady a pivovary", sent[0].Text)

	results := sent[1].Results
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "b", results[1].ID)
	assert.Equal(t, true, results[0].Response["success"])
	assert.Equal(t, `categories in [pivovar]`, results[1].Response["matched_filter_description"])

	assert.Len(t, store.seen(), 2)
	assert.Len(t, res.ToolCalls, 2)
	require.Len(t, res.Locations, 6)
	assert.Equal(t, "hrad-1", res.Locations[0].ID)
	assert.Equal(t, "pivovar-1", res.Locations[3].ID)
	assert.Equal(t, []EventKind{EventToolCall, EventToolCall, EventToolResult, EventToolResult}, events)
}

func TestManager_UnknownFunction(t *testing.T) {
	fm := &fakeModel{respond: script(
		callReply(llm.FunctionCall{ID: "x", Name: "book_table", Args: map[string]any{"when": "dnes"}}),
		textReply("To bohužel neumím."),
	)}
	m := newTestManager(t, fm, &recordingStore{})

	res := m.Send(context.Background(), "s1", "zarezervuj stůl")

	require.Empty(t, res.Error)
	assert.Equal(t, "To bohužel neumím.", res.Response)
	assert.Empty(t, res.Locations)

	sent := fm.conv(0).messages()
	require.Len(t, sent, 2)
	require.Len(t, sent[1].Results, 1)
	fr := sent[1].Results[0]
	assert.Equal(t, "book_table", fr.Name)
	assert.Equal(t, false, fr.Response["success"])
	assert.Equal(t, "unknown function: book_table", fr.Response["error"])
}

func TestManager_LeakedToolSyntax(t *testing.T) {
	fm := &fakeModel{respond: script(
		textReply("print(default_api.search_places(query_type='category', category='hrady'))"),
	)}
	m := newTestManager(t, fm, &recordingStore{})

	res := m.Send(context.Background(), "s1", "najdi hrady")

	require.Empty(t, res.Error)
	assert.Equal(t, ApologyLeak, res.Response)
	snap := m.History("s1")
	require.Len(t, snap.History, 2)
	assert.Equal(t, ApologyLeak, snap.History[1].Content)
}

func TestManager_EmptyReply(t *testing.T) {
	fm := &fakeModel{respond: script(textReply("   "))}
	m := newTestManager(t, fm, &recordingStore{})

	res := m.Send(context.Background(), "s1", "ahoj")
	assert.Equal(t, ApologyEmpty, res.Response)
}

func TestManager_DegradedTurnKeepsSessionUsable(t *testing.T) {
	fm := &fakeModel{respond: script(
		callReply(searchCall("c1", map[string]any{"query_type": "category", "category": "hrady"})),
		errors.New("upstream 503"),
		textReply("Už to funguje."),
	)}
	m := newTestManager(t, fm, &recordingStore{})

	res := m.Send(context.Background(), "s1", "najdi hrady")

	assert.Equal(t, ApologyError, res.Response)
	assert.Contains(t, res.Error, "upstream 503")
	assert.NotNil(t, res.Locations)
	assert.Empty(t, res.Locations)
	assert.NotNil(t, res.ToolCalls)
	assert.Empty(t, res.ToolCalls)

	snap := m.History("s1")
	require.Len(t, snap.History, 2)
	assert.Equal(t, model.RoleUser, snap.History[0].Role)
	assert.True(t, snap.History[1].Error)
	assert.Equal(t, ApologyError, snap.History[1].Content)
	assert.Empty(t, fm.conv(0).messages(), "failed turn is rewound")

	res = m.Send(context.Background(), "s1", "zkus to znovu")
	require.Empty(t, res.Error)
	assert.Equal(t, "Už to funguje.", res.Response)
	assert.Len(t, m.History("s1").History, 4)
	assert.Len(t, fm.conv(0).messages(), 1)
}

func TestManager_StoreFailureDegrades(t *testing.T) {
	fm := &fakeModel{respond: script(
		callReply(searchCall("c1", map[string]any{"query_type": "all"})),
	)}
	m := newTestManager(t, fm, &recordingStore{err: errors.New("connection refused")})

	res := m.Send(context.Background(), "s1", "co tu je")

	assert.Equal(t, ApologyError, res.Response)
	assert.Contains(t, res.Error, "connection refused")
}

func TestManager_LastLocationsOverwrittenOnlyWhenFound(t *testing.T) {
	store := &recordingStore{byTag: map[string][]model.Place{
		"hrad":    namedPlaces("hrad", 3),
		"pivovar": namedPlaces("pivovar", 3),
	}}
	fm := &fakeModel{respond: script(
		callReply(searchCall("1", map[string]any{"query_type": "category", "category": "hrady"})),
		textReply("hrady"),
		callReply(searchCall("2", map[string]any{"query_type": "category", "category": "pivovary"})),
		textReply("pivovary"),
		textReply("díky"),
	)}
	m := newTestManager(t, fm, store)
	ctx := context.Background()

	m.Send(ctx, "s1", "hrady")
	m.Send(ctx, "s1", "pivovary")
	assert.Equal(t, "pivovar-1", m.History("s1").LastLocations[0].ID)

	m.Send(ctx, "s1", "díky")
	snap := m.History("s1")
	require.Len(t, snap.LastLocations, 3)
	assert.Equal(t, "pivovar-1", snap.LastLocations[0].ID)
	assert.Len(t, snap.History, 6)
}

func TestManager_HistoryIsACopy(t *testing.T) {
	store := &recordingStore{byTag: map[string][]model.Place{"hrad": namedPlaces("hrad", 3)}}
	fm := &fakeModel{respond: script(
		callReply(searchCall("1", map[string]any{"query_type": "category", "category": "hrady"})),
		textReply("hrady"),
	)}
	m := newTestManager(t, fm, store)

	res := m.Send(context.Background(), "s1", "hrady")
	res.Locations[0].Name = "přepsáno"

	snap := m.History("s1")
	snap.History[1].Locations[0].Name = "taky přepsáno"
	snap.LastLocations[0].Name = "i tohle"

	again := m.History("s1")
	assert.Equal(t, "hrad 1", again.History[1].Locations[0].Name)
	assert.Equal(t, "hrad 1", again.LastLocations[0].Name)
}

func TestManager_HistoryAndReset(t *testing.T) {
	fm := &fakeModel{respond: script(textReply("ahoj"))}
	m := newTestManager(t, fm, &recordingStore{})

	snap := m.History("nobody")
	assert.NotNil(t, snap.History)
	assert.NotNil(t, snap.LastLocations)
	assert.Empty(t, snap.History)
	assert.Equal(t, 0, m.Len(), "reading history does not create a session")

	m.Send(context.Background(), "s1", "ahoj")
	assert.Equal(t, 1, m.Len())

	m.Reset("s1")
	m.Reset("s1")
	m.Reset("nobody")
	assert.Equal(t, 0, m.Len())
	assert.Empty(t, m.History("s1").History)
}

func TestManager_ResetDuringTurn(t *testing.T) {
	var calls int32
	entered := make(chan struct{})
	release := make(chan struct{})
	fm := &fakeModel{respond: func(ctx context.Context, msg llm.Message) (*llm.Response, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(entered)
			<-release
			return textReply("stará"), nil
		}
		return textReply("nová"), nil
	}}
	m := newTestManager(t, fm, &recordingStore{})

	done := make(chan model.TurnResult)
	go func() { done <- m.Send(context.Background(), "s", "první") }()
	<-entered

	m.Reset("s")
	assert.Equal(t, 0, m.Len())

	// the fresh session does not wait for the evicted one
	res := m.Send(context.Background(), "s", "druhá")
	assert.Equal(t, "nová", res.Response)

	close(release)
	old := <-done
	assert.Equal(t, "stará", old.Response)

	hist := m.History("s").History
	require.Len(t, hist, 2)
	assert.Equal(t, "druhá", hist[0].Content)
	assert.Equal(t, "nová", hist[1].Content)
	assert.Len(t, fm.convs, 2)
}

func TestManager_DefaultSessionID(t *testing.T) {
	fm := &fakeModel{respond: script(textReply("ahoj"))}
	m := newTestManager(t, fm, &recordingStore{}, WithSystemPrompt("Jsi průvodce."))

	m.Send(context.Background(), "", "ahoj")

	_, ok := m.Get(model.DefaultSessionID)
	assert.True(t, ok)
	assert.Equal(t, []string{"Jsi průvodce."}, fm.prompts)
	require.Len(t, fm.conv(0).tools, 1)
	assert.Equal(t, "search_places", fm.conv(0).tools[0].Name)
}

func TestManager_GetOrCreateIsAtomic(t *testing.T) {
	fm := &fakeModel{respond: script()}
	m := newTestManager(t, fm, &recordingStore{})

	var wg sync.WaitGroup
	sessions := make([]*Session, 16)
	for i := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sessions[i] = m.GetOrCreate("shared")
		}()
	}
	wg.Wait()

	for _, s := range sessions {
		assert.Same(t, sessions[0], s)
	}
	assert.Len(t, fm.convs, 1)
}

func TestManager_SerializesTurnsPerSession(t *testing.T) {
	var inflight, peak int32
	fm := &fakeModel{respond: func(ctx context.Context, msg llm.Message) (*llm.Response, error) {
		n := atomic.AddInt32(&inflight, 1)
		defer atomic.AddInt32(&inflight, -1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return textReply("ok"), nil
	}}
	m := newTestManager(t, fm, &recordingStore{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := m.Send(context.Background(), "same", "ahoj")
			assert.Empty(t, res.Error)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&peak))
	assert.Len(t, m.History("same").History, 16)
}

func TestManager_SessionsRunInParallel(t *testing.T) {
	var arrived int32
	both := make(chan struct{})
	fm := &fakeModel{respond: func(ctx context.Context, msg llm.Message) (*llm.Response, error) {
		if atomic.AddInt32(&arrived, 1) == 2 {
			close(both)
		}
		select {
		case <-both:
			return textReply("ok"), nil
		case <-time.After(2 * time.Second):
			return nil, errors.New("other session never ran")
		}
	}}
	m := newTestManager(t, fm, &recordingStore{})

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := m.Send(context.Background(), id, "ahoj")
			assert.Empty(t, res.Error)
		}()
	}
	wg.Wait()
}

func TestManager_WaitHonoursCancellation(t *testing.T) {
	fm := &fakeModel{respond: script(textReply("ok"))}
	m := newTestManager(t, fm, &recordingStore{})

	s := m.GetOrCreate("busy")
	require.NoError(t, s.acquire(context.Background()))
	defer s.release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res := m.Send(ctx, "busy", "ahoj")
	assert.Equal(t, ApologyError, res.Response)
	assert.Equal(t, context.DeadlineExceeded.Error(), res.Error)
	assert.Empty(t, m.History("busy").History)
}
