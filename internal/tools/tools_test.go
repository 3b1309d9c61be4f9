package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"randechat/internal/model"
)

type recordingSearcher struct {
	got []model.SearchIntent
	err error
}

func (r *recordingSearcher) Search(ctx context.Context, sessionID string, in model.SearchIntent) (*model.ToolResponse, error) {
	r.got = append(r.got, in)
	if r.err != nil {
		return nil, r.err
	}
	return &model.ToolResponse{Success: true, Places: []model.PlaceResult{}}, nil
}

func fptr(v float64) *float64 { return &v }

func TestParseOperation(t *testing.T) {
	op, err := ParseOperation("search_places")
	require.NoError(t, err)
	assert.Equal(t, OpSearchPlaces, op)

	_, err = ParseOperation("default_api.search_places")
	assert.True(t, errors.Is(err, ErrUnknownOperation))

	_, err = ParseOperation("")
	assert.True(t, errors.Is(err, ErrUnknownOperation))
}

func TestRegistry_Execute(t *testing.T) {
	s := &recordingSearcher{}
	r := NewRegistry(s)

	resp, err := r.Execute(context.Background(), "s1", "search_places", map[string]any{
		"query_type": "category",
		"category":   "hrady",
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	require.Len(t, s.got, 1)
	assert.Equal(t, "hrady", s.got[0].Category)

	_, err = r.Execute(context.Background(), "s1", "delete_places", nil)
	assert.True(t, errors.Is(err, ErrUnknownOperation))
	assert.Len(t, s.got, 1)
}

func TestRegistry_ExecutePropagatesSearchError(t *testing.T) {
	boom := errors.New("store down")
	r := NewRegistry(&recordingSearcher{err: boom})

	_, err := r.Execute(context.Background(), "s1", "search_places", map[string]any{"query_type": "all"})
	assert.ErrorIs(t, err, boom)
}

func TestRegistry_Declarations(t *testing.T) {
	r := NewRegistry(&recordingSearcher{})
	decls := r.Declarations()
	require.Len(t, decls, 1)
	assert.Equal(t, "search_places", decls[0].Name)

	params := decls[0].Parameters
	assert.Equal(t, []any{"query_type"}, params["required"])

	props := params["properties"].(map[string]any)
	for _, key := range []string{"query_type", "text", "category", "region", "latitude", "longitude",
		"max_distance_km", "limit", "romantic", "outdoor", "cultural", "wellness"} {
		assert.Contains(t, props, key)
	}
	enum := props["query_type"].(map[string]any)["enum"]
	assert.Equal(t, []any{"text_search", "category", "geospatial", "romantic", "specific_place", "all"}, enum)
}

func TestDecodeSearchArgs(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
		want model.SearchIntent
	}{
		{
			name: "category with region",
			args: map[string]any{"query_type": "category", "category": " pivovary ", "region": "Hradec"},
			want: model.SearchIntent{Kind: model.KindCategory, Category: "pivovary", Region: "Hradec"},
		},
		{
			name: "float limit",
			args: map[string]any{"query_type": "all", "limit": 5.0},
			want: model.SearchIntent{Kind: model.KindAll, Limit: 5},
		},
		{
			name: "huge limit stays above the cap",
			args: map[string]any{"query_type": "all", "limit": 5e9},
			want: model.SearchIntent{Kind: model.KindAll, Limit: model.MaxLimit + 1},
		},
		{
			name: "huge negative limit",
			args: map[string]any{"query_type": "all", "limit": -5e9},
			want: model.SearchIntent{Kind: model.KindAll, Limit: -1},
		},
		{
			name: "string numbers",
			args: map[string]any{"query_type": "geospatial", "latitude": "50.2", "longitude": "15.8", "max_distance_km": "10", "limit": "7"},
			want: model.SearchIntent{Kind: model.KindGeospatial, Latitude: fptr(50.2), Longitude: fptr(15.8), RadiusKm: fptr(10), Limit: 7},
		},
		{
			name: "flags",
			args: map[string]any{"query_type": "all", "romantic": true, "wellness": "true", "outdoor": "nope"},
			want: model.SearchIntent{Kind: model.KindAll, Romantic: true, Wellness: true},
		},
		{
			name: "wrong types ignored",
			args: map[string]any{"query_type": 3.0, "category": []any{"hrady"}, "limit": "many", "latitude": true},
			want: model.SearchIntent{},
		},
		{
			name: "nil args",
			args: nil,
			want: model.SearchIntent{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, DecodeSearchArgs(tt.args)); diff != "" {
				t.Errorf("DecodeSearchArgs() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeSearchArgs_LimitClamp(t *testing.T) {
	tests := []struct {
		limit any
		want  int
	}{
		{3.0, 3},
		{21.0, model.MaxLimit},
		{1e6, model.MaxLimit},
		{5e9, model.MaxLimit},
		{"1e12", model.MaxLimit},
		{0.0, model.DefaultLimit},
		{-5e9, model.DefaultLimit},
	}

	for _, tt := range tests {
		in := DecodeSearchArgs(map[string]any{"query_type": "all", "limit": tt.limit})
		assert.Equal(t, tt.want, in.ClampedLimit(), "limit %v", tt.limit)
	}
}
