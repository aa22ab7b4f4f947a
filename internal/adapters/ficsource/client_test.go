package ficsource

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fic-recs-bot/internal/adapters/remote"
	"fic-recs-bot/internal/domain"
)

func newClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	api, err := remote.New("fics", srv.URL, remote.WithRetries(0))
	require.NoError(t, err)
	return New(api)
}

func TestResolveIdentitiesMarksUnknown(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/identities/resolve", r.URL.Path)
		var req struct {
			IDs []int `json:"ids"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []int{10, 20, 30}, req.IDs)
		_, _ = w.Write([]byte(`{"identities":[{"ffn_id":10,"internal_id":1},{"ffn_id":30,"internal_id":3},{"ffn_id":20,"internal_id":0}]}`))
	})

	got, err := c.ResolveIdentities(context.Background(), []domain.Identity{
		{FFNID: 10, InternalID: domain.InvalidID},
		{FFNID: 20, InternalID: domain.InvalidID},
		{FFNID: 30, InternalID: domain.InvalidID},
	})
	require.NoError(t, err)
	assert.Equal(t, []domain.Identity{
		{FFNID: 10, InternalID: 1},
		{FFNID: 20, InternalID: domain.InvalidID},
		{FFNID: 30, InternalID: 3},
	}, got)
}

func TestResolveIdentitiesSkipsEmptyRequest(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("пустой запрос не должен уходить в сеть")
	})
	got, err := c.ResolveIdentities(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRequestRecommendationsFillsFicData(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req recommendationsRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []int{1, 2}, req.SourceFics)
		assert.Equal(t, "tok", req.UserToken)
		_, _ = w.Write([]byte(`{"fics":[100,200],"source_fics":[7,8],"match_counts":[2,1]}`))
	})

	list := &domain.RecommendationList{UserToken: "tok", FicData: domain.FicData{Fics: []int{11, 12}, SourceFics: []int{1, 2}}}
	require.NoError(t, c.RequestRecommendations(context.Background(), list))
	assert.Equal(t, []int{100, 200}, list.FicData.Fics)
	assert.Equal(t, []int{2, 1}, list.FicData.MatchCounts)
}

func TestRequestRecommendationsRejectsMismatchedArrays(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"fics":[100,200],"source_fics":[7],"match_counts":[2,1]}`))
	})
	list := &domain.RecommendationList{}
	require.NoError(t, c.RequestRecommendations(context.Background(), list))
	assert.Zero(t, list.FicData.Len())
}

func TestFetchPageCarriesScores(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req filterDTO
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 2, req.Page)
		assert.Equal(t, []fandomTokenDTO{{ID: 5, IncludeCrossovers: true}}, req.FandomFilter)
		_, _ = w.Write([]byte(`{"fics":[{"id":100,"title":"A","fandom_ids":[5]},{"id":200,"title":"B"}]}`))
	})

	fics, err := c.FetchPage(context.Background(), domain.StoryFilter{
		Page:         2,
		RecsHash:     map[int]int{100: 4, 200: 2},
		FandomFilter: []domain.FandomToken{{ID: 5, IncludeCrossovers: true}},
	})
	require.NoError(t, err)
	require.Len(t, fics, 2)
	assert.Equal(t, 4, fics[0].MatchCount)
	assert.Equal(t, []int{5}, fics[0].FandomIDs)
	assert.Equal(t, "B", fics[1].Title)
}

func TestFetchPageCountUnavailable(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := c.FetchPageCount(context.Background(), domain.StoryFilter{})
	require.ErrorIs(t, err, domain.ErrServiceUnavailable)
}
