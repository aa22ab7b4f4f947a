package ficsource

import (
	"context"
	"time"

	"fic-recs-bot/internal/adapters/remote"
	"fic-recs-bot/internal/domain"
)

// Client обращается к сервису базы фиков: разрешение идентификаторов,
// расчёт рекомендаций и постраничная выдача.
type Client struct {
	api *remote.Client
}

var _ domain.FicSource = (*Client)(nil)

// New создаёт клиента поверх подготовленного remote.Client.
func New(api *remote.Client) *Client {
	return &Client{api: api}
}

type identityDTO struct {
	FFNID      int `json:"ffn_id"`
	InternalID int `json:"internal_id"`
}

// ResolveIdentities реализует domain.FicSource. Фики, которых нет в ответе, остаются с InvalidID.
func (c *Client) ResolveIdentities(ctx context.Context, ids []domain.Identity) ([]domain.Identity, error) {
	out := make([]domain.Identity, len(ids))
	copy(out, ids)
	if len(ids) == 0 {
		return out, nil
	}

	req := struct {
		IDs []int `json:"ids"`
	}{IDs: make([]int, 0, len(ids))}
	for _, id := range ids {
		req.IDs = append(req.IDs, id.FFNID)
	}
	var resp struct {
		Identities []identityDTO `json:"identities"`
	}
	if err := c.api.Post(ctx, "resolve_ids", "/api/v1/identities/resolve", req, &resp); err != nil {
		return nil, err
	}

	known := make(map[int]int, len(resp.Identities))
	for _, id := range resp.Identities {
		if id.InternalID > 0 {
			known[id.FFNID] = id.InternalID
		}
	}
	for i := range out {
		out[i].InternalID = domain.InvalidID
		if internal, ok := known[out[i].FFNID]; ok {
			out[i].InternalID = internal
		}
	}
	return out, nil
}

type recommendationsRequest struct {
	Name                 string `json:"name"`
	MinimumMatch         int    `json:"minimum_match"`
	MaxUnmatchedPerMatch int    `json:"max_unmatched_per_match"`
	AlwaysPickAt         int    `json:"always_pick_at"`
	IsAutomatic          bool   `json:"is_automatic"`
	UseWeighting         bool   `json:"use_weighting"`
	UseMoodAdjustment    bool   `json:"use_mood_adjustment"`
	AssignLikedToSources bool   `json:"assign_liked_to_sources"`
	IgnoreBreakdowns     bool   `json:"ignore_breakdowns"`
	UserFFNID            int    `json:"user_ffn_id"`
	UserToken            string `json:"user_token"`
	IgnoredFandoms       []int  `json:"ignored_fandoms"`
	Fics                 []int  `json:"fics"`
	SourceFics           []int  `json:"source_fics"`
	SimilarTo            int    `json:"similar_to,omitempty"`
}

// RequestRecommendations реализует domain.FicSource. При несогласованных массивах ответа
// MatchCounts остаётся пустым, и вызывающий считает список недоступным.
func (c *Client) RequestRecommendations(ctx context.Context, list *domain.RecommendationList) error {
	req := recommendationsRequest{
		Name:                 list.Name,
		MinimumMatch:         list.MinimumMatch,
		MaxUnmatchedPerMatch: list.MaxUnmatchedPerMatch,
		AlwaysPickAt:         list.AlwaysPickAt,
		IsAutomatic:          list.IsAutomatic,
		UseWeighting:         list.UseWeighting,
		UseMoodAdjustment:    list.UseMoodAdjustment,
		AssignLikedToSources: list.AssignLikedToSources,
		IgnoreBreakdowns:     list.IgnoreBreakdowns,
		UserFFNID:            list.UserFFNID,
		UserToken:            list.UserToken,
		IgnoredFandoms:       list.IgnoredFandoms,
		Fics:                 list.FicData.Fics,
		SourceFics:           list.FicData.SourceFics,
		SimilarTo:            list.SimilarTo,
	}
	var resp struct {
		Fics        []int `json:"fics"`
		SourceFics  []int `json:"source_fics"`
		MatchCounts []int `json:"match_counts"`
	}
	if err := c.api.Post(ctx, "recommendations", "/api/v1/recommendations", req, &resp); err != nil {
		return err
	}
	if len(resp.Fics) != len(resp.MatchCounts) || len(resp.SourceFics) != len(resp.MatchCounts) {
		list.FicData.MatchCounts = nil
		return nil
	}
	list.FicData = domain.FicData{Fics: resp.Fics, SourceFics: resp.SourceFics, MatchCounts: resp.MatchCounts}
	return nil
}

type fandomTokenDTO struct {
	ID                int  `json:"id"`
	IncludeCrossovers bool `json:"include_crossovers"`
}

type filterDTO struct {
	UserToken        string           `json:"user_token"`
	Page             int              `json:"page"`
	PageSize         int              `json:"page_size"`
	Random           bool             `json:"random"`
	ScoreCutoff      int              `json:"score_cutoff"`
	Scores           map[int]int      `json:"scores"`
	FandomFilter     []fandomTokenDTO `json:"fandom_filter"`
	IgnoredFandoms   []fandomTokenDTO `json:"ignored_fandoms"`
	IgnoredFics      []int            `json:"ignored_fics"`
	WordcountMin     int              `json:"wordcount_min"`
	WordcountMax     int              `json:"wordcount_max"`
	LikedAuthorsOnly bool             `json:"liked_authors_only"`
	SortFreshFirst   bool             `json:"sort_fresh_first"`
	StrictFreshSort  bool             `json:"strict_fresh_sort"`
	CompleteOnly     bool             `json:"complete_only"`
	DeadFicDaysRange int              `json:"dead_fic_days_range"`
}

func toFilterDTO(f domain.StoryFilter) filterDTO {
	return filterDTO{
		UserToken:        f.UserToken,
		Page:             f.Page,
		PageSize:         f.PageSize,
		Random:           f.Random,
		ScoreCutoff:      f.ScoreCutoff,
		Scores:           f.RecsHash,
		FandomFilter:     toTokens(f.FandomFilter),
		IgnoredFandoms:   toTokens(f.IgnoredFandoms),
		IgnoredFics:      f.IgnoredFics,
		WordcountMin:     f.Wordcount.Min,
		WordcountMax:     f.Wordcount.Max,
		LikedAuthorsOnly: f.LikedAuthorsOnly,
		SortFreshFirst:   f.SortFreshFirst,
		StrictFreshSort:  f.StrictFreshSort,
		CompleteOnly:     f.CompleteOnly,
		DeadFicDaysRange: f.DeadFicDaysRange,
	}
}

func toTokens(tokens []domain.FandomToken) []fandomTokenDTO {
	out := make([]fandomTokenDTO, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, fandomTokenDTO{ID: t.ID, IncludeCrossovers: t.IncludeCrossovers})
	}
	return out
}

type ficDTO struct {
	ID         int       `json:"id"`
	InternalID int       `json:"internal_id"`
	Title      string    `json:"title"`
	Author     string    `json:"author"`
	AuthorID   int       `json:"author_id"`
	Summary    string    `json:"summary"`
	FandomIDs  []int     `json:"fandom_ids"`
	WordCount  int       `json:"word_count"`
	Complete   bool      `json:"complete"`
	Published  time.Time `json:"published"`
	Updated    time.Time `json:"updated"`
}

// FetchPage реализует domain.FicSource.
func (c *Client) FetchPage(ctx context.Context, filter domain.StoryFilter) ([]domain.Fic, error) {
	var resp struct {
		Fics []ficDTO `json:"fics"`
	}
	if err := c.api.Post(ctx, "fetch_page", "/api/v1/stories/page", toFilterDTO(filter), &resp); err != nil {
		return nil, err
	}
	fics := make([]domain.Fic, 0, len(resp.Fics))
	for _, f := range resp.Fics {
		fics = append(fics, domain.Fic{
			ID:         f.ID,
			InternalID: f.InternalID,
			Title:      f.Title,
			Author:     f.Author,
			AuthorID:   f.AuthorID,
			Summary:    f.Summary,
			FandomIDs:  f.FandomIDs,
			WordCount:  f.WordCount,
			Complete:   f.Complete,
			Published:  f.Published,
			Updated:    f.Updated,
			MatchCount: filter.RecsHash[f.ID],
		})
	}
	return fics, nil
}

// FetchPageCount реализует domain.FicSource.
func (c *Client) FetchPageCount(ctx context.Context, filter domain.StoryFilter) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	if err := c.api.Post(ctx, "fetch_count", "/api/v1/stories/count", toFilterDTO(filter), &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// ClearUserData реализует domain.FicSource.
func (c *Client) ClearUserData(ctx context.Context, userToken string) error {
	req := struct {
		UserToken string `json:"user_token"`
	}{UserToken: userToken}
	return c.api.Post(ctx, "clear_user", "/api/v1/users/clear", req, nil)
}
