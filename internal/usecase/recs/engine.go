package recs

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"fic-recs-bot/internal/domain"
	"fic-recs-bot/internal/infra/metrics"
)

var (
	// ErrNoRecommendations означает, что сервис не вернул ни одного фика.
	ErrNoRecommendations = errors.New("recommendations are not available")
	// ErrFicNotFound означает, что фик для поиска похожих не распознан.
	ErrFicNotFound = errors.New("fic not found")
)

// FillResult описывает построенный список.
type FillResult struct {
	Recommendations int
	Unresolved      int
	PerfectCutoff   int
	GoodCutoff      int
	ParamsPersisted bool
}

// Engine строит списки рекомендаций и делает их активными для пользователя.
type Engine struct {
	fics  domain.FicSource
	users domain.UserStore
	log   zerolog.Logger
}

// NewEngine создаёт движок рекомендаций.
func NewEngine(fics domain.FicSource, users domain.UserStore, log zerolog.Logger) *Engine {
	return &Engine{fics: fics, users: users, log: log}
}

// FillUserRecommendationsFromFavourites строит список по избранному пользователя.
// Пустое избранное всё равно уходит в сервис и заканчивается ErrNoRecommendations.
func (e *Engine) FillUserRecommendationsFromFavourites(ctx context.Context, ffnID string, favourites []string, user *domain.User) (FillResult, error) {
	list := NewListParams(user, ffnID)

	ids := make([]domain.Identity, 0, len(favourites))
	unparsed := 0
	for _, link := range favourites {
		id := ParseFicID(link)
		if id == domain.InvalidID {
			unparsed++
			continue
		}
		ids = append(ids, domain.Identity{FFNID: id, InternalID: domain.InvalidID})
	}

	resolved, err := e.fics.ResolveIdentities(ctx, ids)
	if err != nil {
		metrics.RecommendationListsBuilt.WithLabelValues("error").Inc()
		return FillResult{}, fmt.Errorf("разрешение идентификаторов: %w", err)
	}
	unresolved := unparsed + addSources(list, resolved)

	if err := e.fics.RequestRecommendations(ctx, list); err != nil {
		metrics.RecommendationListsBuilt.WithLabelValues("error").Inc()
		return FillResult{}, fmt.Errorf("запрос рекомендаций: %w", err)
	}
	if list.FicData.Len() == 0 {
		metrics.RecommendationListsBuilt.WithLabelValues("empty").Inc()
		return FillResult{Unresolved: unresolved}, ErrNoRecommendations
	}

	res, err := e.activate(ctx, user, list)
	res.Unresolved = unresolved
	return res, err
}

// FillSimilarFics строит список фиков, похожих на ficID, и делает его активным.
func (e *Engine) FillSimilarFics(ctx context.Context, ficID int, user *domain.User) (FillResult, error) {
	list := NewListParams(user, user.FFNID)
	list.Name = "similar"
	list.SimilarTo = ficID
	list.MinimumMatch = 1
	list.IsAutomatic = false
	list.AssignLikedToSources = false

	resolved, err := e.fics.ResolveIdentities(ctx, []domain.Identity{{FFNID: ficID, InternalID: domain.InvalidID}})
	if err != nil {
		return FillResult{}, fmt.Errorf("разрешение идентификатора фика: %w", err)
	}
	if addSources(list, resolved) > 0 || len(list.FicData.SourceFics) == 0 {
		return FillResult{}, ErrFicNotFound
	}
	if err := e.fics.RequestRecommendations(ctx, list); err != nil {
		return FillResult{}, fmt.Errorf("запрос похожих фиков: %w", err)
	}
	if list.FicData.Len() == 0 {
		return FillResult{}, ErrNoRecommendations
	}
	return e.activate(ctx, user, list)
}

// addSources переносит распознанные фики в запрос и возвращает число нераспознанных.
func addSources(list *domain.RecommendationList, resolved []domain.Identity) int {
	unresolved := 0
	for _, id := range resolved {
		list.Sources[id.FFNID] = struct{}{}
		if id.InternalID == domain.InvalidID {
			unresolved++
			continue
		}
		list.FicData.Fics = append(list.FicData.Fics, id.FFNID)
		list.FicData.SourceFics = append(list.FicData.SourceFics, id.InternalID)
	}
	return unresolved
}

func (e *Engine) activate(ctx context.Context, user *domain.User, list *domain.RecommendationList) (FillResult, error) {
	perfect, good := CutoffsFromHistogram(BuildHistogram(list.FicData))
	user.PerfectCutoff = perfect
	user.GoodCutoff = good
	user.ActiveSet = list
	user.PositionToID = make(map[int]int)

	res := FillResult{
		Recommendations: list.FicData.Len(),
		PerfectCutoff:   perfect,
		GoodCutoff:      good,
	}
	metrics.RecommendationListsBuilt.WithLabelValues("ok").Inc()

	if list.IsAutomatic && list.SimilarTo == 0 && paramsDeviated(list) {
		params := domain.ListParams{
			MinimumMatch:         list.MinimumMatch,
			MaxUnmatchedPerMatch: list.MaxUnmatchedPerMatch,
			AlwaysPickAt:         list.AlwaysPickAt,
		}
		if err := e.users.WriteUserList(ctx, user.ID, params); err != nil {
			return res, fmt.Errorf("сохранение параметров списка: %w", err)
		}
		user.List = params
		res.ParamsPersisted = true
		e.log.Info().Str("user", user.ID).Int("min_match", params.MinimumMatch).Int("ratio", params.MaxUnmatchedPerMatch).Msg("recs: сервис понизил пороги списка")
	}
	return res, nil
}
