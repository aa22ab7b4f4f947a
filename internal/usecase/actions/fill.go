package actions

import (
	"context"
	"errors"
	"fmt"

	"fic-recs-bot/internal/domain"
	"fic-recs-bot/internal/usecase/recs"
)

type fillRecommendationsAction struct{}

func (fillRecommendationsAction) executeImpl(ctx context.Context, env *Environment, cmd domain.Command, out *domain.OutgoingMessage) {
	p, _ := cmd.Params.(domain.FillParams)
	user := cmd.User
	log := env.Log.With().Str("user", user.ID).Str("ffn_id", p.FFNID).Logger()

	favourites, err := fetchFavourites(ctx, env, p)
	if err != nil {
		log.Error().Err(err).Msg("actions: не удалось загрузить избранное")
		out.Fail("Could not load your favourites from FFN right now. Please try again later.")
		return
	}
	if len(favourites.Errors) > 0 {
		out.Errors = favourites.Errors
		out.StopChain = true
		return
	}

	threshold := env.fullParseThreshold()
	// Из кэша приходит уже полный список, поэтому порог проверяется только при свежей загрузке.
	if !p.FullParse && (favourites.RequiresFullParse || (p.Refresh && len(favourites.Links) > threshold)) {
		out.Text = fmt.Sprintf("Your favourites list is bigger than %d fics. It will be processed in the background, recommendations will be posted here once they are ready.", threshold)
		out.StopChain = true
		out.Reemit = append(out.Reemit, continuation(cmd, p))
		log.Info().Int("favourites", len(favourites.Links)).Msg("actions: большой список отложен")
		return
	}

	result, err := env.Engine.FillUserRecommendationsFromFavourites(ctx, p.FFNID, favourites.Links, user)
	switch {
	case errors.Is(err, recs.ErrNoRecommendations):
		if !favourites.HasFavourites || len(favourites.Links) == 0 {
			out.Fail(fmt.Sprintf("Could not find any favourites for FFN user %s. Make sure the profile has favourite stories.", p.FFNID))
			return
		}
		out.Fail("Recommendations are not available right now, the server might be down or your favourites are not in the database yet.")
		return
	case err != nil:
		log.Error().Err(err).Msg("actions: не удалось построить рекомендации")
		out.Fail(unavailableText)
		return
	}

	if user.FFNID != p.FFNID {
		if err := env.Users.UpdateFFNID(ctx, user.ID, p.FFNID); err != nil {
			log.Error().Err(err).Msg("actions: не удалось сохранить FFN ID")
		}
		user.FFNID = p.FFNID
	}
	log.Info().Int("recommendations", result.Recommendations).Int("unresolved", result.Unresolved).
		Int("perfect", result.PerfectCutoff).Int("good", result.GoodCutoff).Msg("actions: список рекомендаций построен")

	if result.Unresolved > 0 {
		out.Diagnostic = fmt.Sprintf("%d of your favourites are not in the database yet and were skipped.", result.Unresolved)
	}
	if !p.Refresh && !p.FullParse {
		out.Empty = true
		return
	}
	out.Text = fmt.Sprintf("Recommendation list has been created for FFN ID: %s", p.FFNID)
}

func fetchFavourites(ctx context.Context, env *Environment, p domain.FillParams) (domain.FavouritesResult, error) {
	if p.FullParse {
		return env.Favourites.FetchFullFavourites(ctx, p.FFNID)
	}
	mode := domain.CacheUseOnly
	if p.Refresh {
		mode = domain.CacheBypass
	}
	return env.Favourites.FetchFavourites(ctx, p.FFNID, mode)
}

// continuation собирает цепочку второй фазы: полный разбор и показ первой страницы.
func continuation(cmd domain.Command, p domain.FillParams) domain.CommandChain {
	fill := cmd
	fill.Params = domain.FillParams{FFNID: p.FFNID, URL: p.URL, Refresh: true, FullParse: true}
	fill.PreExecutionText = ""
	display := cmd
	display.Type = domain.CommandDisplayPage
	page := 0
	if !p.Refresh {
		page = cmd.User.CurrentPage
	}
	display.Params = domain.PageParams{Page: page}
	display.PreExecutionText = ""

	chain := domain.CommandChain{HasParseCommand: true, HasFullParseCommand: true}
	chain.Push(fill)
	chain.Push(display)
	return chain
}

type similarFicsAction struct{}

func (similarFicsAction) executeImpl(ctx context.Context, env *Environment, cmd domain.Command, out *domain.OutgoingMessage) {
	p, _ := cmd.Params.(domain.SimilarParams)
	_, err := env.Engine.FillSimilarFics(ctx, p.FicID, cmd.User)
	switch {
	case errors.Is(err, recs.ErrFicNotFound):
		out.Fail(fmt.Sprintf("Fic %d is not in the database.", p.FicID))
		return
	case errors.Is(err, recs.ErrNoRecommendations):
		out.Fail(fmt.Sprintf("Could not find any fics similar to %d.", p.FicID))
		return
	case err != nil:
		env.Log.Error().Err(err).Int("fic", p.FicID).Msg("actions: не удалось найти похожие фики")
		out.Fail(unavailableText)
		return
	}
	cmd.User.SimilarFicsID = p.FicID
	out.Empty = true
}

type forceListParamsAction struct{}

func (forceListParamsAction) executeImpl(ctx context.Context, env *Environment, cmd domain.Command, out *domain.OutgoingMessage) {
	p, _ := cmd.Params.(domain.ListParamsOverride)
	user := cmd.User
	out.Empty = true
	if p.MinimumMatch == 0 && p.MaxUnmatchedPerMatch == 0 {
		if !persisted(env, cmd, out, env.Users.DeleteUserList(ctx, user.ID)) {
			return
		}
		user.List = domain.ListParams{}
		return
	}
	params := domain.ListParams{
		MinimumMatch:         p.MinimumMatch,
		MaxUnmatchedPerMatch: p.MaxUnmatchedPerMatch,
		AlwaysPickAt:         recs.DefaultAlwaysPickAt,
	}
	if !persisted(env, cmd, out, env.Users.WriteUserList(ctx, user.ID, params)) {
		return
	}
	user.List = params
}
