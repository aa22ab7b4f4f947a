package actions

import (
	"context"

	"fic-recs-bot/internal/domain"
	"fic-recs-bot/internal/usecase/recs"
)

const noActiveSetText = "You don't have an active recommendation list yet. Create one with the recs command."

type displayPageAction struct{}

func (displayPageAction) executeImpl(ctx context.Context, env *Environment, cmd domain.Command, out *domain.OutgoingMessage) {
	p, _ := cmd.Params.(domain.PageParams)
	user := cmd.User
	if !user.HasActiveSet() {
		out.Fail(noActiveSetText)
		return
	}

	page := max(p.Page, 0)
	size := env.pageSize()
	filter := recs.StoryFilterForUser(user, page, size)
	total, err := env.Fics.FetchPageCount(ctx, filter)
	if err != nil {
		env.Log.Error().Err(err).Str("user", user.ID).Msg("actions: не удалось получить число фиков")
		out.Fail(unavailableText)
		return
	}
	pages := recs.PageCount(total, size)
	if pages > 0 && page >= pages {
		page = pages - 1
		filter.Page = page
	}

	fics, err := env.Fics.FetchPage(ctx, filter)
	if err != nil {
		env.Log.Error().Err(err).Str("user", user.ID).Int("page", page).Msg("actions: не удалось получить страницу")
		out.Fail(unavailableText)
		return
	}
	enrichFandoms(ctx, env, fics)

	if user.CurrentPage != page {
		if err := env.Users.UpdateCurrentPage(ctx, user.ID, page); err != nil {
			env.Log.Warn().Err(err).Str("user", user.ID).Msg("actions: не удалось сохранить страницу")
		}
	}
	user.CurrentPage = page
	user.LastPageType = domain.CommandDisplayPage
	rememberPositions(user, fics)

	out.Embed = recs.FormatPage(user, recs.PageView{
		Fics:       fics,
		Page:       page,
		TotalPages: pages,
		SimilarTo:  user.ActiveSet.SimilarTo,
		Now:        env.now(),
	})
	out.Reactions = []string{domain.ReactionPrevious, domain.ReactionNext}
	retarget(cmd, p.RefreshPrevious, out)
}

type displayRngAction struct{}

func (displayRngAction) executeImpl(ctx context.Context, env *Environment, cmd domain.Command, out *domain.OutgoingMessage) {
	p, _ := cmd.Params.(domain.RngParams)
	user := cmd.User
	if !user.HasActiveSet() {
		out.Fail(noActiveSetText)
		return
	}
	quality := p.Quality
	if quality == "" {
		quality = recs.QualityAll
	}

	fics, err := env.Fics.FetchPage(ctx, recs.RollFilterForUser(user, quality, env.rollSize()))
	if err != nil {
		env.Log.Error().Err(err).Str("user", user.ID).Str("quality", quality).Msg("actions: не удалось получить случайную выборку")
		out.Fail(unavailableText)
		return
	}
	enrichFandoms(ctx, env, fics)

	user.LastUsedRoll = quality
	user.LastPageType = domain.CommandDisplayRng
	rememberPositions(user, fics)

	out.Embed = recs.FormatRoll(user, quality, fics, env.now())
	out.Reactions = []string{domain.ReactionReroll}
	retarget(cmd, false, out)
}

func enrichFandoms(ctx context.Context, env *Environment, fics []domain.Fic) {
	if len(fics) == 0 {
		return
	}
	if err := env.Fandoms.FetchFandomsForFics(ctx, fics); err != nil {
		env.Log.Warn().Err(err).Msg("actions: не удалось получить названия фандомов")
	}
}

// rememberPositions связывает номера на странице с фиками для команды nfic.
func rememberPositions(user *domain.User, fics []domain.Fic) {
	user.PositionToID = make(map[int]int, len(fics))
	for i, fic := range fics {
		user.PositionToID[i+1] = fic.ID
	}
}

// retarget выбирает сообщение для редактирования: цель реакции или прошлую страницу.
func retarget(cmd domain.Command, refreshPrevious bool, out *domain.OutgoingMessage) {
	switch {
	case !cmd.Target.IsZero():
		out.Target = cmd.Target
	case refreshPrevious && !cmd.User.LastPageMessage.IsZero():
		out.Target = cmd.User.LastPageMessage
	}
}
