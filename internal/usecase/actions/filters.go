package actions

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"fic-recs-bot/internal/domain"
)

// resolveFandom переводит название в идентификатор; неизвестный фандом останавливает цепочку.
func resolveFandom(ctx context.Context, env *Environment, name string, out *domain.OutgoingMessage) (int, bool) {
	id, err := env.Fandoms.GetIDForName(ctx, name)
	if err != nil {
		env.Log.Error().Err(err).Str("fandom", name).Msg("actions: не удалось найти фандом")
		out.Fail(unavailableText)
		return domain.InvalidID, false
	}
	if id == domain.InvalidID {
		out.Fail(fmt.Sprintf("Not a valid fandom: %s", name))
		return domain.InvalidID, false
	}
	return id, true
}

type setFandomAction struct{}

// Фильтр держит не больше двух фандомов: третий вытесняет самый старый.
func (setFandomAction) executeImpl(ctx context.Context, env *Environment, cmd domain.Command, out *domain.OutgoingMessage) {
	p, _ := cmd.Params.(domain.FandomParams)
	user := cmd.User
	if p.Reset {
		if persisted(env, cmd, out, env.Users.ResetFandomFilter(ctx, user.ID)) {
			user.FandomFilter.Reset()
			out.Empty = true
		}
		return
	}

	id, ok := resolveFandom(ctx, env, p.Fandom, out)
	if !ok {
		return
	}
	token := domain.FandomToken{ID: id, IncludeCrossovers: p.Crossovers}

	switch {
	case user.FandomFilter.Contains(id):
		if !persisted(env, cmd, out, env.Users.UnfilterFandom(ctx, user.ID, id)) {
			return
		}
		user.FandomFilter.Remove(id)
		out.Text = "Removing filtered fandom: " + p.Fandom
	case user.FandomFilter.Len() >= domain.MaxFandomFilterSize:
		oldest := user.FandomFilter.Tokens[0]
		oldName, err := env.Fandoms.GetNameForID(ctx, oldest.ID)
		if err != nil || oldName == "" {
			oldName = strconv.Itoa(oldest.ID)
		}
		if !persisted(env, cmd, out, env.Users.UnfilterFandom(ctx, user.ID, oldest.ID)) {
			return
		}
		if !persisted(env, cmd, out, env.Users.FilterFandom(ctx, user.ID, token)) {
			user.FandomFilter.Remove(oldest.ID)
			return
		}
		user.FandomFilter.AddLimited(token, domain.MaxFandomFilterSize)
		out.Text = fmt.Sprintf("Replacing crossover fandom: %s with: %s", oldName, p.Fandom)
	default:
		if !persisted(env, cmd, out, env.Users.FilterFandom(ctx, user.ID, token)) {
			return
		}
		user.FandomFilter.Add(token)
		out.Empty = true
	}
}

type ignoreFandomAction struct{}

func (ignoreFandomAction) executeImpl(ctx context.Context, env *Environment, cmd domain.Command, out *domain.OutgoingMessage) {
	p, _ := cmd.Params.(domain.FandomParams)
	user := cmd.User
	if p.Reset {
		if persisted(env, cmd, out, env.Users.ResetFandomIgnores(ctx, user.ID)) {
			user.IgnoredFandoms.Reset()
			out.Empty = true
		}
		return
	}

	id, ok := resolveFandom(ctx, env, p.Fandom, out)
	if !ok {
		return
	}
	if user.IgnoredFandoms.Contains(id) {
		if persisted(env, cmd, out, env.Users.UnignoreFandom(ctx, user.ID, id)) {
			user.IgnoredFandoms.Remove(id)
			out.Text = "Fandom is no longer ignored: " + p.Fandom
		}
		return
	}
	token := domain.FandomToken{ID: id, IncludeCrossovers: p.Crossovers}
	if persisted(env, cmd, out, env.Users.IgnoreFandom(ctx, user.ID, token)) {
		user.IgnoredFandoms.Add(token)
		out.Empty = true
	}
}

type ignoreFicAction struct{}

func (ignoreFicAction) executeImpl(ctx context.Context, env *Environment, cmd domain.Command, out *domain.OutgoingMessage) {
	p, _ := cmd.Params.(domain.IgnoreFicsParams)
	user := cmd.User

	positions := p.Positions
	if p.Everything {
		positions = positions[:0:0]
		for pos := range user.PositionToID {
			positions = append(positions, pos)
		}
		sort.Ints(positions)
	}

	var missing []string
	for _, pos := range positions {
		ficID, ok := user.PositionToID[pos]
		if !ok {
			missing = append(missing, strconv.Itoa(pos))
			continue
		}
		// >all только скрывает, одиночные позиции переключают метку.
		if user.IgnoresFic(ficID) {
			if p.Everything {
				continue
			}
			if !persisted(env, cmd, out, env.Users.UnTagFanfic(ctx, user.ID, domain.IgnoreTag, ficID)) {
				return
			}
		} else if !persisted(env, cmd, out, env.Users.TagFanfic(ctx, user.ID, domain.IgnoreTag, ficID)) {
			return
		}
		user.ToggleIgnoredFic(ficID)
	}

	if len(missing) > 0 {
		out.Text = "These positions are not on your current page: " + strings.Join(missing, ", ")
		return
	}
	out.Empty = true
}

type wordcountAction struct{}

func (wordcountAction) executeImpl(ctx context.Context, env *Environment, cmd domain.Command, out *domain.OutgoingMessage) {
	p, _ := cmd.Params.(domain.WordcountParams)
	filter := domain.WordcountFilter{Min: p.Min, Max: p.Max}
	if persisted(env, cmd, out, env.Users.SetWordcountFilter(ctx, cmd.User.ID, filter)) {
		cmd.User.Wordcount = filter
		out.Empty = true
	}
}

// toggleFlagAction переключает один из флагов фильтрации: сначала запись, потом память.
type toggleFlagAction struct {
	toggle func(flags *domain.FilterFlags, params domain.CommandParams)
}

func (a toggleFlagAction) executeImpl(ctx context.Context, env *Environment, cmd domain.Command, out *domain.OutgoingMessage) {
	flags := cmd.User.Filters
	a.toggle(&flags, cmd.Params)
	if persisted(env, cmd, out, env.Users.SetFilterFlags(ctx, cmd.User.ID, flags)) {
		cmd.User.Filters = flags
		out.Empty = true
	}
}

func toggleLikedAuthors(flags *domain.FilterFlags, _ domain.CommandParams) {
	flags.LikedAuthorsOnly = !flags.LikedAuthorsOnly
}

func toggleFresh(flags *domain.FilterFlags, params domain.CommandParams) {
	p, _ := params.(domain.FreshParams)
	flags.SortFreshFirst = !flags.SortFreshFirst
	flags.StrictFreshSort = flags.SortFreshFirst && p.Strict
}

func toggleComplete(flags *domain.FilterFlags, _ domain.CommandParams) {
	flags.CompleteOnly = !flags.CompleteOnly
}

// toggleDead с явным числом дней включает фильтр, без него переключает.
func toggleDead(flags *domain.FilterFlags, params domain.CommandParams) {
	p, _ := params.(domain.DeadParams)
	if p.Days > 0 {
		flags.HideDead = true
		flags.DeadFicDaysRange = p.Days
		return
	}
	flags.HideDead = !flags.HideDead
	if flags.DeadFicDaysRange <= 0 {
		flags.DeadFicDaysRange = domain.DefaultDeadFicDays
	}
}

type resetFiltersAction struct{}

// Каждая часть сбрасывается в памяти сразу после своей записи, поэтому сбой на середине
// оставляет память совпадающей с хранилищем.
func (resetFiltersAction) executeImpl(ctx context.Context, env *Environment, cmd domain.Command, out *domain.OutgoingMessage) {
	user := cmd.User
	reset := *user
	reset.ResetFilters()
	if !persisted(env, cmd, out, env.Users.ResetFandomFilter(ctx, user.ID)) {
		return
	}
	user.FandomFilter.Reset()
	if !persisted(env, cmd, out, env.Users.SetWordcountFilter(ctx, user.ID, reset.Wordcount)) {
		return
	}
	user.Wordcount = reset.Wordcount
	if !persisted(env, cmd, out, env.Users.SetFilterFlags(ctx, user.ID, reset.Filters)) {
		return
	}
	user.Filters = reset.Filters
	out.Text = "All filters have been reset."
}
