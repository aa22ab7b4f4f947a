package recs

import (
	"sort"

	"fic-recs-bot/internal/domain"
)

// DefaultPageSize — число фиков на странице выдачи.
const DefaultPageSize = 10

// StoryFilterForUser собирает запрос страницы из активного списка и фильтров пользователя.
func StoryFilterForUser(user *domain.User, page, pageSize int) domain.StoryFilter {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	filter := domain.StoryFilter{
		UserToken:        user.Token,
		Page:             page,
		PageSize:         pageSize,
		ScoreCutoff:      1,
		FandomFilter:     append([]domain.FandomToken(nil), user.FandomFilter.Tokens...),
		IgnoredFandoms:   append([]domain.FandomToken(nil), user.IgnoredFandoms.Tokens...),
		Wordcount:        user.Wordcount,
		LikedAuthorsOnly: user.Filters.LikedAuthorsOnly,
		SortFreshFirst:   user.Filters.SortFreshFirst,
		StrictFreshSort:  user.Filters.StrictFreshSort,
		CompleteOnly:     user.Filters.CompleteOnly,
	}
	if user.Filters.HideDead {
		filter.DeadFicDaysRange = user.Filters.DeadFicDaysRange
	}
	if user.ActiveSet != nil {
		filter.RecsHash = user.ActiveSet.ScoreByFic()
	}
	filter.IgnoredFics = make([]int, 0, len(user.IgnoredFics))
	for id := range user.IgnoredFics {
		filter.IgnoredFics = append(filter.IgnoredFics, id)
	}
	sort.Ints(filter.IgnoredFics)
	return filter
}

// RollFilterForUser собирает запрос случайной выборки заданного качества.
func RollFilterForUser(user *domain.User, quality string, count int) domain.StoryFilter {
	filter := StoryFilterForUser(user, 0, count)
	filter.Random = true
	filter.ScoreCutoff = CutoffForQuality(user, quality)
	return filter
}

// PageCount возвращает число страниц для total фиков.
func PageCount(total, pageSize int) int {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if total <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
