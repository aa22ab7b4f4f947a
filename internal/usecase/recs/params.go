package recs

import (
	"regexp"
	"strconv"
	"strings"

	"fic-recs-bot/internal/domain"
)

// Параметры автоматического построения списка.
const (
	DefaultMinimumMatch         = 6
	DefaultMaxUnmatchedPerMatch = 50
	DefaultAlwaysPickAt         = 9999
)

// NewListParams собирает параметры списка для пользователя с учётом зафиксированных им значений.
func NewListParams(user *domain.User, ffnID string) *domain.RecommendationList {
	userFFN, err := strconv.Atoi(ffnID)
	if err != nil {
		userFFN = domain.InvalidID
	}
	list := &domain.RecommendationList{
		Name:                 "generic",
		MinimumMatch:         DefaultMinimumMatch,
		MaxUnmatchedPerMatch: DefaultMaxUnmatchedPerMatch,
		AlwaysPickAt:         DefaultAlwaysPickAt,
		IsAutomatic:          true,
		UseWeighting:         true,
		UseMoodAdjustment:    true,
		AssignLikedToSources: true,
		UserFFNID:            userFFN,
		UserToken:            user.Token,
		IgnoredFandoms:       user.IgnoredFandoms.IDs(),
		Sources:              make(map[int]struct{}),
	}
	if !user.List.IsAutomatic() {
		list.IsAutomatic = false
		list.MinimumMatch = user.List.MinimumMatch
		list.MaxUnmatchedPerMatch = user.List.MaxUnmatchedPerMatch
		if user.List.AlwaysPickAt > 0 {
			list.AlwaysPickAt = user.List.AlwaysPickAt
		}
	}
	return list
}

// paramsDeviated сообщает, что сервис понизил пороги автоматического списка.
func paramsDeviated(list *domain.RecommendationList) bool {
	return list.MinimumMatch != DefaultMinimumMatch ||
		list.MaxUnmatchedPerMatch != DefaultMaxUnmatchedPerMatch ||
		list.AlwaysPickAt != DefaultAlwaysPickAt
}

var storyLinkRe = regexp.MustCompile(`/s/(\d+)`)

// ParseFicID извлекает ID фика из ссылки вида /s/<id>/ или из числа.
func ParseFicID(link string) int {
	link = strings.TrimSpace(link)
	if m := storyLinkRe.FindStringSubmatch(link); m != nil {
		link = m[1]
	}
	id, err := strconv.Atoi(link)
	if err != nil || id <= 0 {
		return domain.InvalidID
	}
	return id
}
