package actions

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"fic-recs-bot/internal/domain"
	"fic-recs-bot/internal/usecase/recs"
)

const defaultRollSize = 3

// SessionRemover забывает сессию пользователя после удаления его данных.
type SessionRemover interface {
	Remove(id string)
}

// PrefixChanger меняет префикс команд сервера.
type PrefixChanger interface {
	SetPrefix(ctx context.Context, id, prefix string) error
}

// Environment объединяет внешних участников, с которыми работают действия.
type Environment struct {
	Fics       domain.FicSource
	Fandoms    domain.FandomLookup
	Favourites domain.FavouritesFetcher
	Users      domain.UserStore
	Servers    PrefixChanger
	Sessions   SessionRemover
	Engine     *recs.Engine
	Log        zerolog.Logger

	Now                func() time.Time
	PageSize           int
	RollSize           int
	FullParseThreshold int
}

func (e *Environment) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e *Environment) pageSize() int {
	if e.PageSize <= 0 {
		return recs.DefaultPageSize
	}
	return e.PageSize
}

func (e *Environment) rollSize() int {
	if e.RollSize <= 0 {
		return defaultRollSize
	}
	return e.RollSize
}

func (e *Environment) fullParseThreshold() int {
	if e.FullParseThreshold <= 0 {
		return 500
	}
	return e.FullParseThreshold
}
