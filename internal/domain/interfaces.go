package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUserNotFound возвращается хранилищем, если пользователь ещё не сохранён.
	ErrUserNotFound = errors.New("user not found")
	// ErrServerNotFound возвращается хранилищем, если сервер ещё не сохранён.
	ErrServerNotFound = errors.New("server not found")
	// ErrServiceUnavailable означает сетевой отказ внешнего сервиса.
	ErrServiceUnavailable = errors.New("service unavailable")
)

// FicSource — удалённый сервис с базой фиков и расчётом рекомендаций.
type FicSource interface {
	// ResolveIdentities заполняет InternalID; нераспознанные получают InvalidID.
	ResolveIdentities(ctx context.Context, ids []Identity) ([]Identity, error)
	// RequestRecommendations отправляет параметры и исходные фики, заполняя list.FicData ответом.
	RequestRecommendations(ctx context.Context, list *RecommendationList) error
	FetchPage(ctx context.Context, filter StoryFilter) ([]Fic, error)
	FetchPageCount(ctx context.Context, filter StoryFilter) (int, error)
	// ClearUserData удаляет данные пользователя на стороне сервиса.
	ClearUserData(ctx context.Context, userToken string) error
}

// FavouritesFetcher загружает избранное пользователя fanfiction.net.
type FavouritesFetcher interface {
	FetchFavourites(ctx context.Context, ffnID string, mode CacheMode) (FavouritesResult, error)
	// FetchFullFavourites выполняет медленный полный разбор больших списков.
	FetchFullFavourites(ctx context.Context, ffnID string) (FavouritesResult, error)
}

// FandomLookup разрешает названия фандомов.
type FandomLookup interface {
	// GetIDForName возвращает InvalidID, если фандом неизвестен.
	GetIDForName(ctx context.Context, name string) (int, error)
	GetNameForID(ctx context.Context, id int) (string, error)
	// FetchFandomsForFics заполняет названия фандомов у переданных фиков.
	FetchFandomsForFics(ctx context.Context, fics []Fic) error
}

// UserStore сохраняет сессии пользователей и их фильтры.
type UserStore interface {
	LoadUser(ctx context.Context, id string) (*User, error)
	WriteUser(ctx context.Context, user *User) error
	UpdateCurrentPage(ctx context.Context, userID string, page int) error
	UpdateFFNID(ctx context.Context, userID, ffnID string) error
	FilterFandom(ctx context.Context, userID string, token FandomToken) error
	UnfilterFandom(ctx context.Context, userID string, fandomID int) error
	ResetFandomFilter(ctx context.Context, userID string) error
	IgnoreFandom(ctx context.Context, userID string, token FandomToken) error
	UnignoreFandom(ctx context.Context, userID string, fandomID int) error
	ResetFandomIgnores(ctx context.Context, userID string) error
	TagFanfic(ctx context.Context, userID, tag string, ficID int) error
	UnTagFanfic(ctx context.Context, userID, tag string, ficID int) error
	SetWordcountFilter(ctx context.Context, userID string, filter WordcountFilter) error
	SetFilterFlags(ctx context.Context, userID string, flags FilterFlags) error
	WriteUserList(ctx context.Context, userID string, params ListParams) error
	DeleteUserList(ctx context.Context, userID string) error
	CompletelyRemoveUser(ctx context.Context, userID string) error
}

// ServerStore сохраняет настройки серверов.
type ServerStore interface {
	GetServer(ctx context.Context, id string) (*Server, error)
	WriteServer(ctx context.Context, server *Server) error
	UpdatePrefix(ctx context.Context, id, prefix string) error
}

// MessageSink доставляет сообщения на платформу.
type MessageSink interface {
	SendMessage(ctx context.Context, channelID string, content MessageContent) (MessageRef, error)
	EditMessage(ctx context.Context, target MessageRef, content MessageContent) error
	AddReaction(ctx context.Context, target MessageRef, emoji string) error
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}

// IgnoreTag — метка, которой помечаются скрытые пользователем фики.
const IgnoreTag = "ignore"
