package favourites

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"fic-recs-bot/internal/adapters/remote"
	"fic-recs-bot/internal/domain"
)

// ErrCacheMiss возвращается кэшем, если страницы избранного нет.
var ErrCacheMiss = errors.New("favourites cache miss")

// Entry — сохранённая страница избранного.
type Entry struct {
	Links         []string
	HasFavourites bool
	FullParse     bool
	FetchedAt     time.Time
}

// PageCache хранит последние загруженные страницы избранного.
type PageCache interface {
	Load(ctx context.Context, ffnID string) (Entry, error)
	Store(ctx context.Context, ffnID string, entry Entry) error
}

// Fetcher загружает избранное через сервис разбора fanfiction.net и кэширует результат.
type Fetcher struct {
	api   *remote.Client
	cache PageCache
	log   zerolog.Logger
	now   func() time.Time
}

var _ domain.FavouritesFetcher = (*Fetcher)(nil)

// NewFetcher создаёт загрузчик избранного.
func NewFetcher(api *remote.Client, cache PageCache, log zerolog.Logger) *Fetcher {
	return &Fetcher{api: api, cache: cache, log: log, now: time.Now}
}

// FetchFavourites реализует domain.FavouritesFetcher.
func (f *Fetcher) FetchFavourites(ctx context.Context, ffnID string, mode domain.CacheMode) (domain.FavouritesResult, error) {
	if mode == domain.CacheUseOnly {
		entry, err := f.cache.Load(ctx, ffnID)
		switch {
		case err == nil:
			return domain.FavouritesResult{Links: entry.Links, HasFavourites: entry.HasFavourites}, nil
		case !errors.Is(err, ErrCacheMiss):
			f.log.Warn().Err(err).Str("ffn_id", ffnID).Msg("кэш избранного недоступен, идём в сеть")
		}
	}
	return f.fetch(ctx, ffnID, false)
}

// FetchFullFavourites реализует domain.FavouritesFetcher.
func (f *Fetcher) FetchFullFavourites(ctx context.Context, ffnID string) (domain.FavouritesResult, error) {
	return f.fetch(ctx, ffnID, true)
}

func (f *Fetcher) fetch(ctx context.Context, ffnID string, full bool) (domain.FavouritesResult, error) {
	req := struct {
		FFNID string `json:"ffn_id"`
		Full  bool   `json:"full"`
	}{FFNID: ffnID, Full: full}
	var resp struct {
		Links             []string `json:"links"`
		HasFavourites     bool     `json:"has_favourites"`
		RequiresFullParse bool     `json:"requires_full_parse"`
		Errors            []string `json:"errors"`
	}
	operation := "fetch_favourites"
	if full {
		operation = "fetch_full_favourites"
	}
	if err := f.api.Post(ctx, operation, "/api/v1/favourites", req, &resp); err != nil {
		return domain.FavouritesResult{}, err
	}

	res := domain.FavouritesResult{
		Links:             resp.Links,
		HasFavourites:     resp.HasFavourites,
		RequiresFullParse: resp.RequiresFullParse && !full,
		Errors:            resp.Errors,
	}
	// Частичный разбор большого списка не кэшируем: восстановление должно видеть весь список.
	if len(res.Errors) == 0 && !res.RequiresFullParse {
		entry := Entry{Links: res.Links, HasFavourites: res.HasFavourites, FullParse: full, FetchedAt: f.now().UTC()}
		if err := f.cache.Store(ctx, ffnID, entry); err != nil {
			f.log.Warn().Err(err).Str("ffn_id", ffnID).Msg("не удалось сохранить избранное в кэш")
		}
	}
	return res, nil
}
