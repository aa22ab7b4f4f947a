package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"fic-recs-bot/internal/domain"
	"fic-recs-bot/internal/infra/db"
	"fic-recs-bot/internal/infra/metrics"
)

// Postgres реализует хранилища пользователей, серверов и справочник фандомов.
// Все запросы к пользовательским таблицам идут через именованную блокировку users.
type Postgres struct {
	vendor *db.Vendor
}

var (
	_ domain.UserStore    = (*Postgres)(nil)
	_ domain.ServerStore  = (*Postgres)(nil)
	_ domain.FandomLookup = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(vendor *db.Vendor) *Postgres {
	return &Postgres{vendor: vendor}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// withUsers выполняет fn на соединении, удерживая блокировку логической базы users.
func (p *Postgres) withUsers(ctx context.Context, operation, table string, fn func(ctx context.Context, conn *db.LockedDatabase) error) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	conn, err := p.vendor.Acquire(ctx, db.UsersDatabase)
	if err != nil {
		metrics.ObserveNetworkRequest("postgres", operation, table, start, err)
		return err
	}
	defer conn.Release()
	err = fn(ctx, conn)
	metrics.ObserveNetworkRequest("postgres", operation, table, start, err)
	return err
}

func (p *Postgres) exec(ctx context.Context, operation, table, query string, args ...any) error {
	return p.withUsers(ctx, operation, table, func(ctx context.Context, conn *db.LockedDatabase) error {
		_, err := conn.Exec(ctx, query, args...)
		return err
	})
}

// LoadUser реализует domain.UserStore.
func (p *Postgres) LoadUser(ctx context.Context, id string) (*domain.User, error) {
	var user *domain.User
	err := p.withUsers(ctx, "user_load", "bot_users", func(ctx context.Context, conn *db.LockedDatabase) error {
		u := domain.NewUser(id, "", "")
		err := conn.QueryRow(ctx, `
SELECT name, ffn_id, token, banned, current_page, similar_fics_id,
       wordcount_min, wordcount_max, liked_authors_only, sort_fresh_first,
       strict_fresh_sort, complete_only, hide_dead, dead_fic_days
FROM bot_users WHERE user_id = $1
`, id).Scan(&u.Name, &u.FFNID, &u.Token, &u.Banned, &u.CurrentPage, &u.SimilarFicsID,
			&u.Wordcount.Min, &u.Wordcount.Max, &u.Filters.LikedAuthorsOnly, &u.Filters.SortFreshFirst,
			&u.Filters.StrictFreshSort, &u.Filters.CompleteOnly, &u.Filters.HideDead, &u.Filters.DeadFicDaysRange)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("bot_users: %w", err)
		}

		if u.FandomFilter.Tokens, err = loadTokens(ctx, conn, "user_fandom_filters", id); err != nil {
			return err
		}
		if u.IgnoredFandoms.Tokens, err = loadTokens(ctx, conn, "user_fandom_ignores", id); err != nil {
			return err
		}

		rows, err := conn.Query(ctx, `SELECT fic_id FROM user_fic_tags WHERE user_id = $1 AND tag = $2`, id, domain.IgnoreTag)
		if err != nil {
			return fmt.Errorf("user_fic_tags: %w", err)
		}
		ficIDs, err := pgx.CollectRows(rows, pgx.RowTo[int])
		if err != nil {
			return fmt.Errorf("user_fic_tags: %w", err)
		}
		for _, fic := range ficIDs {
			u.IgnoredFics[fic] = struct{}{}
		}

		err = conn.QueryRow(ctx, `
SELECT minimum_match, max_unmatched_per_match, always_pick_at FROM user_lists WHERE user_id = $1
`, id).Scan(&u.List.MinimumMatch, &u.List.MaxUnmatchedPerMatch, &u.List.AlwaysPickAt)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("user_lists: %w", err)
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// loadTokens читает фандомы фильтра в порядке добавления: первым идёт самый старый.
func loadTokens(ctx context.Context, conn *db.LockedDatabase, table, userID string) ([]domain.FandomToken, error) {
	rows, err := conn.Query(ctx, fmt.Sprintf(`SELECT fandom_id, include_crossovers FROM %s WHERE user_id = $1 ORDER BY added_at, fandom_id`, table), userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", table, err)
	}
	tokens, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.FandomToken, error) {
		var t domain.FandomToken
		err := row.Scan(&t.ID, &t.IncludeCrossovers)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", table, err)
	}
	return tokens, nil
}

// WriteUser реализует domain.UserStore.
func (p *Postgres) WriteUser(ctx context.Context, u *domain.User) error {
	return p.exec(ctx, "user_upsert", "bot_users", `
INSERT INTO bot_users (user_id, name, ffn_id, token, banned, current_page, similar_fics_id,
                       wordcount_min, wordcount_max, liked_authors_only, sort_fresh_first,
                       strict_fresh_sort, complete_only, hide_dead, dead_fic_days)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (user_id) DO UPDATE SET
    name = EXCLUDED.name,
    ffn_id = EXCLUDED.ffn_id,
    banned = EXCLUDED.banned,
    current_page = EXCLUDED.current_page,
    similar_fics_id = EXCLUDED.similar_fics_id,
    wordcount_min = EXCLUDED.wordcount_min,
    wordcount_max = EXCLUDED.wordcount_max,
    liked_authors_only = EXCLUDED.liked_authors_only,
    sort_fresh_first = EXCLUDED.sort_fresh_first,
    strict_fresh_sort = EXCLUDED.strict_fresh_sort,
    complete_only = EXCLUDED.complete_only,
    hide_dead = EXCLUDED.hide_dead,
    dead_fic_days = EXCLUDED.dead_fic_days
`, u.ID, strings.TrimSpace(u.Name), u.FFNID, u.Token, u.Banned, u.CurrentPage, u.SimilarFicsID,
		u.Wordcount.Min, u.Wordcount.Max, u.Filters.LikedAuthorsOnly, u.Filters.SortFreshFirst,
		u.Filters.StrictFreshSort, u.Filters.CompleteOnly, u.Filters.HideDead, u.Filters.DeadFicDaysRange)
}

// UpdateCurrentPage реализует domain.UserStore.
func (p *Postgres) UpdateCurrentPage(ctx context.Context, userID string, page int) error {
	return p.exec(ctx, "user_page", "bot_users", `UPDATE bot_users SET current_page = $2 WHERE user_id = $1`, userID, page)
}

// UpdateFFNID реализует domain.UserStore.
func (p *Postgres) UpdateFFNID(ctx context.Context, userID, ffnID string) error {
	return p.exec(ctx, "user_ffn_id", "bot_users", `UPDATE bot_users SET ffn_id = $2 WHERE user_id = $1`, userID, ffnID)
}

// FilterFandom реализует domain.UserStore.
func (p *Postgres) FilterFandom(ctx context.Context, userID string, token domain.FandomToken) error {
	return p.exec(ctx, "fandom_filter_add", "user_fandom_filters", `
INSERT INTO user_fandom_filters (user_id, fandom_id, include_crossovers) VALUES ($1, $2, $3)
ON CONFLICT (user_id, fandom_id) DO UPDATE SET include_crossovers = EXCLUDED.include_crossovers
`, userID, token.ID, token.IncludeCrossovers)
}

// UnfilterFandom реализует domain.UserStore.
func (p *Postgres) UnfilterFandom(ctx context.Context, userID string, fandomID int) error {
	return p.exec(ctx, "fandom_filter_remove", "user_fandom_filters",
		`DELETE FROM user_fandom_filters WHERE user_id = $1 AND fandom_id = $2`, userID, fandomID)
}

// ResetFandomFilter реализует domain.UserStore.
func (p *Postgres) ResetFandomFilter(ctx context.Context, userID string) error {
	return p.exec(ctx, "fandom_filter_reset", "user_fandom_filters", `DELETE FROM user_fandom_filters WHERE user_id = $1`, userID)
}

// IgnoreFandom реализует domain.UserStore.
func (p *Postgres) IgnoreFandom(ctx context.Context, userID string, token domain.FandomToken) error {
	return p.exec(ctx, "fandom_ignore_add", "user_fandom_ignores", `
INSERT INTO user_fandom_ignores (user_id, fandom_id, include_crossovers) VALUES ($1, $2, $3)
ON CONFLICT (user_id, fandom_id) DO UPDATE SET include_crossovers = EXCLUDED.include_crossovers
`, userID, token.ID, token.IncludeCrossovers)
}

// UnignoreFandom реализует domain.UserStore.
func (p *Postgres) UnignoreFandom(ctx context.Context, userID string, fandomID int) error {
	return p.exec(ctx, "fandom_ignore_remove", "user_fandom_ignores",
		`DELETE FROM user_fandom_ignores WHERE user_id = $1 AND fandom_id = $2`, userID, fandomID)
}

// ResetFandomIgnores реализует domain.UserStore.
func (p *Postgres) ResetFandomIgnores(ctx context.Context, userID string) error {
	return p.exec(ctx, "fandom_ignore_reset", "user_fandom_ignores", `DELETE FROM user_fandom_ignores WHERE user_id = $1`, userID)
}

// TagFanfic реализует domain.UserStore.
func (p *Postgres) TagFanfic(ctx context.Context, userID, tag string, ficID int) error {
	return p.exec(ctx, "fic_tag_add", "user_fic_tags", `
INSERT INTO user_fic_tags (user_id, fic_id, tag) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING
`, userID, ficID, tag)
}

// UnTagFanfic реализует domain.UserStore.
func (p *Postgres) UnTagFanfic(ctx context.Context, userID, tag string, ficID int) error {
	return p.exec(ctx, "fic_tag_remove", "user_fic_tags",
		`DELETE FROM user_fic_tags WHERE user_id = $1 AND fic_id = $2 AND tag = $3`, userID, ficID, tag)
}

// SetWordcountFilter реализует domain.UserStore.
func (p *Postgres) SetWordcountFilter(ctx context.Context, userID string, filter domain.WordcountFilter) error {
	return p.exec(ctx, "user_wordcount", "bot_users",
		`UPDATE bot_users SET wordcount_min = $2, wordcount_max = $3 WHERE user_id = $1`, userID, filter.Min, filter.Max)
}

// SetFilterFlags реализует domain.UserStore.
func (p *Postgres) SetFilterFlags(ctx context.Context, userID string, flags domain.FilterFlags) error {
	return p.exec(ctx, "user_flags", "bot_users", `
UPDATE bot_users SET liked_authors_only = $2, sort_fresh_first = $3, strict_fresh_sort = $4,
                     complete_only = $5, hide_dead = $6, dead_fic_days = $7
WHERE user_id = $1
`, userID, flags.LikedAuthorsOnly, flags.SortFreshFirst, flags.StrictFreshSort, flags.CompleteOnly, flags.HideDead, flags.DeadFicDaysRange)
}

// WriteUserList реализует domain.UserStore.
func (p *Postgres) WriteUserList(ctx context.Context, userID string, params domain.ListParams) error {
	return p.exec(ctx, "user_list_upsert", "user_lists", `
INSERT INTO user_lists (user_id, minimum_match, max_unmatched_per_match, always_pick_at, updated_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (user_id) DO UPDATE SET
    minimum_match = EXCLUDED.minimum_match,
    max_unmatched_per_match = EXCLUDED.max_unmatched_per_match,
    always_pick_at = EXCLUDED.always_pick_at,
    updated_at = NOW()
`, userID, params.MinimumMatch, params.MaxUnmatchedPerMatch, params.AlwaysPickAt)
}

// DeleteUserList реализует domain.UserStore.
func (p *Postgres) DeleteUserList(ctx context.Context, userID string) error {
	return p.exec(ctx, "user_list_delete", "user_lists", `DELETE FROM user_lists WHERE user_id = $1`, userID)
}

// CompletelyRemoveUser реализует domain.UserStore. Связанные строки удаляются каскадом.
func (p *Postgres) CompletelyRemoveUser(ctx context.Context, userID string) error {
	return p.exec(ctx, "user_delete", "bot_users", `DELETE FROM bot_users WHERE user_id = $1`, userID)
}

// GetServer реализует domain.ServerStore.
func (p *Postgres) GetServer(ctx context.Context, id string) (*domain.Server, error) {
	srv := &domain.Server{ID: id}
	err := p.withUsers(ctx, "server_get", "bot_servers", func(ctx context.Context, conn *db.LockedDatabase) error {
		return conn.QueryRow(ctx, `SELECT prefix, created_at FROM bot_servers WHERE server_id = $1`, id).Scan(&srv.Prefix, &srv.CreatedAt)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrServerNotFound
	}
	if err != nil {
		return nil, err
	}
	return srv, nil
}

// WriteServer реализует domain.ServerStore.
func (p *Postgres) WriteServer(ctx context.Context, server *domain.Server) error {
	createdAt := server.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return p.exec(ctx, "server_upsert", "bot_servers", `
INSERT INTO bot_servers (server_id, prefix, created_at) VALUES ($1, $2, $3)
ON CONFLICT (server_id) DO UPDATE SET prefix = EXCLUDED.prefix
`, server.ID, server.Prefix, createdAt)
}

// UpdatePrefix реализует domain.ServerStore.
func (p *Postgres) UpdatePrefix(ctx context.Context, id, prefix string) error {
	return p.exec(ctx, "server_prefix", "bot_servers", `UPDATE bot_servers SET prefix = $2 WHERE server_id = $1`, id, prefix)
}

// GetIDForName реализует domain.FandomLookup.
func (p *Postgres) GetIDForName(ctx context.Context, name string) (int, error) {
	id := domain.InvalidID
	err := p.withUsers(ctx, "fandom_by_name", "fandoms", func(ctx context.Context, conn *db.LockedDatabase) error {
		return conn.QueryRow(ctx, `SELECT id FROM fandoms WHERE LOWER(name) = LOWER($1)`, strings.TrimSpace(name)).Scan(&id)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.InvalidID, nil
	}
	return id, err
}

// GetNameForID реализует domain.FandomLookup.
func (p *Postgres) GetNameForID(ctx context.Context, id int) (string, error) {
	var name string
	err := p.withUsers(ctx, "fandom_by_id", "fandoms", func(ctx context.Context, conn *db.LockedDatabase) error {
		return conn.QueryRow(ctx, `SELECT name FROM fandoms WHERE id = $1`, id).Scan(&name)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return name, err
}

// FetchFandomsForFics реализует domain.FandomLookup одним запросом на страницу.
func (p *Postgres) FetchFandomsForFics(ctx context.Context, fics []domain.Fic) error {
	var ids []int32
	seen := make(map[int]struct{})
	for _, fic := range fics {
		for _, id := range fic.FandomIDs {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, int32(id))
			}
		}
	}
	if len(ids) == 0 {
		return nil
	}

	names := make(map[int]string, len(ids))
	err := p.withUsers(ctx, "fandoms_batch", "fandoms", func(ctx context.Context, conn *db.LockedDatabase) error {
		rows, err := conn.Query(ctx, `SELECT id, name FROM fandoms WHERE id = ANY($1)`, ids)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id int
			var name string
			if err := rows.Scan(&id, &name); err != nil {
				return err
			}
			names[id] = name
		}
		return rows.Err()
	})
	if err != nil {
		return fmt.Errorf("fandoms: %w", err)
	}

	for i := range fics {
		fics[i].Fandoms = fics[i].Fandoms[:0]
		for _, id := range fics[i].FandomIDs {
			if name, ok := names[id]; ok {
				fics[i].Fandoms = append(fics[i].Fandoms, name)
			}
		}
	}
	return nil
}
