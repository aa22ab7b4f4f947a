package repo

import (
	"context"
	"strings"
	"sync"

	"fic-recs-bot/internal/domain"
)

// Memory — хранилище в памяти для локального запуска без Postgres.
type Memory struct {
	mu      sync.Mutex
	users   map[string]domain.User
	tags    map[string]map[int]string
	servers map[string]domain.Server
	fandoms map[int]string
}

var (
	_ domain.UserStore    = (*Memory)(nil)
	_ domain.ServerStore  = (*Memory)(nil)
	_ domain.FandomLookup = (*Memory)(nil)
)

// NewMemory создаёт пустое хранилище с заданным справочником фандомов.
func NewMemory(fandoms map[int]string) *Memory {
	if fandoms == nil {
		fandoms = map[int]string{}
	}
	return &Memory{
		users:   make(map[string]domain.User),
		tags:    make(map[string]map[int]string),
		servers: make(map[string]domain.Server),
		fandoms: fandoms,
	}
}

func (m *Memory) update(userID string, fn func(u *domain.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	fn(&u)
	m.users[userID] = u
	return nil
}

// LoadUser реализует domain.UserStore.
func (m *Memory) LoadUser(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	loaded := u
	loaded.FandomFilter.Tokens = append([]domain.FandomToken(nil), u.FandomFilter.Tokens...)
	loaded.IgnoredFandoms.Tokens = append([]domain.FandomToken(nil), u.IgnoredFandoms.Tokens...)
	loaded.IgnoredFics = make(map[int]struct{})
	for fic, tag := range m.tags[id] {
		if tag == domain.IgnoreTag {
			loaded.IgnoredFics[fic] = struct{}{}
		}
	}
	loaded.PositionToID = make(map[int]int)
	loaded.ActiveSet = nil
	return &loaded, nil
}

// WriteUser реализует domain.UserStore.
func (m *Memory) WriteUser(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *user
	stored.ActiveSet = nil
	m.users[user.ID] = stored
	return nil
}

// UpdateCurrentPage реализует domain.UserStore.
func (m *Memory) UpdateCurrentPage(_ context.Context, userID string, page int) error {
	return m.update(userID, func(u *domain.User) { u.CurrentPage = page })
}

// UpdateFFNID реализует domain.UserStore.
func (m *Memory) UpdateFFNID(_ context.Context, userID, ffnID string) error {
	return m.update(userID, func(u *domain.User) { u.FFNID = ffnID })
}

// FilterFandom реализует domain.UserStore.
func (m *Memory) FilterFandom(_ context.Context, userID string, token domain.FandomToken) error {
	return m.update(userID, func(u *domain.User) { u.FandomFilter.Add(token) })
}

// UnfilterFandom реализует domain.UserStore.
func (m *Memory) UnfilterFandom(_ context.Context, userID string, fandomID int) error {
	return m.update(userID, func(u *domain.User) { u.FandomFilter.Remove(fandomID) })
}

// ResetFandomFilter реализует domain.UserStore.
func (m *Memory) ResetFandomFilter(_ context.Context, userID string) error {
	return m.update(userID, func(u *domain.User) { u.FandomFilter.Reset() })
}

// IgnoreFandom реализует domain.UserStore.
func (m *Memory) IgnoreFandom(_ context.Context, userID string, token domain.FandomToken) error {
	return m.update(userID, func(u *domain.User) { u.IgnoredFandoms.Add(token) })
}

// UnignoreFandom реализует domain.UserStore.
func (m *Memory) UnignoreFandom(_ context.Context, userID string, fandomID int) error {
	return m.update(userID, func(u *domain.User) { u.IgnoredFandoms.Remove(fandomID) })
}

// ResetFandomIgnores реализует domain.UserStore.
func (m *Memory) ResetFandomIgnores(_ context.Context, userID string) error {
	return m.update(userID, func(u *domain.User) { u.IgnoredFandoms.Reset() })
}

// TagFanfic реализует domain.UserStore.
func (m *Memory) TagFanfic(_ context.Context, userID, tag string, ficID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tags[userID] == nil {
		m.tags[userID] = make(map[int]string)
	}
	m.tags[userID][ficID] = tag
	return nil
}

// UnTagFanfic реализует domain.UserStore.
func (m *Memory) UnTagFanfic(_ context.Context, userID, tag string, ficID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tags[userID][ficID] == tag {
		delete(m.tags[userID], ficID)
	}
	return nil
}

// SetWordcountFilter реализует domain.UserStore.
func (m *Memory) SetWordcountFilter(_ context.Context, userID string, filter domain.WordcountFilter) error {
	return m.update(userID, func(u *domain.User) { u.Wordcount = filter })
}

// SetFilterFlags реализует domain.UserStore.
func (m *Memory) SetFilterFlags(_ context.Context, userID string, flags domain.FilterFlags) error {
	return m.update(userID, func(u *domain.User) { u.Filters = flags })
}

// WriteUserList реализует domain.UserStore.
func (m *Memory) WriteUserList(_ context.Context, userID string, params domain.ListParams) error {
	return m.update(userID, func(u *domain.User) { u.List = params })
}

// DeleteUserList реализует domain.UserStore.
func (m *Memory) DeleteUserList(_ context.Context, userID string) error {
	return m.update(userID, func(u *domain.User) { u.List = domain.ListParams{} })
}

// CompletelyRemoveUser реализует domain.UserStore.
func (m *Memory) CompletelyRemoveUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, userID)
	delete(m.tags, userID)
	return nil
}

// GetServer реализует domain.ServerStore.
func (m *Memory) GetServer(_ context.Context, id string) (*domain.Server, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	srv, ok := m.servers[id]
	if !ok {
		return nil, domain.ErrServerNotFound
	}
	return &srv, nil
}

// WriteServer реализует domain.ServerStore.
func (m *Memory) WriteServer(_ context.Context, server *domain.Server) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers[server.ID] = *server
	return nil
}

// UpdatePrefix реализует domain.ServerStore.
func (m *Memory) UpdatePrefix(_ context.Context, id, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	srv, ok := m.servers[id]
	if !ok {
		return domain.ErrServerNotFound
	}
	srv.Prefix = prefix
	m.servers[id] = srv
	return nil
}

// GetIDForName реализует domain.FandomLookup.
func (m *Memory) GetIDForName(_ context.Context, name string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, n := range m.fandoms {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return id, nil
		}
	}
	return domain.InvalidID, nil
}

// GetNameForID реализует domain.FandomLookup.
func (m *Memory) GetNameForID(_ context.Context, id int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fandoms[id], nil
}

// FetchFandomsForFics реализует domain.FandomLookup.
func (m *Memory) FetchFandomsForFics(_ context.Context, fics []domain.Fic) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range fics {
		names := make([]string, 0, len(fics[i].FandomIDs))
		for _, id := range fics[i].FandomIDs {
			if name, ok := m.fandoms[id]; ok {
				names = append(names, name)
			}
		}
		fics[i].Fandoms = names
	}
	return nil
}
