package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"fic-recs-bot/internal/domain"
)

// Registry хранит сессии пользователей в памяти и гидратирует их из хранилища при первом обращении.
type Registry struct {
	mu    sync.RWMutex
	users map[string]*domain.User
	store domain.UserStore
	log   zerolog.Logger
}

// NewRegistry создаёт реестр поверх хранилища.
func NewRegistry(store domain.UserStore, log zerolog.Logger) *Registry {
	return &Registry{
		users: make(map[string]*domain.User),
		store: store,
		log:   log,
	}
}

// Get возвращает сессию, если она уже загружена.
func (r *Registry) Get(id string) (*domain.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	return u, ok
}

// Ensure возвращает сессию пользователя, загружая или создавая её.
func (r *Registry) Ensure(ctx context.Context, id, name string) (*domain.User, error) {
	if u, ok := r.Get(id); ok {
		return u, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return u, nil
	}

	user, err := r.store.LoadUser(ctx, id)
	switch {
	case err == nil:
		r.log.Debug().Str("user", id).Msg("session: пользователь загружен из хранилища")
	case errors.Is(err, domain.ErrUserNotFound):
		user = domain.NewUser(id, name, uuid.NewString())
		if err := r.store.WriteUser(ctx, user); err != nil {
			return nil, fmt.Errorf("сохранение нового пользователя: %w", err)
		}
		r.log.Info().Str("user", id).Msg("session: создан новый пользователь")
	default:
		return nil, fmt.Errorf("загрузка пользователя: %w", err)
	}
	if user.IgnoredFics == nil {
		user.IgnoredFics = make(map[int]struct{})
	}
	if user.PositionToID == nil {
		user.PositionToID = make(map[int]int)
	}
	r.users[id] = user
	return user, nil
}

// Remove выгружает сессию, например после удаления данных пользователя.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
}

// Len возвращает число загруженных сессий.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
