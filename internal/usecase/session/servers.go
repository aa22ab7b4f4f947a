package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fic-recs-bot/internal/domain"
)

// Servers кэширует настройки серверов.
type Servers struct {
	mu            sync.RWMutex
	servers       map[string]*domain.Server
	store         domain.ServerStore
	defaultPrefix string
}

// NewServers создаёт реестр серверов.
func NewServers(store domain.ServerStore, defaultPrefix string) *Servers {
	if defaultPrefix == "" {
		defaultPrefix = "!"
	}
	return &Servers{servers: make(map[string]*domain.Server), store: store, defaultPrefix: defaultPrefix}
}

// Ensure возвращает сервер, создавая запись с префиксом по умолчанию.
func (s *Servers) Ensure(ctx context.Context, id string) (*domain.Server, error) {
	s.mu.RLock()
	srv, ok := s.servers[id]
	s.mu.RUnlock()
	if ok {
		return srv, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if srv, ok := s.servers[id]; ok {
		return srv, nil
	}
	srv, err := s.store.GetServer(ctx, id)
	if errors.Is(err, domain.ErrServerNotFound) {
		srv = &domain.Server{ID: id, Prefix: s.defaultPrefix, CreatedAt: time.Now().UTC()}
		if err := s.store.WriteServer(ctx, srv); err != nil {
			return nil, fmt.Errorf("сохранение сервера: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("загрузка сервера: %w", err)
	}
	if srv.Prefix == "" {
		srv.Prefix = s.defaultPrefix
	}
	s.servers[id] = srv
	return srv, nil
}

// SetPrefix сохраняет новый префикс и подменяет запись сервера целиком,
// чтобы уже выданные указатели не менялись под читателями.
func (s *Servers) SetPrefix(ctx context.Context, id, prefix string) error {
	if err := s.store.UpdatePrefix(ctx, id, prefix); err != nil {
		return fmt.Errorf("обновление префикса: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := domain.Server{ID: id, Prefix: prefix, CreatedAt: time.Now().UTC()}
	if old, ok := s.servers[id]; ok {
		updated = *old
		updated.Prefix = prefix
	}
	s.servers[id] = &updated
	return nil
}
