package db

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Логические базы, доступ к которым сериализуется отдельно.
const (
	UsersDatabase     = "users"
	PageCacheDatabase = "page_cache"
)

// Vendor выдаёт соединения с удержанием именованной блокировки на время работы.
type Vendor struct {
	pool  *pgxpool.Pool
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewVendor создаёт поставщика соединений.
func NewVendor(pool *pgxpool.Pool) *Vendor {
	return &Vendor{pool: pool, locks: make(map[string]*sync.Mutex)}
}

func (v *Vendor) lockFor(name string) *sync.Mutex {
	v.mu.Lock()
	defer v.mu.Unlock()
	l, ok := v.locks[name]
	if !ok {
		l = &sync.Mutex{}
		v.locks[name] = l
	}
	return l
}

// LockedDatabase — соединение с удерживаемой блокировкой логической базы.
type LockedDatabase struct {
	*pgxpool.Conn
	name    string
	unlock  func()
	release sync.Once
}

// Name возвращает имя логической базы.
func (d *LockedDatabase) Name() string {
	return d.name
}

// Release возвращает соединение в пул и снимает блокировку. Повторный вызов безопасен.
func (d *LockedDatabase) Release() {
	d.release.Do(func() {
		d.Conn.Release()
		d.unlock()
	})
}

// Acquire блокирует логическую базу name и берёт соединение из пула.
func (v *Vendor) Acquire(ctx context.Context, name string) (*LockedDatabase, error) {
	lock := v.lockFor(name)
	lock.Lock()
	conn, err := v.pool.Acquire(ctx)
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("acquire %s: %w", name, err)
	}
	return &LockedDatabase{Conn: conn, name: name, unlock: lock.Unlock}, nil
}
