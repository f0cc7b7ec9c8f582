package repository

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/gatekeeper/internal/model"
)

// MemorySessionRepo はプロセス内メモリにセッションを保持するリポジトリ。
// 単一プロセスでの開発用途とテスト用。プロセス再起動でセッションは失われる。
type MemorySessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]model.Session
	now      func() time.Time
}

// NewMemorySessionRepo はMemorySessionRepoを生成する。
func NewMemorySessionRepo() *MemorySessionRepo {
	return &MemorySessionRepo{
		sessions: make(map[string]model.Session),
		now:      time.Now,
	}
}

// Create はセッションを保存する。
func (r *MemorySessionRepo) Create(_ context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.purgeExpiredLocked()
	r.sessions[session.ID] = *session
	return nil
}

// FindByID は指定IDのセッションを返す。存在しない・期限切れの場合はnilを返す。
func (r *MemorySessionRepo) FindByID(_ context.Context, id string) (*model.Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()

	if !ok || s.IsExpired(r.now()) {
		return nil, nil
	}
	return &s, nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *MemorySessionRepo) DeleteByID(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, id)
	return nil
}

// Len は保持しているセッション数を返す。テスト用。
func (r *MemorySessionRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// purgeExpiredLocked は期限切れセッションを削除する。呼び出し側でロックを保持すること。
func (r *MemorySessionRepo) purgeExpiredLocked() {
	now := r.now()
	for id, s := range r.sessions {
		if s.IsExpired(now) {
			delete(r.sessions, id)
		}
	}
}

// compile-time interface check
var _ SessionRepository = (*MemorySessionRepo)(nil)
