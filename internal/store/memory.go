package store

import (
	"context"
	"sync"

	"github.com/cabinetdiet/cabinet/internal/model"
)

// Memory keeps posts and the identity in process memory. It backs tests and
// the "memory" storage driver.
type Memory struct {
	mu          sync.RWMutex
	posts       []model.Post
	initialized bool
	admin       *model.Admin
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) ListPosts(ctx context.Context) ([]model.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Post, len(m.posts))
	copy(out, m.posts)
	return out, nil
}

func (m *Memory) GetPost(ctx context.Context, id int64) (*model.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return findByID(m.posts, id)
}

func (m *Memory) GetPostBySlug(ctx context.Context, slug string) (*model.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return findBySlug(m.posts, slug)
}

func (m *Memory) SavePost(ctx context.Context, post *model.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialized = true
	for i := range m.posts {
		if m.posts[i].ID == post.ID {
			m.posts[i] = *post
			return nil
		}
	}
	m.posts = append(m.posts, *post)
	return nil
}

func (m *Memory) DeletePost(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.posts {
		if m.posts[i].ID == id {
			m.posts = append(m.posts[:i], m.posts[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) ReplacePosts(ctx context.Context, posts []model.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts = make([]model.Post, len(posts))
	copy(m.posts, posts)
	m.initialized = true
	return nil
}

func (m *Memory) PostsInitialized(ctx context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialized, nil
}

func (m *Memory) LoadAdmin(ctx context.Context) (*model.Admin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.admin == nil {
		return nil, ErrNotFound
	}
	a := *m.admin
	return &a, nil
}

func (m *Memory) SaveAdmin(ctx context.Context, admin *model.Admin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := *admin
	m.admin = &a
	return nil
}
