// Package store persists the admin identity and the blog posts. Every
// backend implements PostRepository and, except for the Markdown collection,
// IdentityRepository.
package store

import (
	"context"
	"errors"

	"github.com/cabinetdiet/cabinet/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// PostRepository stores blog posts keyed by id. Implementations are safe for
// concurrent use within one process; across processes the last write wins.
type PostRepository interface {
	// ListPosts returns every stored post in no particular order.
	ListPosts(ctx context.Context) ([]model.Post, error)
	GetPost(ctx context.Context, id int64) (*model.Post, error)
	GetPostBySlug(ctx context.Context, slug string) (*model.Post, error)
	// SavePost inserts the post or replaces the one with the same id.
	SavePost(ctx context.Context, post *model.Post) error
	DeletePost(ctx context.Context, id int64) error
	// ReplacePosts swaps the whole collection for posts.
	ReplacePosts(ctx context.Context, posts []model.Post) error
	// PostsInitialized reports whether the collection was ever written, so
	// that an empty collection can be told apart from a fresh install.
	PostsInitialized(ctx context.Context) (bool, error)
}

// IdentityRepository stores the single admin identity.
type IdentityRepository interface {
	// LoadAdmin returns ErrNotFound when no identity has been created yet.
	LoadAdmin(ctx context.Context) (*model.Admin, error)
	SaveAdmin(ctx context.Context, admin *model.Admin) error
}

func findBySlug(posts []model.Post, slug string) (*model.Post, error) {
	for i := range posts {
		if posts[i].Slug == slug {
			p := posts[i]
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func findByID(posts []model.Post, id int64) (*model.Post, error) {
	for i := range posts {
		if posts[i].ID == id {
			p := posts[i]
			return &p, nil
		}
	}
	return nil, ErrNotFound
}
