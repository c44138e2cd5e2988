package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/cabinetdiet/cabinet/internal/model"
)

const postsInitializedKey = "posts.initialized"

// SQLite keeps posts and the identity as JSON documents in a single SQLite
// file. It is a document store: each row holds one whole record, with the
// slug and date copied out only for lookup and ordering.
type SQLite struct {
	db *sqlx.DB
}

// NewSQLite opens (or creates) cabinet.db in dataDir. Pass an empty string
// for an in-memory database.
func NewSQLite(dataDir string) (*SQLite, error) {
	var dsn string
	if dataDir == "" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "cabinet.db") + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Posts
// ---------------------------------------------------------------------------

type postRow struct {
	ID          int64  `db:"id"`
	Slug        string `db:"slug"`
	PublishedAt string `db:"published_at"`
	Doc         string `db:"doc"`
}

func postRowFromModel(p *model.Post) (postRow, error) {
	doc, err := json.Marshal(p)
	if err != nil {
		return postRow{}, fmt.Errorf("encode post %d: %w", p.ID, err)
	}
	return postRow{ID: p.ID, Slug: p.Slug, PublishedAt: p.PublishedAt, Doc: string(doc)}, nil
}

func (r postRow) toModel() (model.Post, error) {
	var p model.Post
	if err := json.Unmarshal([]byte(r.Doc), &p); err != nil {
		return p, fmt.Errorf("decode post %d: %w", r.ID, err)
	}
	p.ID = r.ID
	return p, nil
}

func (s *SQLite) ListPosts(ctx context.Context) ([]model.Post, error) {
	var rows []postRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT id, slug, published_at, doc FROM posts ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	posts := make([]model.Post, 0, len(rows))
	for _, r := range rows {
		p, err := r.toModel()
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, nil
}

func (s *SQLite) GetPost(ctx context.Context, id int64) (*model.Post, error) {
	return s.getPost(ctx, `SELECT id, slug, published_at, doc FROM posts WHERE id = ?`, id)
}

func (s *SQLite) GetPostBySlug(ctx context.Context, slug string) (*model.Post, error) {
	return s.getPost(ctx, `SELECT id, slug, published_at, doc FROM posts WHERE slug = ? ORDER BY id LIMIT 1`, slug)
}

func (s *SQLite) getPost(ctx context.Context, query string, arg interface{}) (*model.Post, error) {
	var r postRow
	if err := s.db.GetContext(ctx, &r, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get post: %w", err)
	}
	p, err := r.toModel()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

const upsertPost = `INSERT INTO posts (id, slug, published_at, doc)
	VALUES (:id, :slug, :published_at, :doc)
	ON CONFLICT(id) DO UPDATE SET
		slug = excluded.slug,
		published_at = excluded.published_at,
		doc = excluded.doc`

func (s *SQLite) SavePost(ctx context.Context, post *model.Post) error {
	row, err := postRowFromModel(post)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, upsertPost, row); err != nil {
		return fmt.Errorf("save post %d: %w", post.ID, err)
	}
	if err := markInitialized(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLite) DeletePost(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete post %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete post %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) ReplacePosts(ctx context.Context, posts []model.Post) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM posts`); err != nil {
		return fmt.Errorf("clear posts: %w", err)
	}
	for i := range posts {
		row, err := postRowFromModel(&posts[i])
		if err != nil {
			return err
		}
		if _, err := tx.NamedExecContext(ctx, upsertPost, row); err != nil {
			return fmt.Errorf("insert post %d: %w", posts[i].ID, err)
		}
	}
	if err := markInitialized(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLite) PostsInitialized(ctx context.Context) (bool, error) {
	var n int
	if err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM meta WHERE key = ?`, postsInitializedKey); err != nil {
		return false, fmt.Errorf("read meta: %w", err)
	}
	return n > 0, nil
}

func markInitialized(ctx context.Context, tx *sqlx.Tx) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO NOTHING`,
		postsInitializedKey, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Identity
// ---------------------------------------------------------------------------

func (s *SQLite) LoadAdmin(ctx context.Context) (*model.Admin, error) {
	var doc string
	if err := s.db.GetContext(ctx, &doc, `SELECT doc FROM admin WHERE id = 1`); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load admin: %w", err)
	}
	var rec adminRecord
	if err := json.Unmarshal([]byte(doc), &rec); err != nil {
		return nil, fmt.Errorf("decode admin: %w", err)
	}
	return rec.toModel(), nil
}

func (s *SQLite) SaveAdmin(ctx context.Context, admin *model.Admin) error {
	doc, err := json.Marshal(adminRecordFromModel(admin))
	if err != nil {
		return fmt.Errorf("encode admin: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO admin (id, doc) VALUES (1, ?) ON CONFLICT(id) DO UPDATE SET doc = excluded.doc`,
		string(doc)); err != nil {
		return fmt.Errorf("save admin: %w", err)
	}
	return nil
}
