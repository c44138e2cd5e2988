package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cabinetdiet/cabinet/internal/model"
)

const (
	adminFile = "admin.json"
	postsFile = "posts.json"
)

// JSONFile stores the identity in admin.json and the posts in posts.json
// inside one directory. Files are rewritten whole and atomically; reads go to
// disk every time so that edits made while the server runs are picked up.
type JSONFile struct {
	dir string
	mu  sync.RWMutex
}

// NewJSONFile returns a store rooted at dir, creating the directory if needed.
func NewJSONFile(dir string) (*JSONFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &JSONFile{dir: dir}, nil
}

// Dir returns the directory holding the files.
func (s *JSONFile) Dir() string {
	return s.dir
}

// ---------------------------------------------------------------------------
// Posts
// ---------------------------------------------------------------------------

func (s *JSONFile) ListPosts(ctx context.Context) ([]model.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readPosts()
}

func (s *JSONFile) GetPost(ctx context.Context, id int64) (*model.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	posts, err := s.readPosts()
	if err != nil {
		return nil, err
	}
	return findByID(posts, id)
}

func (s *JSONFile) GetPostBySlug(ctx context.Context, slug string) (*model.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	posts, err := s.readPosts()
	if err != nil {
		return nil, err
	}
	return findBySlug(posts, slug)
}

func (s *JSONFile) SavePost(ctx context.Context, post *model.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	posts, err := s.readPosts()
	if err != nil {
		return err
	}
	replaced := false
	for i := range posts {
		if posts[i].ID == post.ID {
			posts[i] = *post
			replaced = true
			break
		}
	}
	if !replaced {
		posts = append(posts, *post)
	}
	return s.writeJSON(postsFile, posts, 0o644)
}

func (s *JSONFile) DeletePost(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	posts, err := s.readPosts()
	if err != nil {
		return err
	}
	for i := range posts {
		if posts[i].ID == id {
			posts = append(posts[:i], posts[i+1:]...)
			return s.writeJSON(postsFile, posts, 0o644)
		}
	}
	return ErrNotFound
}

func (s *JSONFile) ReplacePosts(ctx context.Context, posts []model.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if posts == nil {
		posts = []model.Post{}
	}
	return s.writeJSON(postsFile, posts, 0o644)
}

func (s *JSONFile) PostsInitialized(ctx context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err := os.Stat(filepath.Join(s.dir, postsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", postsFile, err)
	}
	return true, nil
}

func (s *JSONFile) readPosts() ([]model.Post, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, postsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return []model.Post{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", postsFile, err)
	}
	var posts []model.Post
	if err := json.Unmarshal(data, &posts); err != nil {
		return nil, fmt.Errorf("decode %s: %w", postsFile, err)
	}
	return posts, nil
}

// ---------------------------------------------------------------------------
// Identity
// ---------------------------------------------------------------------------

// adminRecord is the on-disk shape of the identity. Unlike model.Admin it
// serializes the password hash.
type adminRecord struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"passwordHash"`
	Role         string     `json:"role"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
}

func adminRecordFromModel(a *model.Admin) adminRecord {
	return adminRecord{
		ID:           a.ID,
		Username:     a.Username,
		PasswordHash: a.PasswordHash,
		Role:         a.Role,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func (r adminRecord) toModel() *model.Admin {
	return &model.Admin{
		ID:           r.ID,
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		Role:         r.Role,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func (s *JSONFile) LoadAdmin(ctx context.Context) (*model.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := os.ReadFile(filepath.Join(s.dir, adminFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", adminFile, err)
	}
	var rec adminRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", adminFile, err)
	}
	return rec.toModel(), nil
}

func (s *JSONFile) SaveAdmin(ctx context.Context, admin *model.Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(adminFile, adminRecordFromModel(admin), 0o600)
}

func (s *JSONFile) writeJSON(name string, v interface{}, perm os.FileMode) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return writeFileAtomic(filepath.Join(s.dir, name), append(data, '\n'), perm)
}

// writeFileAtomic writes data to a temporary file next to path and renames it
// into place, so readers see either the old or the new content.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("chmod %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
