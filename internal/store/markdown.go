package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cabinetdiet/cabinet/internal/model"
)

var safeFileName = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// Markdown stores each post as <slug>.md with a YAML frontmatter header and
// the content as the document body, the layout used by the site's content
// editor. Files written by the editor may lack an id; those get ids after the
// highest explicit one, in file name order, and keep them once saved here.
type Markdown struct {
	dir string
	mu  sync.RWMutex
}

// NewMarkdown returns a collection rooted at dir. The directory is created on
// the first write.
func NewMarkdown(dir string) *Markdown {
	return &Markdown{dir: dir}
}

type frontmatter struct {
	ID              int64  `yaml:"id,omitempty"`
	Title           string `yaml:"title"`
	Slug            string `yaml:"slug"`
	Excerpt         string `yaml:"excerpt"`
	CoverImage      string `yaml:"coverImage,omitempty"`
	Category        string `yaml:"category"`
	CategorySlug    string `yaml:"categorySlug,omitempty"`
	Author          string `yaml:"author,omitempty"`
	PublishedAt     string `yaml:"publishedAt"`
	MetaTitle       string `yaml:"metaTitle,omitempty"`
	MetaDescription string `yaml:"metaDescription,omitempty"`
	Featured        bool   `yaml:"featured"`
	ReadingTime     int    `yaml:"readingTime,omitempty"`
}

func frontmatterFromModel(p *model.Post) frontmatter {
	return frontmatter{
		ID:              p.ID,
		Title:           p.Title,
		Slug:            p.Slug,
		Excerpt:         p.Excerpt,
		CoverImage:      p.CoverImage,
		Category:        p.Category,
		CategorySlug:    p.CategorySlug,
		Author:          p.Author,
		PublishedAt:     p.PublishedAt,
		MetaTitle:       p.MetaTitle,
		MetaDescription: p.MetaDescription,
		Featured:        p.Featured,
		ReadingTime:     p.ReadingTime,
	}
}

func (f frontmatter) toModel(content string) model.Post {
	return model.Post{
		ID:              f.ID,
		Title:           f.Title,
		Slug:            f.Slug,
		Excerpt:         f.Excerpt,
		Content:         content,
		CoverImage:      f.CoverImage,
		Category:        f.Category,
		CategorySlug:    f.CategorySlug,
		Author:          f.Author,
		PublishedAt:     normalizeDate(f.PublishedAt),
		MetaTitle:       f.MetaTitle,
		MetaDescription: f.MetaDescription,
		Featured:        f.Featured,
		ReadingTime:     f.ReadingTime,
	}
}

// normalizeDate reduces editor datetimes such as 2024-12-15T00:00:00.000Z to
// the calendar date.
func normalizeDate(s string) string {
	if len(s) <= len("2006-01-02") {
		return s
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC().Format("2006-01-02")
	}
	return s
}

type markdownEntry struct {
	name string
	post model.Post
}

func (s *Markdown) ListPosts(ctx context.Context) ([]model.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, err := s.load()
	if err != nil {
		return nil, err
	}
	posts := make([]model.Post, len(entries))
	for i, e := range entries {
		posts[i] = e.post
	}
	return posts, nil
}

func (s *Markdown) GetPost(ctx context.Context, id int64) (*model.Post, error) {
	posts, err := s.ListPosts(ctx)
	if err != nil {
		return nil, err
	}
	return findByID(posts, id)
}

func (s *Markdown) GetPostBySlug(ctx context.Context, slug string) (*model.Post, error) {
	posts, err := s.ListPosts(ctx)
	if err != nil {
		return nil, err
	}
	return findBySlug(posts, slug)
}

func (s *Markdown) SavePost(ctx context.Context, post *model.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.load()
	if err != nil {
		return err
	}
	name := fileNameFor(post)
	previous := ""
	for _, e := range entries {
		if e.post.ID == post.ID {
			previous = e.name
		} else if e.name == name {
			return fmt.Errorf("file %s already holds post %d", name, e.post.ID)
		}
	}
	if err := s.write(name, post); err != nil {
		return err
	}
	if previous != "" && previous != name {
		if err := os.Remove(filepath.Join(s.dir, previous)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", previous, err)
		}
	}
	return nil
}

func (s *Markdown) DeletePost(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.load()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.post.ID == id {
			if err := os.Remove(filepath.Join(s.dir, e.name)); err != nil {
				return fmt.Errorf("remove %s: %w", e.name, err)
			}
			return nil
		}
	}
	return ErrNotFound
}

func (s *Markdown) ReplacePosts(ctx context.Context, posts []model.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.load()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.Remove(filepath.Join(s.dir, e.name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", e.name, err)
		}
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create content dir: %w", err)
	}
	for i := range posts {
		if err := s.write(fileNameFor(&posts[i]), &posts[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Markdown) PostsInitialized(ctx context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, err := os.Stat(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat content dir: %w", err)
	}
	return info.IsDir(), nil
}

// load reads every .md file of the collection. A missing directory is an
// empty collection.
func (s *Markdown) load() ([]markdownEntry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read content dir: %w", err)
	}

	var entries []markdownEntry
	var maxID int64
	for _, de := range dirEntries {
		if de.IsDir() || filepath.Ext(de.Name()) != ".md" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, de.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", de.Name(), err)
		}
		fm, body, err := parseMarkdown(data)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", de.Name(), err)
		}
		post := fm.toModel(body)
		if post.Slug == "" {
			post.Slug = strings.TrimSuffix(de.Name(), ".md")
		}
		if post.ID > maxID {
			maxID = post.ID
		}
		entries = append(entries, markdownEntry{name: de.Name(), post: post})
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].name < entries[j].name })
	for i := range entries {
		if entries[i].post.ID == 0 {
			maxID++
			entries[i].post.ID = maxID
		}
	}
	return entries, nil
}

func (s *Markdown) write(name string, post *model.Post) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create content dir: %w", err)
	}
	data, err := renderMarkdown(frontmatterFromModel(post), post.Content)
	if err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	return writeFileAtomic(filepath.Join(s.dir, name), data, 0o644)
}

func fileNameFor(p *model.Post) string {
	if safeFileName.MatchString(p.Slug) {
		return p.Slug + ".md"
	}
	return fmt.Sprintf("post-%d.md", p.ID)
}

// parseMarkdown splits a document into its YAML frontmatter and body. The
// single blank line that conventionally follows the closing delimiter is not
// part of the body.
func parseMarkdown(data []byte) (frontmatter, string, error) {
	var fm frontmatter
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	if !strings.HasPrefix(text, "---\n") {
		return fm, "", errors.New("missing frontmatter")
	}
	rest := text[len("---\n"):]

	var head, body string
	switch {
	case strings.HasPrefix(rest, "---\n"):
		body = rest[len("---\n"):]
	case strings.Contains(rest, "\n---\n"):
		idx := strings.Index(rest, "\n---\n")
		head, body = rest[:idx], rest[idx+len("\n---\n"):]
	case strings.HasSuffix(rest, "\n---"):
		head = strings.TrimSuffix(rest, "\n---")
	default:
		return fm, "", errors.New("unterminated frontmatter")
	}

	if err := yaml.Unmarshal([]byte(head), &fm); err != nil {
		return fm, "", fmt.Errorf("decode frontmatter: %w", err)
	}
	return fm, strings.TrimPrefix(body, "\n"), nil
}

func renderMarkdown(fm frontmatter, content string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("---\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(fm); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	buf.WriteString("---\n\n")
	buf.WriteString(content)
	return buf.Bytes(), nil
}
