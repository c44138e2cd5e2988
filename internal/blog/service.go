// Package blog implements the post store: validation, sanitization, derived
// fields, slug allocation and the seed set, over a store.PostRepository.
package blog

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cabinetdiet/cabinet/internal/model"
	"github.com/cabinetdiet/cabinet/internal/store"
)

// User facing validation messages.
const (
	MsgTitleRequired    = "Le titre est obligatoire."
	MsgExcerptRequired  = "Le résumé est obligatoire."
	MsgContentRequired  = "Le contenu est obligatoire."
	MsgCategoryRequired = "La catégorie est obligatoire."
)

const (
	defaultAuthor          = "Pauline Rolland"
	defaultMetaTitleSuffix = "Conseils diététicienne Dijon"
	defaultCoverImage      = "/images/blog/default.jpg"
	defaultRecentLimit     = 3
	// extraCategoryColor is used for categories that are not in the fixed list.
	extraCategoryColor = "#7c9082"
)

// Options tunes the defaults applied to new posts.
type Options struct {
	Author            string
	MetaTitleSuffix   string
	DefaultCoverImage string
	Logger            *slog.Logger
	// Now is used for the default publication date. Defaults to time.Now.
	Now func() time.Time
}

// Service is the post store. Writes are serialized so that id and slug
// allocation see a consistent collection.
type Service struct {
	repo      store.PostRepository
	sanitizer *Sanitizer
	opts      Options
	logger    *slog.Logger

	mu     sync.Mutex
	seeded bool
}

// NewService returns a post store over repo.
func NewService(repo store.PostRepository, opts Options) *Service {
	if opts.Author == "" {
		opts.Author = defaultAuthor
	}
	if opts.MetaTitleSuffix == "" {
		opts.MetaTitleSuffix = defaultMetaTitleSuffix
	}
	if opts.DefaultCoverImage == "" {
		opts.DefaultCoverImage = defaultCoverImage
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		sanitizer: NewSanitizer(),
		opts:      opts,
		logger:    logger,
	}
}

// Sanitizer returns the HTML policy applied to post text.
func (s *Service) Sanitizer() *Sanitizer {
	return s.sanitizer
}

// EnsureSeeded writes the default posts when the repository has never been
// written. A collection emptied by deletes stays empty.
func (s *Service) EnsureSeeded(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureSeededLocked(ctx)
}

func (s *Service) ensureSeededLocked(ctx context.Context) error {
	if s.seeded {
		return nil
	}
	initialized, err := s.repo.PostsInitialized(ctx)
	if err != nil {
		return fmt.Errorf("check posts: %w", err)
	}
	if !initialized {
		seed, err := SeedPosts()
		if err != nil {
			return err
		}
		if err := s.repo.ReplacePosts(ctx, seed); err != nil {
			return fmt.Errorf("seed posts: %w", err)
		}
		s.logger.Info("seeded default posts", "count", len(seed))
	}
	s.seeded = true
	return nil
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

// List returns every post, newest first.
func (s *Service) List(ctx context.Context) ([]model.Post, error) {
	if err := s.EnsureSeeded(ctx); err != nil {
		return nil, err
	}
	posts, err := s.repo.ListPosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	for i := range posts {
		normalize(&posts[i])
	}
	sortPosts(posts)
	return posts, nil
}

// ByCategory returns the posts whose category slug matches. "all" and ""
// match every post.
func (s *Service) ByCategory(ctx context.Context, categorySlug string) ([]model.Post, error) {
	posts, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if categorySlug == "" || categorySlug == "all" {
		return posts, nil
	}
	return filter(posts, func(p *model.Post) bool { return p.CategorySlug == categorySlug }), nil
}

// Featured returns the posts flagged for the home page.
func (s *Service) Featured(ctx context.Context) ([]model.Post, error) {
	posts, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return filter(posts, func(p *model.Post) bool { return p.Featured }), nil
}

// Recent returns the newest posts. A non-positive limit means 3.
func (s *Service) Recent(ctx context.Context, limit int) ([]model.Post, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	posts, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

func (s *Service) GetBySlug(ctx context.Context, slug string) (*model.Post, error) {
	if err := s.EnsureSeeded(ctx); err != nil {
		return nil, err
	}
	p, err := s.repo.GetPostBySlug(ctx, slug)
	if err != nil {
		return nil, mapNotFound(err)
	}
	normalize(p)
	return p, nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (*model.Post, error) {
	if err := s.EnsureSeeded(ctx); err != nil {
		return nil, err
	}
	p, err := s.repo.GetPost(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	normalize(p)
	return p, nil
}

// Categories returns the fixed category list followed by any category used
// by a post but missing from it.
func (s *Service) Categories(ctx context.Context) ([]model.Category, error) {
	posts, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	cats := DefaultCategories()
	known := make(map[string]bool, len(cats))
	for _, c := range cats {
		known[c.ID] = true
	}
	for _, p := range posts {
		if p.CategorySlug == "" || known[p.CategorySlug] {
			continue
		}
		known[p.CategorySlug] = true
		cats = append(cats, model.Category{ID: p.CategorySlug, Name: p.Category, Color: extraCategoryColor})
	}
	return cats, nil
}

// ---------------------------------------------------------------------------
// Writes
// ---------------------------------------------------------------------------

// Create validates and stores a new post. Title, excerpt, content and
// category are required.
func (s *Service) Create(ctx context.Context, in model.PostInput) (*model.Post, error) {
	if err := requireText(in.Title, "title", MsgTitleRequired); err != nil {
		return nil, err
	}
	if err := requireText(in.Excerpt, "excerpt", MsgExcerptRequired); err != nil {
		return nil, err
	}
	if err := requireText(in.Content, "content", MsgContentRequired); err != nil {
		return nil, err
	}
	if err := requireText(in.Category, "category", MsgCategoryRequired); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureSeededLocked(ctx); err != nil {
		return nil, err
	}
	posts, err := s.repo.ListPosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	title := s.sanitizer.Sanitize(*in.Title)
	excerpt := s.sanitizer.Sanitize(*in.Excerpt)
	category := s.plain(*in.Category)
	if category == "" {
		return nil, required("category", MsgCategoryRequired)
	}
	post := model.Post{
		ID:              nextID(posts),
		Title:           title,
		Excerpt:         excerpt,
		Content:         s.sanitizer.Sanitize(*in.Content),
		CoverImage:      valueOr(in.CoverImage, s.opts.DefaultCoverImage),
		Category:        category,
		Author:          s.plain(valueOr(in.Author, s.opts.Author)),
		PublishedAt:     valueOr(in.PublishedAt, s.today()),
		MetaTitle:       s.sanitizer.Sanitize(valueOr(in.MetaTitle, title+" | "+s.opts.MetaTitleSuffix)),
		MetaDescription: s.sanitizer.Sanitize(valueOr(in.MetaDescription, excerpt)),
		Featured:        in.Featured != nil && *in.Featured,
	}
	post.Slug, err = allocateSlug(posts, post.ID, in.Slug, title)
	if err != nil {
		return nil, err
	}
	derive(&post)

	if err := s.repo.SavePost(ctx, &post); err != nil {
		return nil, fmt.Errorf("save post: %w", err)
	}
	s.logger.Info("post created", "id", post.ID, "slug", post.Slug)
	return &post, nil
}

// Update merges the provided fields over the stored post. Title is required;
// other text fields, when present, must not be blank. An unknown id returns
// ErrNotFound without touching the store.
func (s *Service) Update(ctx context.Context, id int64, in model.PostInput) (*model.Post, error) {
	if err := requireText(in.Title, "title", MsgTitleRequired); err != nil {
		return nil, err
	}
	if in.Excerpt != nil {
		if err := requireText(in.Excerpt, "excerpt", MsgExcerptRequired); err != nil {
			return nil, err
		}
	}
	if in.Content != nil {
		if err := requireText(in.Content, "content", MsgContentRequired); err != nil {
			return nil, err
		}
	}
	if in.Category != nil {
		if err := requireText(in.Category, "category", MsgCategoryRequired); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureSeededLocked(ctx); err != nil {
		return nil, err
	}
	posts, err := s.repo.ListPosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	var post model.Post
	found := false
	for _, p := range posts {
		if p.ID == id {
			post, found = p, true
			break
		}
	}
	if !found {
		return nil, ErrNotFound
	}

	post.Title = s.sanitizer.Sanitize(*in.Title)
	if in.Excerpt != nil {
		post.Excerpt = s.sanitizer.Sanitize(*in.Excerpt)
	}
	if in.Content != nil {
		post.Content = s.sanitizer.Sanitize(*in.Content)
	}
	if in.Category != nil {
		if post.Category = s.plain(*in.Category); post.Category == "" {
			return nil, required("category", MsgCategoryRequired)
		}
	}
	if in.CoverImage != nil {
		post.CoverImage = *in.CoverImage
	}
	if in.Author != nil {
		post.Author = s.plain(*in.Author)
	}
	if in.PublishedAt != nil {
		post.PublishedAt = *in.PublishedAt
	}
	if in.MetaTitle != nil {
		post.MetaTitle = s.sanitizer.Sanitize(*in.MetaTitle)
	}
	if in.MetaDescription != nil {
		post.MetaDescription = s.sanitizer.Sanitize(*in.MetaDescription)
	}
	if in.Featured != nil {
		post.Featured = *in.Featured
	}
	if in.Slug != nil && strings.TrimSpace(*in.Slug) != "" {
		post.Slug, err = allocateSlug(posts, id, in.Slug, post.Title)
		if err != nil {
			return nil, err
		}
	}
	derive(&post)

	if err := s.repo.SavePost(ctx, &post); err != nil {
		return nil, fmt.Errorf("save post %d: %w", id, err)
	}
	s.logger.Info("post updated", "id", post.ID, "slug", post.Slug)
	return &post, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureSeededLocked(ctx); err != nil {
		return err
	}
	if err := s.repo.DeletePost(ctx, id); err != nil {
		return mapNotFound(err)
	}
	s.logger.Info("post deleted", "id", id)
	return nil
}

// Reset replaces every post with the default set and returns it, newest
// first. It is destructive and idempotent.
func (s *Service) Reset(ctx context.Context) ([]model.Post, error) {
	seed, err := SeedPosts()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.ReplacePosts(ctx, seed); err != nil {
		return nil, fmt.Errorf("reset posts: %w", err)
	}
	s.seeded = true
	s.logger.Warn("posts reset to defaults", "count", len(seed))

	for i := range seed {
		normalize(&seed[i])
	}
	sortPosts(seed)
	return seed, nil
}

func (s *Service) today() string {
	return s.opts.Now().UTC().Format("2006-01-02")
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// plain sanitizes a short display field such as a category or author name.
func (s *Service) plain(v string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(v))
}

func requireText(v *string, field, message string) error {
	if v == nil || strings.TrimSpace(*v) == "" {
		return required(field, message)
	}
	return nil
}

// valueOr returns *v, or def when v is absent or empty.
func valueOr(v *string, def string) string {
	if v == nil || *v == "" {
		return def
	}
	return *v
}

func nextID(posts []model.Post) int64 {
	var highest int64
	for _, p := range posts {
		if p.ID > highest {
			highest = p.ID
		}
	}
	return highest + 1
}

// allocateSlug picks the slug for post id. A requested slug must be free; a
// slug generated from the title gets a numeric suffix until it is.
func allocateSlug(posts []model.Post, id int64, requested *string, title string) (string, error) {
	if requested != nil && strings.TrimSpace(*requested) != "" {
		if slug := Slugify(*requested); slug != "" {
			if slugTaken(posts, slug, id) {
				return "", ErrSlugTaken
			}
			return slug, nil
		}
	}
	base := Slugify(html.UnescapeString(title))
	if base == "" {
		base = fmt.Sprintf("article-%d", id)
	}
	slug := base
	for n := 2; slugTaken(posts, slug, id); n++ {
		slug = fmt.Sprintf("%s-%d", base, n)
	}
	return slug, nil
}

func slugTaken(posts []model.Post, slug string, exceptID int64) bool {
	for _, p := range posts {
		if p.ID != exceptID && p.Slug == slug {
			return true
		}
	}
	return false
}

func derive(p *model.Post) {
	p.CategorySlug = CategorySlug(p.Category)
	p.ReadingTime = ReadingTime(p.Content)
}

// normalize fills derived fields missing from hand-edited records.
func normalize(p *model.Post) {
	if p.CategorySlug == "" && p.Category != "" {
		p.CategorySlug = CategorySlug(p.Category)
	}
	if p.ReadingTime == 0 {
		p.ReadingTime = ReadingTime(p.Content)
	}
}

func sortPosts(posts []model.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		if posts[i].PublishedAt != posts[j].PublishedAt {
			return posts[i].PublishedAt > posts[j].PublishedAt
		}
		return posts[i].ID > posts[j].ID
	})
}

func filter(posts []model.Post, keep func(*model.Post) bool) []model.Post {
	out := make([]model.Post, 0, len(posts))
	for i := range posts {
		if keep(&posts[i]) {
			out = append(out, posts[i])
		}
	}
	return out
}

func mapNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
