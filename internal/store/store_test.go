package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cabinetdiet/cabinet/internal/model"
)

// backends returns one instance of every repository kind, each isolated in
// its own temp dir.
func backends(t *testing.T) map[string]*Backend {
	t.Helper()
	out := make(map[string]*Backend)
	for _, driver := range []string{DriverMemory, DriverJSON, DriverMarkdown, DriverSQLite} {
		opts := Options{Driver: driver, DataDir: t.TempDir()}
		if driver == DriverSQLite {
			opts.DataDir = "" // in-memory
		}
		b, err := Open(opts)
		if err != nil {
			t.Fatalf("Open(%s): %v", driver, err)
		}
		t.Cleanup(func() { b.Close() })
		out[driver] = b
	}
	return out
}

func samplePost(id int64, slug string) model.Post {
	return model.Post{
		ID:           id,
		Title:        "Titre " + slug,
		Slug:         slug,
		Excerpt:      "Résumé",
		Content:      "<p>Contenu de l'article</p>",
		CoverImage:   "/images/blog/default.jpg",
		Category:     "Nutrition",
		CategorySlug: "nutrition",
		Author:       "Pauline Rolland",
		PublishedAt:  "2024-12-15",
		MetaTitle:    "Titre",
		Featured:     id == 1,
		ReadingTime:  1,
	}
}

// ---------------------------------------------------------------------------
// PostRepository contract
// ---------------------------------------------------------------------------

func TestPostCRUD(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repo := b.Posts

			initialized, err := repo.PostsInitialized(ctx)
			if err != nil {
				t.Fatalf("PostsInitialized: %v", err)
			}
			if initialized {
				t.Fatal("fresh store reports initialized")
			}

			posts, err := repo.ListPosts(ctx)
			if err != nil {
				t.Fatalf("ListPosts: %v", err)
			}
			if len(posts) != 0 {
				t.Fatalf("got %d posts, want 0", len(posts))
			}

			p := samplePost(1, "premier-article")
			if err := repo.SavePost(ctx, &p); err != nil {
				t.Fatalf("SavePost: %v", err)
			}

			initialized, _ = repo.PostsInitialized(ctx)
			if !initialized {
				t.Error("store not initialized after SavePost")
			}

			got, err := repo.GetPost(ctx, 1)
			if err != nil {
				t.Fatalf("GetPost: %v", err)
			}
			if *got != p {
				t.Errorf("GetPost = %+v, want %+v", *got, p)
			}

			got, err = repo.GetPostBySlug(ctx, "premier-article")
			if err != nil {
				t.Fatalf("GetPostBySlug: %v", err)
			}
			if got.ID != 1 {
				t.Errorf("got ID %d, want 1", got.ID)
			}

			// Update in place, including a slug change.
			p.Title = "Titre modifié"
			p.Slug = "article-modifie"
			if err := repo.SavePost(ctx, &p); err != nil {
				t.Fatalf("SavePost (update): %v", err)
			}
			posts, _ = repo.ListPosts(ctx)
			if len(posts) != 1 {
				t.Fatalf("got %d posts after update, want 1", len(posts))
			}
			if posts[0].Title != "Titre modifié" {
				t.Errorf("got title %q", posts[0].Title)
			}
			if _, err := repo.GetPostBySlug(ctx, "premier-article"); !errors.Is(err, ErrNotFound) {
				t.Errorf("old slug lookup: got %v, want ErrNotFound", err)
			}

			if err := repo.DeletePost(ctx, 1); err != nil {
				t.Fatalf("DeletePost: %v", err)
			}
			if _, err := repo.GetPost(ctx, 1); !errors.Is(err, ErrNotFound) {
				t.Errorf("GetPost after delete: got %v, want ErrNotFound", err)
			}
			if err := repo.DeletePost(ctx, 1); !errors.Is(err, ErrNotFound) {
				t.Errorf("second DeletePost: got %v, want ErrNotFound", err)
			}

			// Emptied by deletion is still initialized.
			initialized, _ = repo.PostsInitialized(ctx)
			if !initialized {
				t.Error("store lost initialized flag after delete")
			}
		})
	}
}

func TestReplacePosts(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repo := b.Posts
			old := samplePost(7, "ancien")
			if err := repo.SavePost(ctx, &old); err != nil {
				t.Fatalf("SavePost: %v", err)
			}

			seed := []model.Post{samplePost(1, "un"), samplePost(2, "deux"), samplePost(3, "trois")}
			for i := 0; i < 2; i++ {
				if err := repo.ReplacePosts(ctx, seed); err != nil {
					t.Fatalf("ReplacePosts #%d: %v", i+1, err)
				}
			}

			posts, err := repo.ListPosts(ctx)
			if err != nil {
				t.Fatalf("ListPosts: %v", err)
			}
			if len(posts) != 3 {
				t.Fatalf("got %d posts, want 3", len(posts))
			}
			if _, err := repo.GetPost(ctx, 7); !errors.Is(err, ErrNotFound) {
				t.Errorf("replaced post still present: %v", err)
			}
		})
	}
}

func TestReplacePostsEmpty(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := b.Posts.ReplacePosts(ctx, nil); err != nil {
				t.Fatalf("ReplacePosts: %v", err)
			}
			initialized, err := b.Posts.PostsInitialized(ctx)
			if err != nil {
				t.Fatalf("PostsInitialized: %v", err)
			}
			if !initialized {
				t.Error("empty replace should mark the store initialized")
			}
		})
	}
}

// ---------------------------------------------------------------------------
// IdentityRepository contract
// ---------------------------------------------------------------------------

func TestAdminRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repo := b.Identity
			if _, err := repo.LoadAdmin(ctx); !errors.Is(err, ErrNotFound) {
				t.Fatalf("LoadAdmin on empty store: got %v, want ErrNotFound", err)
			}

			created := time.Date(2024, 10, 1, 8, 0, 0, 0, time.UTC)
			admin := &model.Admin{
				ID:           1,
				Username:     "admin",
				PasswordHash: "$2a$12$abcdefghijklmnopqrstuv",
				Role:         model.RoleAdmin,
				CreatedAt:    created,
			}
			if err := repo.SaveAdmin(ctx, admin); err != nil {
				t.Fatalf("SaveAdmin: %v", err)
			}

			got, err := repo.LoadAdmin(ctx)
			if err != nil {
				t.Fatalf("LoadAdmin: %v", err)
			}
			if got.PasswordHash != admin.PasswordHash {
				t.Errorf("password hash not persisted: got %q", got.PasswordHash)
			}
			if !got.CreatedAt.Equal(created) {
				t.Errorf("got createdAt %v, want %v", got.CreatedAt, created)
			}
			if got.UpdatedAt != nil {
				t.Errorf("got updatedAt %v, want nil", got.UpdatedAt)
			}

			updated := created.Add(time.Hour)
			got.PasswordHash = "$2a$12$zyxwvutsrqponmlkjihgfe"
			got.UpdatedAt = &updated
			if err := repo.SaveAdmin(ctx, got); err != nil {
				t.Fatalf("SaveAdmin (update): %v", err)
			}
			again, err := repo.LoadAdmin(ctx)
			if err != nil {
				t.Fatalf("LoadAdmin: %v", err)
			}
			if again.PasswordHash != got.PasswordHash {
				t.Errorf("got hash %q, want %q", again.PasswordHash, got.PasswordHash)
			}
			if again.UpdatedAt == nil || !again.UpdatedAt.Equal(updated) {
				t.Errorf("got updatedAt %v, want %v", again.UpdatedAt, updated)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// JSON file specifics
// ---------------------------------------------------------------------------

func TestJSONFileAdminPermissions(t *testing.T) {
	dir := t.TempDir()
	s, err := NewJSONFile(dir)
	if err != nil {
		t.Fatalf("NewJSONFile: %v", err)
	}
	if err := s.SaveAdmin(context.Background(), &model.Admin{ID: 1, Username: "admin", Role: model.RoleAdmin}); err != nil {
		t.Fatalf("SaveAdmin: %v", err)
	}
	info, err := os.Stat(filepath.Join(dir, adminFile))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("admin.json mode %o, want 600", perm)
	}
}

func TestJSONFileCorruptFailsHard(t *testing.T) {
	dir := t.TempDir()
	s, err := NewJSONFile(dir)
	if err != nil {
		t.Fatalf("NewJSONFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, adminFile), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, postsFile), []byte("[{"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if _, err := s.LoadAdmin(ctx); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("LoadAdmin on corrupt file: got %v, want decode error", err)
	}
	if _, err := s.ListPosts(ctx); err == nil {
		t.Error("ListPosts on corrupt file: expected error")
	}
}

func TestJSONFileSeesExternalEdits(t *testing.T) {
	dir := t.TempDir()
	s, err := NewJSONFile(dir)
	if err != nil {
		t.Fatalf("NewJSONFile: %v", err)
	}
	doc := `[{"id": 4, "title": "Écrit à la main", "slug": "ecrit-main", "publishedAt": "2024-01-02"}]`
	if err := os.WriteFile(filepath.Join(dir, postsFile), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := s.GetPostBySlug(context.Background(), "ecrit-main")
	if err != nil {
		t.Fatalf("GetPostBySlug: %v", err)
	}
	if p.ID != 4 || p.Title != "Écrit à la main" {
		t.Errorf("got %+v", p)
	}
}

// ---------------------------------------------------------------------------
// Markdown specifics
// ---------------------------------------------------------------------------

func TestMarkdownReadsEditorFiles(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"b-second.md": "---\ntitle: Second\nexcerpt: Deux\ncategory: Recettes\npublishedAt: 2024-11-28T00:00:00.000Z\nfeatured: false\n---\n\nCorps **deux**\n",
		"a-premier.md": "---\ntitle: Premier\nslug: premier\nexcerpt: Un\ncategory: Nutrition\npublishedAt: 2024-12-15\nfeatured: true\n---\n\nCorps un\n",
		"c-trois.md":   "---\nid: 9\ntitle: Trois\nslug: trois\ncategory: Santé\npublishedAt: 2024-10-10\n---\nCorps trois",
		"notes.txt":    "ignored",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	s := NewMarkdown(dir)
	ctx := context.Background()
	posts, err := s.ListPosts(ctx)
	if err != nil {
		t.Fatalf("ListPosts: %v", err)
	}
	if len(posts) != 3 {
		t.Fatalf("got %d posts, want 3", len(posts))
	}

	// Files without an id are numbered after the highest explicit id in
	// file name order.
	first, err := s.GetPostBySlug(ctx, "premier")
	if err != nil {
		t.Fatalf("GetPostBySlug(premier): %v", err)
	}
	if first.ID != 10 {
		t.Errorf("premier ID = %d, want 10", first.ID)
	}
	if first.Content != "Corps un\n" {
		t.Errorf("premier content = %q", first.Content)
	}
	if !first.Featured {
		t.Error("premier should be featured")
	}

	second, err := s.GetPostBySlug(ctx, "b-second")
	if err != nil {
		t.Fatalf("slug fallback to file name: %v", err)
	}
	if second.ID != 11 {
		t.Errorf("b-second ID = %d, want 11", second.ID)
	}
	if second.PublishedAt != "2024-11-28" {
		t.Errorf("publishedAt = %q, want 2024-11-28", second.PublishedAt)
	}

	third, err := s.GetPost(ctx, 9)
	if err != nil {
		t.Fatalf("GetPost(9): %v", err)
	}
	if third.Content != "Corps trois" {
		t.Errorf("trois content = %q", third.Content)
	}
}

func TestMarkdownWriteRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "content", "blog")
	s := NewMarkdown(dir)
	ctx := context.Background()

	p := samplePost(1, "bien-manger")
	p.Content = "---\nUne ligne qui ressemble à un séparateur\n"
	if err := s.SavePost(ctx, &p); err != nil {
		t.Fatalf("SavePost: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "bien-manger.md"))
	if err != nil {
		t.Fatalf("read written file: %v", err)
	}
	if !strings.HasPrefix(string(data), "---\nid: 1\n") {
		t.Errorf("unexpected file header:\n%s", data)
	}

	got, err := s.GetPost(ctx, 1)
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if *got != p {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", *got, p)
	}

	// Renaming the slug moves the file.
	p.Slug = "mieux-manger"
	if err := s.SavePost(ctx, &p); err != nil {
		t.Fatalf("SavePost (rename): %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "bien-manger.md")); !os.IsNotExist(err) {
		t.Errorf("old file still present: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "mieux-manger.md")); err != nil {
		t.Errorf("new file missing: %v", err)
	}
}

func TestMarkdownUnsafeSlugUsesID(t *testing.T) {
	dir := t.TempDir()
	s := NewMarkdown(dir)
	p := samplePost(5, "../escape")
	if err := s.SavePost(context.Background(), &p); err != nil {
		t.Fatalf("SavePost: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "post-5.md")); err != nil {
		t.Errorf("expected post-5.md: %v", err)
	}
}

func TestParseMarkdownErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no frontmatter", "# Titre\n"},
		{"unterminated", "---\ntitle: x\n"},
		{"bad yaml", "---\ntitle: [x\n---\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := parseMarkdown([]byte(tt.input)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Open
// ---------------------------------------------------------------------------

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(Options{Driver: "postgres", DataDir: t.TempDir()}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestOpenMarkdownDefaultsContentDir(t *testing.T) {
	dataDir := t.TempDir()
	b, err := Open(Options{Driver: DriverMarkdown, DataDir: dataDir})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	p := samplePost(1, "article")
	if err := b.Posts.SavePost(context.Background(), &p); err != nil {
		t.Fatalf("SavePost: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dataDir, "content", "blog", "article.md")); err != nil {
		t.Errorf("post not written under content/blog: %v", err)
	}
}
