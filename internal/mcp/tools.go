package mcp

import (
	"context"
	"errors"
	"html"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/microcosm-cc/bluemonday"

	"github.com/cabinetdiet/cabinet/internal/blog"
	"github.com/cabinetdiet/cabinet/internal/model"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

var textPolicy = bluemonday.StrictPolicy().AddSpaceWhenStrippingTag(true)

// registerTools registers the blog tools on srv.
func (s *MCPServer) registerTools(srv *server.MCPServer) {
	srv.AddTool(
		mcp.NewTool("blog_list_posts",
			mcp.WithDescription(
				"List published articles, newest first. Returns id, slug, title, excerpt, "+
					"category, publication date and reading time. Use blog_get_post with a "+
					"slug to read an article.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("category",
				mcp.Description("Category id from blog_list_categories (e.g. \"nutrition\"). Omit or \"all\" for every category."),
			),
			mcp.WithBoolean("featured",
				mcp.Description("Only featured articles when true"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of articles (default 20, max 100)"),
				mcp.Min(1),
				mcp.Max(maxListLimit),
			),
		),
		s.handleListPosts,
	)

	srv.AddTool(
		mcp.NewTool("blog_get_post",
			mcp.WithDescription("Get one article by slug, including its body."),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("slug",
				mcp.Required(),
				mcp.Description("Article slug (e.g. \"bien-manger\")"),
			),
			mcp.WithString("format",
				mcp.Description("Body format: \"html\" as stored, or \"text\" with markup removed (default)"),
				mcp.Enum("text", "html"),
			),
		),
		s.handleGetPost,
	)

	srv.AddTool(
		mcp.NewTool("blog_list_categories",
			mcp.WithDescription("List the article categories with their ids and display names."),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleListCategories,
	)

	srv.AddTool(
		mcp.NewTool("blog_search_posts",
			mcp.WithDescription(
				"Search articles whose title, excerpt or body contains the query. "+
					"Matching ignores case and accents.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("query",
				mcp.Required(),
				mcp.Description("Words to look for (e.g. \"légumineuses\")"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of articles (default 20, max 100)"),
			),
		),
		s.handleSearchPosts,
	)
}

func (s *MCPServer) handleListPosts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	posts, err := s.posts.ByCategory(ctx, request.GetString("category", ""))
	if err != nil {
		return toolError("failed to list articles: %v", err)
	}
	if featured, ok := optionalBool(request, "featured"); ok {
		kept := posts[:0]
		for _, p := range posts {
			if p.Featured == featured {
				kept = append(kept, p)
			}
		}
		posts = kept
	}
	limit := clamp(request.GetInt("limit", defaultListLimit), 1, maxListLimit)
	if len(posts) > limit {
		posts = posts[:limit]
	}
	return successJSON(summarize(posts))
}

func (s *MCPServer) handleGetPost(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := requireString(request, "slug")
	if err != nil {
		return toolError("%v", err)
	}
	post, err := s.posts.GetBySlug(ctx, slug)
	if errors.Is(err, blog.ErrNotFound) {
		return toolError("no article with slug %q; use blog_list_posts to find slugs", slug)
	}
	if err != nil {
		return toolError("failed to read article: %v", err)
	}

	out := *post
	if request.GetString("format", "text") != "html" {
		out.Content = plainText(out.Content)
	}
	return successJSON(out)
}

func (s *MCPServer) handleListCategories(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cats, err := s.posts.Categories(ctx)
	if err != nil {
		return toolError("failed to list categories: %v", err)
	}
	return successJSON(cats)
}

func (s *MCPServer) handleSearchPosts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := requireString(request, "query")
	if err != nil {
		return toolError("%v", err)
	}
	needle := blog.Slugify(query)
	if needle == "" {
		return toolError("query %q has no searchable characters", query)
	}

	posts, err := s.posts.List(ctx)
	if err != nil {
		return toolError("failed to list articles: %v", err)
	}
	limit := clamp(request.GetInt("limit", defaultListLimit), 1, maxListLimit)
	matches := make([]model.Post, 0, limit)
	for _, p := range posts {
		if len(matches) == limit {
			break
		}
		haystack := blog.Slugify(p.Title + " " + p.Excerpt + " " + plainText(p.Content))
		if strings.Contains(haystack, needle) {
			matches = append(matches, p)
		}
	}
	return successJSON(summarize(matches))
}

// plainText strips markup and decodes entities.
func plainText(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(textPolicy.Sanitize(s))), " ")
}
