package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/cabinetdiet/cabinet/internal/blog"
)

const (
	postsURI      = "cabinet://posts"
	categoriesURI = "cabinet://categories"
	postURIPrefix = "cabinet://posts/"
)

// registerResources adds the read-only blog resources.
func (s *MCPServer) registerResources(srv *server.MCPServer) {
	srv.AddResource(
		mcp.NewResource(
			postsURI,
			"Blog articles",
			mcp.WithResourceDescription("Every published article without its body, newest first."),
			mcp.WithMIMEType("application/json"),
		),
		s.handlePostsResource,
	)

	srv.AddResource(
		mcp.NewResource(
			categoriesURI,
			"Blog categories",
			mcp.WithResourceDescription("Category ids, display names and colors."),
			mcp.WithMIMEType("application/json"),
		),
		s.handleCategoriesResource,
	)

	srv.AddResourceTemplate(
		mcp.NewResourceTemplate(
			postURIPrefix+"{slug}",
			"Blog article",
			mcp.WithTemplateDescription("One article with its HTML body."),
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handlePostResource,
	)
}

func (s *MCPServer) handlePostsResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	posts, err := s.posts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	return jsonContents(request.Params.URI, summarize(posts))
}

func (s *MCPServer) handleCategoriesResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	cats, err := s.posts.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return jsonContents(request.Params.URI, cats)
}

func (s *MCPServer) handlePostResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := request.Params.URI
	slug := strings.TrimPrefix(uri, postURIPrefix)
	if slug == "" || slug == uri {
		return nil, fmt.Errorf("invalid article URI %q: expected %s{slug}", uri, postURIPrefix)
	}
	post, err := s.posts.GetBySlug(ctx, slug)
	if errors.Is(err, blog.ErrNotFound) {
		return nil, fmt.Errorf("article %q not found", slug)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read article: %w", err)
	}
	return jsonContents(uri, post)
}

func jsonContents(uri string, v interface{}) ([]mcp.ResourceContents, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}
