package blog

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/cabinetdiet/cabinet/internal/model"
)

//go:embed seed_posts.json
var seedPostsJSON []byte

//go:embed seed_categories.json
var seedCategoriesJSON []byte

// SeedPosts returns a fresh copy of the default article set.
func SeedPosts() ([]model.Post, error) {
	var posts []model.Post
	if err := json.Unmarshal(seedPostsJSON, &posts); err != nil {
		return nil, fmt.Errorf("decode seed posts: %w", err)
	}
	return posts, nil
}

// DefaultCategories returns the fixed category list, "all" first.
func DefaultCategories() []model.Category {
	var cats []model.Category
	if err := json.Unmarshal(seedCategoriesJSON, &cats); err != nil {
		panic("blog: invalid embedded categories: " + err.Error())
	}
	return cats
}
