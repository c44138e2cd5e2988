package model

// Post is a blog article. PublishedAt is a calendar date (YYYY-MM-DD);
// CategorySlug and ReadingTime are derived from Category and Content on
// every write.
type Post struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	Slug            string `json:"slug"`
	Excerpt         string `json:"excerpt"`
	Content         string `json:"content"`
	CoverImage      string `json:"coverImage"`
	Category        string `json:"category"`
	CategorySlug    string `json:"categorySlug"`
	Author          string `json:"author"`
	PublishedAt     string `json:"publishedAt"`
	MetaTitle       string `json:"metaTitle"`
	MetaDescription string `json:"metaDescription"`
	Featured        bool   `json:"featured"`
	ReadingTime     int    `json:"readingTime"`
}

// PostInput carries the writable fields of a create or update request. A nil
// field was absent from the request: defaults apply on create and the stored
// value is kept on update.
type PostInput struct {
	Title           *string `json:"title,omitempty"`
	Slug            *string `json:"slug,omitempty"`
	Excerpt         *string `json:"excerpt,omitempty"`
	Content         *string `json:"content,omitempty"`
	CoverImage      *string `json:"coverImage,omitempty"`
	Category        *string `json:"category,omitempty"`
	Author          *string `json:"author,omitempty"`
	PublishedAt     *string `json:"publishedAt,omitempty"`
	MetaTitle       *string `json:"metaTitle,omitempty"`
	MetaDescription *string `json:"metaDescription,omitempty"`
	Featured        *bool   `json:"featured,omitempty"`
}

// Category groups posts on the public blog page.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}
