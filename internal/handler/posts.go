package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cabinetdiet/cabinet/internal/blog"
	"github.com/cabinetdiet/cabinet/internal/model"
)

// User facing messages of the post endpoints.
const (
	MsgPostNotFound    = "Article non trouvé."
	MsgSlugTaken       = "Ce slug est déjà utilisé."
	MsgInvalidBody     = "Corps de requête invalide."
	MsgBodyTooLarge    = "Requête trop volumineuse."
	MsgPostDeleted     = "Article supprimé avec succès."
	MsgPostsReset      = "Articles réinitialisés avec succès."
	MsgListError       = "Erreur lors de la récupération des articles."
	MsgCategoriesError = "Erreur lors de la récupération des catégories."
	MsgGetError        = "Erreur lors de la récupération de l'article."
	MsgCreateError     = "Erreur lors de la création de l'article."
	MsgUpdateError     = "Erreur lors de la mise à jour de l'article."
	MsgDeleteError     = "Erreur lors de la suppression de l'article."
	MsgResetError      = "Erreur lors de la réinitialisation."
)

// PostsHandler exposes the post store over HTTP. Read routes are public
// except GetByID; writes are guarded by the router.
type PostsHandler struct {
	posts  *blog.Service
	logger *slog.Logger
}

// NewPostsHandler creates a new PostsHandler.
func NewPostsHandler(posts *blog.Service, logger *slog.Logger) *PostsHandler {
	return &PostsHandler{posts: posts, logger: logger}
}

// List returns the posts, newest first. Optional filters: category (slug,
// "all" for every post), featured=true and limit.
// GET /api/posts
func (h *PostsHandler) List(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.ByCategory(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		h.internal(w, r, MsgListError, err)
		return
	}

	if queryBool(r, "featured") {
		kept := posts[:0]
		for _, p := range posts {
			if p.Featured {
				kept = append(kept, p)
			}
		}
		posts = kept
	}
	if limit := queryInt(r, "limit", 0); limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}
	if posts == nil {
		posts = []model.Post{}
	}
	writeJSON(w, http.StatusOK, posts)
}

// Categories returns the category list shown on the blog page.
// GET /api/posts/categories
func (h *PostsHandler) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.posts.Categories(r.Context())
	if err != nil {
		h.internal(w, r, MsgCategoriesError, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

// GetBySlug returns a single post by its slug.
// GET /api/posts/slug/{slug}
func (h *PostsHandler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	post, err := h.posts.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.fail(w, r, MsgGetError, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// GetByID returns a single post by its id.
// GET /api/posts/{id}
func (h *PostsHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, MsgPostNotFound)
		return
	}
	post, err := h.posts.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, MsgGetError, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// Create stores a new post.
// POST /api/posts
func (h *PostsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in model.PostInput
	if !h.decode(w, r, &in) {
		return
	}
	post, err := h.posts.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, MsgCreateError, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// Update merges the provided fields into an existing post.
// PUT /api/posts/{id}
func (h *PostsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, MsgPostNotFound)
		return
	}
	var in model.PostInput
	if !h.decode(w, r, &in) {
		return
	}
	post, err := h.posts.Update(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, MsgUpdateError, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// Delete removes a post.
// DELETE /api/posts/{id}
func (h *PostsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, MsgPostNotFound)
		return
	}
	if err := h.posts.Delete(r.Context(), id); err != nil {
		h.fail(w, r, MsgDeleteError, err)
		return
	}
	writeMessage(w, http.StatusOK, MsgPostDeleted)
}

// Reset replaces every post with the default set.
// POST /api/posts/reset
func (h *PostsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.Reset(r.Context())
	if err != nil {
		h.internal(w, r, MsgResetError, err)
		return
	}
	writeJSON(w, http.StatusOK, model.ResetResponse{Message: MsgPostsReset, Posts: posts})
}

func (h *PostsHandler) decode(w http.ResponseWriter, r *http.Request, in *model.PostInput) bool {
	err := readJSON(r, in)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, MsgBodyTooLarge)
		return false
	}
	writeError(w, http.StatusBadRequest, MsgInvalidBody)
	return false
}

// fail maps a blog error to its HTTP status. Anything unrecognized is a 500
// with the route message.
func (h *PostsHandler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	var verr *blog.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, blog.ErrNotFound):
		writeError(w, http.StatusNotFound, MsgPostNotFound)
	case errors.Is(err, blog.ErrSlugTaken):
		writeError(w, http.StatusConflict, MsgSlugTaken)
	default:
		h.internal(w, r, msg, err)
	}
}

func (h *PostsHandler) internal(w http.ResponseWriter, r *http.Request, msg string, err error) {
	logInternal(h.logger, r, msg, err)
	writeError(w, http.StatusInternalServerError, msg)
}
