package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Zachkp/folio/internal/auth"
	"github.com/Zachkp/folio/internal/collection"
	"github.com/Zachkp/folio/internal/models"
	"github.com/Zachkp/folio/internal/notify"
	"github.com/Zachkp/folio/internal/storage"
)

func (h *Handler) listProjects(c *gin.Context) {
	filter := c.DefaultQuery("filter", collection.All)
	c.JSON(http.StatusOK, gin.H{
		"items":      h.Portfolio.Visible(filter),
		"categories": h.Portfolio.Categories(),
		"filter":     filter,
		"phase":      h.Portfolio.Phase().String(),
	})
}

func (h *Handler) listPosts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"items": h.Blog.Snapshot(),
		"phase": h.Blog.Phase().String(),
	})
}

func (h *Handler) createProject(c *gin.Context) {
	var form ProjectForm
	if err := c.ShouldBind(&form); err != nil {
		h.reject(c, http.StatusBadRequest, projectProblem(err))
		return
	}
	p := models.Project{
		Title:       h.clean(form.Title),
		Description: h.clean(form.Description),
		Category:    h.clean(form.Category),
		ImageURL:    form.ImageURL,
		Alt:         h.clean(form.Alt),
		GithubURL:   form.GithubURL,
		UserID:      auth.Current(c).UserID,
		CreatedAt:   time.Now().UTC(),
	}

	if p.Title == "" || p.Description == "" || p.Category == "" {
		h.reject(c, http.StatusBadRequest, missingProject())
		return
	}
	if fh, err := c.FormFile("image"); err == nil {
		f, err := fh.Open()
		if err != nil {
			h.reject(c, http.StatusBadRequest, notify.Failure("Upload failed", err.Error()))
			return
		}
		defer f.Close()
		url, err := h.Bucket.Upload(c.Request.Context(), "projects", f)
		if err != nil {
			h.uploadFailed(c, err)
			return
		}
		p.ImageURL = url
	}

	if p.ImageURL == "" {
		h.reject(c, http.StatusBadRequest, missingProject())
		return
	}

	added := h.Portfolio.Add(c.Request.Context(), p)
	if isHTMX(c) {
		c.HTML(http.StatusCreated, "project-card.html", projectCard{Project: added, Owner: true})
		return
	}
	c.JSON(http.StatusCreated, added)
}

// deleteProject keeps the image file: a failed remote delete rolls the card
// back and it must still render.
func (h *Handler) deleteProject(c *gin.Context) {
	id := c.Param("id")
	if !h.Portfolio.Remove(c.Request.Context(), id) {
		log.Printf("[portfolio] remove of unknown project %s", id)
	}
	h.removed(c, id)
}

func (h *Handler) createPost(c *gin.Context) {
	var form PostForm
	if err := c.ShouldBind(&form); err != nil {
		h.reject(c, http.StatusBadRequest, postProblem(err))
		return
	}
	platform := models.Platform(form.Platform)
	if platform == "" {
		platform = models.PlatformMedium
	}
	now := time.Now().UTC()
	p := models.Post{
		Title:       h.clean(form.Title),
		Description: h.clean(form.Description),
		URL:         form.URL,
		Platform:    platform,
		ImageURL:    form.ImageURL,
		PublishedAt: now,
		UserID:      auth.Current(c).UserID,
		CreatedAt:   now,
	}
	if p.Title == "" {
		h.reject(c, http.StatusBadRequest, missingPost())
		return
	}

	added := h.Blog.Add(c.Request.Context(), p)
	if isHTMX(c) {
		c.HTML(http.StatusCreated, "post-card.html", postCard{Post: added, Owner: true})
		return
	}
	c.JSON(http.StatusCreated, added)
}

func (h *Handler) deletePost(c *gin.Context) {
	id := c.Param("id")
	h.Blog.Remove(c.Request.Context(), id)
	h.removed(c, id)
}

// removed answers a delete. HTMX swaps the card for the empty body.
func (h *Handler) removed(c *gin.Context, id string) {
	if isHTMX(c) {
		c.String(http.StatusOK, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": id})
}

func (h *Handler) uploadFailed(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrUnsupportedType):
		h.reject(c, http.StatusUnsupportedMediaType, notify.Failure("Upload failed", "Only JPEG, PNG, GIF and WebP images are allowed"))
	case errors.Is(err, storage.ErrTooLarge):
		h.reject(c, http.StatusRequestEntityTooLarge, notify.Failure("Upload failed", "The image is too large"))
	default:
		log.Printf("[upload] %v", err)
		h.reject(c, http.StatusInternalServerError, notify.Failure("Upload failed", "Could not store the image"))
	}
}
