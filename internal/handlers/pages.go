package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Zachkp/folio/internal/auth"
	"github.com/Zachkp/folio/internal/collection"
	"github.com/Zachkp/folio/internal/content"
	"github.com/Zachkp/folio/internal/models"
	"github.com/Zachkp/folio/internal/repository"
	"github.com/Zachkp/folio/internal/reveal"
)

// homeSections are the animated blocks of the home page, in page order.
var homeSections = []reveal.Section{
	{ID: "hero", Delay: 200 * time.Millisecond},
	{ID: "about"},
	{ID: "experience", Delay: 100 * time.Millisecond},
	{ID: "education", Delay: 100 * time.Millisecond},
	{ID: "skills"},
	{ID: "portfolio"},
	{ID: "blog"},
	{ID: "contact", Delay: 300 * time.Millisecond},
}

// staggerStep is the extra delay per card within a row of three.
const staggerStep = 100

type projectCard struct {
	models.Project
	Owner bool
	Delay int
}

type postCard struct {
	models.Post
	Owner bool
	Delay int
}

type portfolioView struct {
	Items      []projectCard
	Categories []string
	Filter     string
	Phase      string
}

type indexPage struct {
	Page
	Portfolio portfolioView
	Blog      []postCard
}

func (h *Handler) index(c *gin.Context) {
	ctx := c.Request.Context()
	_ = h.Portfolio.Load(ctx)
	_ = h.Blog.Load(ctx)

	p := h.Page(c, h.Content.Site().Meta.Title)
	view := h.Tracker.Open(c.Request.URL.Path, homeSections)
	p.ViewID = view.ID

	c.HTML(http.StatusOK, "index.html", indexPage{
		Page:      p,
		Portfolio: h.portfolioView(c, collection.All),
		Blog:      h.postCards(c, h.Blog.Snapshot()),
	})
}

func (h *Handler) portfolioView(c *gin.Context, filter string) portfolioView {
	if filter == "" {
		filter = collection.All
	}
	owner := auth.Current(c) != nil
	items := h.Portfolio.Visible(filter)
	cards := make([]projectCard, len(items))
	for i, p := range items {
		cards[i] = projectCard{Project: p, Owner: owner, Delay: (i % 3) * staggerStep}
	}
	return portfolioView{
		Items:      cards,
		Categories: h.Portfolio.Categories(),
		Filter:     filter,
		Phase:      h.Portfolio.Phase().String(),
	}
}

func (h *Handler) postCards(c *gin.Context, posts []models.Post) []postCard {
	owner := auth.Current(c) != nil
	cards := make([]postCard, len(posts))
	for i, p := range posts {
		cards[i] = postCard{Post: p, Owner: owner, Delay: (i % 3) * staggerStep}
	}
	return cards
}

// portfolioGrid re-renders the filter bar and grid for the chosen category.
func (h *Handler) portfolioGrid(c *gin.Context) {
	c.HTML(http.StatusOK, "portfolio-grid.html", h.portfolioView(c, c.Query("filter")))
}

func (h *Handler) timeline(pick func(*content.Site) []content.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.HTML(http.StatusOK, "timeline.html", pick(h.Content.Site()))
	}
}

// blogRedirect counts a click on an article and sends the reader on to it.
func (h *Handler) blogRedirect(c *gin.Context) {
	id := c.Param("id")
	post, ok := h.Blog.Get(id)
	if !ok {
		stored, err := h.Posts.GetByID(c.Request.Context(), id)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				log.Printf("[blog] lookup %s: %v", id, err)
			}
			h.RenderError(c, http.StatusNotFound, "Article not found", "That article does not exist or was removed.")
			return
		}
		post = *stored
	}

	// Demo posts only live in memory, so a missing row is not an error here.
	if err := h.Posts.IncrementClicks(c.Request.Context(), id); err != nil && !errors.Is(err, repository.ErrNotFound) {
		log.Printf("[blog] count click %s: %v", id, err)
	}
	c.Redirect(http.StatusFound, post.URL)
}

type beacon struct {
	Entries []reveal.Entry `json:"entries" binding:"max=200,dive"`
}

// revealBeacon receives intersection reports for a rendered page.
func (h *Handler) revealBeacon(c *gin.Context) {
	var b beacon
	if err := c.ShouldBindJSON(&b); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n, err := h.Tracker.Dispatch(c.Param("view"), b.Entries)
	if errors.Is(err, reveal.ErrUnknownView) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"routed": n})
}

// revealClose is called when the page goes away.
func (h *Handler) revealClose(c *gin.Context) {
	h.Tracker.Close(c.Param("view"))
	c.Status(http.StatusNoContent)
}
