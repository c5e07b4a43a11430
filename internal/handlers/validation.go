package handlers

import (
	"errors"
	"net/url"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/Zachkp/folio/internal/models"
	"github.com/Zachkp/folio/internal/notify"
)

var registerOnce sync.Once

// registerValidators adds the site's tags to gin's validator.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("platform", func(fl validator.FieldLevel) bool {
			return models.Platform(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("httpurl", func(fl validator.FieldLevel) bool {
			return isHTTPURL(fl.Field().String())
		})
	})
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ProjectForm is the owner's "add project" form. The image is either an
// uploaded file or an image_url.
type ProjectForm struct {
	Title       string `form:"title" json:"title" binding:"required,max=120"`
	Description string `form:"description" json:"description" binding:"required,max=2000"`
	Category    string `form:"category" json:"category" binding:"required,max=60"`
	ImageURL    string `form:"image_url" json:"image_url" binding:"omitempty,httpurl"`
	Alt         string `form:"alt" json:"alt" binding:"max=200"`
	GithubURL   string `form:"github_url" json:"github_url" binding:"omitempty,httpurl"`
}

// PostForm is the owner's "add article" form.
type PostForm struct {
	Title       string `form:"title" json:"title" binding:"required,max=200"`
	URL         string `form:"url" json:"url" binding:"required,httpurl"`
	Description string `form:"description" json:"description" binding:"max=1000"`
	Platform    string `form:"platform" json:"platform" binding:"omitempty,platform"`
	ImageURL    string `form:"image" json:"image" binding:"omitempty,httpurl"`
}

func missingProject() notify.Notification {
	return notify.Failure("Missing information", "Please fill all fields and select an image")
}

func missingPost() notify.Notification {
	return notify.Failure("Missing information", "Please fill in at least the title and URL")
}

func invalidURL() notify.Notification {
	return notify.Failure("Invalid URL", "Please enter a valid URL including http:// or https://")
}

// projectProblem maps a binding error of ProjectForm to the message shown to
// the owner.
func projectProblem(err error) notify.Notification {
	if failedTag(err) == "httpurl" {
		return invalidURL()
	}
	return missingProject()
}

func postProblem(err error) notify.Notification {
	switch failedTag(err) {
	case "httpurl":
		return invalidURL()
	case "platform":
		return notify.Failure("Invalid platform", "Choose Medium, Substack or Other")
	}
	return missingPost()
}

// failedTag returns the first failing validation tag, or "" for errors that
// are not validation errors (malformed bodies and the like).
func failedTag(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		for _, fe := range ve {
			if fe.Tag() == "required" {
				return "required"
			}
		}
		return ve[0].Tag()
	}
	return ""
}
