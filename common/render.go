package common

import (
	"net/http"
	"net/url"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"cadenza/models"
)

const (
	SessionUserID = "user_id"
	ContextUser   = "current_user"
)

// CurrentUser returns the logged-in user loaded for this request, or nil for
// an anonymous visitor.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(ContextUser)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}

func Flash(c *gin.Context, message string) {
	session := sessions.Default(c)
	session.AddFlash(message)
	session.Save()
}

// flashes pops the pending messages. It returns nil when the session
// middleware has not run, as for a panic recovered ahead of it.
func flashes(c *gin.Context) []string {
	if _, ok := c.Get(sessions.DefaultKey); !ok {
		return nil
	}
	session := sessions.Default(c)
	raw := session.Flashes()
	if len(raw) == 0 {
		return nil
	}
	session.Save()

	out := make([]string, 0, len(raw))
	for _, f := range raw {
		if s, ok := f.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Render adds the current user and pending flash messages to data and
// renders the named template.
func Render(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	if u := CurrentUser(c); u != nil {
		data["current_user"] = u
	}
	data["flashes"] = flashes(c)
	c.HTML(status, name, data)
}

func RenderError(c *gin.Context, status int, message string) {
	Render(c, status, "error.html", gin.H{
		"title":   http.StatusText(status),
		"status":  status,
		"message": message,
	})
}

func NotFound(c *gin.Context) {
	RenderError(c, http.StatusNotFound, "The page you were looking for does not exist.")
}

// LoginURL is the login page with a next parameter pointing back at the
// current request.
func LoginURL(c *gin.Context) string {
	return "/auth/login?next=" + url.QueryEscape(c.Request.URL.RequestURI())
}
