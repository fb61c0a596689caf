package common

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"cadenza/database"
	"cadenza/models"
)

const (
	sessionRemember = "remember"
	rememberMaxAge  = 86400 * 30
)

// Login stores the user id in the session. Without remember the cookie
// lasts until the browser closes.
func Login(c *gin.Context, u *models.User, remember bool) error {
	session := sessions.Default(c)
	applyCookieLifetime(session, remember)
	session.Set(SessionUserID, u.ID)
	session.Set(sessionRemember, remember)
	return session.Save()
}

// applyCookieLifetime must run before every save of a logged-in session,
// otherwise the store's default max age would turn a browser-session cookie
// into a persistent one.
func applyCookieLifetime(session sessions.Session, remember bool) {
	maxAge := 0
	if remember {
		maxAge = rememberMaxAge
	}
	session.Options(sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
	})
}

func Logout(c *gin.Context) error {
	session := sessions.Default(c)
	session.Clear()
	return session.Save()
}

// LoadCurrentUser resolves the session's user for every request, records
// the activity and keeps unconfirmed accounts inside the /auth/ pages.
func LoadCurrentUser(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		id, ok := session.Get(SessionUserID).(uint)
		if !ok {
			c.Next()
			return
		}

		db := app.DB.WithContext(c.Request.Context())
		user, err := database.UserByID(db, id)
		if err != nil {
			app.Log.Debugw("dropping session for unknown user", "user_id", id, "err", err)
			session.Delete(SessionUserID)
			session.Delete(sessionRemember)
			session.Save()
			c.Next()
			return
		}

		remember, _ := session.Get(sessionRemember).(bool)
		applyCookieLifetime(session, remember)

		c.Set(ContextUser, user)
		if err := database.TouchLastSeen(db, user, time.Now()); err != nil {
			app.Log.Warnw("update last seen", "user_id", user.ID, "err", err)
		}

		path := c.Request.URL.Path
		if !user.Confirmed && !strings.HasPrefix(path, "/auth/") && !strings.HasPrefix(path, "/public/") {
			c.Redirect(http.StatusFound, "/auth/unconfirmed")
			c.Abort()
			return
		}
		c.Next()
	}
}
