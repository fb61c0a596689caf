package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cadenza/models"
)

func RequireLogin(c *gin.Context) {
	if CurrentUser(c) == nil {
		Flash(c, "Please log in to access this page.")
		c.Redirect(http.StatusFound, LoginURL(c))
		c.Abort()
		return
	}
	c.Next()
}

// RequirePermission sends anonymous visitors to the login page and answers
// 403 to users whose role lacks perm.
func RequirePermission(perm models.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			Flash(c, "Please log in to access this page.")
			c.Redirect(http.StatusFound, LoginURL(c))
			c.Abort()
			return
		}
		if !user.Can(perm) {
			RenderError(c, http.StatusForbidden, "You don't have permission to do that.")
			c.Abort()
			return
		}
		c.Next()
	}
}

func RequireAdmin() gin.HandlerFunc {
	return RequirePermission(models.PermAdmin)
}

// Recovery turns panics into the 500 page.
func Recovery(log *zap.SugaredLogger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Errorw("panic serving request", "path", c.Request.URL.Path, "panic", recovered)
		RenderError(c, http.StatusInternalServerError, "Something went wrong on our side.")
		c.Abort()
	})
}

// InternalError logs err and renders the 500 page.
func InternalError(c *gin.Context, log *zap.SugaredLogger, msg string, err error) {
	log.Errorw(msg, "path", c.Request.URL.Path, "err", err)
	_ = c.Error(err)
	RenderError(c, http.StatusInternalServerError, "Something went wrong on our side.")
}
