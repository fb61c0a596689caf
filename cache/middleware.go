package cache

import (
	"bytes"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"cadenza/common"
)

type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

const htmlContentType = "text/html; charset=utf-8"

// Middleware serves and fills the page cache for routes with a :slug
// parameter. Only anonymous GET requests without pending flash messages are
// cached, since logged-in visitors see per-user controls.
func (p *PageCache) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet || common.CurrentUser(c) != nil || hasFlashes(c) {
			c.Next()
			return
		}

		slug := c.Param("slug")
		if slug == "" {
			c.Next()
			return
		}

		if cached, found := p.Read(slug); found {
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, htmlContentType, []byte(cached))
			c.Abort()
			return
		}

		c.Header("X-Cache", "MISS")

		writer := &responseWriter{
			ResponseWriter: c.Writer,
			body:           bytes.NewBuffer(nil),
		}
		c.Writer = writer

		c.Next()

		if c.Writer.Status() == http.StatusOK &&
			c.Writer.Header().Get("Content-Type") == htmlContentType {
			p.Write(slug, writer.body.String())
		}
	}
}

func hasFlashes(c *gin.Context) bool {
	return sessions.Default(c).Get("_flash") != nil
}
