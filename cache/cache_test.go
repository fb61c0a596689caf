package cache

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cadenza/common"
	"cadenza/models"
)

func TestPageCache_ReadWriteClear(t *testing.T) {
	pc := New(t.TempDir(), time.Minute)

	_, found := pc.Read("1-intro")
	assert.False(t, found)

	require.NoError(t, pc.Write("1-intro", "<p>intro</p>"))
	html, found := pc.Read("1-intro")
	assert.True(t, found)
	assert.Equal(t, "<p>intro</p>", html)

	require.NoError(t, pc.Clear("1-intro"))
	_, found = pc.Read("1-intro")
	assert.False(t, found)

	assert.NoError(t, pc.Clear("never-written"))
}

func TestPageCache_Expiry(t *testing.T) {
	pc := New(t.TempDir(), time.Minute)
	require.NoError(t, pc.Write("1-intro", "old"))

	old := time.Now().Add(-2 * time.Minute)
	require.NoError(t, os.Chtimes(pc.Path("1-intro"), old, old))

	_, found := pc.Read("1-intro")
	assert.False(t, found)

	require.NoError(t, pc.ClearOld())
	_, err := os.Stat(pc.Path("1-intro"))
	assert.True(t, os.IsNotExist(err))
}

func TestPageCache_ClearSlugsAndAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pages")
	pc := New(dir, time.Minute)
	require.NoError(t, pc.Write("1-a", "a"))
	require.NoError(t, pc.Write("2-b", "b"))
	require.NoError(t, pc.Write("3-c", "c"))

	require.NoError(t, pc.ClearSlugs("1-a", "2-b"))
	_, found := pc.Read("1-a")
	assert.False(t, found)
	_, found = pc.Read("3-c")
	assert.True(t, found)

	require.NoError(t, pc.ClearAll())
	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, pc.ClearOld())
}

func TestPath_StableAndDistinct(t *testing.T) {
	pc := New("cache", time.Minute)
	assert.Equal(t, pc.Path("1-a"), pc.Path("1-a"))
	assert.NotEqual(t, pc.Path("1-a"), pc.Path("2-a"))
	assert.Contains(t, pc.Path("1-a"), "1-a_")
}

func setupTestRouter(pc *PageCache, user *models.User, calls *int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	store := cookie.NewStore([]byte("secret"))
	router.Use(sessions.Sessions("test-session", store))
	router.Use(func(c *gin.Context) {
		if user != nil {
			c.Set(common.ContextUser, user)
		}
		c.Next()
	})
	router.GET("/composition/:slug", pc.Middleware(), func(c *gin.Context) {
		*calls++
		c.Data(http.StatusOK, htmlContentType, []byte("page "+c.Param("slug")))
	})
	router.GET("/missing/:slug", pc.Middleware(), func(c *gin.Context) {
		*calls++
		c.Data(http.StatusNotFound, htmlContentType, []byte("nope"))
	})
	return router
}

func TestMiddleware_AnonymousHitAndMiss(t *testing.T) {
	pc := New(t.TempDir(), time.Minute)
	calls := 0
	router := setupTestRouter(pc, nil, &calls)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/composition/1-intro", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Equal(t, "page 1-intro", w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Equal(t, "page 1-intro", w.Body.String())
	assert.Equal(t, 1, calls)
}

func TestMiddleware_SkipsLoggedInUsers(t *testing.T) {
	pc := New(t.TempDir(), time.Minute)
	calls := 0
	router := setupTestRouter(pc, &models.User{ID: 1, Username: "john"}, &calls)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/composition/1-intro", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-Cache"))
	}
	assert.Equal(t, 2, calls)
	_, found := pc.Read("1-intro")
	assert.False(t, found)
}

func TestMiddleware_DoesNotCacheErrors(t *testing.T) {
	pc := New(t.TempDir(), time.Minute)
	calls := 0
	router := setupTestRouter(pc, nil, &calls)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/missing/1-intro", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	_, found := pc.Read("1-intro")
	assert.False(t, found)
}
