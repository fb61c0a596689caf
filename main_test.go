package main

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"runtime"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cadenza/cache"
	"cadenza/testutil"
)

func TestSetupRouter_ServesEveryModule(t *testing.T) {
	gin.SetMode(gin.TestMode)
	app, _ := testutil.NewApp(t)
	pages := cache.New(app.Config.CacheDir, app.Config.PageCacheMaxAge)

	router, err := setupRouter(app, pages)
	require.NoError(t, err)
	router.LoadHTMLGlob("*/views/*.html")

	cases := []struct {
		path   string
		status int
	}{
		{"/", http.StatusOK},
		{"/auth/login", http.StatusOK},
		{"/auth/register", http.StatusOK},
		{"/user/nobody", http.StatusNotFound},
		{"/composition/1-missing", http.StatusNotFound},
		{"/follow/nobody", http.StatusFound},
		{"/backoffice", http.StatusFound},
		{"/sitemap.xml", http.StatusOK},
		{"/no/such/page", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", tc.path, nil)
			router.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestSetupRouter_RecoveryRunsFirst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	app, _ := testutil.NewApp(t)
	pages := cache.New(app.Config.CacheDir, app.Config.PageCacheMaxAge)

	router, err := setupRouter(app, pages)
	require.NoError(t, err)
	require.NotEmpty(t, router.Handlers)

	first := runtime.FuncForPC(reflect.ValueOf(router.Handlers[0]).Pointer()).Name()
	assert.Contains(t, first, "gin.CustomRecovery")
}
