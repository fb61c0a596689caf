package site

import (
	"encoding/xml"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cadenza/database"
	"cadenza/models"
	"cadenza/testutil"
)

func TestSitemap(t *testing.T) {
	app, _ := testutil.NewApp(t)
	john := testutil.CreateUser(t, app, "john", true)
	testutil.CreateUser(t, app, "ghost", false)
	c := &models.Composition{ReleaseType: models.ReleaseAlbum, Title: "Tide", AuthorID: john.ID}
	require.NoError(t, database.CreateComposition(app.DB, c))

	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewSiteModule(app).RegisterRoutes(router)

	req, _ := http.NewRequest("GET", "/sitemap.xml", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/xml")

	var set urlset
	require.NoError(t, xml.Unmarshal(w.Body.Bytes(), &set))
	locs := make([]string, 0, len(set.URLs))
	for _, u := range set.URLs {
		locs = append(locs, u.Loc)
	}
	assert.Contains(t, locs, "http://localhost:8080/")
	assert.Contains(t, locs, "http://localhost:8080/user/john")
	assert.Contains(t, locs, "http://localhost:8080"+c.URL())
	assert.NotContains(t, locs, "http://localhost:8080/user/ghost")
}
