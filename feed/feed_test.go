package feed

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"cadenza/cache"
	"cadenza/common"
	"cadenza/database"
	"cadenza/models"
	"cadenza/testutil"
)

func setup(t *testing.T) (*common.App, *cache.PageCache, *testutil.Client) {
	app, _ := testutil.NewApp(t)
	pages := cache.New(app.Config.CacheDir, app.Config.PageCacheMaxAge)
	router := testutil.NewRouter(t, app)
	NewFeedModule(app, pages).RegisterRoutes(router)
	return app, pages, testutil.NewClient(router)
}

func publish(t *testing.T, app *common.App, author *models.User, title string) *models.Composition {
	t.Helper()
	c := &models.Composition{
		ReleaseType: models.ReleaseAlbum,
		Title:       title,
		Description: "**loud**",
		AuthorID:    author.ID,
	}
	require.NoError(t, database.CreateComposition(app.DB, c))
	return c
}

func TestIndex_Anonymous(t *testing.T) {
	app, _, client := setup(t)
	john := testutil.CreateUser(t, app, "john", true)
	publish(t, app, john, "First Light")

	w := client.Get("/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Hello, Stranger!")
	assert.Contains(t, w.Body.String(), "First Light")
	assert.NotContains(t, w.Body.String(), `action="/"`)
}

func TestIndex_Pagination(t *testing.T) {
	app, _, client := setup(t)
	john := testutil.CreateUser(t, app, "john", true)
	for _, title := range []string{"one", "two", "three", "four", "five", "six"} {
		publish(t, app, john, title)
	}

	w := client.Get("/")
	assert.Contains(t, w.Body.String(), "Page 1 of 2")
	assert.Contains(t, w.Body.String(), "six")
	assert.NotContains(t, w.Body.String(), ">one<")

	w = client.Get("/?page=2")
	assert.Contains(t, w.Body.String(), ">one<")
}

func TestCreateComposition(t *testing.T) {
	app, _, client := setup(t)
	john := testutil.CreateUser(t, app, "john", true)
	client.LoginAs(t, john)

	w := client.Get("/")
	assert.Contains(t, w.Body.String(), `action="/"`)

	w = client.PostForm("/", url.Values{
		"release_type": {"2"},
		"title":        {"Hello, World!!"},
		"description":  {"first EP"},
	})
	assert.Equal(t, http.StatusFound, w.Code)

	compositions, total, err := database.CompositionsByAuthor(app.DB, john, 0, 10)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Equal(t, models.ReleaseExtendedPlay, compositions[0].ReleaseType)
	assert.Equal(t, models.SlugFor(compositions[0].ID, "Hello, World!!"), compositions[0].Permalink())
}

func TestCreateComposition_Invalid(t *testing.T) {
	app, _, client := setup(t)
	john := testutil.CreateUser(t, app, "john", true)
	client.LoginAs(t, john)

	w := client.PostForm("/", url.Values{"release_type": {"9"}, "title": {""}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "This field is required.")
	assert.Contains(t, w.Body.String(), "Invalid choice.")

	w = client.PostForm("/", url.Values{"release_type": {"album"}, "title": {"Tide"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid choice.")

	_, total, err := database.ListCompositions(app.DB, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestCreateComposition_RequiresPublish(t *testing.T) {
	app, _, client := setup(t)

	w := client.PostForm("/", url.Values{"release_type": {"1"}, "title": {"x"}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "/auth/login")

	john := testutil.CreateUser(t, app, "john", true)
	john.Role.ResetPermissions()
	require.NoError(t, app.DB.Save(john.Role).Error)
	client.LoginAs(t, john)

	w = client.PostForm("/", url.Values{"release_type": {"1"}, "title": {"x"}})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestFollowedToggle(t *testing.T) {
	app, _, client := setup(t)
	john := testutil.CreateUser(t, app, "john", true)
	susan := testutil.CreateUser(t, app, "susan", true)
	david := testutil.CreateUser(t, app, "david", true)
	publish(t, app, susan, "Susan Song")
	publish(t, app, david, "David Song")
	require.NoError(t, app.DB.Transaction(func(tx *gorm.DB) error {
		return database.Follow(tx, john, susan)
	}))
	client.LoginAs(t, john)

	w := client.Get("/followed")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "1", client.Cookie(showFollowedCookie).Value)

	w = client.Get("/")
	assert.Contains(t, w.Body.String(), "Susan Song")
	assert.NotContains(t, w.Body.String(), "David Song")

	client.Get("/all")
	w = client.Get("/")
	assert.Contains(t, w.Body.String(), "Susan Song")
	assert.Contains(t, w.Body.String(), "David Song")
}

func TestComposition_RendersMarkdownAndCaches(t *testing.T) {
	app, pages, client := setup(t)
	john := testutil.CreateUser(t, app, "john", true)
	c := publish(t, app, john, "Night Drive")

	w := client.Get(c.URL())
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Contains(t, w.Body.String(), "<strong>loud</strong>")

	w = client.Get(c.URL())
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))

	_, found := pages.Read(c.Permalink())
	assert.True(t, found)
}

func TestComposition_NotFound(t *testing.T) {
	_, _, client := setup(t)

	w := client.Get("/composition/99-missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRenderMarkdown_DropsRawHTML(t *testing.T) {
	html := string(renderMarkdown("<script>alert(1)</script>\n\nhi"))
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "<p>hi</p>")
}

func TestEditComposition_AuthorRenamesAndCacheIsCleared(t *testing.T) {
	app, pages, client := setup(t)
	john := testutil.CreateUser(t, app, "john", true)
	c := publish(t, app, john, "Old Title")
	oldSlug := c.Permalink()
	require.NoError(t, pages.Write(oldSlug, "stale"))

	client.LoginAs(t, john)
	w := client.Get(c.URL() + "/edit")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Old Title")

	w = client.PostForm(c.URL()+"/edit", url.Values{
		"release_type": {"1"},
		"title":        {"New Title"},
	})
	assert.Equal(t, http.StatusFound, w.Code)
	newSlug := models.SlugFor(c.ID, "New Title")
	assert.Equal(t, "/composition/"+newSlug, w.Header().Get("Location"))

	_, found := pages.Read(oldSlug)
	assert.False(t, found)
	_, err := database.CompositionBySlug(app.DB, newSlug)
	assert.NoError(t, err)
}

func TestEditComposition_OtherUserForbidden(t *testing.T) {
	app, _, client := setup(t)
	john := testutil.CreateUser(t, app, "john", true)
	susan := testutil.CreateUser(t, app, "susan", true)
	c := publish(t, app, john, "Mine")

	client.LoginAs(t, susan)
	w := client.Get(c.URL() + "/edit")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = client.PostForm(c.URL()+"/delete", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDeleteComposition_Moderator(t *testing.T) {
	app, _, client := setup(t)
	john := testutil.CreateUser(t, app, "john", true)
	mod := testutil.CreateUser(t, app, "mod", true)
	role, err := database.RoleByName(app.DB, models.RoleModerator)
	require.NoError(t, err)
	require.NoError(t, app.DB.Model(mod).Update("role_id", role.ID).Error)
	c := publish(t, app, john, "Doomed")

	client.LoginAs(t, mod)
	w := client.PostForm(c.URL()+"/delete", url.Values{})
	assert.Equal(t, http.StatusFound, w.Code)

	_, err = database.CompositionBySlug(app.DB, c.Permalink())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCanEdit(t *testing.T) {
	author := &models.User{ID: 1}
	other := &models.User{ID: 2, Role: &models.Role{Permissions: models.PermFollow}}
	moderator := &models.User{ID: 3, Role: &models.Role{Permissions: models.PermModerate}}
	c := &models.Composition{AuthorID: 1}

	assert.True(t, canEdit(author, c))
	assert.False(t, canEdit(other, c))
	assert.True(t, canEdit(moderator, c))
	assert.False(t, canEdit(nil, c))
}
