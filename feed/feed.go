package feed

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gorm.io/gorm"

	"cadenza/cache"
	"cadenza/common"
	"cadenza/database"
	"cadenza/models"
)

const showFollowedCookie = "show_followed"

type FeedModule struct {
	app   *common.App
	pages *cache.PageCache
}

// markdown renderer for composition descriptions. Raw HTML is dropped since
// descriptions are user input.
var md = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Linkify,
	),
)

func NewFeedModule(app *common.App, pages *cache.PageCache) *FeedModule {
	return &FeedModule{app: app, pages: pages}
}

func (f *FeedModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/", f.index)
	router.POST("/", common.RequirePermission(models.PermPublish), f.createComposition)
	router.GET("/all", common.RequireLogin, f.showAll)
	router.GET("/followed", common.RequireLogin, f.showFollowed)

	compositionGroup := router.Group("/composition/:slug")
	{
		compositionGroup.GET("", f.pages.Middleware(), f.composition)
		compositionGroup.GET("/edit", common.RequireLogin, f.loadEditable, f.editPage)
		compositionGroup.POST("/edit", common.RequireLogin, f.loadEditable, f.editPost)
		compositionGroup.POST("/delete", common.RequireLogin, f.loadEditable, f.delete)
	}
}

type compositionForm struct {
	ReleaseType string `form:"release_type" binding:"required"`
	Title       string `form:"title" binding:"required,max=64"`
	Description string `form:"description" binding:"max=10000"`
}

// bindComposition reads the composition form and resolves its release type.
// errs is nil when the form is valid.
func bindComposition(c *gin.Context) (form compositionForm, releaseType models.ReleaseType, errs map[string]string) {
	errs = map[string]string{}
	if err := c.ShouldBind(&form); err != nil {
		errs = common.FormErrors(err)
	}
	releaseType, err := models.ParseReleaseType(form.ReleaseType)
	if err != nil && errs["release_type"] == "" {
		errs["release_type"] = "Invalid choice."
	}
	if len(errs) > 0 {
		return form, 0, errs
	}
	return form, releaseType, nil
}

func (f *FeedModule) index(c *gin.Context) {
	user := common.CurrentUser(c)
	showFollowed := false
	if user != nil {
		v, _ := c.Cookie(showFollowedCookie)
		showFollowed = v == "1"
	}

	f.renderIndex(c, http.StatusOK, showFollowed, gin.H{})
}

func (f *FeedModule) renderIndex(c *gin.Context, status int, showFollowed bool, data gin.H) {
	user := common.CurrentUser(c)
	page := common.PageFromQuery(c, f.app.Config.CompositionsPerPage)
	db := f.app.DB.WithContext(c.Request.Context())

	var (
		compositions []models.Composition
		err          error
	)
	if showFollowed {
		compositions, page.Total, err = database.FollowedCompositions(db, user, page.Offset(), page.PerPage)
	} else {
		compositions, page.Total, err = database.ListCompositions(db, page.Offset(), page.PerPage)
	}
	if err != nil {
		common.InternalError(c, f.app.Log, "list compositions", err)
		return
	}

	if _, ok := data["form"]; !ok {
		data["form"] = compositionForm{ReleaseType: strconv.Itoa(int(models.ReleaseSingle))}
	}
	data["title"] = "Home"
	data["compositions"] = compositions
	data["page"] = page
	data["base"] = "/"
	data["show_followed"] = showFollowed
	data["can_publish"] = user.Can(models.PermPublish)
	data["release_types"] = models.ReleaseTypes
	common.Render(c, status, "feed_index.html", data)
}

func (f *FeedModule) showAll(c *gin.Context) {
	f.setShowFollowed(c, "")
	c.Redirect(http.StatusFound, "/")
}

func (f *FeedModule) showFollowed(c *gin.Context) {
	f.setShowFollowed(c, "1")
	c.Redirect(http.StatusFound, "/")
}

func (f *FeedModule) setShowFollowed(c *gin.Context, value string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(showFollowedCookie, value, 30*24*60*60, "/", "", f.app.Config.IsProduction(), true)
}

func (f *FeedModule) createComposition(c *gin.Context) {
	user := common.CurrentUser(c)

	form, releaseType, errs := bindComposition(c)
	if errs != nil {
		f.renderIndex(c, http.StatusBadRequest, false, gin.H{
			"errors": errs,
			"form":   form,
		})
		return
	}

	composition := &models.Composition{
		ReleaseType: releaseType,
		Title:       form.Title,
		Description: form.Description,
		AuthorID:    user.ID,
	}
	if err := database.CreateComposition(f.app.DB.WithContext(c.Request.Context()), composition); err != nil {
		common.InternalError(c, f.app.Log, "create composition", err)
		return
	}
	f.app.Log.Infow("composition published", "composition_id", composition.ID, "author_id", user.ID)

	common.Flash(c, "Your composition has been published.")
	c.Redirect(http.StatusFound, "/")
}

func (f *FeedModule) composition(c *gin.Context) {
	db := f.app.DB.WithContext(c.Request.Context())
	composition, err := database.CompositionBySlug(db, c.Param("slug"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		common.NotFound(c)
		return
	}
	if err != nil {
		common.InternalError(c, f.app.Log, "load composition", err)
		return
	}

	common.Render(c, http.StatusOK, "composition.html", gin.H{
		"title":            composition.Title,
		"composition":      composition,
		"description_html": renderMarkdown(composition.Description),
		"can_edit":         canEdit(common.CurrentUser(c), composition),
	})
}

// loadEditable puts the composition in the context when the current user
// wrote it or may moderate.
func (f *FeedModule) loadEditable(c *gin.Context) {
	db := f.app.DB.WithContext(c.Request.Context())
	composition, err := database.CompositionBySlug(db, c.Param("slug"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		common.NotFound(c)
		c.Abort()
		return
	}
	if err != nil {
		common.InternalError(c, f.app.Log, "load composition", err)
		c.Abort()
		return
	}
	if !canEdit(common.CurrentUser(c), composition) {
		common.RenderError(c, http.StatusForbidden, "You can only edit your own compositions.")
		c.Abort()
		return
	}

	c.Set("composition", composition)
	c.Next()
}

func canEdit(user *models.User, composition *models.Composition) bool {
	if user == nil {
		return false
	}
	return user.ID == composition.AuthorID || user.Can(models.PermModerate)
}

func (f *FeedModule) editPage(c *gin.Context) {
	composition := c.MustGet("composition").(*models.Composition)
	common.Render(c, http.StatusOK, "composition_edit.html", gin.H{
		"title":         "Edit " + composition.Title,
		"composition":   composition,
		"release_types": models.ReleaseTypes,
		"form": compositionForm{
			ReleaseType: strconv.Itoa(int(composition.ReleaseType)),
			Title:       composition.Title,
			Description: composition.Description,
		},
	})
}

func (f *FeedModule) editPost(c *gin.Context) {
	composition := c.MustGet("composition").(*models.Composition)

	form, releaseType, errs := bindComposition(c)
	if errs != nil {
		common.Render(c, http.StatusBadRequest, "composition_edit.html", gin.H{
			"title":         "Edit " + composition.Title,
			"composition":   composition,
			"release_types": models.ReleaseTypes,
			"form":          form,
			"errors":        errs,
		})
		return
	}

	oldSlug := *composition.Slug
	composition.ReleaseType = releaseType
	composition.Title = form.Title
	composition.Description = form.Description

	if err := database.UpdateComposition(f.app.DB.WithContext(c.Request.Context()), composition); err != nil {
		common.InternalError(c, f.app.Log, "update composition", err)
		return
	}
	if err := f.pages.ClearSlugs(oldSlug, *composition.Slug); err != nil {
		f.app.Log.Warnw("clear page cache", "slug", oldSlug, "err", err)
	}

	common.Flash(c, "The composition has been updated.")
	c.Redirect(http.StatusFound, composition.URL())
}

func (f *FeedModule) delete(c *gin.Context) {
	composition := c.MustGet("composition").(*models.Composition)

	if err := database.DeleteComposition(f.app.DB.WithContext(c.Request.Context()), composition); err != nil {
		common.InternalError(c, f.app.Log, "delete composition", err)
		return
	}
	if err := f.pages.Clear(*composition.Slug); err != nil {
		f.app.Log.Warnw("clear page cache", "slug", *composition.Slug, "err", err)
	}
	f.app.Log.Infow("composition deleted", "composition_id", composition.ID, "by", common.CurrentUser(c).ID)

	common.Flash(c, "The composition has been deleted.")
	c.Redirect(http.StatusFound, "/")
}

func renderMarkdown(content string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(content), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(content))
	}
	return template.HTML(buf.String())
}
