package profile

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"cadenza/cache"
	"cadenza/common"
	"cadenza/database"
	"cadenza/models"
)

type ProfileModule struct {
	app   *common.App
	pages *cache.PageCache
}

func NewProfileModule(app *common.App, pages *cache.PageCache) *ProfileModule {
	return &ProfileModule{app: app, pages: pages}
}

func (p *ProfileModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/user/:username", p.user)
	router.GET("/edit-profile", common.RequireLogin, p.editPage)
	router.POST("/edit-profile", common.RequireLogin, p.editPost)
}

type profileForm struct {
	Name     string `form:"name" binding:"max=64"`
	Location string `form:"location" binding:"max=64"`
	Bio      string `form:"bio" binding:"max=2000"`
}

func (p *ProfileModule) user(c *gin.Context) {
	db := p.app.DB.WithContext(c.Request.Context())
	user, err := database.UserByUsername(db, c.Param("username"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		common.NotFound(c)
		return
	}
	if err != nil {
		common.InternalError(c, p.app.Log, "load user", err)
		return
	}

	page := common.PageFromQuery(c, p.app.Config.CompositionsPerPage)
	compositions, total, err := database.CompositionsByAuthor(db, user, page.Offset(), page.PerPage)
	if err != nil {
		common.InternalError(c, p.app.Log, "list compositions", err)
		return
	}
	page.Total = total

	followers, err := database.FollowerCount(db, user)
	if err != nil {
		common.InternalError(c, p.app.Log, "count followers", err)
		return
	}
	following, err := database.FollowingCount(db, user)
	if err != nil {
		common.InternalError(c, p.app.Log, "count following", err)
		return
	}

	data := gin.H{
		"title":           user.Username,
		"user":            user,
		"compositions":    compositions,
		"page":            page,
		"base":            "/user/" + user.Username,
		"followers_count": followers,
		"following_count": following,
	}

	if me := common.CurrentUser(c); me != nil && me.ID != user.ID {
		isFollowing, err := database.IsFollowing(db, me, user)
		if err != nil {
			common.InternalError(c, p.app.Log, "check follow", err)
			return
		}
		followsYou, err := database.IsAFollower(db, me, user)
		if err != nil {
			common.InternalError(c, p.app.Log, "check follower", err)
			return
		}
		data["is_following"] = isFollowing
		data["follows_you"] = followsYou
		data["can_follow"] = me.Can(models.PermFollow)
	}

	common.Render(c, http.StatusOK, "profile_user.html", data)
}

func (p *ProfileModule) editPage(c *gin.Context) {
	user := common.CurrentUser(c)
	common.Render(c, http.StatusOK, "profile_edit.html", gin.H{
		"title": "Edit Profile",
		"form": profileForm{
			Name:     user.Name,
			Location: user.Location,
			Bio:      user.Bio,
		},
	})
}

func (p *ProfileModule) editPost(c *gin.Context) {
	user := common.CurrentUser(c)

	var form profileForm
	if err := c.ShouldBind(&form); err != nil {
		common.Render(c, http.StatusBadRequest, "profile_edit.html", gin.H{
			"title":  "Edit Profile",
			"form":   form,
			"errors": common.FormErrors(err),
		})
		return
	}

	user.Name = form.Name
	user.Location = form.Location
	user.Bio = form.Bio

	db := p.app.DB.WithContext(c.Request.Context())
	if err := db.Transaction(func(tx *gorm.DB) error {
		return database.SaveUser(tx, user)
	}); err != nil {
		common.InternalError(c, p.app.Log, "save profile", err)
		return
	}
	if err := p.pages.ClearAuthor(db, user); err != nil {
		p.app.Log.Warnw("clear author pages", "user_id", user.ID, "err", err)
	}

	common.Flash(c, "Your profile has been updated.")
	c.Redirect(http.StatusFound, "/user/"+user.Username)
}
