package social

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"cadenza/common"
	"cadenza/database"
	"cadenza/models"
)

type SocialModule struct {
	app *common.App
}

func NewSocialModule(app *common.App) *SocialModule {
	return &SocialModule{app: app}
}

func (s *SocialModule) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/", common.RequirePermission(models.PermFollow), s.loadTarget)
	{
		group.GET("/follow/:username", s.follow)
		group.GET("/unfollow/:username", s.unfollow)
		group.GET("/followers/:username", s.followers)
		group.GET("/following/:username", s.following)
	}
}

var errAlreadyFollowing = errors.New("social: already following")

// loadTarget resolves :username into the "target" context key.
func (s *SocialModule) loadTarget(c *gin.Context) {
	db := s.app.DB.WithContext(c.Request.Context())
	target, err := database.UserByUsername(db, c.Param("username"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		common.NotFound(c)
		c.Abort()
		return
	}
	if err != nil {
		common.InternalError(c, s.app.Log, "load user", err)
		c.Abort()
		return
	}
	c.Set("target", target)
	c.Next()
}

func (s *SocialModule) follow(c *gin.Context) {
	me := common.CurrentUser(c)
	target := c.MustGet("target").(*models.User)
	profile := "/user/" + target.Username

	err := s.app.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		following, err := database.IsFollowing(tx, me, target)
		if err != nil {
			return err
		}
		if following {
			return errAlreadyFollowing
		}
		return database.Follow(tx, me, target)
	})
	switch {
	case errors.Is(err, errAlreadyFollowing):
		common.Flash(c, "You are already following this user.")
	case errors.Is(err, database.ErrSelfFollow):
		common.Flash(c, "You can't follow yourself.")
	case err != nil:
		common.InternalError(c, s.app.Log, "follow", err)
		return
	default:
		s.app.Log.Infow("follow", "follower_id", me.ID, "followed_id", target.ID)
		common.Flash(c, fmt.Sprintf("You are now following %s.", target.Username))
	}
	c.Redirect(http.StatusFound, profile)
}

func (s *SocialModule) unfollow(c *gin.Context) {
	me := common.CurrentUser(c)
	target := c.MustGet("target").(*models.User)
	profile := "/user/" + target.Username

	var wasFollowing bool
	err := s.app.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var err error
		wasFollowing, err = database.IsFollowing(tx, me, target)
		if err != nil || !wasFollowing {
			return err
		}
		return database.Unfollow(tx, me, target)
	})
	if err != nil {
		common.InternalError(c, s.app.Log, "unfollow", err)
		return
	}

	if wasFollowing {
		common.Flash(c, fmt.Sprintf("You are not following %s anymore.", target.Username))
	} else {
		common.Flash(c, "You are not following this user.")
	}
	c.Redirect(http.StatusFound, profile)
}

func (s *SocialModule) followers(c *gin.Context) {
	target := c.MustGet("target").(*models.User)
	page := common.PageFromQuery(c, s.app.Config.FollowsPerPage)

	entries, total, err := database.Followers(s.app.DB.WithContext(c.Request.Context()), target, page.Offset(), page.PerPage)
	if err != nil {
		common.InternalError(c, s.app.Log, "list followers", err)
		return
	}
	page.Total = total

	common.Render(c, http.StatusOK, "social_follows.html", gin.H{
		"title":   "Followers of " + target.Username,
		"user":    target,
		"entries": entries,
		"page":    page,
		"base":    "/followers/" + target.Username,
	})
}

func (s *SocialModule) following(c *gin.Context) {
	target := c.MustGet("target").(*models.User)
	page := common.PageFromQuery(c, s.app.Config.FollowsPerPage)

	entries, total, err := database.Following(s.app.DB.WithContext(c.Request.Context()), target, page.Offset(), page.PerPage)
	if err != nil {
		common.InternalError(c, s.app.Log, "list following", err)
		return
	}
	page.Total = total

	common.Render(c, http.StatusOK, "social_follows.html", gin.H{
		"title":   "Followed by " + target.Username,
		"user":    target,
		"entries": entries,
		"page":    page,
		"base":    "/following/" + target.Username,
	})
}
