package backoffice

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"cadenza/cache"
	"cadenza/common"
	"cadenza/database"
	"cadenza/models"
)

type BackofficeModule struct {
	app   *common.App
	pages *cache.PageCache
}

func NewBackofficeModule(app *common.App, pages *cache.PageCache) *BackofficeModule {
	return &BackofficeModule{app: app, pages: pages}
}

func (b *BackofficeModule) RegisterRoutes(router *gin.Engine) {
	backofficeGroup := router.Group("/backoffice", common.RequireAdmin())
	{
		backofficeGroup.GET("", b.index)
		backofficeGroup.POST("/confirm-user/:id", b.loadUser, b.confirmUser)
		backofficeGroup.POST("/delete-user/:id", b.loadUser, b.deleteUser)
		backofficeGroup.POST("/clear-cache", b.clearCache)
	}

	router.GET("/editprofile/:id", common.RequireAdmin(), b.loadUser, b.editProfilePage)
	router.POST("/editprofile/:id", common.RequireAdmin(), b.loadUser, b.editProfilePost)
}

type adminProfileForm struct {
	Email     string `form:"email" binding:"required,email,max=64"`
	Username  string `form:"username" binding:"required,max=64,username"`
	Confirmed bool   `form:"confirmed"`
	RoleID    uint   `form:"role" binding:"required"`
	Name      string `form:"name" binding:"max=64"`
	Location  string `form:"location" binding:"max=64"`
	Bio       string `form:"bio" binding:"max=2000"`
}

// loadUser resolves :id into the "user" context key.
func (b *BackofficeModule) loadUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.NotFound(c)
		c.Abort()
		return
	}

	user, err := database.UserByID(b.app.DB.WithContext(c.Request.Context()), uint(id))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		common.NotFound(c)
		c.Abort()
		return
	}
	if err != nil {
		common.InternalError(c, b.app.Log, "load user", err)
		c.Abort()
		return
	}

	c.Set("user", user)
	c.Next()
}

type userWithStats struct {
	User             models.User
	CompositionCount int64
}

func (b *BackofficeModule) index(c *gin.Context) {
	db := b.app.DB.WithContext(c.Request.Context())
	page := common.PageFromQuery(c, b.app.Config.FollowsPerPage)

	users, total, err := database.ListUsers(db, page.Offset(), page.PerPage)
	if err != nil {
		common.InternalError(c, b.app.Log, "list users", err)
		return
	}
	page.Total = total

	rows := make([]userWithStats, len(users))
	for i, user := range users {
		count, err := database.CompositionCount(db, &users[i])
		if err != nil {
			common.InternalError(c, b.app.Log, "count compositions", err)
			return
		}
		rows[i] = userWithStats{User: user, CompositionCount: count}
	}

	common.Render(c, http.StatusOK, "backoffice_index.html", gin.H{
		"title": "Backoffice",
		"users": rows,
		"page":  page,
		"base":  "/backoffice",
	})
}

func (b *BackofficeModule) confirmUser(c *gin.Context) {
	user := c.MustGet("user").(*models.User)

	err := b.app.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		return database.Confirm(tx, user)
	})
	if err != nil {
		b.app.Log.Errorw("confirm user", "user_id", user.ID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not confirm user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"confirmed": user.Confirmed,
	})
}

func (b *BackofficeModule) deleteUser(c *gin.Context) {
	user := c.MustGet("user").(*models.User)
	if user.ID == common.CurrentUser(c).ID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "administrators cannot delete themselves"})
		return
	}

	db := b.app.DB.WithContext(c.Request.Context())
	// pages must go before the rows that list their slugs
	if err := b.pages.ClearAuthor(db, user); err != nil {
		b.app.Log.Warnw("clear author pages", "user_id", user.ID, "err", err)
	}
	if err := db.Transaction(func(tx *gorm.DB) error {
		return database.DeleteUser(tx, user)
	}); err != nil {
		b.app.Log.Errorw("delete user", "user_id", user.ID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete user"})
		return
	}
	b.app.Log.Infow("user deleted", "user_id", user.ID, "by", common.CurrentUser(c).ID)

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (b *BackofficeModule) clearCache(c *gin.Context) {
	if err := b.pages.ClearAll(); err != nil {
		b.app.Log.Errorw("clear page cache", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not clear cache"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "cache cleared",
	})
}

func (b *BackofficeModule) editProfilePage(c *gin.Context) {
	user := c.MustGet("user").(*models.User)
	roleID := uint(0)
	if user.RoleID != nil {
		roleID = *user.RoleID
	}
	b.renderEdit(c, http.StatusOK, user, adminProfileForm{
		Email:     user.Email,
		Username:  user.Username,
		Confirmed: user.Confirmed,
		RoleID:    roleID,
		Name:      user.Name,
		Location:  user.Location,
		Bio:       user.Bio,
	}, nil)
}

func (b *BackofficeModule) renderEdit(c *gin.Context, status int, user *models.User, form adminProfileForm, errs map[string]string) {
	roles, err := database.ListRoles(b.app.DB.WithContext(c.Request.Context()))
	if err != nil {
		common.InternalError(c, b.app.Log, "list roles", err)
		return
	}
	common.Render(c, status, "backoffice_edit_profile.html", gin.H{
		"title":  "Edit " + user.Username,
		"user":   user,
		"form":   form,
		"roles":  roles,
		"errors": errs,
	})
}

func (b *BackofficeModule) editProfilePost(c *gin.Context) {
	user := c.MustGet("user").(*models.User)

	var form adminProfileForm
	if err := c.ShouldBind(&form); err != nil {
		b.renderEdit(c, http.StatusBadRequest, user, form, common.FormErrors(err))
		return
	}

	form.Email = models.NormalizeEmail(form.Email)
	db := b.app.DB.WithContext(c.Request.Context())
	errs := map[string]string{}
	if taken, err := database.EmailTaken(db, form.Email, user.ID); err != nil {
		common.InternalError(c, b.app.Log, "check email", err)
		return
	} else if taken {
		errs["email"] = "Email already registered."
	}
	if taken, err := database.UsernameTaken(db, form.Username, user.ID); err != nil {
		common.InternalError(c, b.app.Log, "check username", err)
		return
	} else if taken {
		errs["username"] = "Username already in use."
	}

	var role models.Role
	if err := db.First(&role, form.RoleID).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		errs["role"] = "Invalid choice."
	} else if err != nil {
		common.InternalError(c, b.app.Log, "load role", err)
		return
	}
	if len(errs) > 0 {
		b.renderEdit(c, http.StatusBadRequest, user, form, errs)
		return
	}

	user.SetEmail(form.Email)
	user.Username = form.Username
	user.Confirmed = form.Confirmed
	user.RoleID = &role.ID
	user.Role = &role
	user.Name = form.Name
	user.Location = form.Location
	user.Bio = form.Bio

	if err := db.Transaction(func(tx *gorm.DB) error {
		return database.SaveUser(tx, user)
	}); err != nil {
		common.InternalError(c, b.app.Log, "save user", err)
		return
	}
	if err := b.pages.ClearAuthor(db, user); err != nil {
		b.app.Log.Warnw("clear author pages", "user_id", user.ID, "err", err)
	}
	b.app.Log.Infow("profile edited by administrator", "user_id", user.ID, "by", common.CurrentUser(c).ID)

	common.Flash(c, "The profile has been updated.")
	c.Redirect(http.StatusFound, "/user/"+user.Username)
}
