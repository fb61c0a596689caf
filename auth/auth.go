package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"cadenza/common"
	"cadenza/database"
	"cadenza/models"
	"cadenza/token"
)

type AuthModule struct {
	app *common.App
}

func NewAuthModule(app *common.App) *AuthModule {
	return &AuthModule{app: app}
}

func (a *AuthModule) RegisterRoutes(router *gin.Engine) {
	authGroup := router.Group("/auth")
	{
		authGroup.GET("/register", a.registerPage)
		authGroup.POST("/register", a.registerPost)
		authGroup.GET("/login", a.loginPage)
		authGroup.POST("/login", a.loginPost)
		authGroup.GET("/logout", a.logout)
		authGroup.GET("/confirm/:token", common.RequireLogin, a.confirm)
		authGroup.GET("/confirm", common.RequireLogin, a.resendConfirmation)
		authGroup.GET("/unconfirmed", a.unconfirmed)
	}
}

type registerForm struct {
	Email     string `form:"email" binding:"required,email,max=64"`
	Username  string `form:"username" binding:"required,max=64,username"`
	Password  string `form:"password" binding:"required,min=8,max=72"`
	Password2 string `form:"password2" binding:"required,eqfield=Password"`
}

type loginForm struct {
	Email      string `form:"email" binding:"required,email,max=64"`
	Password   string `form:"password" binding:"required"`
	RememberMe bool   `form:"remember_me"`
}

func (a *AuthModule) registerPage(c *gin.Context) {
	if common.CurrentUser(c) != nil {
		c.Redirect(http.StatusFound, "/")
		return
	}
	common.Render(c, http.StatusOK, "auth_register.html", gin.H{
		"title": "Register",
	})
}

func (a *AuthModule) registerPost(c *gin.Context) {
	var form registerForm
	// echoed back on errors, never the password
	data := gin.H{
		"title":    "Register",
		"email":    c.PostForm("email"),
		"username": c.PostForm("username"),
	}

	if err := c.ShouldBind(&form); err != nil {
		data["errors"] = common.FormErrors(err)
		common.Render(c, http.StatusBadRequest, "auth_register.html", data)
		return
	}
	form.Email = models.NormalizeEmail(form.Email)

	db := a.app.DB.WithContext(c.Request.Context())
	errs := map[string]string{}
	if taken, err := database.EmailTaken(db, form.Email, 0); err != nil {
		common.InternalError(c, a.app.Log, "check email", err)
		return
	} else if taken {
		errs["email"] = "Email already registered."
	}
	if taken, err := database.UsernameTaken(db, form.Username, 0); err != nil {
		common.InternalError(c, a.app.Log, "check username", err)
		return
	} else if taken {
		errs["username"] = "Username already in use."
	}
	if len(errs) > 0 {
		data["errors"] = errs
		common.Render(c, http.StatusBadRequest, "auth_register.html", data)
		return
	}

	user := &models.User{Username: form.Username}
	user.SetEmail(form.Email)
	if err := user.SetPassword(form.Password); err != nil {
		common.InternalError(c, a.app.Log, "hash password", err)
		return
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return database.CreateUser(tx, user, a.app.Config.AdminEmail)
	})
	if err != nil {
		common.InternalError(c, a.app.Log, "create user", err)
		return
	}
	a.app.Log.Infow("user registered", "user_id", user.ID, "username", user.Username)

	if err := a.app.Mail.SendWelcome(user.Email, user.Username); err != nil {
		a.app.Log.Warnw("send welcome email", "user_id", user.ID, "err", err)
	}
	if err := a.sendConfirmation(user); err != nil {
		a.app.Log.Warnw("send confirmation email", "user_id", user.ID, "err", err)
		common.Flash(c, "We could not send the confirmation email. Log in to request a new one.")
	} else {
		common.Flash(c, "A confirmation email has been sent to you by email.")
	}

	c.Redirect(http.StatusFound, "/auth/login")
}

func (a *AuthModule) loginPage(c *gin.Context) {
	if common.CurrentUser(c) != nil {
		c.Redirect(http.StatusFound, "/")
		return
	}
	common.Render(c, http.StatusOK, "auth_login.html", gin.H{
		"title": "Login",
		"next":  c.Query("next"),
	})
}

func (a *AuthModule) loginPost(c *gin.Context) {
	next := c.Query("next")
	if next == "" {
		next = c.PostForm("next")
	}
	data := gin.H{
		"title": "Login",
		"email": c.PostForm("email"),
		"next":  next,
	}

	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		data["errors"] = common.FormErrors(err)
		common.Render(c, http.StatusBadRequest, "auth_login.html", data)
		return
	}

	db := a.app.DB.WithContext(c.Request.Context())
	user, err := database.UserByEmail(db, form.Email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		common.InternalError(c, a.app.Log, "load user", err)
		return
	}
	if user == nil || !user.VerifyPassword(form.Password) {
		common.Flash(c, "Invalid email or password.")
		common.Render(c, http.StatusUnauthorized, "auth_login.html", data)
		return
	}

	if err := common.Login(c, user, form.RememberMe); err != nil {
		common.InternalError(c, a.app.Log, "save session", err)
		return
	}
	a.app.Log.Infow("user logged in", "user_id", user.ID)

	c.Redirect(http.StatusFound, safeNext(next))
}

// safeNext only follows local paths so the login form cannot be used as an
// open redirect.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

func (a *AuthModule) logout(c *gin.Context) {
	if err := common.Logout(c); err != nil {
		a.app.Log.Warnw("clear session", "err", err)
	}
	common.Flash(c, "You have been logged out.")
	c.Redirect(http.StatusFound, "/")
}

func (a *AuthModule) confirm(c *gin.Context) {
	user := common.CurrentUser(c)
	if user.Confirmed {
		c.Redirect(http.StatusFound, "/")
		return
	}

	if !a.app.Tokens.Verify(c.Param("token"), user.ID) {
		common.Flash(c, "The confirmation link is invalid or has expired.")
		c.Redirect(http.StatusFound, "/")
		return
	}

	err := a.app.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		return database.Confirm(tx, user)
	})
	if err != nil {
		common.InternalError(c, a.app.Log, "confirm user", err)
		return
	}
	a.app.Log.Infow("user confirmed", "user_id", user.ID)

	common.Flash(c, "You have confirmed your account. Thanks!")
	c.Redirect(http.StatusFound, "/")
}

func (a *AuthModule) resendConfirmation(c *gin.Context) {
	user := common.CurrentUser(c)
	if user.Confirmed {
		c.Redirect(http.StatusFound, "/")
		return
	}

	if err := a.sendConfirmation(user); err != nil {
		common.InternalError(c, a.app.Log, "resend confirmation", err)
		return
	}

	common.Flash(c, "A new confirmation email has been sent to you by email.")
	c.Redirect(http.StatusFound, "/")
}

func (a *AuthModule) unconfirmed(c *gin.Context) {
	user := common.CurrentUser(c)
	if user == nil || user.Confirmed {
		c.Redirect(http.StatusFound, "/")
		return
	}
	common.Render(c, http.StatusOK, "auth_unconfirmed.html", gin.H{
		"title": "Confirm your account",
	})
}

func (a *AuthModule) sendConfirmation(user *models.User) error {
	ttl := a.app.Config.ConfirmationTTL
	if ttl <= 0 {
		ttl = token.DefaultTTL
	}
	tok, err := a.app.Tokens.Issue(user.ID, ttl)
	if err != nil {
		return err
	}
	return a.app.Mail.SendConfirmation(user.Email, user.Username, tok, humanDuration(ttl))
}

func humanDuration(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "1 hour"
	case d%time.Hour == 0:
		return fmt.Sprintf("%d hours", d/time.Hour)
	case d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", d/time.Minute)
	}
	return d.String()
}
