package auth

import (
	"net/http"
	"net/url"
	"regexp"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cadenza/common"
	"cadenza/database"
	"cadenza/models"
	"cadenza/testutil"
)

var confirmLink = regexp.MustCompile(`/auth/confirm/(\S+)`)

func setup(t *testing.T) (*common.App, *testutil.RecordingMailer, *testutil.Client) {
	app, mailer := testutil.NewApp(t)
	router := testutil.NewRouter(t, app)
	router.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "home") })
	NewAuthModule(app).RegisterRoutes(router)
	return app, mailer, testutil.NewClient(router)
}

func registration(email, username string) url.Values {
	return url.Values{
		"email":     {email},
		"username":  {username},
		"password":  {"secret-pass"},
		"password2": {"secret-pass"},
	}
}

func TestRegister_CreatesUserAndSendsMail(t *testing.T) {
	app, mailer, client := setup(t)

	w := client.PostForm("/auth/register", registration("John@Example.com", "john"))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/auth/login", w.Header().Get("Location"))

	user, err := database.UserByUsername(app.DB, "john")
	require.NoError(t, err)
	assert.Equal(t, "john@example.com", user.Email)
	assert.False(t, user.Confirmed)
	assert.True(t, user.VerifyPassword("secret-pass"))
	assert.Equal(t, models.RoleUser, user.Role.Name)
	assert.NotEmpty(t, user.AvatarHash)

	msgs := mailer.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "[Cadenza] Welcome", msgs[0].Subject)
	assert.Equal(t, "[Cadenza] Confirm Your Account", msgs[1].Subject)
	assert.Equal(t, "john@example.com", msgs[1].To)
	assert.Regexp(t, confirmLink, msgs[1].Body)
}

func TestRegister_AdminEmailGetsAdministrator(t *testing.T) {
	app, _, client := setup(t)

	client.PostForm("/auth/register", registration(testutil.AdminEmail, "boss"))

	user, err := database.UserByUsername(app.DB, "boss")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdministrator, user.Role.Name)
	assert.True(t, user.IsAdministrator())
}

func TestRegister_ValidationErrors(t *testing.T) {
	app, mailer, client := setup(t)

	form := registration("not-an-email", "1abc")
	form.Set("password2", "different")
	w := client.PostForm("/auth/register", form)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid email address.")
	assert.Contains(t, w.Body.String(), "Usernames must start with a letter")
	assert.Contains(t, w.Body.String(), "Passwords must match.")

	taken, err := database.UsernameTaken(app.DB, "1abc", 0)
	require.NoError(t, err)
	assert.False(t, taken)
	assert.Empty(t, mailer.Messages())
}

func TestRegister_DuplicateEmailAndUsername(t *testing.T) {
	app, _, client := setup(t)
	testutil.CreateUser(t, app, "john", true)

	w := client.PostForm("/auth/register", registration("john@example.com", "john"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Email already registered.")
	assert.Contains(t, w.Body.String(), "Username already in use.")
}

func TestLogin_Success(t *testing.T) {
	app, _, client := setup(t)
	testutil.CreateUser(t, app, "john", true)

	w := client.PostForm("/auth/login", url.Values{
		"email":    {"john@example.com"},
		"password": {testutil.Password},
	})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	session := client.Cookie("test-session")
	require.NotNil(t, session)
	assert.Zero(t, session.MaxAge)

	w = client.Get("/auth/login")
	assert.Equal(t, http.StatusFound, w.Code)
}

func TestLogin_RememberMeAndNext(t *testing.T) {
	app, _, client := setup(t)
	testutil.CreateUser(t, app, "john", true)

	w := client.PostForm("/auth/login", url.Values{
		"email":       {"john@example.com"},
		"password":    {testutil.Password},
		"remember_me": {"true"},
		"next":        {"/user/john"},
	})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/user/john", w.Header().Get("Location"))
	assert.Equal(t, 86400*30, client.Cookie("test-session").MaxAge)
}

func TestLogin_WrongPassword(t *testing.T) {
	app, _, client := setup(t)
	testutil.CreateUser(t, app, "john", true)

	w := client.PostForm("/auth/login", url.Values{
		"email":    {"john@example.com"},
		"password": {"wrong"},
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid email or password.")

	w = client.PostForm("/auth/login", url.Values{
		"email":    {"nobody@example.com"},
		"password": {"wrong"},
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSafeNext(t *testing.T) {
	assert.Equal(t, "/user/john", safeNext("/user/john"))
	assert.Equal(t, "/", safeNext(""))
	assert.Equal(t, "/", safeNext("https://evil.example.com"))
	assert.Equal(t, "/", safeNext("//evil.example.com"))
	assert.Equal(t, "/", safeNext(`/\evil.example.com`))
}

func TestLogout(t *testing.T) {
	app, _, client := setup(t)
	user := testutil.CreateUser(t, app, "john", true)
	client.LoginAs(t, user)

	w := client.Get("/auth/logout")
	assert.Equal(t, http.StatusFound, w.Code)

	w = client.Get("/auth/confirm")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "/auth/login?next=")
}

func TestUnconfirmedUserIsRedirected(t *testing.T) {
	app, _, client := setup(t)
	user := testutil.CreateUser(t, app, "john", false)
	client.LoginAs(t, user)

	w := client.Get("/")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/auth/unconfirmed", w.Header().Get("Location"))

	w = client.Get("/auth/unconfirmed")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "You have not confirmed your account yet.")
}

func TestConfirm_ValidToken(t *testing.T) {
	app, mailer, client := setup(t)
	client.PostForm("/auth/register", registration("john@example.com", "john"))
	user, err := database.UserByUsername(app.DB, "john")
	require.NoError(t, err)
	client.LoginAs(t, user)

	msgs := mailer.Messages()
	require.NotEmpty(t, msgs)
	match := confirmLink.FindStringSubmatch(msgs[len(msgs)-1].Body)
	require.Len(t, match, 2)

	w := client.Get("/auth/confirm/" + match[1])
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	user, err = database.UserByID(app.DB, user.ID)
	require.NoError(t, err)
	assert.True(t, user.Confirmed)

	w = client.Get("/")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestConfirm_OtherUsersToken(t *testing.T) {
	app, _, client := setup(t)
	john := testutil.CreateUser(t, app, "john", false)
	susan := testutil.CreateUser(t, app, "susan", false)

	tok, err := app.Tokens.Issue(susan.ID, time.Hour)
	require.NoError(t, err)

	client.LoginAs(t, john)
	w := client.Get("/auth/confirm/" + tok)
	assert.Equal(t, http.StatusFound, w.Code)

	john, err = database.UserByID(app.DB, john.ID)
	require.NoError(t, err)
	assert.False(t, john.Confirmed)
}

func TestConfirm_RequiresLogin(t *testing.T) {
	_, _, client := setup(t)

	w := client.Get("/auth/confirm/whatever")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "/auth/login")
}

func TestResendConfirmation(t *testing.T) {
	app, mailer, client := setup(t)
	user := testutil.CreateUser(t, app, "john", false)
	client.LoginAs(t, user)

	w := client.Get("/auth/confirm")
	assert.Equal(t, http.StatusFound, w.Code)

	msgs := mailer.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "john@example.com", msgs[0].To)
	assert.Contains(t, msgs[0].Body, "1 hour")
}

func TestHumanDuration(t *testing.T) {
	assert.Equal(t, "1 hour", humanDuration(time.Hour))
	assert.Equal(t, "24 hours", humanDuration(24*time.Hour))
	assert.Equal(t, "30 minutes", humanDuration(30*time.Minute))
	assert.Equal(t, "1m30s", humanDuration(90*time.Second))
}
