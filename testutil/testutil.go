// Package testutil builds the application context, router and HTTP client
// shared by the handler tests.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cadenza/common"
	"cadenza/config"
	"cadenza/database"
	"cadenza/email"
	"cadenza/models"
	"cadenza/token"
)

const (
	AdminEmail = "admin@example.com"
	Password   = "password"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

// RecordingMailer keeps every message instead of delivering it.
type RecordingMailer struct {
	mu       sync.Mutex
	messages []Message
}

func (m *RecordingMailer) Send(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, Message{To: to, Subject: subject, Body: body})
	return nil
}

func (m *RecordingMailer) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.messages...)
}

func NewApp(t *testing.T) (*common.App, *RecordingMailer) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	log := zap.NewNop().Sugar()
	require.NoError(t, database.RunMigrations(db, log))

	cfg := &config.Config{
		SecretKey:           "test-secret",
		AdminEmail:          AdminEmail,
		Domain:              "http://localhost:8080",
		MailSubjectPrefix:   "[Cadenza] ",
		ConfirmationTTL:     time.Hour,
		CompositionsPerPage: 5,
		FollowsPerPage:      5,
		CacheDir:            t.TempDir(),
		PageCacheMaxAge:     time.Minute,
	}

	tokens, err := token.NewIssuer(cfg.SecretKey)
	require.NoError(t, err)

	mailer := &RecordingMailer{}
	return &common.App{
		Config: cfg,
		DB:     db,
		Log:    log,
		Mail:   email.NewComposer(mailer, cfg.MailSubjectPrefix, cfg.Domain),
		Tokens: tokens,
	}, mailer
}

// CreateUser registers username with the default role and Password.
func CreateUser(t *testing.T, app *common.App, username string, confirmed bool) *models.User {
	t.Helper()

	u := &models.User{Username: username, Confirmed: confirmed}
	u.SetEmail(username + "@example.com")
	require.NoError(t, u.SetPassword(Password))
	require.NoError(t, app.DB.Transaction(func(tx *gorm.DB) error {
		return database.CreateUser(tx, u, app.Config.AdminEmail)
	}))
	return u
}

// NewRouter returns an engine with the package's views, the shared views,
// cookie sessions and the current-user loader. Modules register their own
// routes on it.
func NewRouter(t *testing.T, app *common.App) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, common.RegisterValidators())

	router := gin.New()
	router.SetFuncMap(common.TemplateFuncs())

	files, err := filepath.Glob("views/*.html")
	require.NoError(t, err)
	shared, err := filepath.Glob("../common/views/*.html")
	require.NoError(t, err)
	router.LoadHTMLFiles(append(files, shared...)...)

	store := cookie.NewStore([]byte(app.Config.SecretKey))
	router.Use(common.Recovery(app.Log))
	router.Use(sessions.Sessions("test-session", store))
	router.Use(common.LoadCurrentUser(app))

	router.GET("/auth/test-login/:id", func(c *gin.Context) {
		id, _ := strconv.Atoi(c.Param("id"))
		common.Login(c, &models.User{ID: uint(id)}, false)
		c.Status(http.StatusNoContent)
	})
	router.NoRoute(common.NotFound)
	return router
}

// Client replays the cookies it receives, like a browser.
type Client struct {
	router  *gin.Engine
	cookies map[string]*http.Cookie
}

func NewClient(router *gin.Engine) *Client {
	return &Client{router: router, cookies: map[string]*http.Cookie{}}
}

func (cl *Client) LoginAs(t *testing.T, u *models.User) {
	t.Helper()
	w := cl.Get("/auth/test-login/" + strconv.Itoa(int(u.ID)))
	require.Equal(t, http.StatusNoContent, w.Code)
}

func (cl *Client) Get(path string) *httptest.ResponseRecorder {
	return cl.do(http.MethodGet, path, nil)
}

func (cl *Client) PostForm(path string, form url.Values) *httptest.ResponseRecorder {
	return cl.do(http.MethodPost, path, form)
}

func (cl *Client) do(method, path string, form url.Values) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, c := range cl.cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	cl.router.ServeHTTP(w, req)

	for _, c := range w.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(cl.cookies, c.Name)
			continue
		}
		cl.cookies[c.Name] = c
	}
	return w
}

func (cl *Client) Cookie(name string) *http.Cookie {
	return cl.cookies[name]
}
