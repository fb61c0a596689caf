package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cadenza/auth"
	"cadenza/backoffice"
	"cadenza/cache"
	"cadenza/common"
	"cadenza/config"
	"cadenza/database"
	"cadenza/email"
	"cadenza/feed"
	"cadenza/profile"
	"cadenza/site"
	"cadenza/social"
	"cadenza/token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	lg, err := common.NewLogger(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		log.Fatal("Failed to build logger: ", err)
	}
	defer lg.Sync()
	sugar := lg.Sugar()

	db, err := common.ConnectDb(cfg.SQLiteDB, sugar)
	if err != nil {
		sugar.Fatalw("failed to connect to database", "err", err)
	}

	if err := database.RunMigrations(db, sugar); err != nil {
		sugar.Fatalw("failed to run migrations", "err", err)
	}

	tokens, err := token.NewIssuer(cfg.SecretKey)
	if err != nil {
		sugar.Fatalw("failed to build token issuer", "err", err)
	}

	var mailer email.Mailer = email.NewEmailService(cfg)
	if cfg.SMTPHost == "" {
		sugar.Warn("SMTP_HOST not set, emails will only be logged")
		mailer = email.LogMailer{Log: sugar}
	}

	app := &common.App{
		Config: cfg,
		DB:     db,
		Log:    sugar,
		Mail:   email.NewComposer(mailer, cfg.MailSubjectPrefix, cfg.Domain),
		Tokens: tokens,
	}
	pages := cache.New(cfg.CacheDir, cfg.PageCacheMaxAge)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router, err := setupRouter(app, pages)
	if err != nil {
		sugar.Fatalw("failed to set up router", "err", err)
	}
	router.LoadHTMLGlob("*/views/*.html")
	router.Static("/public", "./public")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sweepCache(ctx, pages, cfg.PageCacheMaxAge, sugar)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}
	go func() {
		sugar.Infow("starting server", "port", cfg.Port, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalw("http server failed", "err", err)
		}
	}()

	<-ctx.Done()
	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnw("http server shutdown failed", "err", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}

// setupRouter builds the engine with every module registered. Templates and
// static files are left to the caller.
func setupRouter(app *common.App, pages *cache.PageCache) (*gin.Engine, error) {
	if err := common.RegisterValidators(); err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(common.Recovery(app.Log))
	router.Use(common.RequestLogger(app.Log))

	store := cookie.NewStore([]byte(app.Config.SecretKey))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   app.Config.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	router.Use(sessions.Sessions("cadenza-session", store))
	router.Use(common.LoadCurrentUser(app))

	router.SetFuncMap(common.TemplateFuncs())

	auth.NewAuthModule(app).RegisterRoutes(router)
	feed.NewFeedModule(app, pages).RegisterRoutes(router)
	profile.NewProfileModule(app, pages).RegisterRoutes(router)
	social.NewSocialModule(app).RegisterRoutes(router)
	backoffice.NewBackofficeModule(app, pages).RegisterRoutes(router)
	site.NewSiteModule(app).RegisterRoutes(router)

	router.NoRoute(common.NotFound)
	return router, nil
}

// sweepCache drops expired cached pages until ctx is done.
func sweepCache(ctx context.Context, pages *cache.PageCache, every time.Duration, log *zap.SugaredLogger) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := pages.ClearOld(); err != nil {
				log.Warnw("sweep page cache", "err", err)
			}
		}
	}
}
