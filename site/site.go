package site

import (
	"encoding/xml"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"cadenza/common"
	"cadenza/database"
)

type SiteModule struct {
	app *common.App
}

func NewSiteModule(app *common.App) *SiteModule {
	return &SiteModule{app: app}
}

func (s *SiteModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/sitemap.xml", s.sitemap)
}

type urlset struct {
	XMLName xml.Name `xml:"urlset"`
	Xmlns   string   `xml:"xmlns,attr"`
	URLs    []url    `xml:"url"`
}

type url struct {
	Loc        string  `xml:"loc"`
	LastMod    string  `xml:"lastmod,omitempty"`
	ChangeFreq string  `xml:"changefreq"`
	Priority   float64 `xml:"priority"`
}

func (s *SiteModule) sitemap(c *gin.Context) {
	domain := strings.TrimSuffix(s.app.Config.Domain, "/")
	db := s.app.DB.WithContext(c.Request.Context())

	set := urlset{
		Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs: []url{
			{Loc: domain + "/", ChangeFreq: "daily", Priority: 1.0},
		},
	}

	users, _, err := database.ListUsers(db, 0, -1)
	if err != nil {
		s.app.Log.Errorw("sitemap users", "err", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	for _, user := range users {
		if !user.Confirmed {
			continue
		}
		set.URLs = append(set.URLs, url{
			Loc:        domain + "/user/" + user.Username,
			ChangeFreq: "weekly",
			Priority:   0.7,
		})
	}

	compositions, _, err := database.ListCompositions(db, 0, -1)
	if err != nil {
		s.app.Log.Errorw("sitemap compositions", "err", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	for _, composition := range compositions {
		set.URLs = append(set.URLs, url{
			Loc:        domain + composition.URL(),
			LastMod:    composition.UpdatedAt.Format(time.RFC3339),
			ChangeFreq: "monthly",
			Priority:   0.6,
		})
	}

	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		s.app.Log.Errorw("sitemap encode", "err", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, "application/xml; charset=utf-8", append([]byte(xml.Header), out...))
}
