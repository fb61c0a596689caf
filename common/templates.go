package common

import (
	"html/template"
	"time"

	"cadenza/models"
)

// TemplateFuncs are the helpers available to every HTML template.
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"now": func() time.Time {
			return time.Now()
		},
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("Jan 2, 2006")
		},
		"fieldError": func(errs any, name string) string {
			m, _ := errs.(map[string]string)
			return m[name]
		},
		"perm": func(name string) models.Permission {
			switch name {
			case "follow":
				return models.PermFollow
			case "review":
				return models.PermReview
			case "publish":
				return models.PermPublish
			case "moderate":
				return models.PermModerate
			case "admin":
				return models.PermAdmin
			}
			return 0
		},
	}
}
