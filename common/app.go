package common

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cadenza/config"
	"cadenza/email"
	"cadenza/token"
)

// App carries the process-wide collaborators. It is built once in main and
// handed to every module constructor.
type App struct {
	Config *config.Config
	DB     *gorm.DB
	Log    *zap.SugaredLogger
	Mail   *email.Composer
	Tokens *token.Issuer
}
