package email

import (
	"bytes"
	"fmt"
	"net/smtp"
	"text/template"

	"go.uber.org/zap"

	"cadenza/config"
)

// Mailer delivers one plain-text message.
type Mailer interface {
	Send(to, subject, body string) error
}

type EmailService struct {
	host     string
	port     string
	user     string
	password string
	from     string
}

func NewEmailService(cfg *config.Config) *EmailService {
	return &EmailService{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		from:     cfg.SMTPFrom,
	}
}

func (e *EmailService) Send(to, subject, body string) error {
	if e.host == "" {
		return fmt.Errorf("email: SMTP_HOST not configured")
	}

	message := fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"\r\n"+
		"%s\r\n", e.from, to, subject, body)

	var auth smtp.Auth
	if e.user != "" {
		auth = smtp.PlainAuth("", e.user, e.password, e.host)
	}
	addr := fmt.Sprintf("%s:%s", e.host, e.port)

	if err := smtp.SendMail(addr, auth, e.from, []string{to}, []byte(message)); err != nil {
		return fmt.Errorf("email: send to %s: %w", to, err)
	}
	return nil
}

// LogMailer writes messages to the log instead of sending them. main uses it
// when no SMTP host is configured.
type LogMailer struct {
	Log *zap.SugaredLogger
}

func (m LogMailer) Send(to, subject, body string) error {
	m.Log.Infow("email not sent, SMTP_HOST is empty", "to", to, "subject", subject, "body", body)
	return nil
}

var (
	welcomeTmpl = template.Must(template.New("welcome").Parse(`Dear {{.Username}},

Welcome to Cadenza!

Share your singles, EPs and albums and follow the musicians you like.

Sincerely,

The Cadenza Team
`))

	confirmTmpl = template.Must(template.New("confirm").Parse(`Dear {{.Username}},

To confirm your account please click on the following link:

{{.Link}}

The link expires in {{.Expires}}.

Sincerely,

The Cadenza Team

Note: replies to this email address are not monitored.
`))
)

// Composer renders the application's messages and hands them to a Mailer.
type Composer struct {
	mailer Mailer
	prefix string
	domain string
}

func NewComposer(mailer Mailer, subjectPrefix, domain string) *Composer {
	return &Composer{mailer: mailer, prefix: subjectPrefix, domain: domain}
}

func (c *Composer) SendWelcome(to, username string) error {
	body, err := render(welcomeTmpl, map[string]string{"Username": username})
	if err != nil {
		return err
	}
	return c.mailer.Send(to, c.prefix+"Welcome", body)
}

func (c *Composer) SendConfirmation(to, username, tok, expires string) error {
	body, err := render(confirmTmpl, map[string]string{
		"Username": username,
		"Link":     ConfirmationLink(c.domain, tok),
		"Expires":  expires,
	})
	if err != nil {
		return err
	}
	return c.mailer.Send(to, c.prefix+"Confirm Your Account", body)
}

func ConfirmationLink(domain, tok string) string {
	return fmt.Sprintf("%s/auth/confirm/%s", domain, tok)
}

func render(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("email: render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}
