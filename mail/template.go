package mail

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"text/template"
	"time"

	"github.com/jrsteele09/go-magic-auth/internal/errors"
)

// MagicLinkParams is passed as data when executing the email templates.
type MagicLinkParams struct {
	Email   string
	AppName string
	Link    string
	Expiry  time.Duration
}

const DefaultMagicLinkSubject = `Your sign-in link for {{.AppName}}`

// DefaultMagicLinkTemplate is the plain-text body of the magic-link email.
const DefaultMagicLinkTemplate = `Hi {{.Email}},

Use the link below to sign in to {{.AppName}}:

{{.Link}}

The link is valid for {{printf "%.f" .Expiry.Minutes}} minutes. Do not share it with anyone.

If you did not request a sign-in link, you can ignore this email.
`

// Message is a composed email ready to be handed to a transport.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Bytes renders the message as an RFC 5322 text message.
func (m Message) Bytes(from string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", m.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", m.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(m.Body, "\n", "\r\n"))
	return b.Bytes()
}

// Composer turns a magic-link token into an email.
type Composer struct {
	baseURL *url.URL
	appName string
	expiry  time.Duration
	subject *template.Template
	body    *template.Template
}

type ComposerOption func(*Composer) error

// WithBodyTemplate replaces DefaultMagicLinkTemplate.
func WithBodyTemplate(text string) ComposerOption {
	return func(c *Composer) error {
		t, err := template.New("body").Parse(text)
		if err != nil {
			return err
		}
		c.body = t
		return nil
	}
}

func NewComposer(baseURL, appName string, expiry time.Duration, options ...ComposerOption) (*Composer, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Wrapf(errors.ErrConfig, "[NewComposer] invalid magic link base url %q", baseURL)
	}

	c := &Composer{
		baseURL: u,
		appName: appName,
		expiry:  expiry,
		subject: template.Must(template.New("subject").Parse(DefaultMagicLinkSubject)),
		body:    template.Must(template.New("body").Parse(DefaultMagicLinkTemplate)),
	}
	for _, opt := range options {
		if err := opt(c); err != nil {
			return nil, errors.Mark(err, errors.ErrConfig, "[NewComposer]")
		}
	}
	return c, nil
}

// Link returns the base URL with the token added as the "token" query parameter.
func (c *Composer) Link(token string) string {
	u := *c.baseURL
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Composer) Compose(toEmail, token string) (Message, error) {
	params := MagicLinkParams{
		Email:   toEmail,
		AppName: c.appName,
		Link:    c.Link(token),
		Expiry:  c.expiry,
	}

	var subject, body bytes.Buffer
	if err := c.subject.Execute(&subject, params); err != nil {
		return Message{}, errors.Mark(err, errors.ErrDelivery, "[Composer.Compose] subject")
	}
	if err := c.body.Execute(&body, params); err != nil {
		return Message{}, errors.Mark(err, errors.ErrDelivery, "[Composer.Compose] body")
	}
	return Message{To: toEmail, Subject: subject.String(), Body: body.String()}, nil
}
