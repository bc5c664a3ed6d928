// Package notify renders and dispatches account notifications. Delivery is
// left to an outbox consumer; this package only produces the messages.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"
)

type Kind string

const (
	KindEmailVerification Kind = "email_verification"
	KindPasswordReset     Kind = "password_reset"
	KindWelcome           Kind = "welcome"
	KindAccountLocked     Kind = "account_locked"
)

// Payload holds template values such as "name", "code", "link", "expires"
// and "until".
type Payload map[string]string

type Sender interface {
	Send(ctx context.Context, kind Kind, recipient string, payload Payload) error
}

// Message is a rendered notification.
type Message struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	HTMLBody  string    `json:"html_body"`
	CreatedAt time.Time `json:"created_at"`
}

type messageTemplate struct {
	subject string
	body    *template.Template
}

var templates = map[Kind]messageTemplate{
	KindEmailVerification: {
		subject: "Verify your email address",
		body: template.Must(template.New("verify").Parse(
			`<p>Hello {{.name}},</p>
<p>Your verification code is <strong>{{.code}}</strong>. It expires at {{.expires}}.</p>
<p><a href="{{.link}}">Verify email</a></p>`)),
	},
	KindPasswordReset: {
		subject: "Reset your password",
		body: template.Must(template.New("reset").Parse(
			`<p>Hello {{.name}},</p>
<p>Your password reset code is <strong>{{.code}}</strong>. It expires at {{.expires}}.</p>
<p><a href="{{.link}}">Reset password</a></p>
<p>If you did not request this, you can ignore this email.</p>`)),
	},
	KindWelcome: {
		subject: "Welcome aboard",
		body: template.Must(template.New("welcome").Parse(
			`<p>Welcome, {{.name}}!</p>
<p>Your email is verified and your account is ready.</p>`)),
	},
	KindAccountLocked: {
		subject: "Your account has been locked",
		body: template.Must(template.New("locked").Parse(
			`<p>Hello {{.name}},</p>
<p>Your account was locked after too many failed sign-in attempts.</p>
<p>It will unlock automatically at {{.until}}.</p>`)),
	},
}

// Render builds the subject and HTML body for kind.
func Render(kind Kind, payload Payload) (string, string, error) {
	t, ok := templates[kind]
	if !ok {
		return "", "", fmt.Errorf("unknown notification kind %q", kind)
	}

	var buf bytes.Buffer
	if err := t.body.Execute(&buf, map[string]string(payload)); err != nil {
		return "", "", fmt.Errorf("render %s: %w", kind, err)
	}
	return t.subject, buf.String(), nil
}
