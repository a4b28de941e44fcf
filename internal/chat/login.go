// Package chat holds the page objects for the target conversational UI:
// login, conversation selection, and the live conversation page the
// acquisition engine drives.
package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// Selectors for the login form. The login page is a plain form; the menu
// that follows is an SPA whose URL does not change on success, so success
// is judged by the conversation cards appearing.
const (
	usernameSelector   = `input[name="username"]`
	passwordSelector   = `input[name="password"]`
	loginButtonID      = "#login-button"
	menuCardSelector   = `div[data-slot="card"]`
	menuSettleDuration = 300 * time.Millisecond
)

// LoginPage drives the login form.
type LoginPage struct {
	page    *rod.Page
	timeout time.Duration
	log     *zap.Logger
}

// NewLoginPage wraps an already-navigated page.
func NewLoginPage(page *rod.Page, timeout time.Duration, log *zap.Logger) *LoginPage {
	if log == nil {
		log = zap.NewNop()
	}
	return &LoginPage{page: page, timeout: timeout, log: log}
}

// Login fills the credential form, submits it, and waits for the menu to
// render.
func (l *LoginPage) Login(ctx context.Context, username, password string) error {
	page := l.page.Context(ctx).Timeout(l.timeout)

	user, err := page.Element(usernameSelector)
	if err != nil {
		return fmt.Errorf("username input not found: %w", err)
	}
	if err := user.Input(username); err != nil {
		return fmt.Errorf("fill username: %w", err)
	}

	pwd, err := page.Element(passwordSelector)
	if err != nil {
		return fmt.Errorf("password input not found: %w", err)
	}
	if err := pwd.Input(password); err != nil {
		return fmt.Errorf("fill password: %w", err)
	}

	btn, err := page.Element(loginButtonID)
	if err != nil {
		return fmt.Errorf("login button not found: %w", err)
	}
	if err := btn.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click login: %w", err)
	}

	return l.waitForMenu(ctx)
}

// waitForMenu blocks until the conversation cards are visible.
func (l *LoginPage) waitForMenu(ctx context.Context) error {
	page := l.page.Context(ctx).Timeout(l.timeout)
	card, err := page.Element(menuCardSelector)
	if err != nil {
		return fmt.Errorf("menu cards did not appear after login: %w", err)
	}
	if err := card.WaitVisible(); err != nil {
		return fmt.Errorf("menu card not visible: %w", err)
	}
	l.log.Debug("login confirmed, menu rendered")
	return nil
}
