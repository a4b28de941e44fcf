package chat

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// conversationPathPattern matches the per-conversation route the SPA
// navigates to once a card is opened, e.g. /chat/f5e7a1....
var conversationPathPattern = regexp.MustCompile(`/chat/([^/]+)$`)

// SelectPage drives the menu where one conversation partner is chosen by
// its displayed name.
type SelectPage struct {
	page    *rod.Page
	timeout time.Duration
	log     *zap.Logger
}

// NewSelectPage wraps the menu page.
func NewSelectPage(page *rod.Page, timeout time.Duration, log *zap.Logger) *SelectPage {
	if log == nil {
		log = zap.NewNop()
	}
	return &SelectPage{page: page, timeout: timeout, log: log}
}

// OpenConversation clicks the card whose text contains name and waits for
// the conversation route plus a usable message input. It returns the
// conversation id taken from the final URL path segment.
func (s *SelectPage) OpenConversation(ctx context.Context, name string) (string, error) {
	page := s.page.Context(ctx).Timeout(s.timeout)

	card, err := page.ElementR(menuCardSelector, regexp.QuoteMeta(name))
	if err != nil {
		return "", fmt.Errorf("conversation card %q not found: %w", name, err)
	}
	if err := card.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return "", fmt.Errorf("click conversation card %q: %w", name, err)
	}

	// The menu is an SPA; the click swaps routes without a page load, so
	// the URL is polled rather than waiting on a navigation lifecycle.
	convID, err := s.waitForConversation(ctx)
	if err != nil {
		return "", err
	}

	input, err := page.Element(messageInputSelector)
	if err != nil {
		return "", fmt.Errorf("message input not interactive: %w", err)
	}
	if err := input.WaitVisible(); err != nil {
		return "", fmt.Errorf("message input not visible: %w", err)
	}
	time.Sleep(menuSettleDuration)

	s.log.Info("conversation opened",
		zap.String("name", name),
		zap.String("conversation_id", convID))
	return convID, nil
}

// waitForConversation polls the page URL until it carries a conversation
// path segment.
func (s *SelectPage) waitForConversation(ctx context.Context) (string, error) {
	deadline := time.Now().Add(s.timeout)
	for {
		if id := ConversationIDFromURL(s.currentURL()); id != "" {
			return id, nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("URL never reached a conversation route, last seen %q", s.currentURL())
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func (s *SelectPage) currentURL() string {
	info, err := s.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// ConversationIDFromURL extracts the conversation id from a conversation
// route URL, or returns "" when the URL is not one.
func ConversationIDFromURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	m := conversationPathPattern.FindStringSubmatch(strings.TrimSuffix(parsed.Path, "/"))
	if m == nil {
		return ""
	}
	return m[1]
}
