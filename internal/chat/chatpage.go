package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"go.uber.org/zap"

	"answerhound/internal/engine"
)

// Selectors for the conversation page. The message input renders with a
// stable id; the submit control does not, so candidates are matched by
// text and type inside submitCandidatesJS.
const (
	messageInputSelector = "#message"
	messageInputFallback = "textarea"
)

// Healther reports whether the underlying browser session is usable.
// *browser.Session satisfies it.
type Healther interface {
	Healthy() bool
}

// ChatPage is the rod-backed conversation page handed to the acquisition
// engine. All reads are single Evaluate round-trips so a poll tick never
// leaves a half-read document.
type ChatPage struct {
	page    *rod.Page
	session Healther
	convID  string
	timeout time.Duration
	log     *zap.Logger
}

// NewChatPage wraps an open conversation page.
func NewChatPage(page *rod.Page, session Healther, convID string, timeout time.Duration, log *zap.Logger) *ChatPage {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChatPage{page: page, session: session, convID: convID, timeout: timeout, log: log}
}

var _ engine.ConversationPage = (*ChatPage)(nil)

// snapshotJS reads the structural counters in one pass. Message nodes are
// the sent and received bubbles; the block ordinal is the highest
// markdown-<n> id inside the last received bubble.
const snapshotJS = `() => {
	const messages = Array.from(document.querySelectorAll('.message-received, .message-sent'));
	const received = Array.from(document.querySelectorAll('.message-received'));
	let lastBlock = -1;
	if (received.length > 0) {
		const blocks = received[received.length - 1].querySelectorAll('div.markdown[id^="markdown-"]');
		for (const b of blocks) {
			const m = /^markdown-(\d+)$/.exec(b.id);
			if (m) {
				const n = parseInt(m[1], 10);
				if (n > lastBlock) lastBlock = n;
			}
		}
	}
	let lastTimestamp = '';
	if (messages.length > 0) {
		const t = messages[messages.length - 1].querySelector('time');
		if (t) lastTimestamp = t.getAttribute('datetime') || t.textContent.trim();
	}
	return {
		messageCount: messages.length,
		lastMessageOrdinal: messages.length - 1,
		lastBlockOrdinal: lastBlock,
		lastTimestamp: lastTimestamp,
	};
}`

// Snapshot reads the structural counters, degrading to the empty snapshot
// on any failure.
func (p *ChatPage) Snapshot() engine.StructuralSnapshot {
	result, err := p.page.Evaluate(&rod.EvalOptions{JS: snapshotJS})
	if err != nil {
		p.log.Debug("snapshot read failed", zap.Error(err))
		return engine.EmptySnapshot()
	}
	obj := result.Value
	return engine.StructuralSnapshot{
		MessageCount:       obj.Get("messageCount").Int(),
		LastMessageOrdinal: obj.Get("lastMessageOrdinal").Int(),
		LastBlockOrdinal:   obj.Get("lastBlockOrdinal").Int(),
		LastTimestamp:      obj.Get("lastTimestamp").Str(),
	}
}

// submitCandidatesJS derives the submit-control candidate list: buttons
// labelled 送信 (or Submit) plus type=submit buttons. Shared between the
// attribute snapshot and the click so indexes line up.
const submitCandidatesJS = `
	const nodes = Array.from(document.querySelectorAll('button, [role="button"]'));
	const isCandidate = (el) => {
		const text = (el.textContent || '').trim();
		if (text.includes('送信')) return true;
		if (text.toLowerCase().includes('submit')) return true;
		return el.getAttribute('type') === 'submit';
	};
	const candidates = nodes.filter(isCandidate);`

// snapshotControlsJS returns every candidate's rendered attributes.
const snapshotControlsJS = `() => {` + submitCandidatesJS + `
	return candidates.map((el) => {
		const rect = el.getBoundingClientRect();
		const styles = window.getComputedStyle(el);
		const aria = (el.getAttribute('aria-disabled') || '').toLowerCase();
		return {
			class: el.getAttribute('class') || '',
			disabled: el.disabled === true || el.hasAttribute('disabled'),
			ariaDisabled: aria === 'true',
			visible: rect.width > 0 && rect.height > 0 &&
				styles.display !== 'none' && styles.visibility !== 'hidden',
		};
	});
}`

// Controls reads the current submit-control candidates. Degrades to nil on
// failure; the classifier treats that as unknown.
func (p *ChatPage) Controls() []engine.ControlAttrs {
	result, err := p.page.Evaluate(&rod.EvalOptions{JS: snapshotControlsJS})
	if err != nil {
		p.log.Debug("control read failed", zap.Error(err))
		return nil
	}
	var attrs []engine.ControlAttrs
	for _, item := range result.Value.Arr() {
		attrs = append(attrs, engine.ControlAttrs{
			Class:        item.Get("class").Str(),
			Disabled:     item.Get("disabled").Bool(),
			AriaDisabled: item.Get("ariaDisabled").Bool(),
			Visible:      item.Get("visible").Bool(),
		})
	}
	return attrs
}

// FillQuestion clears the message input and types the question text.
func (p *ChatPage) FillQuestion(text string) error {
	page := p.page.Timeout(p.timeout)

	input, err := page.Element(messageInputSelector)
	if err != nil {
		input, err = page.Element(messageInputFallback)
		if err != nil {
			return fmt.Errorf("message input not found: %w", err)
		}
	}
	// Select any leftover text so Input replaces it.
	_ = input.SelectAllText()
	if err := input.Input(text); err != nil {
		return fmt.Errorf("fill question: %w", err)
	}
	return nil
}

// clickSubmitJS clicks the i-th candidate from the shared list.
const clickSubmitJS = `(i) => {` + submitCandidatesJS + `
	if (i < 0 || i >= candidates.length) return false;
	candidates[i].click();
	return true;
}`

// ClickSubmit clicks the first candidate that is both ready-marked and
// visible. Hidden duplicates of the control still count for state
// classification but are never clicked.
func (p *ChatPage) ClickSubmit() error {
	idx := engine.ClickableIndex(p.Controls())
	if idx < 0 {
		return errors.New("no visible ready submit control")
	}
	result, err := p.page.Timeout(p.timeout).Eval(clickSubmitJS, idx)
	if err != nil {
		return fmt.Errorf("click submit: %w", err)
	}
	if !result.Value.Bool() {
		return errors.New("submit control disappeared before click")
	}
	return nil
}

// HTML freezes the full rendered document as one string.
func (p *ChatPage) HTML() (string, error) {
	html, err := p.page.Timeout(p.timeout).HTML()
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return html, nil
}

// Screenshot captures the viewport as PNG bytes.
func (p *ChatPage) Screenshot() ([]byte, error) {
	return p.page.Timeout(p.timeout).Screenshot(false, nil)
}

// ConversationID returns the id taken from the conversation route URL.
func (p *ChatPage) ConversationID() string {
	return p.convID
}

// Healthy checks both the session and the page's own target.
func (p *ChatPage) Healthy() bool {
	if p.session != nil && !p.session.Healthy() {
		return false
	}
	info, err := p.page.Info()
	if err != nil {
		return false
	}
	return strings.Contains(info.URL, "/chat/")
}

// Page exposes the underlying rod page for the completion probe, which
// attaches network listeners to the same target.
func (p *ChatPage) Page() *rod.Page {
	return p.page
}
