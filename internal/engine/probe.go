package engine

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// Traffic kinds observed by the probe.
const (
	TrafficCompletionSignal = "completion-signal" // mutation confirming a finished generation
	TrafficRestPost         = "rest-post"
	TrafficRestGet          = "rest-get"
	TrafficOther            = "other"
)

// CompletionObservation sources.
const (
	SourceSideChannel  = "side-channel"
	SourcePollFallback = "poll-fallback"
)

const completionMutationName = "createData"

// TrafficEvent is one observed exchange. Malformed payloads are recorded
// with ParseError set rather than dropped: useless for detection, still
// first-hand evidence for postmortem.
type TrafficEvent struct {
	At             time.Time       `json:"ts"`
	Kind           string          `json:"kind"`
	ConversationID string          `json:"conversation_id,omitempty"`
	URL            string          `json:"url"`
	Method         string          `json:"method"`
	Status         int             `json:"status"`
	ParseError     bool            `json:"parse_error"`
	Raw            json.RawMessage `json:"raw,omitempty"`
}

// CompletionObservation is one piece of advisory completion evidence.
// Absence does not imply failure; presence does not imply a usable answer.
type CompletionObservation struct {
	ConversationID string          `json:"conversation_id"`
	ObservedAt     time.Time       `json:"observed_at"`
	Source         string          `json:"source"`
	RawPayload     json.RawMessage `json:"raw_payload,omitempty"`
}

// ProbeSummary is the probe's best-effort verdict over one capture window.
// An all-false summary is itself meaningful and interpreted by the
// orchestrator, not by the probe.
type ProbeSummary struct {
	ConversationID      string                  `json:"conversation_id"`
	HasPost             bool                    `json:"has_post"`
	HasGet              bool                    `json:"has_get"`
	HasCompletionSignal bool                    `json:"has_completion_signal"`
	SignalText          string                  `json:"signal_text,omitempty"`
	PollText            string                  `json:"poll_text,omitempty"`
	FirstSignalAt       time.Time               `json:"first_signal_at,omitempty"`
	Events              []TrafficEvent          `json:"-"`
	Observations        []CompletionObservation `json:"-"`
}

// AnswerText returns the side-channel text first, the poll fallback second.
func (s ProbeSummary) AnswerText() string {
	if strings.TrimSpace(s.SignalText) != "" {
		return s.SignalText
	}
	return s.PollText
}

// ClassifyTraffic reduces one response to a TrafficEvent for the given
// conversation. Exchanges addressed to other conversations come back with
// kind "other" and no conversation id; callers keep them for evidence only.
func ClassifyTraffic(convID, url, method string, status int, body []byte, at time.Time) TrafficEvent {
	ev := TrafficEvent{At: at, Kind: TrafficOther, URL: url, Method: method, Status: status}

	var parsed map[string]any
	if len(body) == 0 || json.Unmarshal(body, &parsed) != nil {
		ev.ParseError = true
	} else {
		ev.Raw = json.RawMessage(append([]byte(nil), body...))
	}

	if strings.Contains(url, "/graphql") && strings.EqualFold(method, "POST") {
		if ev.ParseError {
			// Mutation channel but unparseable: keep it, flagged.
			ev.Kind = TrafficCompletionSignal
			return ev
		}
		owner := mutationConversationID(parsed)
		if parsed["operationName"] != completionMutationName || owner != convID {
			return ev
		}
		ev.Kind = TrafficCompletionSignal
		ev.ConversationID = convID
		return ev
	}

	if strings.Contains(url, "/chat/") && strings.Contains(url, "/messages") && strings.Contains(url, convID) {
		ev.ConversationID = convID
		switch strings.ToUpper(method) {
		case "POST":
			ev.Kind = TrafficRestPost
		case "GET":
			ev.Kind = TrafficRestGet
		}
	}
	return ev
}

// mutationConversationID pulls the conversation id out of the mutation's
// sk field ("<conversation>#<suffix>").
func mutationConversationID(parsed map[string]any) string {
	data, _ := parsed["data"].(map[string]any)
	create, _ := data[completionMutationName].(map[string]any)
	sk, _ := create["sk"].(string)
	if i := strings.Index(sk, "#"); i > 0 {
		return sk[:i]
	}
	return ""
}

// SignalAnswerText extracts the assistant text carried by a completion
// mutation payload ("assistant#<text>" with prefix drift tolerated).
func SignalAnswerText(raw json.RawMessage) (string, bool) {
	var parsed map[string]any
	if json.Unmarshal(raw, &parsed) != nil {
		return "", false
	}
	data, _ := parsed["data"].(map[string]any)
	create, _ := data[completionMutationName].(map[string]any)
	value, ok := create["value"].(string)
	if !ok {
		return "", false
	}
	if rest, found := strings.CutPrefix(value, "assistant#"); found {
		return rest, true
	}
	if _, rest, found := strings.Cut(value, "#"); found {
		return rest, true
	}
	return value, true
}

// PollAnswerText extracts the latest assistant content from a polled message
// list payload. Placeholder or empty entries do not count.
func PollAnswerText(raw json.RawMessage) (string, bool) {
	var parsed map[string]any
	if json.Unmarshal(raw, &parsed) != nil {
		return "", false
	}
	body := parsed
	if wrapped, ok := parsed["data"].(map[string]any); ok {
		body = wrapped
	}
	msgs, ok := body["messages"].([]any)
	if !ok {
		return "", false
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		msg, ok := msgs[i].(map[string]any)
		if !ok || msg["role"] != "assistant" {
			continue
		}
		content, ok := msg["content"].(string)
		if !ok || strings.TrimSpace(content) == "" {
			continue
		}
		return content, true
	}
	return "", false
}

// Summarize folds a traffic log into a ProbeSummary. The first completion
// signal with extractable text wins; the poll text comes from the latest
// readable GET.
func Summarize(convID string, events []TrafficEvent) ProbeSummary {
	summary := ProbeSummary{ConversationID: convID, Events: events}

	for _, ev := range events {
		switch ev.Kind {
		case TrafficRestPost:
			summary.HasPost = true
		case TrafficRestGet:
			summary.HasGet = true
			if ev.Raw != nil {
				summary.Observations = append(summary.Observations, CompletionObservation{
					ConversationID: convID,
					ObservedAt:     ev.At,
					Source:         SourcePollFallback,
					RawPayload:     ev.Raw,
				})
				if text, ok := PollAnswerText(ev.Raw); ok {
					summary.PollText = text
				}
			}
		case TrafficCompletionSignal:
			if ev.ConversationID != convID {
				continue // unparseable mutation traffic: evidence only
			}
			summary.HasCompletionSignal = true
			if summary.FirstSignalAt.IsZero() {
				summary.FirstSignalAt = ev.At
			}
			summary.Observations = append(summary.Observations, CompletionObservation{
				ConversationID: convID,
				ObservedAt:     ev.At,
				Source:         SourceSideChannel,
				RawPayload:     ev.Raw,
			})
			if summary.SignalText == "" && ev.Raw != nil {
				if text, ok := SignalAnswerText(ev.Raw); ok {
					summary.SignalText = text
				}
			}
		}
	}
	return summary
}

// Probe passively observes one page's network traffic for completion
// evidence scoped to a conversation.
type Probe struct {
	page *rod.Page
	log  *zap.Logger
}

// NewProbe attaches to the page lazily; the response hook is installed per
// Observe call so each question gets its own capture window.
func NewProbe(page *rod.Page, log *zap.Logger) *Probe {
	if log == nil {
		log = zap.NewNop()
	}
	return &Probe{page: page, log: log}
}

// Observe watches traffic for the window and returns a summary. Nothing
// observed is not an error; only a hook that cannot attach is.
func (p *Probe) Observe(ctx context.Context, convID string, window time.Duration) (ProbeSummary, error) {
	wctx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	page := p.page.Context(wctx)
	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		return ProbeSummary{ConversationID: convID}, &ProbeExecutionError{Err: err}
	}

	methods := map[proto.NetworkRequestID]string{}
	var events []TrafficEvent

	wait := page.EachEvent(
		func(ev *proto.NetworkRequestWillBeSent) {
			if ev.Request != nil {
				methods[ev.RequestID] = ev.Request.Method
			}
		},
		func(ev *proto.NetworkResponseReceived) {
			if ev.Response == nil {
				return
			}
			method := methods[ev.RequestID]
			body := p.responseBody(page, ev.RequestID)
			events = append(events, ClassifyTraffic(convID, ev.Response.URL, method, ev.Response.Status, body, time.Now()))
		},
	)
	wait()

	summary := Summarize(convID, events)
	p.log.Debug("probe window closed",
		zap.String("conversation_id", convID),
		zap.Int("events", len(events)),
		zap.Bool("completion_signal", summary.HasCompletionSignal))
	return summary, nil
}

func (p *Probe) responseBody(page *rod.Page, id proto.NetworkRequestID) []byte {
	res, err := proto.NetworkGetResponseBody{RequestID: id}.Call(page)
	if err != nil || res == nil {
		return nil
	}
	if res.Base64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(res.Body)
		if err != nil {
			return nil
		}
		return decoded
	}
	return []byte(res.Body)
}
