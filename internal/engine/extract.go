package engine

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// ExtractionStatus is the extractor's verdict over one document snapshot.
type ExtractionStatus string

const (
	ExtractionValid   ExtractionStatus = "VALID"
	ExtractionInvalid ExtractionStatus = "INVALID"
)

// Parity notes distinguish the normal selection case from a structurally
// unusual one worth flagging, without failing the extraction.
const (
	ParityEvenMax        = "even-max"
	ParityFallbackToEven = "fallback-to-even"
)

// blockIDPattern is the numbering scheme the target UI stamps on rendered
// content blocks. Even ordinals carry assistant content, odd ordinals the
// echoed question. This is observed behavior, not a contract: a violation
// must surface as INVALID, never be silently adapted to.
var blockIDPattern = regexp.MustCompile(`^markdown-(\d+)$`)

const (
	scopeClass = "message-received"
	blockClass = "markdown"
)

// CandidateBlock describes one numbered content block found inside the
// active scope. Serialized into diagnostics even when extraction succeeds.
type CandidateBlock struct {
	Ordinal    int               `json:"ordinal"`
	RawID      string            `json:"raw_id"`
	IsValidID  bool              `json:"is_valid_id"`
	TextLength int               `json:"text_length"`
	Classes    []string          `json:"classes,omitempty"`
	DataAttrs  map[string]string `json:"data_attrs,omitempty"`
	Preview    string            `json:"preview,omitempty"`
}

// ExtractionResult is computed once per question from a single frozen
// document snapshot. It is never re-queried mid-computation: extracting from
// a live, still-updating document would tear.
type ExtractionResult struct {
	Status          ExtractionStatus `json:"status"`
	SelectedOrdinal int              `json:"selected_ordinal"` // -1 when nothing selected
	ParityNote      string           `json:"parity_note,omitempty"`
	Reason          string           `json:"reason"`
	Candidates      []int            `json:"candidates"`
	Errors          []string         `json:"errors,omitempty"`

	// Text is the cleaned answer content; RawText is a lightly-cleaned copy
	// retained for audit, since cleaning is lossy by design.
	Text       string `json:"-"`
	RawText    string `json:"-"`
	TextLength int    `json:"text_length"`
}

type candidateNode struct {
	ordinal int
	rawID   string
	node    *html.Node
}

// ExtractAnswer scopes to the most recent received-message region, validates
// the block numbering, and selects the authoritative answer block by the
// even-ordinal rule. Any violation of the numbering convention fails loudly
// with a structured reason instead of guessing.
func ExtractAnswer(doc string) ExtractionResult {
	invalid := func(reason string, candidates []int, errs []string) ExtractionResult {
		return ExtractionResult{
			Status:          ExtractionInvalid,
			SelectedOrdinal: -1,
			Reason:          reason,
			Candidates:      candidates,
			Errors:          errs,
		}
	}

	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return invalid(fmt.Sprintf("document parse failed: %v", err), nil, []string{err.Error()})
	}

	scope := lastNodeWithClass(root, scopeClass)
	if scope == nil {
		return invalid("no message-received elements observed", nil,
			[]string{"no message-received elements observed"})
	}

	candidates, errs := collectCandidateNodes(scope)
	ordinals := make([]int, 0, len(candidates))
	for _, c := range candidates {
		ordinals = append(ordinals, c.ordinal)
	}

	if len(errs) > 0 {
		return invalid(strings.Join(errs, "; "), ordinals, errs)
	}
	if len(candidates) == 0 {
		return invalid("no markdown-n candidates", nil, nil)
	}

	selected, parity := selectLatestEven(candidates)
	if selected == nil {
		return invalid("no even candidates among markdown-n blocks", ordinals, nil)
	}

	raw := nodeText(selected.node)
	cleaned := nodeText(stripNoise(selected.node))
	if strings.TrimSpace(cleaned) == "" {
		res := invalid("empty after cleanup", ordinals, nil)
		res.SelectedOrdinal = selected.ordinal
		res.ParityNote = parity
		return res
	}

	return ExtractionResult{
		Status:          ExtractionValid,
		SelectedOrdinal: selected.ordinal,
		ParityNote:      parity,
		Reason:          fmt.Sprintf("selected markdown-%d (%s)", selected.ordinal, parity),
		Candidates:      ordinals,
		Text:            cleaned,
		RawText:         raw,
		TextLength:      len(cleaned),
	}
}

// CollectCandidates enumerates every plausible answer block in the active
// scope for forensics. Non-evaluative: validation problems are returned as
// errors alongside the candidates rather than suppressing them.
func CollectCandidates(doc string) ([]CandidateBlock, []string) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return nil, []string{fmt.Sprintf("document parse failed: %v", err)}
	}

	scope := lastNodeWithClass(root, scopeClass)
	if scope == nil {
		return nil, []string{"no message-received elements observed"}
	}

	var blocks []CandidateBlock
	var errs []string
	for _, n := range nodesWithClass(scope, blockClass) {
		rawID := attrValue(n, "id")
		ordinal := -1
		valid := false
		switch {
		case rawID == "":
			errs = append(errs, "markdown block missing id")
		default:
			m := blockIDPattern.FindStringSubmatch(strings.TrimSpace(rawID))
			if m == nil {
				errs = append(errs, "invalid markdown id: "+rawID)
			} else if v, convErr := strconv.Atoi(m[1]); convErr != nil {
				errs = append(errs, "non-numeric markdown id: "+rawID)
			} else {
				ordinal = v
				valid = true
			}
		}

		text := nodeText(n)
		preview := text
		if len(preview) > 200 {
			preview = preview[:200]
		}
		blocks = append(blocks, CandidateBlock{
			Ordinal:    ordinal,
			RawID:      rawID,
			IsValidID:  valid,
			TextLength: len(text),
			Classes:    strings.Fields(attrValue(n, "class")),
			DataAttrs:  dataAttrs(n),
			Preview:    preview,
		})
	}

	if len(blocks) == 0 && len(errs) == 0 {
		errs = append(errs, "no markdown blocks within message-received")
	}
	return blocks, errs
}

func collectCandidateNodes(scope *html.Node) ([]candidateNode, []string) {
	var candidates []candidateNode
	var errs []string

	for _, n := range nodesWithClass(scope, blockClass) {
		rawID := attrValue(n, "id")
		if rawID == "" {
			errs = append(errs, "markdown block missing id")
			continue
		}
		m := blockIDPattern.FindStringSubmatch(strings.TrimSpace(rawID))
		if m == nil {
			errs = append(errs, "invalid markdown id: "+rawID)
			continue
		}
		ordinal, err := strconv.Atoi(m[1])
		if err != nil {
			errs = append(errs, "non-numeric markdown id: "+rawID)
			continue
		}
		candidates = append(candidates, candidateNode{ordinal: ordinal, rawID: rawID, node: n})
	}
	return candidates, errs
}

// selectLatestEven picks the highest even ordinal. When the overall highest
// is odd the next-highest even wins with a fallback note.
func selectLatestEven(candidates []candidateNode) (*candidateNode, string) {
	if len(candidates) == 0 {
		return nil, ""
	}
	sorted := make([]candidateNode, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ordinal > sorted[j].ordinal })

	maxOrdinal := sorted[0].ordinal
	for i := range sorted {
		if sorted[i].ordinal%2 == 0 {
			note := ParityEvenMax
			if sorted[i].ordinal != maxOrdinal {
				note = ParityFallbackToEven
			}
			return &sorted[i], note
		}
	}
	return nil, ""
}

// stripNoise deep-copies the subtree without interactive controls, icons,
// and aria-hidden auxiliary markup that would pollute the captured text.
func stripNoise(n *html.Node) *html.Node {
	clone := &html.Node{
		Type:     n.Type,
		DataAtom: n.DataAtom,
		Data:     n.Data,
		Attr:     append([]html.Attribute(nil), n.Attr...),
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if isNoise(child) {
			continue
		}
		c := stripNoise(child)
		clone.AppendChild(c)
	}
	return clone
}

func isNoise(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.Data {
	case "button", "svg", "img", "style", "script":
		return true
	}
	return attrValue(n, "aria-hidden") == "true"
}

// nodeText concatenates all text nodes in document order, newline-separated,
// without normalization. Structure is preserved so the persisted copy can be
// re-parsed for audit.
func nodeText(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			parts = append(parts, node.Data)
			return
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return strings.Join(parts, "\n")
}

// nodesWithClass returns every element under root carrying the class, in
// document order.
func nodesWithClass(root *html.Node, class string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hasClass(n, class) {
			out = append(out, n)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	return out
}

// lastNodeWithClass returns the final match in document order. Older
// received-message regions are excluded by construction: only the last one
// can contain the current answer.
func lastNodeWithClass(root *html.Node, class string) *html.Node {
	nodes := nodesWithClass(root, class)
	if len(nodes) == 0 {
		return nil
	}
	return nodes[len(nodes)-1]
}

func hasClass(n *html.Node, class string) bool {
	for _, f := range strings.Fields(attrValue(n, "class")) {
		if f == class {
			return true
		}
	}
	return false
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func dataAttrs(n *html.Node) map[string]string {
	var out map[string]string
	for _, a := range n.Attr {
		if strings.HasPrefix(a.Key, "data-") {
			if out == nil {
				out = map[string]string{}
			}
			out[a.Key] = a.Val
		}
	}
	return out
}
