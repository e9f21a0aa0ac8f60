package domain

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ErrUnparsableRecommendation no trade decision could be extracted from the text.
var ErrUnparsableRecommendation = errors.Wrap(ErrValidation, "unparsable recommendation")

// decisionMarkers precede the final decision in agent transcripts.
// The misspelt variant is what the portfolio agent prints.
var decisionMarkers = []string{"final decision:", "final desision:"}

var (
	fallbackAction = regexp.MustCompile(`(?i)"?\baction"?\s*[:=]\s*"?([a-z]+)`)
	fallbackCoin   = regexp.MustCompile(`(?i)"?\bcoin"?\s*[:=]\s*"?([a-z0-9]+)`)
	fallbackAmount = regexp.MustCompile(`(?i)"?\bamount_usd"?\s*[:=]\s*"?\$?(-?[0-9][0-9,]*(?:\.[0-9]+)?)`)
)

// Recommendation trade decision received from a recommendation source.
// Action is kept as received and typed by ParseAction during validation.
type Recommendation struct {
	Action    string          `json:"action"`
	Coin      string          `json:"coin"`
	AmountUSD decimal.Decimal `json:"amount_usd"`
	Reasoning string          `json:"reasoning,omitempty"`
}

type recommendationPayload struct {
	Action    *string          `json:"action"`
	Coin      *string          `json:"coin"`
	AmountUSD *decimal.Decimal `json:"amount_usd"`
	Reasoning string           `json:"reasoning"`
}

// ParseRecommendation extracts a trade decision from free-form source output.
//
// Accepted shapes, tried in order: a bare or fenced JSON object, JSON after a
// "Final decision:" marker, the first embedded object holding action, coin and
// amount_usd, and a key: value scan of the text as a last resort.
func ParseRecommendation(raw string) (*Recommendation, error) {
	text := sanitizeRecommendationPayload(raw)
	if text == "" {
		return nil, errors.Wrap(ErrUnparsableRecommendation, "empty response")
	}

	candidates := []string{text}
	if tail, ok := afterDecisionMarker(text); ok {
		candidates = append([]string{tail}, candidates...)
	}

	for _, c := range candidates {
		if rec, ok := decodeRecommendation(c); ok {
			return rec, nil
		}
		for _, obj := range embeddedObjects(c) {
			if rec, ok := decodeRecommendation(obj); ok {
				return rec, nil
			}
		}
	}

	if rec, ok := scanRecommendation(text); ok {
		return rec, nil
	}

	return nil, ErrUnparsableRecommendation
}

// TypedAction returns the parsed action.
func (r *Recommendation) TypedAction() (Action, error) {
	return ParseAction(r.Action)
}

// Pair returns the trading pair of the recommended coin against quote.
func (r *Recommendation) Pair(quote string) Pair {
	return NewPair(r.Coin, quote)
}

func sanitizeRecommendationPayload(raw string) string {
	response := strings.TrimSpace(raw)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	return strings.TrimSpace(response)
}

func afterDecisionMarker(text string) (string, bool) {
	lower := strings.ToLower(text)
	best := -1
	markerLen := 0
	for _, m := range decisionMarkers {
		if i := strings.LastIndex(lower, m); i > best {
			best = i
			markerLen = len(m)
		}
	}
	if best < 0 {
		return "", false
	}
	return sanitizeRecommendationPayload(text[best+markerLen:]), true
}

func decodeRecommendation(s string) (*Recommendation, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") || !json.Valid([]byte(s)) {
		return nil, false
	}

	var p recommendationPayload
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	if err := dec.Decode(&p); err != nil {
		return nil, false
	}
	if p.Action == nil || p.Coin == nil || p.AmountUSD == nil {
		return nil, false
	}

	return &Recommendation{
		Action:    strings.ToUpper(strings.TrimSpace(*p.Action)),
		Coin:      strings.ToUpper(strings.TrimSpace(*p.Coin)),
		AmountUSD: *p.AmountUSD,
		Reasoning: p.Reasoning,
	}, true
}

// embeddedObjects returns balanced top-level {...} spans in text order.
func embeddedObjects(s string) []string {
	var (
		objects  []string
		depth    int
		start    = -1
		inString bool
		escaped  bool
	)

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				objects = append(objects, s[start:i+1])
				start = -1
			}
		}
	}

	return objects
}

func scanRecommendation(text string) (*Recommendation, bool) {
	action := fallbackAction.FindStringSubmatch(text)
	coin := fallbackCoin.FindStringSubmatch(text)
	amount := fallbackAmount.FindStringSubmatch(text)
	if action == nil || coin == nil || amount == nil {
		return nil, false
	}

	value, err := decimal.NewFromString(strings.ReplaceAll(amount[1], ",", ""))
	if err != nil {
		return nil, false
	}

	return &Recommendation{
		Action:    strings.ToUpper(action[1]),
		Coin:      strings.ToUpper(coin[1]),
		AmountUSD: value,
	}, true
}
