package recommender

import "context"

// NoopSource always holds.
type NoopSource struct{}

func (NoopSource) Recommend(context.Context, Request) (string, error) {
	return `{"action":"HOLD","coin":"","amount_usd":0,"reasoning":"noop recommender"}`, nil
}
