package recommender

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/autotrader/internal/domain"
)

func TestEnhanceQuery(t *testing.T) {
	assert.Equal(t, "Rebalance into NEAR. Please analyze and provide a trade recommendation.", EnhanceQuery("Rebalance into NEAR."))
	assert.Equal(t, "Recommend a BTC trade", EnhanceQuery("  Recommend a BTC trade "))
}

func TestBuildPrompt(t *testing.T) {
	v := domain.Valuation{
		Quote: "USDT",
		Total: decimal.NewFromInt(84717),
		Holdings: []domain.HoldingValue{
			{Asset: "BTC", Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(84417), Value: decimal.NewFromInt(84417), Priced: true},
		},
	}

	prompt, err := BuildPrompt(Request{Query: "keep 50% in stablecoins", Portfolio: NewPortfolio(v, decimal.NewFromInt(5000))})
	require.NoError(t, err)

	assert.Contains(t, prompt, "keep 50% in stablecoins. Please analyze")
	assert.Contains(t, prompt, `"total_value": "84717"`)
	assert.Contains(t, prompt, `"max_trade_size_usd": "5000"`)
	assert.Contains(t, prompt, `"asset": "BTC"`)
}

type fakeChat struct {
	system, user string
	reply        string
	err          error
}

func (f *fakeChat) Complete(_ context.Context, system, user string) (string, error) {
	f.system, f.user = system, user
	return f.reply, f.err
}

type fakeAgent struct {
	prompt string
}

func (f *fakeAgent) Ask(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return "Final decision: {\"action\":\"HOLD\",\"coin\":\"BTC\",\"amount_usd\":0}", nil
}

func TestSources(t *testing.T) {
	req := Request{Query: "buy the dip", Portfolio: Portfolio{Quote: "USDT"}}

	t.Run("chat", func(t *testing.T) {
		chat := &fakeChat{reply: `{"action":"BUY","coin":"BTC","amount_usd":10}`}
		out, err := Traced("llm", NewChatSource(chat), nil).Recommend(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, chat.reply, out)
		assert.Equal(t, SystemPrompt, chat.system)
		assert.Contains(t, chat.user, "buy the dip. Please analyze")
	})

	t.Run("chat error passes through", func(t *testing.T) {
		boom := &domain.APIError{Kind: domain.ErrRateLimit, HTTPStatus: 429}
		_, err := Traced("llm", NewChatSource(&fakeChat{err: boom}), nil).Recommend(context.Background(), req)
		assert.True(t, errors.Is(err, domain.ErrRateLimit))
	})

	t.Run("agent gets a single line", func(t *testing.T) {
		agent := &fakeAgent{}
		out, err := NewAgentSource(agent).Recommend(context.Background(), req)
		require.NoError(t, err)
		assert.NotContains(t, agent.prompt, "\n")
		assert.Contains(t, out, "Final decision")
	})

	t.Run("noop holds", func(t *testing.T) {
		out, err := NoopSource{}.Recommend(context.Background(), req)
		require.NoError(t, err)
		rec, err := domain.ParseRecommendation(out)
		require.NoError(t, err)
		assert.Equal(t, "HOLD", rec.Action)
	})
}
