// Package validator turns a raw recommendation into an executable trade or a skip.
package validator

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/autotrader/internal/domain"
)

// Limits risk limits applied to every recommendation.
type Limits struct {
	// MaxTradeSizeUSD hard cap of a single order in the quote currency.
	MaxTradeSizeUSD decimal.Decimal
	// RiskTolerance caps an order to this share of the portfolio value. Zero disables it.
	RiskTolerance decimal.Decimal
	// BlockOnDegradedValuation skips trading while some holdings have no price.
	BlockOnDegradedValuation bool
}

// Verdict is either a trade, a hold or a skip.
type Verdict struct {
	Recommendation *domain.Recommendation
	Action         domain.Action
	// Amount validated order size in the quote currency.
	Amount decimal.Decimal
	// Skip reason, empty when the verdict is executable or a hold.
	Skip     string
	Warnings []string
}

// Hold reports whether no order must be placed although the cycle succeeded.
func (v Verdict) Hold() bool {
	return v.Skip == "" && v.Action == domain.ActionHold
}

// Tradable reports whether an order must be placed.
func (v Verdict) Tradable() bool {
	return v.Skip == "" && v.Action != domain.ActionHold
}

// Validator checks recommendations against limits and supported coins.
type Validator struct {
	limits Limits
	logger *zap.Logger
}

// New creates a validator.
func New(limits Limits, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{limits: limits, logger: logger}
}

// Validate applies the rules in order, the first failing rule wins:
// parse, action, amount, coin, valuation policy.
func (v *Validator) Validate(raw string, valuation domain.Valuation, supported map[string]bool) Verdict {
	rec, err := domain.ParseRecommendation(raw)
	if err != nil {
		v.logger.Warn("recommendation rejected: unparsable",
			zap.Error(err),
			zap.String("raw", raw))
		return Verdict{Skip: domain.ReasonParseError}
	}

	verdict := Verdict{Recommendation: rec}

	action, err := rec.TypedAction()
	if err != nil {
		v.logger.Warn("recommendation rejected: invalid action", zap.String("action", rec.Action))
		verdict.Skip = domain.ReasonInvalidAction
		return verdict
	}
	verdict.Action = action

	if action == domain.ActionHold {
		v.logger.Info("recommendation is HOLD, no order", zap.String("coin", rec.Coin))
		return verdict
	}

	amount := rec.AmountUSD
	switch {
	case amount.IsNegative():
		v.logger.Warn("recommendation rejected: negative amount", zap.String("amount_usd", amount.String()))
		verdict.Skip = domain.ReasonNegativeAmount
		return verdict
	case amount.IsZero():
		v.logger.Warn("recommendation rejected: zero amount", zap.String("coin", rec.Coin))
		verdict.Skip = domain.ReasonZeroAmount
		return verdict
	}

	for _, c := range v.caps(action, rec.Coin, valuation) {
		if amount.GreaterThan(c.limit) {
			msg := fmt.Sprintf("amount_usd %s clamped to %s (%s)", amount.String(), c.limit.String(), c.name)
			v.logger.Warn("recommendation amount clamped",
				zap.String("requested", amount.String()),
				zap.String("limit", c.limit.String()),
				zap.String("cap", c.name))
			verdict.Warnings = append(verdict.Warnings, msg)
			amount = c.limit
		}
	}
	if !amount.IsPositive() {
		verdict.Skip = domain.ReasonZeroAmount
		return verdict
	}
	verdict.Amount = amount

	if !supported[strings.ToUpper(rec.Coin)] {
		v.logger.Warn("recommendation rejected: unsupported coin", zap.String("coin", rec.Coin))
		verdict.Skip = domain.ReasonUnsupportedCoin
		return verdict
	}

	if v.limits.BlockOnDegradedValuation && valuation.Degraded() {
		v.logger.Warn("recommendation rejected: valuation is degraded", zap.Strings("missing", valuation.Missing))
		verdict.Skip = domain.ReasonDegradedValuation
		return verdict
	}

	return verdict
}

type tradeCap struct {
	name  string
	limit decimal.Decimal
}

func (v *Validator) caps(action domain.Action, coin string, valuation domain.Valuation) []tradeCap {
	caps := []tradeCap{{name: "max_trade_size_usd", limit: v.limits.MaxTradeSizeUSD}}

	if v.limits.RiskTolerance.IsPositive() && valuation.Total.IsPositive() {
		caps = append(caps, tradeCap{
			name:  "risk_tolerance",
			limit: valuation.Total.Mul(v.limits.RiskTolerance).Round(2),
		})
	}

	if action == domain.ActionSell {
		if held, priced := valuation.ValueOf(strings.ToUpper(coin)); priced {
			caps = append(caps, tradeCap{name: "holding value", limit: held.RoundDown(2)})
		}
	}

	return caps
}
