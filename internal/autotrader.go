package internal

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/vadiminshakov/autotrader/config"
	"github.com/vadiminshakov/autotrader/internal/domain"
	"github.com/vadiminshakov/autotrader/internal/metrics"
	"github.com/vadiminshakov/autotrader/internal/services/recommender"
	"github.com/vadiminshakov/autotrader/internal/services/trader"
	"github.com/vadiminshakov/autotrader/internal/services/validator"
	"github.com/vadiminshakov/autotrader/internal/services/valuation"
	"github.com/vadiminshakov/autotrader/internal/storage/cycles"
	"github.com/vadiminshakov/autotrader/internal/trace"
	"github.com/vadiminshakov/autotrader/pkg/retrier"
)

// State of the trading loop.
type State int32

const (
	StateIdle State = iota
	StateFetching
	StateValidating
	StateExecuting
	StateLogging
	StateSleeping
	StateShuttingDown
)

var stateNames = [...]string{"IDLE", "FETCHING", "VALIDATING", "EXECUTING", "LOGGING", "SLEEPING", "SHUTTING_DOWN"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "UNKNOWN"
}

// PriceSource prices symbols in the quote currency.
type PriceSource interface {
	PriceMap(ctx context.Context, symbols []string) (domain.PriceMap, error)
}

// Deps are the collaborators of the trading loop.
type Deps struct {
	Trader      trader.Trader
	Prices      PriceSource
	Recommender recommender.Source
	Catalog     trader.Catalog
	Store       cycles.Store
	// Metrics is optional.
	Metrics *metrics.Metrics
}

// Summary counts cycle outcomes of one run.
type Summary struct {
	Cycles    int
	Succeeded int
	Skipped   int
	Failed    int
	Orders    int
	LastValue *domain.Valuation
}

// AutoTrader runs one trading cycle per interval until its context is done.
type AutoTrader struct {
	cfg       config.Config
	deps      Deps
	validator *validator.Validator
	executor  *trader.Executor
	retrier   *retrier.Retrier
	logger    *zap.Logger
	now       func() time.Time

	state        atomic.Int32
	seq          uint64
	authFailures int

	mu      sync.Mutex
	summary Summary
}

// NewAutoTrader wires the loop. Retries follow cfg.Retry and only cover
// transient failures.
func NewAutoTrader(cfg config.Config, deps Deps, logger *zap.Logger) (*AutoTrader, error) {
	if deps.Trader == nil || deps.Prices == nil || deps.Recommender == nil || deps.Store == nil {
		return nil, errors.New("trader, prices, recommender and store are required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.Wrap(domain.ErrConfiguration, "interval must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Catalog == nil {
		deps.Catalog = trader.NewStaticCatalog(cfg.SupportedCoins)
	}

	r := retrier.New(
		retrier.WithMaxRetries(cfg.Retry.MaxRetries),
		retrier.WithInitialInterval(cfg.Retry.InitialInterval),
		retrier.WithMaxInterval(cfg.Retry.MaxInterval),
		retrier.WithRetryIf(domain.IsTransient),
		retrier.WithOnRetry(func(attempt int, err error, wait time.Duration) {
			deps.Metrics.IncRetry()
			logger.Warn("transient failure, retrying",
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", cfg.Retry.MaxRetries+1),
				zap.Duration("backoff", wait),
				zap.Error(err))
		}),
	)

	return &AutoTrader{
		cfg:  cfg,
		deps: deps,
		validator: validator.New(validator.Limits{
			MaxTradeSizeUSD:          cfg.Risk.MaxTradeSizeUSD,
			RiskTolerance:            cfg.Risk.RiskTolerance,
			BlockOnDegradedValuation: cfg.Risk.BlockOnDegradedValuation,
		}, logger),
		executor: trader.NewExecutor(deps.Trader, r, logger),
		retrier:  r,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// State returns the current loop state.
func (a *AutoTrader) State() State {
	return State(a.state.Load())
}

func (a *AutoTrader) setState(s State) {
	if prev := State(a.state.Swap(int32(s))); prev != s {
		a.logger.Debug("state transition", zap.Stringer("from", prev), zap.Stringer("to", s))
	}
}

// Summary returns the counters of the run so far.
func (a *AutoTrader) Summary() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.summary
}

// Run executes cycles until ctx is done or the cycle limit is reached.
// Cycle failures never stop the loop.
func (a *AutoTrader) Run(ctx context.Context) error {
	defer a.logSummary()

	a.logger.Info("starting trading loop",
		zap.Duration("interval", a.cfg.Interval),
		zap.Bool("simulate", a.cfg.Simulate),
		zap.String("quote", a.cfg.Quote),
		zap.String("max_trade_size", valuation.Format(a.cfg.Risk.MaxTradeSizeUSD, a.cfg.Quote)))

	for {
		if ctx.Err() != nil {
			a.shutdown()
			return nil
		}

		start := a.now()
		a.runWithGrace(ctx)

		if a.cfg.MaxCycles > 0 && a.Summary().Cycles >= a.cfg.MaxCycles {
			a.logger.Info("cycle limit reached", zap.Int("cycles", a.cfg.MaxCycles))
			a.shutdown()
			return nil
		}
		if ctx.Err() != nil {
			a.shutdown()
			return nil
		}

		a.setState(StateSleeping)
		wait := a.cfg.Interval - a.now().Sub(start)
		if wait <= 0 {
			a.logger.Warn("cycle overran the interval, starting the next one now",
				zap.Duration("interval", a.cfg.Interval),
				zap.Duration("overrun", -wait))
			continue
		}

		a.logger.Debug("sleeping until next cycle", zap.Duration("wait", wait))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			a.shutdown()
			return nil
		case <-timer.C:
		}
	}
}

func (a *AutoTrader) shutdown() {
	a.setState(StateShuttingDown)
	a.logger.Info("trading loop stopped")
}

// runWithGrace detaches the cycle from ctx so a shutdown lets it finish within
// the configured grace period.
func (a *AutoTrader) runWithGrace(ctx context.Context) {
	cycleCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	stop := context.AfterFunc(ctx, func() {
		a.logger.Info("shutdown requested, finishing in-flight cycle", zap.Duration("grace", a.cfg.ShutdownGrace))
		timer := time.AfterFunc(a.cfg.ShutdownGrace, cancel)
		context.AfterFunc(cycleCtx, func() { timer.Stop() })
	})
	defer stop()

	a.RunCycle(cycleCtx)
}

// RunCycle executes one cycle and appends its record to the store.
func (a *AutoTrader) RunCycle(ctx context.Context) domain.CycleRecord {
	a.seq++
	rec := domain.CycleRecord{
		ID:        uuid.NewString(),
		Seq:       a.seq,
		StartedAt: a.now().UTC(),
	}

	ctx, span := trace.StartSpan(ctx, "autotrader.cycle", attribute.Int64("seq", int64(rec.Seq)))
	rec.Result = a.cycle(ctx, &rec)
	rec.FinishedAt = a.now().UTC()
	span.SetAttributes(attribute.String("status", string(rec.Result.Status)), attribute.String("reason", rec.Result.Reason))

	a.setState(StateLogging)
	a.record(rec)

	var spanErr error
	if rec.Result.Status == domain.StatusFailed {
		spanErr = errors.New(rec.Result.Error)
	}
	trace.End(span, spanErr)

	return rec
}

func (a *AutoTrader) cycle(ctx context.Context, rec *domain.CycleRecord) domain.CycleResult {
	a.setState(StateFetching)

	balances, err := retrier.DoWithData(a.retrier, ctx, a.deps.Trader.GetBalances)
	if err != nil {
		return a.fail(ctx, "fetch balances", err)
	}
	rec.Balances = balances

	symbols := make([]string, 0, len(balances))
	for _, b := range balances {
		symbols = append(symbols, b.Asset)
	}
	prices, err := retrier.DoWithData(a.retrier, ctx, func(ctx context.Context) (domain.PriceMap, error) {
		return a.deps.Prices.PriceMap(ctx, symbols)
	})
	if err != nil {
		return a.fail(ctx, "fetch prices", err)
	}
	if prices == nil {
		prices = domain.PriceMap{}
	}

	v := valuation.ValueInQuote(a.logger, a.cfg.Quote, balances, prices)
	rec.Valuation = &v
	a.deps.Metrics.SetPortfolioValue(v.Total.InexactFloat64())
	a.logger.Info("portfolio valued",
		zap.String("total", valuation.Format(v.Total, v.Quote)),
		zap.Int("holdings", len(v.Holdings)),
		zap.Strings("unpriced", v.Missing))

	req := recommender.Request{
		Query:     a.cfg.Query,
		Portfolio: recommender.NewPortfolio(v, a.cfg.Risk.MaxTradeSizeUSD),
	}
	raw, err := retrier.DoWithData(a.retrier, ctx, func(ctx context.Context) (string, error) {
		return a.deps.Recommender.Recommend(ctx, req)
	})
	if err != nil {
		return a.fail(ctx, "fetch recommendation", err)
	}
	rec.RawRecommendation = raw

	a.setState(StateValidating)

	supported, err := retrier.DoWithData(a.retrier, ctx, a.deps.Catalog.SupportedCoins)
	if err != nil {
		return a.fail(ctx, "load supported coins", err)
	}

	verdict := a.validator.Validate(raw, v, supported)
	rec.Recommendation = verdict.Recommendation
	rec.Warnings = append(rec.Warnings, verdict.Warnings...)
	if verdict.Skip != "" {
		return domain.CycleResult{Status: domain.StatusSkipped, Reason: verdict.Skip}
	}
	if verdict.Hold() {
		return domain.CycleResult{Status: domain.StatusSuccess, Reason: domain.ReasonHold}
	}

	a.setState(StateExecuting)

	coin := strings.ToUpper(verdict.Recommendation.Coin)
	if _, ok := prices[coin]; !ok {
		a.priceCoin(ctx, coin, prices)
	}

	order := trader.BuildOrder(verdict.Action, coin, a.cfg.Quote, verdict.Amount, prices)
	rec.Order = &order

	result, err := a.executor.Submit(ctx, order)
	if err != nil {
		return a.fail(ctx, "place order", err)
	}
	a.deps.Metrics.ObserveOrder(string(order.Side), result.Simulated)

	reason := domain.ReasonOrderPlaced
	if result.Simulated {
		reason = domain.ReasonSimulated
	}
	return domain.CycleResult{
		Status:    domain.StatusSuccess,
		Reason:    reason,
		OrderID:   result.OrderID,
		FillState: result.State,
		Simulated: result.Simulated,
	}
}

// priceCoin adds the price of a coin that is not held yet, best effort.
func (a *AutoTrader) priceCoin(ctx context.Context, coin string, prices domain.PriceMap) {
	extra, err := a.deps.Prices.PriceMap(ctx, []string{coin})
	if err != nil {
		a.logger.Warn("no reference price for order coin", zap.String("coin", coin), zap.Error(err))
		return
	}
	if p, ok := extra[coin]; ok {
		prices[coin] = p
	}
}

func (a *AutoTrader) fail(ctx context.Context, stage string, err error) domain.CycleResult {
	reason := domain.FailureReason(err)
	if ctx.Err() != nil {
		reason = domain.ReasonShutdown
	}
	a.logger.Error("cycle aborted",
		zap.String("stage", stage),
		zap.String("reason", reason),
		zap.Error(err))
	return domain.CycleResult{
		Status: domain.StatusFailed,
		Reason: reason,
		Error:  errors.Wrap(err, stage).Error(),
	}
}

func (a *AutoTrader) record(rec domain.CycleRecord) {
	if err := a.deps.Store.Append(rec); err != nil {
		a.logger.Error("failed to append cycle record", zap.String("id", rec.ID), zap.Error(err))
	}
	a.deps.Metrics.ObserveCycle(string(rec.Result.Status), rec.Result.Reason, rec.Duration())

	a.mu.Lock()
	a.summary.Cycles++
	switch rec.Result.Status {
	case domain.StatusSuccess:
		a.summary.Succeeded++
	case domain.StatusSkipped:
		a.summary.Skipped++
	case domain.StatusFailed:
		a.summary.Failed++
	}
	if rec.Result.OrderID != "" {
		a.summary.Orders++
	}
	if rec.Valuation != nil {
		a.summary.LastValue = rec.Valuation
	}
	a.mu.Unlock()

	if rec.Result.Reason == domain.ReasonAuth {
		a.authFailures++
		if a.authFailures >= a.cfg.AuthWarnThreshold {
			a.logger.Error("exchange keeps rejecting credentials, check OKX_API_KEY, OKX_API_SECRET and OKX_API_PASSPHRASE",
				zap.Int("consecutive_failures", a.authFailures))
		}
	} else {
		a.authFailures = 0
	}

	fields := []zap.Field{
		zap.Uint64("seq", rec.Seq),
		zap.Stringer("result", rec.Result),
		zap.Duration("took", rec.Duration()),
	}
	if len(rec.Warnings) > 0 {
		fields = append(fields, zap.Strings("warnings", rec.Warnings))
	}
	if rec.Result.OrderID != "" {
		fields = append(fields, zap.String("order_id", rec.Result.OrderID), zap.String("fill_state", rec.Result.FillState))
	}
	a.logger.Info("cycle finished", fields...)
}

func (a *AutoTrader) logSummary() {
	s := a.Summary()
	fields := []zap.Field{
		zap.Int("cycles", s.Cycles),
		zap.Int("succeeded", s.Succeeded),
		zap.Int("skipped", s.Skipped),
		zap.Int("failed", s.Failed),
		zap.Int("orders", s.Orders),
	}
	if s.LastValue != nil {
		fields = append(fields, zap.String("last_value", valuation.Format(s.LastValue.Total, s.LastValue.Quote)))
	}
	a.logger.Info("run summary", fields...)
}
