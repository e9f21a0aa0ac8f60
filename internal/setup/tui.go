// Package setup asks for the trading query and settings interactively and
// saves them as a yaml config.
package setup

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/autotrader/config"
)

// DefaultPath is where the generated config is written.
const DefaultPath = "config.gen.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1)
)

// Answers collected by the form.
type Answers struct {
	Query           string
	IntervalMinutes string
	Simulate        bool
	Provider        string
	MaxTradeSizeUSD string
}

// RunTUI prefills the form from current, saves the result to path and
// returns the saved config.
func RunTUI(current config.ConfigTmp, path string) (config.ConfigTmp, error) {
	a := Answers{
		Query:           current.Query,
		IntervalMinutes: "60",
		Simulate:        current.Simulate,
		Provider:        current.Recommendation.Provider,
		MaxTradeSizeUSD: current.Risk.MaxTradeSizeUSD,
	}
	if current.Interval > 0 {
		a.IntervalMinutes = strconv.Itoa(current.Interval)
	}
	if a.Provider == "" {
		a.Provider = config.ProviderAgent
	}
	if a.MaxTradeSizeUSD == "" {
		a.MaxTradeSizeUSD = config.DefaultMaxTradeSizeUSD
	}

	fmt.Println(headerStyle.Render("AUTOTRADER SETUP"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Describe your strategy, the agent does the rest.\n"))

	fmt.Println(stepStyle.Render("STRATEGY"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title("Trading query").
				Description("e.g. Keep 40% in BTC and rebalance into NEAR on dips").
				Value(&a.Query).
				Validate(validateQuery),
			huh.NewInput().
				Title("Interval").
				Description("Minutes between cycles").
				Value(&a.IntervalMinutes).
				Validate(validateInterval),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Recommendation source").
				Options(
					huh.NewOption("NEAR AI agent", config.ProviderAgent),
					huh.NewOption("OpenAI-compatible LLM", config.ProviderLLM),
					huh.NewOption("Gemini", config.ProviderGemini),
					huh.NewOption("Always hold (dry run)", config.ProviderNoop),
				).
				Value(&a.Provider),
			huh.NewInput().
				Title("Max trade size").
				Description("Largest single order in the quote currency").
				Value(&a.MaxTradeSizeUSD).
				Validate(validateAmount),
			huh.NewConfirm().
				Title("Simulate orders?").
				Affirmative("Yes, paper trading").
				Negative("No, trade live").
				Value(&a.Simulate),
		),
	).Run()
	if err != nil {
		return current, err
	}

	fmt.Println(stepStyle.Render("CONFIRMATION"))
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(a.Summary()))

	var confirm bool
	err = huh.NewConfirm().
		Title("Save configuration?").
		Affirmative("Yes, save and start").
		Negative("No, exit").
		Value(&confirm).
		Run()
	if err != nil {
		return current, err
	}
	if !confirm {
		return current, fmt.Errorf("setup cancelled by user")
	}

	tmp := a.Apply(current)
	if err := config.WriteYaml(path, tmp); err != nil {
		return current, fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting trader...", path)))
	return tmp, nil
}

// Summary renders the answers for confirmation.
func (a Answers) Summary() string {
	mode := "live"
	if a.Simulate {
		mode = "simulated"
	}
	return fmt.Sprintf("Query: %s\nInterval: %s min\nSource: %s\nMax trade: %s\nOrders: %s",
		strings.TrimSpace(a.Query), a.IntervalMinutes, a.Provider, a.MaxTradeSizeUSD, mode)
}

// Apply copies the answers onto tmp.
func (a Answers) Apply(tmp config.ConfigTmp) config.ConfigTmp {
	tmp.Query = strings.TrimSpace(a.Query)
	tmp.Interval, _ = strconv.Atoi(strings.TrimSpace(a.IntervalMinutes))
	tmp.Simulate = a.Simulate
	tmp.Recommendation.Provider = a.Provider
	tmp.Risk.MaxTradeSizeUSD = strings.TrimSpace(a.MaxTradeSizeUSD)
	return tmp
}

func validateQuery(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("query cannot be empty")
	}
	return nil
}

func validateInterval(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return fmt.Errorf("must be a positive number of minutes")
	}
	return nil
}

func validateAmount(s string) error {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if !d.IsPositive() {
		return fmt.Errorf("must be positive")
	}
	return nil
}
