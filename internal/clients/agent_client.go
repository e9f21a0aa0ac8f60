package clients

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/autotrader/internal/domain"
)

const (
	DefaultAgentCommand = "nearai"
	DefaultAgentPath    = "temazzz.near/portfolio-manager/0.0.1"

	defaultAgentTimeout = 10 * time.Minute
	agentExitCommand    = "exit"
	maxAgentLineSize    = 1 << 20
)

// AgentClient runs a hosted agent through its interactive CLI and returns the
// transcript of one answer.
type AgentClient struct {
	command string
	args    []string
	timeout time.Duration
	logger  *zap.Logger
}

// AgentConfig configures the AgentClient.
type AgentConfig struct {
	// Command executable, nearai by default.
	Command string
	// AgentPath registry path of the agent.
	AgentPath string
	// Args overrides the default "agent interactive <path> --local" arguments.
	Args []string
	// Timeout bounds a single run.
	Timeout time.Duration
}

// NewAgentClient creates a client for the agent CLI.
func NewAgentClient(cfg AgentConfig, logger *zap.Logger) *AgentClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Command == "" {
		cfg.Command = DefaultAgentCommand
	}
	if cfg.AgentPath == "" {
		cfg.AgentPath = DefaultAgentPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultAgentTimeout
	}

	args := cfg.Args
	if args == nil {
		args = []string{"agent", "interactive", cfg.AgentPath, "--local"}
	}

	return &AgentClient{
		command: cfg.Command,
		args:    args,
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// Ask sends the prompt to a fresh agent process. Reading stops at EOF or as
// soon as a complete decision follows the final decision marker.
func (c *AgentClient) Ask(ctx context.Context, prompt string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.command, c.args...)
	cmd.Stdin = strings.NewReader(strings.TrimSpace(prompt) + "\n" + agentExitCommand + "\n")

	var stderr strings.Builder
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", errors.Wrap(err, "agent stdout pipe")
	}

	c.logger.Debug("starting agent", zap.String("command", c.command), zap.Strings("args", c.args))

	if err := cmd.Start(); err != nil {
		return "", errors.Wrapf(domain.ErrConfiguration, "start agent %s: %v", c.command, err)
	}

	transcript, decided := c.collect(stdout)
	if decided {
		cancel()
	} else {
		_, _ = io.Copy(io.Discard, stdout)
	}
	waitErr := cmd.Wait()

	switch {
	case decided:
		return transcript, nil
	case ctx.Err() != nil:
		return "", ctx.Err()
	case runCtx.Err() != nil:
		return "", &domain.APIError{Kind: domain.ErrNetwork, Message: "agent timed out", Err: runCtx.Err()}
	case strings.TrimSpace(transcript) == "":
		msg := strings.TrimSpace(stderr.String())
		if waitErr != nil {
			msg = strings.TrimSpace(waitErr.Error() + " " + msg)
		}
		return "", errors.Wrapf(domain.ErrRecommendationUnavailable, "agent produced no output: %s", truncate(msg, 512))
	}

	if waitErr != nil {
		c.logger.Warn("agent exited with error", zap.Error(waitErr), zap.String("stderr", truncate(stderr.String(), 512)))
	}
	return transcript, nil
}

func (c *AgentClient) collect(stdout io.Reader) (string, bool) {
	var (
		b          strings.Builder
		markerSeen bool
		tail       strings.Builder
	)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxAgentLineSize)
	for scanner.Scan() {
		line := scanner.Text()
		b.WriteString(line)
		b.WriteByte('\n')

		lower := strings.ToLower(line)
		if strings.Contains(lower, "final decision:") || strings.Contains(lower, "final desision:") {
			markerSeen = true
			tail.Reset()
		}
		if !markerSeen {
			continue
		}

		tail.WriteString(line)
		tail.WriteByte('\n')
		if strings.Count(tail.String(), "{") > 0 && strings.Count(tail.String(), "{") == strings.Count(tail.String(), "}") {
			if _, err := domain.ParseRecommendation(tail.String()); err == nil {
				return b.String(), true
			}
		}
	}

	return b.String(), false
}
