// Package executor launches external actions as child processes with the
// triggering topic and payload injected through the environment.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"mqtt-action-runner/internal/logger"
)

// TimeoutExitCode is the synthetic exit code reported when an action is
// forcibly terminated at its wall-clock limit.
const TimeoutExitCode = -1

// StartFailureExitCode is the synthetic exit code reported when the action
// process could not be started at all (script missing or not executable).
const StartFailureExitCode = -2

// DefaultTimeout is the per-action wall-clock limit used when the request
// does not carry one.
const DefaultTimeout = 30 * time.Second

// Environment variable names of the action invocation contract.
const (
	EnvTopic   = "MQTT_TOPIC"
	EnvPayload = "MQTT_PAYLOAD"
)

// Request describes one action execution.
type Request struct {
	ID      string        // execution id for log correlation
	Script  string        // path of the executable to launch
	Topic   string        // triggering topic
	Payload []byte        // raw pre-parse message body, passed verbatim
	Timeout time.Duration // wall-clock limit; zero means DefaultTimeout
}

// Result captures the outcome of one execution. Exit code 0 means success;
// any other value, including the timeout sentinel, means failure. Results
// are consumed for logging only and never retried.
type Result struct {
	ExitCode int
	TimedOut bool
	Duration time.Duration
	Stdout   string
	Stderr   string
	Err      error
}

// Success reports whether the action completed with exit code 0.
func (r *Result) Success() bool {
	return r.Err == nil && !r.TimedOut && r.ExitCode == 0
}

// Executor runs actions as child processes. It holds no per-execution
// state: every call gets its own process and environment. It deliberately
// does not deduplicate concurrent runs of the same action; actions that
// need mutual exclusion manage their own advisory lock (see README).
type Executor struct {
	logger         *logger.Logger
	defaultTimeout time.Duration
}

// New creates an executor with the given default timeout.
func New(log *logger.Logger, defaultTimeout time.Duration) *Executor {
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultTimeout
	}
	return &Executor{
		logger:         log,
		defaultTimeout: defaultTimeout,
	}
}

// Execute launches the action and blocks until it exits or the timeout
// fires. Failures are reported in the result, never raised: a missing or
// non-executable script yields a failed result like any non-zero exit.
func (e *Executor) Execute(ctx context.Context, req Request) Result {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, req.Script)
	cmd.Env = append(os.Environ(),
		EnvTopic+"="+req.Topic,
		EnvPayload+"="+string(req.Payload),
	)
	// Do not hang on pipes held open by grandchildren after the kill.
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.Debug("launching action",
		"executionId", req.ID,
		"script", req.Script,
		"topic", req.Topic,
		"timeout", timeout.String())

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	result := Result{
		Duration: duration,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}

	switch {
	case ctx.Err() == context.DeadlineExceeded:
		result.TimedOut = true
		result.ExitCode = TimeoutExitCode
		result.Err = fmt.Errorf("action timed out after %s", timeout)
	case err != nil:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			// start failure: script missing or not executable
			result.ExitCode = StartFailureExitCode
		}
		result.Err = err
	}

	e.logResult(&req, &result)
	return result
}

func (e *Executor) logResult(req *Request, result *Result) {
	fields := []interface{}{
		"executionId", req.ID,
		"script", req.Script,
		"topic", req.Topic,
		"exitCode", result.ExitCode,
		"duration", result.Duration.String(),
		"timedOut", result.TimedOut,
	}

	if result.Success() {
		e.logger.Info("action completed", fields...)
		if result.Stdout != "" {
			e.logger.Debug("action output",
				"executionId", req.ID,
				"stdout", truncateOutput(result.Stdout))
		}
		return
	}

	if result.Err != nil {
		fields = append(fields, "error", result.Err.Error())
	}
	if result.Stderr != "" {
		fields = append(fields, "stderr", truncateOutput(result.Stderr))
	}
	e.logger.Error("action failed", fields...)
}

// truncateOutput bounds captured process output in log lines.
func truncateOutput(s string) string {
	const limit = 4096
	s = strings.TrimRight(s, "\n")
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "...(truncated)"
}
