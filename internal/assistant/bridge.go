package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"sushi-chatbot/internal/util"

	"go.uber.org/zap"
)

// RunStatus is the state of one assistant run
type RunStatus string

const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusFailed         RunStatus = "failed"
	RunStatusCancelled      RunStatus = "cancelled"
	RunStatusExpired        RunStatus = "expired"
)

// Active reports whether the run still needs driving: it is queued, being
// executed, or waiting for tool outputs.
func (s RunStatus) Active() bool {
	return s == RunStatusQueued || s == RunStatusInProgress || s == RunStatusRequiresAction
}

// Run is one execution attempt by the assistant against a conversation
type Run struct {
	ID        string
	Status    RunStatus
	ToolCalls []ToolCall
}

// ToolCall is a structured function invocation requested by the assistant
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolOutput is the host-produced result for one tool call
type ToolOutput struct {
	CallID string
	Output string
}

// Client is the upstream assistant API surface the bridge drives. The
// concrete implementation talks to the OpenAI Assistants API; tests
// substitute a scripted fake.
type Client interface {
	CreateThread(ctx context.Context) (string, error)
	AddMessage(ctx context.Context, threadID, content string) error
	CreateRun(ctx context.Context, threadID string) (*Run, error)
	GetRun(ctx context.Context, threadID, runID string) (*Run, error)
	CancelRun(ctx context.Context, threadID, runID string) error
	FindActiveRun(ctx context.Context, threadID string) (*Run, error)
	SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) error
	LatestAssistantMessage(ctx context.Context, threadID string) (string, error)
}

// ToolExecutor executes one tool call and returns its JSON output
type ToolExecutor interface {
	ExecuteTool(ctx context.Context, name, arguments string) (string, error)
}

// Bridge drives the assistant's asynchronous run protocol: submit a
// message, start a run, poll until terminal, executing requested tool calls
// along the way. The upstream API allows at most one active run per
// conversation, so a stale run is resolved or cancelled before a new
// message is submitted.
type Bridge struct {
	client       Client
	tools        ToolExecutor
	pollInterval time.Duration
	sleep        func(time.Duration)
	logger       *zap.Logger
}

// NewBridge creates a new assistant bridge
func NewBridge(client Client, tools ToolExecutor, pollInterval time.Duration) *Bridge {
	return &Bridge{
		client:       client,
		tools:        tools,
		pollInterval: pollInterval,
		sleep:        time.Sleep,
		logger:       util.GetLogger(),
	}
}

// CreateConversation starts a new conversation and returns its identifier
func (b *Bridge) CreateConversation(ctx context.Context) (string, error) {
	threadID, err := b.client.CreateThread(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create conversation: %w", err)
	}

	b.logger.Info("Conversation created", zap.String("thread_id", threadID))
	return threadID, nil
}

// ProcessMessage submits a user message to the conversation, drives the
// resulting run to a terminal state and returns the assistant's text reply.
// Any terminal state other than completed is a processing failure for this
// message; it is not retried.
func (b *Bridge) ProcessMessage(ctx context.Context, threadID, message string) (string, error) {
	start := time.Now()
	defer func() {
		util.AssistantRunLatency.Observe(time.Since(start).Seconds())
	}()

	b.resolveStaleRun(ctx, threadID)

	if err := b.client.AddMessage(ctx, threadID, message); err != nil {
		return "", fmt.Errorf("failed to submit message: %w", err)
	}

	run, err := b.client.CreateRun(ctx, threadID)
	if err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}

	b.logger.Debug("Run started",
		zap.String("thread_id", threadID),
		zap.String("run_id", run.ID))

	for run.Status.Active() {
		if run.Status == RunStatusRequiresAction {
			if err := b.executeToolCalls(ctx, threadID, run); err != nil {
				util.AssistantRunsTotal.WithLabelValues("tool_error").Inc()
				return "", err
			}
		}

		b.sleep(b.pollInterval)

		run, err = b.client.GetRun(ctx, threadID, run.ID)
		if err != nil {
			return "", fmt.Errorf("failed to poll run status: %w", err)
		}
	}

	util.AssistantRunsTotal.WithLabelValues(string(run.Status)).Inc()

	if run.Status != RunStatusCompleted {
		return "", fmt.Errorf("assistant run ended with status %s", run.Status)
	}

	reply, err := b.client.LatestAssistantMessage(ctx, threadID)
	if err != nil {
		return "", fmt.Errorf("failed to read assistant reply: %w", err)
	}
	return reply, nil
}

// resolveStaleRun clears any run still active on the thread: a run waiting
// for tool outputs is resolved, anything else is cancelled. Errors here are
// logged only; the new message is attempted regardless.
func (b *Bridge) resolveStaleRun(ctx context.Context, threadID string) {
	run, err := b.client.FindActiveRun(ctx, threadID)
	if err != nil {
		b.logger.Warn("Failed to check for active runs",
			zap.String("thread_id", threadID),
			zap.Error(err))
		return
	}
	if run == nil {
		return
	}

	b.logger.Info("Active run found on thread",
		zap.String("thread_id", threadID),
		zap.String("run_id", run.ID),
		zap.String("status", string(run.Status)))

	if run.Status == RunStatusRequiresAction {
		if err := b.executeToolCalls(ctx, threadID, run); err != nil {
			b.logger.Warn("Failed to resolve stale run", zap.Error(err))
		}
		return
	}

	if err := b.client.CancelRun(ctx, threadID, run.ID); err != nil {
		b.logger.Warn("Failed to cancel stale run",
			zap.String("run_id", run.ID),
			zap.Error(err))
	}
}

// executeToolCalls runs every tool the assistant requested and submits all
// outputs together. A failing tool does not fail the run; its error is
// encoded into the tool output so the assistant can react to it.
func (b *Bridge) executeToolCalls(ctx context.Context, threadID string, run *Run) error {
	outputs := make([]ToolOutput, 0, len(run.ToolCalls))

	for _, call := range run.ToolCalls {
		util.ToolCallsTotal.WithLabelValues(call.Name).Inc()

		output, err := b.tools.ExecuteTool(ctx, call.Name, call.Arguments)
		if err != nil {
			b.logger.Warn("Tool call failed",
				zap.String("tool", call.Name),
				zap.Error(err))

			encoded, _ := json.Marshal(map[string]string{
				"error": fmt.Sprintf("error executing %s: %s", call.Name, err.Error()),
			})
			output = string(encoded)
		}

		outputs = append(outputs, ToolOutput{CallID: call.ID, Output: output})
	}

	if err := b.client.SubmitToolOutputs(ctx, threadID, run.ID, outputs); err != nil {
		return fmt.Errorf("failed to submit tool outputs: %w", err)
	}
	return nil
}
