package assistant

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClient implements Client against the OpenAI Assistants API
type OpenAIClient struct {
	client      *openai.Client
	assistantID string
}

// NewOpenAIClient creates a new OpenAI-backed assistant client
func NewOpenAIClient(apiKey, assistantID string) *OpenAIClient {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIClient{
		client:      &client,
		assistantID: assistantID,
	}
}

// CreateThread creates a new conversation thread
func (c *OpenAIClient) CreateThread(ctx context.Context) (string, error) {
	thread, err := c.client.Beta.Threads.New(ctx, openai.BetaThreadNewParams{})
	if err != nil {
		return "", err
	}
	return thread.ID, nil
}

// AddMessage appends a user message to the thread
func (c *OpenAIClient) AddMessage(ctx context.Context, threadID, content string) error {
	_, err := c.client.Beta.Threads.Messages.New(ctx, threadID, openai.BetaThreadMessageNewParams{
		Role: openai.BetaThreadMessageNewParamsRoleUser,
		Content: openai.BetaThreadMessageNewParamsContentUnion{
			OfString: openai.String(content),
		},
	})
	return err
}

// CreateRun starts a run of the configured assistant on the thread
func (c *OpenAIClient) CreateRun(ctx context.Context, threadID string) (*Run, error) {
	run, err := c.client.Beta.Threads.Runs.New(ctx, threadID, openai.BetaThreadRunNewParams{
		AssistantID: c.assistantID,
	})
	if err != nil {
		return nil, err
	}
	return convertRun(run), nil
}

// GetRun retrieves the current state of a run
func (c *OpenAIClient) GetRun(ctx context.Context, threadID, runID string) (*Run, error) {
	run, err := c.client.Beta.Threads.Runs.Get(ctx, threadID, runID)
	if err != nil {
		return nil, err
	}
	return convertRun(run), nil
}

// CancelRun cancels a run
func (c *OpenAIClient) CancelRun(ctx context.Context, threadID, runID string) error {
	_, err := c.client.Beta.Threads.Runs.Cancel(ctx, threadID, runID)
	return err
}

// FindActiveRun returns the most recent non-terminal run on the thread, or
// nil when every run has finished.
func (c *OpenAIClient) FindActiveRun(ctx context.Context, threadID string) (*Run, error) {
	page, err := c.client.Beta.Threads.Runs.List(ctx, threadID, openai.BetaThreadRunListParams{})
	if err != nil {
		return nil, err
	}

	for i := range page.Data {
		converted := convertRun(&page.Data[i])
		if converted.Status.Active() {
			return converted, nil
		}
	}
	return nil, nil
}

// SubmitToolOutputs submits the outputs for every requested tool call
func (c *OpenAIClient) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) error {
	converted := make([]openai.BetaThreadRunSubmitToolOutputsParamsToolOutput, 0, len(outputs))
	for _, output := range outputs {
		converted = append(converted, openai.BetaThreadRunSubmitToolOutputsParamsToolOutput{
			ToolCallID: openai.String(output.CallID),
			Output:     openai.String(output.Output),
		})
	}

	_, err := c.client.Beta.Threads.Runs.SubmitToolOutputs(ctx, threadID, runID, openai.BetaThreadRunSubmitToolOutputsParams{
		ToolOutputs: converted,
	})
	return err
}

// LatestAssistantMessage returns the text of the newest assistant message
// on the thread.
func (c *OpenAIClient) LatestAssistantMessage(ctx context.Context, threadID string) (string, error) {
	page, err := c.client.Beta.Threads.Messages.List(ctx, threadID, openai.BetaThreadMessageListParams{
		Order: openai.BetaThreadMessageListParamsOrderDesc,
	})
	if err != nil {
		return "", err
	}

	for _, message := range page.Data {
		if message.Role != openai.MessageRoleAssistant {
			continue
		}
		for _, block := range message.Content {
			if block.Type == "text" {
				return block.Text.Value, nil
			}
		}
	}

	return "", fmt.Errorf("no assistant message found on thread %s", threadID)
}

func convertRun(run *openai.Run) *Run {
	converted := &Run{
		ID:     run.ID,
		Status: RunStatus(run.Status),
	}

	for _, call := range run.RequiredAction.SubmitToolOutputs.ToolCalls {
		converted.ToolCalls = append(converted.ToolCalls, ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return converted
}
