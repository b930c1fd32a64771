package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const systemPrompt = `You are the assistant of a personal budgeting app. The user defines
monthly category budgets and logs expenses, including installment purchases.
Given the conversation, the ledger state and (when present) a pending action
awaiting confirmation, answer with a single JSON object:

{"action": <ACTION>, "payload": <object>, "response": <text for the user>}

Actions and payloads:
- SET_BUDGET: {"month": "YYYY-M" (optional, defaults to the viewed month),
  "budgets": {"Category": amount, ...}}
- ADD_EXPENSE: {"expenses": [{"category": string, "description": string,
  "amount": number} or {"category": string, "description": string,
  "installments": {"count": n>=2, "amountPerInstallment": number OR
  "totalAmount": number, "baseMonth": "viewed"|"current",
  "startOffsetMonths": n>=0}}]}
- VIEW_PREVIOUS_MONTH: {"month": "YYYY-M"} or {} to step back one month
- NEXT_MONTH: {}
- DELETE_EXPENSE: {"category": string, "amount": number}
- DELETE_CATEGORY: {"category": string}
- CLEAR_ALL_DATA: {}
- CONFIRM_ACTION: {"action": <the action to confirm>, "payload": <its payload>}
  Use it when you need the user to confirm before a destructive or ambiguous
  step. When a pending action is provided, interpret the user's answer and
  either emit the confirmed action or CANCEL_ACTION.
- CANCEL_ACTION: {}

Never invent categories: the budget in the state is the source of truth.
Amounts are plain decimal numbers. "response" is always in the user's language.`

// OpenAIOracle implements Oracle over a chat-completion endpoint.
type OpenAIOracle struct {
	client *openai.Client
	model  string
}

func NewOpenAIOracle(apiKey, baseURL, model string) *OpenAIOracle {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIOracle{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Complete sends one non-retried request. Callers surface failures as a
// generic chat error; the raw error only reaches the log.
func (o *OpenAIOracle) Complete(ctx context.Context, req Request) (Reply, error) {
	state, err := json.Marshal(req.State)
	if err != nil {
		return Reply{}, fmt.Errorf("marshal state snapshot: %w", err)
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleSystem, Content: "Ledger state: " + string(state)},
	}
	if req.Pending != nil {
		pending, err := json.Marshal(req.Pending)
		if err != nil {
			return Reply{}, fmt.Errorf("marshal pending action: %w", err)
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: "Pending action awaiting the user's confirmation: " + string(pending),
		})
	}
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		if m.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: messages,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return Reply{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Reply{}, fmt.Errorf("chat completion: empty response")
	}

	reply, err := ParseReply(resp.Choices[0].Message.Content)
	if err != nil {
		return Reply{}, err
	}

	slog.DebugContext(ctx, "Oracle replied",
		"action", reply.Action, "model", o.model)
	return reply, nil
}

// ParseReply extracts the structured reply from the model output, tolerating
// fenced code blocks around the JSON object.
func ParseReply(content string) (Reply, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}

	var reply Reply
	if err := json.Unmarshal([]byte(content), &reply); err != nil {
		return Reply{}, fmt.Errorf("parse oracle reply: %w", err)
	}
	if reply.Action == "" {
		return Reply{}, fmt.Errorf("parse oracle reply: missing action")
	}
	return reply, nil
}
