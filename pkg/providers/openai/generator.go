// Package openai generates recruiter turns with the OpenAI chat API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	gopenai "github.com/sashabaranov/go-openai"

	"github.com/voxhire/voxhire/pkg/errorsx"
	"github.com/voxhire/voxhire/pkg/logging"
	"github.com/voxhire/voxhire/pkg/resilience"
	"github.com/voxhire/voxhire/pkg/session"
	"github.com/voxhire/voxhire/pkg/turnapi"
)

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Generator asks the chat model for the next recruiter turn. The model is
// instructed to answer in the turn envelope's data shape; its JSON output is
// decoded straight into the payload.
type Generator struct {
	cfg    Config
	client *gopenai.Client
	logger *slog.Logger
}

func New(cfg Config) *Generator {
	if cfg.Model == "" {
		cfg.Model = gopenai.GPT4oMini
	}
	clientCfg := gopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Generator{
		cfg:    cfg,
		client: gopenai.NewClientWithConfig(clientCfg),
		logger: logging.NewComponentLogger(slog.Default(), "openai"),
	}
}

func (g *Generator) Name() string { return "openai" }

func (g *Generator) GenerateTurn(ctx context.Context, req turnapi.Request) (*turnapi.Envelope, error) {
	messages := []gopenai.ChatCompletionMessage{{
		Role:    gopenai.ChatMessageRoleSystem,
		Content: systemPrompt(req),
	}}
	for _, msg := range req.History {
		role := gopenai.ChatMessageRoleUser
		if msg.Speaker == session.SpeakerRecruiter {
			role = gopenai.ChatMessageRoleAssistant
		}
		messages = append(messages, gopenai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Text,
		})
	}
	if req.Utterance != "" {
		messages = append(messages, gopenai.ChatCompletionMessage{
			Role:    gopenai.ChatMessageRoleUser,
			Content: req.Utterance,
		})
	}

	resp, err := g.client.CreateChatCompletion(ctx, gopenai.ChatCompletionRequest{
		Model:    g.cfg.Model,
		Messages: messages,
		ResponseFormat: &gopenai.ChatCompletionResponseFormat{
			Type: gopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		var apiErr *gopenai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return nil, &resilience.RateLimitError{Provider: "openai", Message: apiErr.Message}
		}
		return nil, errorsx.Wrap(err, errorsx.ReasonTurnRequest)
	}
	if len(resp.Choices) == 0 {
		return nil, errorsx.Wrap(errors.New("no choices in completion"), errorsx.ReasonBadPayload)
	}

	var payload turnapi.TurnPayload
	content := resp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		g.logger.Warn("model returned non-json turn",
			slog.String("request_id", fmt.Sprint(req.RequestID)))
		return nil, errorsx.Wrap(err, errorsx.ReasonBadPayload)
	}
	return &turnapi.Envelope{OK: true, Data: &payload}, nil
}

func systemPrompt(req turnapi.Request) string {
	var b strings.Builder
	b.WriteString("You are a professional recruiter conducting a mock interview for a ")
	b.WriteString(req.Seniority)
	b.WriteString(" ")
	b.WriteString(req.Role)
	b.WriteString(" position")
	if req.Company != "" {
		b.WriteString(" at ")
		b.WriteString(req.Company)
	}
	b.WriteString(".")
	if req.Language != "" {
		b.WriteString(" Conduct the interview in ")
		b.WriteString(req.Language)
		b.WriteString(".")
	}
	b.WriteString(` Respond with a single JSON object: {"say": string, ` +
		`"evaluation": {"total_score": int, "technical_score": int, ` +
		`"communication_score": int, "problem_solving_score": int, ` +
		`"signals": [{"label": string, "detail": string}]}, ` +
		`"end_session": bool}. Scores are 0-100 and reflect the whole ` +
		`interview so far. Ask one question at a time, keep "say" short ` +
		`and conversational, and set "end_session" to true only when the ` +
		`interview should conclude.`)
	return b.String()
}

var _ turnapi.Generator = (*Generator)(nil)
