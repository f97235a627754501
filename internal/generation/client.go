// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/cardinalhq/contextlayers/internal/contextlayer"
	"github.com/cardinalhq/contextlayers/internal/idgen"
	"github.com/cardinalhq/contextlayers/internal/logctx"
)

// ErrNoChoices is returned when the endpoint answers without any choices.
var ErrNoChoices = errors.New("completion returned no choices")

// ChatCompleter is the part of *openai.Client used here.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ExecutionRecord describes one generation call and the layers behind it.
type ExecutionRecord struct {
	ExecutionID       string        `json:"execution_id"`
	Model             string        `json:"model"`
	AppliedContextIDs []string      `json:"applied_context_ids"`
	Fingerprint       string        `json:"fingerprint"`
	PromptTokens      int           `json:"prompt_tokens"`
	CompletionTokens  int           `json:"completion_tokens"`
	TotalTokens       int           `json:"total_tokens"`
	Output            string        `json:"output"`
	Duration          time.Duration `json:"duration"`
}

type Client struct {
	api ChatCompleter
	cfg Config
}

// NewClient builds a client for cfg.BaseURL, or the public OpenAI API when
// it is empty.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("generation api_key is not set")
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return NewClientWithAPI(openai.NewClientWithConfig(clientConfig), cfg), nil
}

func NewClientWithAPI(api ChatCompleter, cfg Config) *Client {
	return &Client{api: api, cfg: cfg}
}

// Generate sends userPrompt with the resolved context as its system message.
func (c *Client) Generate(ctx context.Context, resolved contextlayer.ResolvedContext, userPrompt string) (ExecutionRecord, error) {
	req := BuildRequest(resolved, userPrompt, c.cfg)
	rec := ExecutionRecord{
		ExecutionID:       idgen.NextULID(),
		Model:             req.Model,
		AppliedContextIDs: resolved.AppliedContextIDs,
		Fingerprint:       fmt.Sprintf("%016x", resolved.Fingerprint()),
	}
	logger := logctx.FromContext(ctx).With(slog.String("execution_id", rec.ExecutionID))
	logger.Debug("Generating completion",
		slog.String("model", req.Model),
		slog.Any("applied_context_ids", rec.AppliedContextIDs))

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, req)
	rec.Duration = time.Since(start)
	if err != nil {
		logger.Error("Completion call failed", slog.Any("error", err))
		return rec, fmt.Errorf("completion call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return rec, ErrNoChoices
	}

	if resp.Model != "" {
		rec.Model = resp.Model
	}
	rec.PromptTokens = resp.Usage.PromptTokens
	rec.CompletionTokens = resp.Usage.CompletionTokens
	rec.TotalTokens = resp.Usage.TotalTokens
	rec.Output = resp.Choices[0].Message.Content

	logger.Info("Completion finished",
		slog.String("model", rec.Model),
		slog.Int("total_tokens", rec.TotalTokens),
		slog.Duration("duration", rec.Duration),
		slog.String("finish_reason", string(resp.Choices[0].FinishReason)))
	return rec, nil
}
