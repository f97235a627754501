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
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/contextlayers/internal/contextlayer"
)

type fakeCompleter struct {
	resp openai.ChatCompletionResponse
	err  error
	got  openai.ChatCompletionRequest
}

func (f *fakeCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.got = req
	return f.resp, f.err
}

func TestGenerate(t *testing.T) {
	fake := &fakeCompleter{
		resp: openai.ChatCompletionResponse{
			Model: "served-model",
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: "Touchdown."}, FinishReason: openai.FinishReasonStop},
			},
			Usage: openai.Usage{PromptTokens: 12, CompletionTokens: 3, TotalTokens: 15},
		},
	}
	c := NewClientWithAPI(fake, Config{Model: "base-model"})

	resolved := contextlayer.Build([]contextlayer.Context{
		{ID: "G", Scope: contextlayer.ScopeGlobal, Content: "Be concise."},
		{ID: "T", Scope: contextlayer.ScopeTeam, Content: "Use sports metaphors."},
	})
	rec, err := c.Generate(context.Background(), resolved, "How did the launch go?")
	require.NoError(t, err)

	assert.Equal(t, "Be concise.\n\nUse sports metaphors.", fake.got.Messages[0].Content)
	assert.Equal(t, "base-model", fake.got.Model)

	_, err = ulid.Parse(rec.ExecutionID)
	assert.NoError(t, err)
	assert.Equal(t, "served-model", rec.Model)
	assert.Equal(t, []string{"G", "T"}, rec.AppliedContextIDs)
	assert.Equal(t, fmt.Sprintf("%016x", resolved.Fingerprint()), rec.Fingerprint)
	assert.Equal(t, 12, rec.PromptTokens)
	assert.Equal(t, 3, rec.CompletionTokens)
	assert.Equal(t, 15, rec.TotalTokens)
	assert.Equal(t, "Touchdown.", rec.Output)
}

func TestGenerate_Errors(t *testing.T) {
	boom := errors.New("429 too many requests")
	c := NewClientWithAPI(&fakeCompleter{err: boom}, DefaultConfig())
	rec, err := c.Generate(context.Background(), contextlayer.Fallback(), "hi")
	assert.ErrorIs(t, err, boom)
	assert.NotEmpty(t, rec.ExecutionID)

	c = NewClientWithAPI(&fakeCompleter{}, DefaultConfig())
	_, err = c.Generate(context.Background(), contextlayer.Fallback(), "hi")
	assert.ErrorIs(t, err, ErrNoChoices)
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(Config{Model: "m"})
	assert.Error(t, err)

	c, err := NewClient(Config{Model: "m", APIKey: "sk-test", BaseURL: "http://localhost:11434/v1"})
	require.NoError(t, err)
	assert.NotNil(t, c)
}
