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

// Package generation turns a resolved context into a chat completion call
// against an OpenAI-compatible endpoint.
package generation

import (
	"log/slog"

	"github.com/sashabaranov/go-openai"
	"github.com/spf13/cast"

	"github.com/cardinalhq/contextlayers/internal/contextlayer"
)

// Override keys understood by BuildRequest. Anything else in the merged
// overrides is ignored here.
const (
	OverrideModel       = "model"
	OverrideTemperature = "temperature"
	OverrideTopP        = "top_p"
	OverrideMaxTokens   = "max_tokens"
	OverrideStop        = "stop"
)

type Config struct {
	Model       string  `mapstructure:"model"`
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float32 `mapstructure:"temperature"`
}

func DefaultConfig() Config {
	return Config{
		Model: "gpt-4o-mini",
	}
}

// BuildRequest makes the merged text the system message and applies the
// recognised overrides on top of cfg. Overrides with a value of the wrong
// type are skipped with a warning.
func BuildRequest(resolved contextlayer.ResolvedContext, userPrompt string, cfg Config) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model: cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: resolved.MergedText},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature:         cfg.Temperature,
		MaxCompletionTokens: cfg.MaxTokens,
	}

	ov := resolved.MergedOverrides
	if v, ok := ov[OverrideModel]; ok {
		if s, err := cast.ToStringE(v); err == nil && s != "" {
			req.Model = s
		} else {
			skipOverride(OverrideModel, v)
		}
	}
	if v, ok := ov[OverrideTemperature]; ok {
		if f, err := cast.ToFloat32E(v); err == nil {
			req.Temperature = f
		} else {
			skipOverride(OverrideTemperature, v)
		}
	}
	if v, ok := ov[OverrideTopP]; ok {
		if f, err := cast.ToFloat32E(v); err == nil {
			req.TopP = f
		} else {
			skipOverride(OverrideTopP, v)
		}
	}
	if v, ok := ov[OverrideMaxTokens]; ok {
		if n, err := cast.ToIntE(v); err == nil && n > 0 {
			req.MaxCompletionTokens = n
		} else {
			skipOverride(OverrideMaxTokens, v)
		}
	}
	if v, ok := ov[OverrideStop]; ok {
		if stop, ok := toStop(v); ok {
			req.Stop = stop
		} else {
			skipOverride(OverrideStop, v)
		}
	}
	return req
}

// toStop accepts a single string or a list of strings.
func toStop(v any) ([]string, bool) {
	switch t := v.(type) {
	case string:
		return []string{t}, true
	case []string, []any:
		stop, err := cast.ToStringSliceE(t)
		return stop, err == nil
	default:
		return nil, false
	}
}

func skipOverride(key string, value any) {
	slog.Warn("Ignoring override with unusable value",
		slog.String("key", key),
		slog.Any("value", value))
}
