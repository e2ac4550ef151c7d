/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package genai

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/GoogleCloudPlatform/db-nl-query/internal/config"
)

// DefaultModel is used when the configuration leaves the model empty.
const DefaultModel = "gemini-1.5-flash-latest"

// CodeGenerator maps a prompt to generated code text. Implementations are stateless
// and need not be deterministic.
type CodeGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// contentModel is the part of *genai.GenerativeModel the generator uses.
type contentModel interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Gemini is a CodeGenerator backed by the Gemini API.
type Gemini struct {
	client *genai.Client
	model  contentModel
	name   string
	retry  RetryOptions
	logger *zap.Logger
}

var _ CodeGenerator = (*Gemini)(nil)

// NewGemini creates a Gemini code generator.
func NewGemini(ctx context.Context, cfg config.GeminiConfig, logger *zap.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("cannot create Gemini client: API key is missing")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	if cfg.Model == "" {
		cfg.Model = DefaultModel
		logger.Info("Gemini model not specified, using default", zap.String("model", cfg.Model))
	}

	model := client.GenerativeModel(cfg.Model)
	model.SetTemperature(cfg.Temperature)
	if cfg.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(cfg.MaxOutputTokens)
	}

	return &Gemini{
		client: client,
		model:  model,
		name:   cfg.Model,
		retry:  DefaultRetryOptions,
		logger: logger,
	}, nil
}

// Close cleans up the underlying Gemini client.
func (g *Gemini) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// IsAPIKeyValid checks if the Gemini API key is valid by listing models.
func (g *Gemini) IsAPIKeyValid(ctx context.Context) error {
	if g.client == nil {
		return fmt.Errorf("gemini client not initialized (likely missing API key)")
	}

	_, err := g.client.ListModels(ctx).Next()
	if err != nil {
		if st, ok := status.FromError(err); ok {
			if st.Code() == codes.Unauthenticated || st.Code() == codes.PermissionDenied {
				return fmt.Errorf("invalid Gemini API key or insufficient permissions: %w", err)
			}
		}
		return fmt.Errorf("failed to verify Gemini API key by listing models: %w", err)
	}
	return nil
}

// Generate sends prompt to the model and returns the text of the first candidate.
// Transport failures are retried; an empty or blocked answer is not.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	if g.model == nil {
		return "", &ErrGeneration{Msg: "gemini client not initialized"}
	}

	text, err := WithRetry(ctx, g.retry, g.logger, func(ctx context.Context) (string, error) {
		resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return "", &ErrGeneration{Msg: "Gemini API call failed", Err: err}
		}
		text, err := getFirstTextPart(resp)
		if err != nil {
			return "", &ErrGeneration{Msg: "unusable response", Err: err}
		}
		return text, nil
	})
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", &ErrGeneration{Msg: "model returned empty text"}
	}
	g.logger.Debug("code generated", zap.String("model", g.name), zap.Int("chars", len(text)))
	return text, nil
}

// getFirstTextPart extracts the first text part from a Gemini response.
func getFirstTextPart(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		safetyRatings := "none"
		if resp != nil && len(resp.Candidates) > 0 {
			finishReason = resp.Candidates[0].FinishReason.String()
			if resp.Candidates[0].SafetyRatings != nil {
				safetyRatings = fmt.Sprintf("%v", resp.Candidates[0].SafetyRatings)
			}
		}
		return "", fmt.Errorf("empty or incomplete response from Gemini API. FinishReason: %s, SafetyRatings: %s", finishReason, safetyRatings)
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		text, ok := part.(genai.Text)
		if !ok {
			return "", fmt.Errorf("unexpected response part type: %T", part)
		}
		b.WriteString(string(text))
	}
	return b.String(), nil
}
