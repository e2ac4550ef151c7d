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
	"errors"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/GoogleCloudPlatform/db-nl-query/internal/config"
)

var fastRetry = RetryOptions{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, BackoffMultiplier: 2}

type scriptedModel struct {
	responses []*genai.GenerateContentResponse
	errs      []error
	calls     int
	prompts   []string
}

func (m *scriptedModel) GenerateContent(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	i := m.calls
	m.calls++
	if len(parts) > 0 {
		if text, ok := parts[0].(genai.Text); ok {
			m.prompts = append(m.prompts, string(text))
		}
	}
	var err error
	if i < len(m.errs) {
		err = m.errs[i]
	}
	if err != nil {
		return nil, err
	}
	if i < len(m.responses) {
		return m.responses[i], nil
	}
	return m.responses[len(m.responses)-1], nil
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{}
	for _, p := range parts {
		content.Parts = append(content.Parts, genai.Text(p))
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: content}}}
}

func newTestGemini(m contentModel) *Gemini {
	return &Gemini{model: m, name: "test-model", retry: fastRetry, logger: zap.NewNop()}
}

func TestGenerateReturnsTrimmedText(t *testing.T) {
	m := &scriptedModel{responses: []*genai.GenerateContentResponse{textResponse("  SELECT ", "1;\n")}}
	out, err := newTestGemini(m).Generate(context.Background(), "how many?")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1;", out)
	assert.Equal(t, []string{"how many?"}, m.prompts)
}

func TestGenerateRetriesTransportErrors(t *testing.T) {
	m := &scriptedModel{
		errs:      []error{status.Error(codes.Unavailable, "try later"), &googleapi.Error{Code: 503}},
		responses: []*genai.GenerateContentResponse{nil, nil, textResponse("SELECT 2")},
	}
	out, err := newTestGemini(m).Generate(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 2", out)
	assert.Equal(t, 3, m.calls)
}

func TestGenerateGivesUpAfterMaxAttempts(t *testing.T) {
	unavailable := status.Error(codes.Unavailable, "down")
	m := &scriptedModel{
		errs:      []error{unavailable, unavailable, unavailable, unavailable},
		responses: []*genai.GenerateContentResponse{textResponse("never")},
	}
	_, err := newTestGemini(m).Generate(context.Background(), "q")
	var genErr *ErrGeneration
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, 3, m.calls)
}

func TestGenerateDoesNotRetryFinalAnswers(t *testing.T) {
	tests := []struct {
		name string
		m    *scriptedModel
	}{
		{"permission denied", &scriptedModel{errs: []error{status.Error(codes.PermissionDenied, "no")}, responses: []*genai.GenerateContentResponse{textResponse("x")}}},
		{"no candidates", &scriptedModel{responses: []*genai.GenerateContentResponse{{}}}},
		{"blank text", &scriptedModel{responses: []*genai.GenerateContentResponse{textResponse("   ")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestGemini(tt.m).Generate(context.Background(), "q")
			var genErr *ErrGeneration
			require.True(t, errors.As(err, &genErr))
			assert.Equal(t, 1, tt.m.calls)
		})
	}
}

func TestGetFirstTextPart(t *testing.T) {
	_, err := getFirstTextPart(nil)
	assert.Error(t, err)

	_, err = getFirstTextPart(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []genai.Part{genai.Blob{MIMEType: "image/png"}}}}}})
	assert.ErrorContains(t, err, "unexpected response part type")

	text, err := getFirstTextPart(textResponse("a", "b"))
	require.NoError(t, err)
	assert.Equal(t, "ab", text)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"cancelled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"grpc unavailable", status.Error(codes.Unavailable, ""), true},
		{"grpc invalid argument", status.Error(codes.InvalidArgument, ""), false},
		{"http 429", &googleapi.Error{Code: 429}, true},
		{"http 400", &googleapi.Error{Code: 400}, false},
		{"wrapped", &ErrGeneration{Msg: "x", Err: &googleapi.Error{Code: 502}}, true},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestWithRetryStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_, err := WithRetry(ctx, fastRetry, nil, func(context.Context) (int, error) {
		calls++
		return 0, nil
	})
	assert.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestNewGeminiRequiresAPIKey(t *testing.T) {
	_, err := NewGemini(context.Background(), config.GeminiConfig{Model: DefaultModel}, nil)
	assert.ErrorContains(t, err, "API key is missing")
}
