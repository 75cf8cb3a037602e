package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModel(t *testing.T, handler http.HandlerFunc) (*ChatModel, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	m, err := NewChatModel(context.Background(), &Config{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)
	return m, srv
}

func TestGenerateSendsPromptAndReadsAnswer(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any

	m, _ := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Eat more beans."}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":12,"candidatesTokenCount":4,"totalTokenCount":16}}`))
	})

	msg, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("User query: protein?")})
	require.NoError(t, err)

	assert.Equal(t, "Eat more beans.", msg.Content)
	assert.Equal(t, schema.Assistant, msg.Role)
	require.NotNil(t, msg.ResponseMeta)
	assert.Equal(t, "STOP", msg.ResponseMeta.FinishReason)
	require.NotNil(t, msg.ResponseMeta.Usage)
	assert.Equal(t, 16, msg.ResponseMeta.Usage.TotalTokens)

	assert.Equal(t, "/models/gemini-2.0-flash:generateContent", gotPath)
	assert.Equal(t, "test-key", gotKey)

	contents, ok := gotBody["contents"].([]any)
	require.True(t, ok)
	require.Len(t, contents, 1)
	first := contents[0].(map[string]any)
	parts := first["parts"].([]any)
	assert.Equal(t, "User query: protein?", parts[0].(map[string]any)["text"])
	assert.NotContains(t, gotBody, "generationConfig")
}

func TestGenerateMapsSystemAndGenerationConfig(t *testing.T) {
	var gotBody generateRequest
	temp := float32(0.2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
	}))
	defer srv.Close()

	m, err := NewChatModel(context.Background(), &Config{APIKey: "k", BaseURL: srv.URL + "/", Model: "gemini-1.5-pro", Temperature: &temp})
	require.NoError(t, err)

	_, err = m.Generate(context.Background(), []*schema.Message{
		schema.SystemMessage("be brief"),
		schema.UserMessage("hi"),
		schema.AssistantMessage("hello", nil),
		schema.UserMessage("recipe?"),
	})
	require.NoError(t, err)

	require.NotNil(t, gotBody.SystemInstruction)
	assert.Equal(t, "be brief", gotBody.SystemInstruction.Parts[0].Text)
	require.Len(t, gotBody.Contents, 3)
	assert.Equal(t, "model", gotBody.Contents[1].Role)
	require.NotNil(t, gotBody.GenerationConfig)
	require.NotNil(t, gotBody.GenerationConfig.Temperature)
	assert.InDelta(t, 0.2, *gotBody.GenerationConfig.Temperature, 1e-6)
}

func TestGenerateMalformedBodies(t *testing.T) {
	bodies := map[string]string{
		"no candidates":   `{"promptFeedback":{"blockReason":"SAFETY"}}`,
		"empty list":      `{"candidates":[]}`,
		"no parts":        `{"candidates":[{"content":{}}]}`,
		"text not string": `{"candidates":[{"content":{"parts":[{"text":42}]}}]}`,
		"empty text":      `{"candidates":[{"content":{"parts":[{"text":"  "}]}}]}`,
		"not json":        `<html>oops</html>`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			m, _ := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			_, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedResponse), "got %v", err)
		})
	}
}

func TestGenerateStatusError(t *testing.T) {
	m, _ := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"API key not valid"}}`))
	})

	_, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	assert.Equal(t, "API key not valid", statusErr.Body)
	assert.False(t, errors.Is(err, ErrMalformedResponse))
}

func TestGenerateHonoursContextDeadline(t *testing.T) {
	release := make(chan struct{})
	m, _ := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := m.Generate(ctx, []*schema.Message{schema.UserMessage("hi")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestStreamYieldsSingleChunk(t *testing.T) {
	m, _ := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"chunk"}]}}]}`))
	})

	stream, err := m.Stream(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.NoError(t, err)
	defer stream.Close()

	msg, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "chunk", msg.Content)

	_, err = stream.Recv()
	assert.ErrorIs(t, err, io.EOF)
}

func TestNewChatModelRequiresKey(t *testing.T) {
	_, err := NewChatModel(context.Background(), &Config{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = NewChatModel(context.Background(), nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}
