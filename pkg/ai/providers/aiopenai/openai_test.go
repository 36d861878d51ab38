package aiopenai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Abraxas-365/drugcontent/pkg/ai/llm"
	"github.com/Abraxas-365/drugcontent/pkg/ai/providers/aiopenai"
	"github.com/Abraxas-365/drugcontent/pkg/errx"
	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProvider(t *testing.T, handler http.HandlerFunc) *aiopenai.OpenAIProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return aiopenai.NewOpenAIProvider("test-key",
		option.WithBaseURL(srv.URL+"/v1/"),
		option.WithMaxRetries(0),
	)
}

func TestChatSendsJSONModeAndParsesCompletion(t *testing.T) {
	var body map[string]any
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "{\"title\":\"x\"}"}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	})

	resp, err := p.Chat(context.Background(),
		[]llm.Message{llm.NewSystemMessage("sys"), llm.NewUserMessage("hi")},
		llm.WithJSONResponseFormat(), llm.WithTemperature(0.3))
	require.NoError(t, err)

	assert.Equal(t, `{"title":"x"}`, resp.Message.Content)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
	assert.Equal(t, "gpt-4o-mini", body["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])
}

func TestChatMapsStatusCodes(t *testing.T) {
	cases := []struct {
		status int
		want   *errx.ErrorCode
		typ    errx.Type
	}{
		{http.StatusTooManyRequests, aiopenai.ErrAPIRateLimit, errx.TypeRateLimit},
		{http.StatusServiceUnavailable, aiopenai.ErrAPIUnavailable, errx.TypeUnavailable},
		{http.StatusUnauthorized, aiopenai.ErrAPIUnauthorized, errx.TypeExternal},
		{http.StatusBadRequest, aiopenai.ErrInvalidRequest, errx.TypeValidation},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			p := newProvider(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"x","code":"y"}}`))
			})

			_, err := p.Chat(context.Background(), []llm.Message{llm.NewUserMessage("hi")})
			require.Error(t, err)
			assert.True(t, errx.IsCode(err, tc.want))
			assert.True(t, errx.IsType(err, tc.typ))
		})
	}
}

func TestChatRequiresKeyAndMessages(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := aiopenai.NewOpenAIProvider("").Chat(context.Background(), []llm.Message{llm.NewUserMessage("hi")})
	assert.True(t, errx.IsCode(err, aiopenai.ErrMissingAPIKey))

	_, err = aiopenai.NewOpenAIProvider("k").Chat(context.Background(), nil)
	assert.True(t, errx.IsCode(err, aiopenai.ErrEmptyMessages))
}
