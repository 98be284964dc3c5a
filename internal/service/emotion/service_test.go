package emotion

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

	analysis "github.com/zhouzirui/heartlog/backend/internal/analysis/emotion"
)

func newChain(t *testing.T, m *fakeChatModel) *ChainClassifier {
	t.Helper()
	c, err := NewChainClassifier(context.Background(), m)
	require.NoError(t, err)
	return c
}

func TestChainClassifierParsesJSONInsideProse(t *testing.T) {
	m := &fakeChatModel{reply: "Here you go: {\"emotion\":\"Sadness\",\"confidence\":0.834,\"reasoning\":\"loss\"} thanks"}
	c := newChain(t, m)

	got, err := c.Classify(context.Background(), "  I miss my dog  ")
	require.NoError(t, err)
	assert.Equal(t, analysis.Result{Emotion: analysis.Sadness, Confidence: 0.83}, got)

	require.Len(t, m.last, 2)
	assert.Equal(t, schema.User, m.last[1].Role)
	assert.Contains(t, m.last[1].Content, "I miss my dog")
}

func TestChainClassifierRejectsBadOutput(t *testing.T) {
	cases := map[string]string{
		"no json":       "I think they are sad",
		"unknown label": `{"emotion":"melancholy","confidence":0.9}`,
		"no confidence": `{"emotion":"joy"}`,
		"broken json":   `{"emotion":"joy",}`,
	}
	for name, reply := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := newChain(t, &fakeChatModel{reply: reply}).Classify(context.Background(), "text")
			assert.Error(t, err)
		})
	}
}

func TestServiceFallsBackOnLLMError(t *testing.T) {
	svc := NewService(newChain(t, &fakeChatModel{err: errors.New("upstream 502")}), Config{})

	got := svc.Classify(context.Background(), "I am so happy today")
	assert.Equal(t, analysis.Joy, got.Emotion)
	assert.Greater(t, got.Confidence, 0.5)
}

func TestServiceFallsBackOnTimeout(t *testing.T) {
	m := &fakeChatModel{block: true}
	svc := NewService(newChain(t, m), Config{Timeout: 20 * time.Millisecond})

	start := time.Now()
	got := svc.Classify(context.Background(), "I am terrified")
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, analysis.Fear, got.Emotion)
}

func TestServicePrefersLLM(t *testing.T) {
	m := &fakeChatModel{reply: `{"emotion":"surprise","confidence":0.91,"reasoning":"wow"}`}
	svc := NewService(newChain(t, m), Config{})

	got := svc.Classify(context.Background(), "I am so happy")
	assert.Equal(t, analysis.Result{Emotion: analysis.Surprise, Confidence: 0.91}, got)
	assert.True(t, svc.LLMEnabled())
}

func TestServiceEmptyInputSkipsClassifier(t *testing.T) {
	m := &fakeChatModel{reply: `{"emotion":"joy","confidence":1}`}
	svc := NewService(newChain(t, m), Config{})

	assert.Equal(t, analysis.Default(), svc.Classify(context.Background(), ""))
	assert.Equal(t, analysis.Default(), svc.Classify(context.Background(), " \n\t"))
	assert.Zero(t, m.calls.Load())
}

func TestClassifyValueSkipsClassifierForNonStrings(t *testing.T) {
	m := &fakeChatModel{reply: `{"emotion":"joy","confidence":1}`}
	svc := NewService(newChain(t, m), Config{})

	for _, v := range []any{42.0, nil, true, map[string]any{"text": "happy"}, []any{"happy"}} {
		assert.Equal(t, analysis.Default(), svc.ClassifyValue(context.Background(), v))
	}
	assert.Zero(t, m.calls.Load())

	assert.Equal(t, analysis.Joy, svc.ClassifyValue(context.Background(), "anything").Emotion)
	assert.EqualValues(t, 1, m.calls.Load())
}

func TestClassifyBatchKeepsPositions(t *testing.T) {
	svc := NewService(nil, Config{})
	assert.False(t, svc.LLMEnabled())

	got := svc.ClassifyBatch(context.Background(), []any{"so happy", 42, "", nil, "I am furious"})
	require.Len(t, got, 5)
	assert.Equal(t, analysis.Joy, got[0].Emotion)
	assert.Equal(t, analysis.Default(), got[1])
	assert.Equal(t, analysis.Default(), got[2])
	assert.Equal(t, analysis.Default(), got[3])
	assert.Equal(t, analysis.Anger, got[4].Emotion)
}

func TestOpenAIClassifier(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "{\"emotion\":\"anger\",\"confidence\":0.7,\"reasoning\":\"r\"}"}}]
		}`)
	}))
	defer srv.Close()

	c := NewOpenAIClassifier("sk-test", srv.URL, "")
	got, err := c.Classify(context.Background(), "this is outrageous")
	require.NoError(t, err)
	assert.Equal(t, analysis.Result{Emotion: analysis.Anger, Confidence: 0.7}, got)

	assert.Equal(t, "gpt-4o-mini", gotBody["model"])
	format, ok := gotBody["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_object", format["type"])
}

func TestOpenAIClassifierErrorFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc := NewService(NewOpenAIClassifier("sk-test", srv.URL, "gpt-4o-mini"), Config{Timeout: time.Second})
	got := svc.Classify(context.Background(), "I feel disgusted")
	assert.Equal(t, analysis.Disgust, got.Emotion)
}
