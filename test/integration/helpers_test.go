package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PaulJPhilp/mcluhan/pkg/api"
	"github.com/PaulJPhilp/mcluhan/pkg/engine"
	"github.com/PaulJPhilp/mcluhan/pkg/provider"
	"github.com/PaulJPhilp/mcluhan/pkg/provider/anthropic"
	"github.com/PaulJPhilp/mcluhan/pkg/provider/openaicompat"
	"github.com/PaulJPhilp/mcluhan/pkg/provider/textstream"
	"github.com/PaulJPhilp/mcluhan/pkg/transport"
)

// chunkWords splits text into word chunks with leading spaces preserved,
// mirroring how real backends tokenize replies.
func chunkWords(text string) []string {
	words := strings.Fields(text)
	chunks := make([]string, len(words))
	for i, w := range words {
		if i == 0 {
			chunks[i] = w
		} else {
			chunks[i] = " " + w
		}
	}
	return chunks
}

// startOpenAIBackend serves a canned reply as OpenAI-style SSE.
func startOpenAIBackend(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, chunk := range chunkWords(reply) {
			payload, _ := json.Marshal(map[string]any{
				"choices": []map[string]any{
					{"index": 0, "delta": map[string]string{"content": chunk}},
				},
			})
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(server.Close)
	return server
}

// startAnthropicBackend serves a canned reply as Anthropic-style SSE,
// including the terminal full-content message.
func startAnthropicBackend(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, chunk := range chunkWords(reply) {
			payload, _ := json.Marshal(map[string]any{
				"type":  "content_block_delta",
				"delta": map[string]string{"type": "text_delta", "text": chunk},
			})
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
		stop, _ := json.Marshal(map[string]any{
			"type": "message_stop",
			"message": map[string]any{
				"content": []map[string]string{{"type": "text", "text": reply}},
			},
		})
		fmt.Fprintf(w, "data: %s\n\n", stop)
	}))
	t.Cleanup(server.Close)
	return server
}

// startTextBackend serves a canned reply as unframed incremental text.
func startTextBackend(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for _, chunk := range chunkWords(reply) {
			fmt.Fprint(w, chunk)
			flusher.Flush()
		}
	}))
	t.Cleanup(server.Close)
	return server
}

// newEngine wires the full stack: adapters, HTTP clients, router.
func newEngine(t *testing.T, cfg engine.Config, backends map[string]string, opts ...engine.Option) *engine.Engine {
	t.Helper()

	registry := provider.NewRegistry()
	registry.Register(openaicompat.New(nil))
	registry.Register(anthropic.New(nil))
	registry.Register(textstream.New(nil))

	router := transport.NewRouter(nil)
	for providerName, baseURL := range backends {
		router.Route(providerName, transport.NewClient(transport.Config{BaseURL: baseURL}))
	}

	e, err := engine.New(registry, router, cfg, opts...)
	if err != nil {
		t.Fatalf("engine.New error: %v", err)
	}
	return e
}

func request(providerName, model string) api.StreamRequest {
	return api.StreamRequest{
		Model:    model,
		Provider: providerName,
		Messages: []api.Message{{Role: api.RoleUser, Content: "hello"}},
	}
}
