// Command mock-backend runs a deterministic streaming server for local
// development. It serves the same canned reply over three stream
// framings, one endpoint each:
//
//	POST /v1/chat/completions - OpenAI-style SSE chunks ending in [DONE]
//	POST /v1/messages         - Anthropic-style SSE events ending in message_stop
//	POST /v1/text             - plain incremental text, no framing
//
// Configuration:
//
//	MOCK_PORT  - Listen port (default: 8090)
//	MOCK_DELAY - Delay between chunks (default: 50ms)
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "8090"
	}
	delay := 50 * time.Millisecond
	if v := os.Getenv("MOCK_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			delay = d
		}
	}

	backend := &mockBackend{delay: delay}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", backend.handleOpenAI)
	mux.HandleFunc("POST /v1/messages", backend.handleAnthropic)
	mux.HandleFunc("POST /v1/text", backend.handleText)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port, "delay", delay)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

type mockBackend struct {
	delay time.Duration
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// reply produces the deterministic word stream for a request.
func reply(req *chatRequest) []string {
	prompt := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			prompt = req.Messages[i].Content
			break
		}
	}
	text := fmt.Sprintf("Mock reply from %s to: %s", req.Model, prompt)

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

func decodeRequest(w http.ResponseWriter, r *http.Request) (*chatRequest, bool) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request"}`, http.StatusBadRequest)
		return nil, false
	}
	if req.Model == "" {
		req.Model = "mock-model"
	}
	return &req, true
}

func streamSetup(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	return flusher, true
}

func (b *mockBackend) handleOpenAI(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	flusher, ok := streamSetup(w)
	if !ok {
		return
	}

	for _, chunk := range reply(req) {
		payload, _ := json.Marshal(map[string]any{
			"id":     "chatcmpl-mock",
			"object": "chat.completion.chunk",
			"model":  req.Model,
			"choices": []map[string]any{
				{"index": 0, "delta": map[string]string{"content": chunk}},
			},
		})
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
		time.Sleep(b.delay)
	}

	final, _ := json.Marshal(map[string]any{
		"id":     "chatcmpl-mock",
		"object": "chat.completion.chunk",
		"model":  req.Model,
		"choices": []map[string]any{
			{"index": 0, "delta": map[string]string{}, "finish_reason": "stop"},
		},
	})
	fmt.Fprintf(w, "data: %s\n\n", final)
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func (b *mockBackend) handleAnthropic(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	flusher, ok := streamSetup(w)
	if !ok {
		return
	}

	writeEvent := func(payload any) {
		data, _ := json.Marshal(payload)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	chunks := reply(req)
	var full strings.Builder

	writeEvent(map[string]any{"type": "message_start"})
	for _, chunk := range chunks {
		full.WriteString(chunk)
		writeEvent(map[string]any{
			"type":  "content_block_delta",
			"delta": map[string]string{"type": "text_delta", "text": chunk},
		})
		time.Sleep(b.delay)
	}
	writeEvent(map[string]any{
		"type": "message_stop",
		"message": map[string]any{
			"content": []map[string]string{{"type": "text", "text": full.String()}},
		},
	})
}

func (b *mockBackend) handleText(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	for _, chunk := range reply(req) {
		fmt.Fprint(w, chunk)
		flusher.Flush()
		time.Sleep(b.delay)
	}
}
