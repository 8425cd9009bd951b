// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// TYPE TESTS
// =============================================================================

func TestChatResponse_Content(t *testing.T) {
	var nilResp *ChatResponse
	if nilResp.Content() != "" {
		t.Error("nil response should have empty content")
	}
	if (&ChatResponse{}).Content() != "" {
		t.Error("absent message should have empty content")
	}
	r := &ChatResponse{Message: &Message{Role: "assistant", Content: "hi"}}
	if r.Content() != "hi" {
		t.Errorf("Content() = %q, want 'hi'", r.Content())
	}
}

func TestChatResponse_TokensPerSecond(t *testing.T) {
	tests := []struct {
		name     string
		resp     ChatResponse
		expected float64
	}{
		{"zero duration", ChatResponse{EvalCount: 100}, 0},
		{"one second", ChatResponse{EvalCount: 50, EvalDuration: int64(time.Second)}, 50},
		{"half second", ChatResponse{EvalCount: 50, EvalDuration: int64(500 * time.Millisecond)}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.resp.TokensPerSecond(); got != tt.expected {
				t.Errorf("TokensPerSecond() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestModelInfo_FormatSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{0, "-"},
		{512, "512 B"},
		{4 * 1024 * 1024 * 1024, "4.0 GiB"},
	}
	for _, tt := range tests {
		m := ModelInfo{Size: tt.size}
		if got := m.FormatSize(); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.size, got, tt.want)
		}
	}
}

func TestChatRequest_OptionsAlwaysSerialized(t *testing.T) {
	data, err := json.Marshal(ChatRequest{Model: "m", Options: Options{NumCtx: 0, Temperature: 0}})
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	for _, want := range []string{`"num_ctx":0`, `"temperature":0`, `"stream":false`} {
		if !strings.Contains(s, want) {
			t.Errorf("marshaled request %s missing %s", s, want)
		}
	}
}

func TestQuotaStatus_ResetTime(t *testing.T) {
	if !(QuotaStatus{}).ResetTime().IsZero() {
		t.Error("unset reset should be zero time")
	}
	got := QuotaStatus{ResetAt: 1700000000.5}.ResetTime()
	if got.Unix() != 1700000000 || got.Nanosecond() != 500000000 {
		t.Errorf("ResetTime() = %v", got)
	}
}

// =============================================================================
// STREAM READER TESTS
// =============================================================================

// chunkedReader returns one piece per Read call, simulating network reads
// that split frames at arbitrary byte boundaries.
type chunkedReader struct {
	pieces []string
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if len(r.pieces) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.pieces[0])
	r.pieces[0] = r.pieces[0][n:]
	if r.pieces[0] == "" {
		r.pieces = r.pieces[1:]
	}
	return n, nil
}

func collect(t *testing.T, pieces ...string) (*StreamReader, []StreamChunk) {
	t.Helper()
	reader := NewStreamReader(&chunkedReader{pieces: pieces})
	var chunks []StreamChunk
	if err := reader.Process(context.Background(), func(c StreamChunk) {
		chunks = append(chunks, c)
	}); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	return reader, chunks
}

func TestStreamReader_FrameSplitAcrossReads(t *testing.T) {
	reader, chunks := collect(t,
		`{"message":{"content":"He"`,
		`llo"},"done":false}`+"\n"+`{"done":true}`+"\n",
	)

	if got := reader.Accumulated(); got != "Hello" {
		t.Errorf("Accumulated() = %q, want 'Hello'", got)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0].Content != "Hello" || chunks[0].Done {
		t.Errorf("first chunk = %+v", chunks[0])
	}
	if !chunks[1].Done {
		t.Error("second chunk should be done")
	}
	if reader.Dropped() != 0 {
		t.Errorf("Dropped() = %d, want 0", reader.Dropped())
	}
}

func TestStreamReader_ByteAtATime(t *testing.T) {
	body := `{"message":{"content":"a"}}` + "\n" + `{"message":{"content":"b"}}` + "\n"
	pieces := make([]string, 0, len(body))
	for i := range body {
		pieces = append(pieces, body[i:i+1])
	}
	reader, chunks := collect(t, pieces...)
	if reader.Accumulated() != "ab" || len(chunks) != 2 {
		t.Errorf("Accumulated() = %q with %d chunks", reader.Accumulated(), len(chunks))
	}
}

func TestStreamReader_MalformedLinesSkipped(t *testing.T) {
	reader, chunks := collect(t,
		`{"message":{"content":"one "}}`+"\n",
		"not json\n",
		"\n   \n",
		`{"message":{"content":"two"}}`+"\n",
	)

	if got := reader.Accumulated(); got != "one two" {
		t.Errorf("Accumulated() = %q, want 'one two'", got)
	}
	if len(chunks) != 2 {
		t.Errorf("got %d chunks, want 2", len(chunks))
	}
	if reader.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1 (blank lines are not counted)", reader.Dropped())
	}
}

func TestStreamReader_DrainsPastDone(t *testing.T) {
	reader, chunks := collect(t,
		`{"message":{"content":"x"},"done":true,"eval_count":7,"eval_duration":1000}`+"\n",
		`{"message":{"content":"y"}}`+"\n",
	)
	if reader.Accumulated() != "xy" {
		t.Errorf("Accumulated() = %q, want 'xy'", reader.Accumulated())
	}
	if len(chunks) != 2 {
		t.Errorf("got %d chunks, want 2", len(chunks))
	}
	final := reader.Final()
	if final == nil || final.CompletionTokens != 7 || final.EvalDuration != 1000 {
		t.Errorf("Final() = %+v", final)
	}
}

func TestStreamReader_TrailingPartialLineDropped(t *testing.T) {
	reader, chunks := collect(t,
		`{"message":{"content":"ok"}}`+"\n",
		`{"message":{"content":"lost"}}`,
	)
	if reader.Accumulated() != "ok" || len(chunks) != 1 {
		t.Errorf("Accumulated() = %q with %d chunks", reader.Accumulated(), len(chunks))
	}
	if reader.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", reader.Dropped())
	}
}

func TestStreamReader_NoContent(t *testing.T) {
	reader, _ := collect(t, `{"done":true}`+"\n")
	if reader.ContentFrames() != 0 || reader.Frames() != 1 {
		t.Errorf("ContentFrames() = %d, Frames() = %d", reader.ContentFrames(), reader.Frames())
	}
	if reader.TTFT() != 0 {
		t.Error("TTFT should be zero without content")
	}
}

func TestStreamReader_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reader := NewStreamReader(strings.NewReader(`{"message":{"content":"x"}}` + "\n"))
	err := reader.Process(ctx, func(StreamChunk) { t.Error("callback after cancel") })
	if !IsCanceled(err) {
		t.Errorf("Process() error = %v, want canceled", err)
	}
}

func TestStreamReader_ReadError(t *testing.T) {
	pr, pw := io.Pipe()
	go func() {
		pw.Write([]byte(`{"message":{"content":"x"}}` + "\n"))
		pw.CloseWithError(errors.New("connection reset"))
	}()
	reader := NewStreamReader(pr)
	err := reader.Process(context.Background(), func(StreamChunk) {})
	var clientErr *ClientError
	if !errors.As(err, &clientErr) || clientErr.Type != ErrTypeConnection {
		t.Errorf("Process() error = %v, want connection ClientError", err)
	}
	if reader.Accumulated() != "x" {
		t.Errorf("Accumulated() = %q", reader.Accumulated())
	}
}

// =============================================================================
// CLIENT TESTS
// =============================================================================

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(&ClientConfig{
		BaseURL: srv.URL + "/api/",
		Headers: HeaderFunc(func() map[string]string {
			return map[string]string{"Authorization": "Bearer tok"}
		}),
	})
}

func TestClient_SendNonStream(t *testing.T) {
	var got ChatRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("X-RateLimit-Remaining", "9")
		w.Write([]byte(`{"model":"m","message":{"role":"assistant","content":"pong"},"done":true,"extra":1}`))
	})

	resp, err := client.Send(context.Background(), ChatRequest{
		Model:    "m",
		Messages: []Message{{Role: "user", Content: "ping"}},
		Options:  Options{NumCtx: 4096, Temperature: 0.7},
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if resp.Header.Get("X-RateLimit-Remaining") != "9" {
		t.Error("response headers not exposed")
	}
	result, err := resp.Decode()
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if result.Content() != "pong" {
		t.Errorf("Content() = %q", result.Content())
	}
	if got.Model != "m" || got.Stream || got.Options.NumCtx != 4096 || got.Options.Temperature != 0.7 {
		t.Errorf("server saw %+v", got)
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != "ping" {
		t.Errorf("server saw messages %+v", got.Messages)
	}
}

func TestClient_SendStatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name: "unauthorized", status: 401, body: `{"detail":"login"}`,
			check: func(t *testing.T, err error) {
				var authErr *AuthError
				if !errors.As(err, &authErr) || !errors.Is(err, ErrUnauthorized) {
					t.Errorf("error = %v, want AuthError", err)
				}
				if !strings.HasPrefix(err.Error(), "401 ") {
					t.Errorf("Error() = %q", err.Error())
				}
			},
		},
		{
			name: "rate limited with reset", status: 429, body: `{"reset_at": 1700000000}`,
			check: func(t *testing.T, err error) {
				var rlErr *RateLimitError
				if !errors.As(err, &rlErr) || !errors.Is(err, ErrRateLimited) {
					t.Fatalf("error = %v, want RateLimitError", err)
				}
				if rlErr.ResetAt.Unix() != 1700000000 {
					t.Errorf("ResetAt = %v", rlErr.ResetAt)
				}
				want := time.Unix(1700000000, 0).Format("15:04:05")
				if !strings.Contains(err.Error(), want) {
					t.Errorf("Error() = %q, want reset time %s", err.Error(), want)
				}
			},
		},
		{
			name: "rate limited without body", status: 429, body: ``,
			check: func(t *testing.T, err error) {
				var rlErr *RateLimitError
				if !errors.As(err, &rlErr) || !rlErr.ResetAt.IsZero() {
					t.Errorf("error = %v", err)
				}
			},
		},
		{
			name: "server error", status: 502, body: "upstream down\n",
			check: func(t *testing.T, err error) {
				var httpErr *HTTPError
				if !errors.As(err, &httpErr) || httpErr.StatusCode != 502 {
					t.Fatalf("error = %v, want HTTPError", err)
				}
				if err.Error() != "502 upstream down" {
					t.Errorf("Error() = %q", err.Error())
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			resp, err := client.Send(context.Background(), ChatRequest{Model: "m", Stream: true})
			if resp != nil {
				t.Error("response must be nil on failure")
			}
			tt.check(t, err)
		})
	}
}

func TestClient_SendStream(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/x-ndjson" {
			t.Errorf("Accept = %q", r.Header.Get("Accept"))
		}
		flusher := w.(http.Flusher)
		for _, frame := range []string{`{"message":{"content":"a"}}`, `{"message":{"content":"b"}}`, `{"done":true}`} {
			w.Write([]byte(frame + "\n"))
			flusher.Flush()
		}
	})

	resp, err := client.Send(context.Background(), ChatRequest{Model: "m", Stream: true})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	defer resp.Close()

	reader := NewStreamReader(resp.Body)
	if err := reader.Process(context.Background(), func(StreamChunk) {}); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if reader.Accumulated() != "ab" {
		t.Errorf("Accumulated() = %q", reader.Accumulated())
	}
}

func TestClient_SendCanceled(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := client.Send(ctx, ChatRequest{Model: "m"})
	if !IsCanceled(err) {
		t.Errorf("Send() error = %v, want canceled", err)
	}
}

func TestClient_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(&ClientConfig{BaseURL: url})
	_, err := client.Send(context.Background(), ChatRequest{Model: "m"})
	var clientErr *ClientError
	if !errors.As(err, &clientErr) || clientErr.Type != ErrTypeConnection {
		t.Errorf("Send() error = %v, want connection error", err)
	}
}

func TestClient_ListModels(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" || r.Method != http.MethodGet {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"models":[{"name":"llama3","size":1024},{"name":"qwen2"}]}`))
	})

	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if len(models) != 2 || models[0].Name != "llama3" || models[1].Name != "qwen2" {
		t.Errorf("models = %+v", models)
	}
}

func TestClient_ListModelsUnauthorized(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	_, err := client.ListModels(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("ListModels() error = %v, want ErrUnauthorized", err)
	}
}

func TestClient_FetchQuota(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/user/rate-limit" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"remaining":42,"limit":100,"reset_at":1700000000}`))
	})

	q, err := client.FetchQuota(context.Background())
	if err != nil {
		t.Fatalf("FetchQuota() error = %v", err)
	}
	if q.Remaining != 42 || q.Limit != 100 || q.ResetTime().Unix() != 1700000000 {
		t.Errorf("quota = %+v", q)
	}
}

func TestClient_FetchQuotaBadBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>`))
	})
	_, err := client.FetchQuota(context.Background())
	var clientErr *ClientError
	if !errors.As(err, &clientErr) || clientErr.Type != ErrTypeInvalidResponse {
		t.Errorf("FetchQuota() error = %v, want invalid response", err)
	}
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(&ClientConfig{BaseURL: "http://gw/api///"})
	cfg := c.GetConfig()
	if cfg.BaseURL != "http://gw/api" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.ChatPath != "/chat" || cfg.TagsPath != "/tags" || cfg.QuotaPath != "/user/rate-limit" {
		t.Errorf("paths = %q %q %q", cfg.ChatPath, cfg.TagsPath, cfg.QuotaPath)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v", cfg.Timeout)
	}
}
