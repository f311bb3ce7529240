package resilience

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/MrWong99/funcall/pkg/provider/image"
	imagemock "github.com/MrWong99/funcall/pkg/provider/image/mock"
	"github.com/MrWong99/funcall/pkg/provider/llm"
	llmmock "github.com/MrWong99/funcall/pkg/provider/llm/mock"
)

func newLLMFallback(primary, secondary llm.Provider) *LLMFallback {
	fb := NewLLMFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)
	return fb
}

func TestLLMFallback_Complete_PrimarySuccess(t *testing.T) {
	primary := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "from primary"}}
	secondary := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "from secondary"}}
	fb := newLLMFallback(primary, secondary)

	resp, err := fb.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "from primary" {
		t.Fatalf("content = %q", resp.Content)
	}
	if len(secondary.CompleteCalls) != 0 {
		t.Fatalf("secondary called %d times, want 0", len(secondary.CompleteCalls))
	}
}

func TestLLMFallback_Complete_Failover(t *testing.T) {
	primary := &llmmock.Provider{CompleteErr: errors.New("primary down")}
	secondary := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "from secondary"}}
	fb := newLLMFallback(primary, secondary)

	resp, err := fb.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "from secondary" {
		t.Fatalf("content = %q", resp.Content)
	}
}

func TestLLMFallback_Complete_AllFail(t *testing.T) {
	fb := newLLMFallback(
		&llmmock.Provider{CompleteErr: errors.New("primary down")},
		&llmmock.Provider{CompleteErr: errors.New("secondary down")},
	)
	if _, err := fb.Complete(context.Background(), llm.CompletionRequest{}); !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestLLMFallback_StreamCompletion_Failover(t *testing.T) {
	primary := &llmmock.Provider{StreamErr: errors.New("stream failed")}
	secondary := &llmmock.Provider{
		StreamChunks: []llm.Chunk{{Text: "chunk1"}, {Text: "chunk2", FinishReason: "stop"}},
	}
	fb := newLLMFallback(primary, secondary)

	ch, err := fb.StreamCompletion(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var text string
	for c := range ch {
		text += c.Text
	}
	if text != "chunk1chunk2" {
		t.Fatalf("streamed %q, want chunk1chunk2", text)
	}
}

func TestLLMFallback_CapabilitiesAndBackends(t *testing.T) {
	primary := &llmmock.Provider{ModelCapabilities: llm.ModelCapabilities{ContextWindow: 128000, SupportsToolCalling: true}}
	fb := newLLMFallback(primary, &llmmock.Provider{})

	caps := fb.Capabilities()
	if caps.ContextWindow != 128000 || !caps.SupportsToolCalling {
		t.Fatalf("caps = %+v", caps)
	}
	if got := fb.Backends(); !slices.Equal(got, []string{"primary", "secondary"}) {
		t.Errorf("Backends() = %v", got)
	}
	n, err := fb.CountTokens(nil)
	if err != nil || n != 0 {
		t.Errorf("CountTokens = %d, %v", n, err)
	}
}

func TestImageFallback_Generate(t *testing.T) {
	primary := &imagemock.Provider{Err: errors.New("quota exceeded")}
	secondary := &imagemock.Provider{Result: &image.Result{URL: "https://img.example/1.png"}}

	fb := NewImageFallback(primary, "openai", FallbackConfig{})
	fb.AddFallback("backup", secondary)

	res, err := fb.Generate(context.Background(), image.Request{Prompt: "lounge", Width: 896, Height: 512})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.URL != "https://img.example/1.png" {
		t.Errorf("URL = %q", res.URL)
	}
	if len(primary.Requests) != 1 || len(secondary.Requests) != 1 {
		t.Errorf("requests = %d/%d, want 1/1", len(primary.Requests), len(secondary.Requests))
	}
}
