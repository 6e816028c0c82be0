package oracle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/luminova-studio/siteline/internal/config"
	"github.com/luminova-studio/siteline/internal/domain"
)

func TestCompleteWithoutAPIKey(t *testing.T) {
	o := NewOpenAIOracle(config.OracleConfig{})

	if o.IsConfigured() {
		t.Error("Oracle without a key should report unconfigured")
	}

	if _, err := o.Complete(context.Background(), nil); err == nil {
		t.Error("Complete without a key should fail, not call out")
	}
}

// One oracle instance serves every session, so concurrent first calls
// must share a single client safely.
func TestCompleteConcurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cmpl-1","object":"chat.completion","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Happy to help."}}]}`))
	}))
	defer srv.Close()

	o := NewOpenAIOracle(config.OracleConfig{
		APIKey:    "test-key",
		BaseURL:   srv.URL,
		Model:     "gpt-4o-mini",
		MaxTokens: 220,
	})

	transcript := []domain.Message{{Role: domain.RoleUser, Content: "hi"}}

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reply, err := o.Complete(context.Background(), transcript)
			if err != nil {
				errs <- err
				return
			}
			if reply != "Happy to help." {
				t.Errorf("Complete returned %q", reply)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent Complete failed: %v", err)
	}
}
