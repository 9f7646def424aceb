package nats

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/deploypilot/deploypilot/internal/logger"
	"github.com/deploypilot/deploypilot/internal/port/messagequeue"
)

// testConnect connects to NATS or skips the test if NATS_URL is not set.
func testConnect(t *testing.T) *Queue {
	t.Helper()

	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("requires NATS_URL")
	}

	q, err := Connect(context.Background(), url, "DEPLOYPILOT_TEST")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() {
		if err := q.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return q
}

func TestDurableName(t *testing.T) {
	tests := map[string]string{
		"analysis.requested": "deploypilot_analysis_requested",
		"analysis.*":         "deploypilot_analysis_any",
		"analysis.>":         "deploypilot_analysis_all",
	}
	for subject, want := range tests {
		if got := durableName(subject); got != want {
			t.Errorf("durableName(%q) = %q, want %q", subject, got, want)
		}
	}
}

func TestQueue_PublishRejectsInvalidPayload(t *testing.T) {
	q := &Queue{}
	err := q.Publish(context.Background(), messagequeue.SubjectAnalysisRequested, []byte(`{"owner":"acme"}`))
	if err == nil {
		t.Fatal("expected validation error before any network call")
	}
}

func TestQueue_PublishSubscribe(t *testing.T) {
	q := testConnect(t)
	if !q.IsConnected() {
		t.Fatal("expected connected queue")
	}

	want := messagequeue.AnalysisRequestedPayload{Owner: "acme", Repo: "site-" + time.Now().Format("150405.000"), Branch: "main"}
	data, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	type delivery struct {
		payload   messagequeue.AnalysisRequestedPayload
		requestID string
	}
	got := make(chan delivery, 16)
	cancel, err := q.Subscribe(context.Background(), messagequeue.SubjectAnalysisRequested, func(ctx context.Context, _ string, data []byte) error {
		var p messagequeue.AnalysisRequestedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		got <- delivery{payload: p, requestID: logger.RequestID(ctx)}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	ctx := logger.WithRequestID(context.Background(), "req-nats")
	if err := q.Publish(ctx, messagequeue.SubjectAnalysisRequested, data); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case d := <-got:
			if d.payload.Repo != want.Repo {
				continue // earlier runs may still be in the stream
			}
			if d.requestID != "req-nats" {
				t.Errorf("request ID = %q, want req-nats", d.requestID)
			}
			return
		case <-deadline:
			t.Fatal("timed out waiting for message")
		}
	}
}

func TestQueue_KeyValue(t *testing.T) {
	q := testConnect(t)
	ctx := context.Background()

	kv, err := q.KeyValue(ctx, "DEPLOYPILOT_TEST_KV", time.Minute)
	if err != nil {
		t.Fatalf("KeyValue: %v", err)
	}
	if _, err := kv.Put(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	entry, err := kv.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(entry.Value()) != "v" {
		t.Errorf("value = %q, want v", entry.Value())
	}
}
