package services_test

import (
	"context"
	"testing"

	"cymatics/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithJobFile(ctx, "talk.mp3")
	ctx = services.WithPassID(ctx, "pass-1")
	ctx = services.WithRequestID(ctx, "req-123")

	if name, ok := services.JobFileFromContext(ctx); !ok || name != "talk.mp3" {
		t.Fatalf("unexpected job file: %v %v", name, ok)
	}
	if id, ok := services.PassIDFromContext(ctx); !ok || id != "pass-1" {
		t.Fatalf("unexpected pass id: %v %v", id, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithJobFile(ctx, "")
	ctx = services.WithPassID(ctx, "")
	if _, ok := services.JobFileFromContext(ctx); ok {
		t.Fatal("expected no job file value")
	}
	if _, ok := services.PassIDFromContext(ctx); ok {
		t.Fatal("expected no pass id value")
	}
}
