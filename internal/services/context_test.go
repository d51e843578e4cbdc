package services_test

import (
	"context"
	"testing"

	"hackreview/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithSubmissionID(ctx, "001_demo")
	ctx = services.WithStage(ctx, "clone")
	ctx = services.WithRunID(ctx, "run-123")

	if id, ok := services.SubmissionIDFromContext(ctx); !ok || id != "001_demo" {
		t.Fatalf("unexpected submission id: %v %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "clone" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if rid, ok := services.RunIDFromContext(ctx); !ok || rid != "run-123" {
		t.Fatalf("unexpected run id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	ctx = services.WithSubmissionID(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected blank stage to be ignored")
	}
	if _, ok := services.SubmissionIDFromContext(ctx); ok {
		t.Fatal("expected blank submission id to be ignored")
	}
}
