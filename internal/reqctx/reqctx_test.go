package reqctx

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestWithRun(t *testing.T) {
	ctx := WithRun(context.Background(), "wiki")
	r := FromContext(ctx)
	if len(r.ID) != 16 {
		t.Errorf("expected 16 hex chars, got %q", r.ID)
	}
	if r.Source != "wiki" {
		t.Errorf("unexpected source %q", r.Source)
	}

	other := FromContext(WithRun(context.Background(), "wiki"))
	if other.ID == r.ID {
		t.Error("run ids should differ")
	}
}

func TestFromContext_Placeholder(t *testing.T) {
	if r := FromContext(context.Background()); r.ID != "unknown" {
		t.Errorf("expected placeholder run, got %q", r.ID)
	}
}

func TestRunError(t *testing.T) {
	base := errors.New("boom")
	ctx := WithRun(context.Background(), "sheet")

	err := NewRunError(ctx, base)
	if !errors.Is(err, base) {
		t.Error("RunError should unwrap to its cause")
	}
	if !strings.HasPrefix(err.Error(), "["+FromContext(ctx).ID+"]") {
		t.Errorf("run id missing from %q", err.Error())
	}
	if NewRunError(ctx, nil) != nil {
		t.Error("nil error should stay nil")
	}
}
