package observability

import (
	"context"
	"errors"
	"testing"
)

func TestParseHeadersSkipsMalformedPairs(t *testing.T) {
	h := parseHeaders("authorization=Bearer x, bad, =empty,x-team=lms")
	if len(h) != 2 {
		t.Fatalf("headers: want=2 got=%d (%v)", len(h), h)
	}
	if h["x-team"] != "lms" {
		t.Fatalf("x-team: want=lms got=%q", h["x-team"])
	}
	if parseHeaders("") != nil {
		t.Fatalf("empty input should give nil")
	}
}

func TestLoadTracingConfigClampsRatio(t *testing.T) {
	t.Setenv("OTEL_SAMPLER_RATIO", "4")
	if got := LoadTracingConfig("svc", "test").SampleRatio; got != 1 {
		t.Fatalf("ratio: want=1 got=%v", got)
	}
	t.Setenv("OTEL_SAMPLER_RATIO", "-1")
	if got := LoadTracingConfig("svc", "test").SampleRatio; got != 0 {
		t.Fatalf("ratio: want=0 got=%v", got)
	}
	if got := LoadTracingConfig(" ", "test").ServiceName; got != "coursetrack" {
		t.Fatalf("service name fallback: got=%q", got)
	}
}

func TestInitTracingDisabledIsNoop(t *testing.T) {
	shutdown := InitTracing(context.Background(), nil, TracingConfig{})
	if shutdown == nil {
		t.Fatalf("shutdown: want non-nil")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestEndSpanWithError(t *testing.T) {
	_, span := StartSpan(context.Background(), "progress.test")
	EndSpan(span, errors.New("boom"))
	EndSpan(nil, nil)
}
