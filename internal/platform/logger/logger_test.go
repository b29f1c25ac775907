package logger

import (
	"strings"
	"testing"
)

func testPolicy() *Policy {
	return &Policy{Enabled: true, Drop: defaultDrop, Digest: defaultDigest}
}

func TestScrubRedactsAndDigests(t *testing.T) {
	out := testPolicy().Scrub([]interface{}{
		"access_token", "abc",
		"user_id", "4b1d0f3e-2b7c-4f57-9a43-0d1c1f3c9e11",
		"client_id", "tenant-a",
		"kind", "document",
	})
	if len(out) != 8 {
		t.Fatalf("len: want=8 got=%d", len(out))
	}
	if out[1] != redacted {
		t.Fatalf("token: want=%s got=%v", redacted, out[1])
	}
	if s, _ := out[3].(string); !strings.HasPrefix(s, "hash:") {
		t.Fatalf("user_id: want hash prefix got=%v", out[3])
	}
	if s, _ := out[5].(string); !strings.HasPrefix(s, "hash:") {
		t.Fatalf("client_id: want hash prefix got=%v", out[5])
	}
	if out[7] != "document" {
		t.Fatalf("kind: want=document got=%v", out[7])
	}
}

func TestScrubDigestIsStableAndSalted(t *testing.T) {
	p := testPolicy()
	a := p.Scrub([]interface{}{"user_id", "u1"})[1]
	b := p.Scrub([]interface{}{"user_id", "u1"})[1]
	if a != b {
		t.Fatalf("digest not stable: %v vs %v", a, b)
	}
	salted := &Policy{Enabled: true, Salt: "pepper", Digest: defaultDigest}
	if c := salted.Scrub([]interface{}{"user_id", "u1"})[1]; c == a {
		t.Fatalf("salt ignored: %v", c)
	}
}

func TestScrubNestedValues(t *testing.T) {
	out := testPolicy().Scrub([]interface{}{
		"target", map[string]interface{}{
			"Authorization": "Bearer x",
			"course_id":     "c1",
			"learners":      []interface{}{"eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiJ1MSJ9.sig"},
		},
	})
	m, ok := out[1].(map[string]interface{})
	if !ok {
		t.Fatalf("want map got %T", out[1])
	}
	if m["Authorization"] != redacted {
		t.Fatalf("authorization not redacted: %v", m["Authorization"])
	}
	if m["course_id"] != "c1" {
		t.Fatalf("course_id changed: %v", m["course_id"])
	}
	if s, _ := m["learners"].(string); !strings.HasPrefix(s, "hash:") {
		t.Fatalf("learners: want digest got %v", m["learners"])
	}
}

func TestScrubBareJWTValue(t *testing.T) {
	out := testPolicy().Scrub([]interface{}{"detail", "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiJ1MSJ9.sig"})
	if out[1] != redacted {
		t.Fatalf("jwt not redacted: %v", out[1])
	}
}

func TestScrubOddLength(t *testing.T) {
	out := testPolicy().Scrub([]interface{}{"kind", "video", "dangling"})
	if len(out) != 3 || out[2] != "dangling" {
		t.Fatalf("unexpected output: %+v", out)
	}
}

func TestScrubDisabledPassesThrough(t *testing.T) {
	p := &Policy{Enabled: false, Drop: defaultDrop}
	out := p.Scrub([]interface{}{"password", "hunter2"})
	if out[1] != "hunter2" {
		t.Fatalf("disabled policy should not redact: %v", out[1])
	}
	var nilPolicy *Policy
	if got := nilPolicy.Scrub([]interface{}{"password", "x"}); got[1] != "x" {
		t.Fatalf("nil policy should pass through: %v", got[1])
	}
}

func TestNopLogger(t *testing.T) {
	l := Nop().Component("test").WithPolicy(testPolicy())
	l.Info("ignored", "k", "v")
	l.Sync()
}
