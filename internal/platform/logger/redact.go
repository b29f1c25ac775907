package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"
)

const redacted = "[REDACTED]"

// Policy decides what happens to a logged value based on its key.
// Credentials and learner-authored payloads are dropped; tenant and
// learner identifiers are replaced by a salted digest so entries stay
// correlatable without exposing who the learner is.
type Policy struct {
	Enabled bool
	Salt    string
	Drop    []string
	Digest  []string
}

var (
	defaultDrop = []string{
		"token", "authorization", "password", "secret", "cookie",
		"api_key", "apikey", "dsn", "email", "suspend_data", "payload",
	}
	defaultDigest = []string{"user_id", "client_id", "learner", "session_id"}

	envPolicyOnce sync.Once
	envPolicy     *Policy
)

// PolicyFromEnv builds the process-wide policy once.
// LOG_REDACTION_ENABLED=false turns scrubbing off; LOG_HASH_SALT salts digests.
func PolicyFromEnv() *Policy {
	envPolicyOnce.Do(func() {
		enabled := true
		switch strings.ToLower(strings.TrimSpace(os.Getenv("LOG_REDACTION_ENABLED"))) {
		case "0", "false", "no", "off":
			enabled = false
		}
		envPolicy = &Policy{
			Enabled: enabled,
			Salt:    strings.TrimSpace(os.Getenv("LOG_HASH_SALT")),
			Drop:    defaultDrop,
			Digest:  defaultDigest,
		}
	})
	return envPolicy
}

// Scrub returns kv with each value passed through the policy.
// A trailing key without a value is kept as is.
func (p *Policy) Scrub(kv []interface{}) []interface{} {
	if p == nil || !p.Enabled || len(kv) == 0 {
		return kv
	}
	out := make([]interface{}, len(kv))
	for i := 0; i < len(kv); i += 2 {
		out[i] = kv[i]
		if i+1 < len(kv) {
			out[i+1] = p.value(normalizeKey(kv[i]), kv[i+1])
		}
	}
	return out
}

func (p *Policy) value(key string, v interface{}) interface{} {
	if key != "" {
		if matchesAny(key, p.Drop) {
			return redacted
		}
		if matchesAny(key, p.Digest) {
			return p.digest(v)
		}
	}
	switch t := v.(type) {
	case map[string]interface{}:
		if t == nil {
			return t
		}
		m := make(map[string]interface{}, len(t))
		for k, inner := range t {
			m[k] = p.value(normalizeKey(k), inner)
		}
		return m
	case []interface{}:
		if t == nil {
			return t
		}
		s := make([]interface{}, len(t))
		for i, inner := range t {
			s[i] = p.value("", inner)
		}
		return s
	case string:
		if isBearerLike(t) {
			return redacted
		}
	}
	return v
}

func (p *Policy) digest(v interface{}) string {
	raw := stringify(v)
	if raw == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(p.Salt + raw))
	return "hash:" + hex.EncodeToString(sum[:6])
}

func matchesAny(key string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(key, n) {
			return true
		}
	}
	return false
}

func normalizeKey(k interface{}) string {
	return strings.ToLower(strings.TrimSpace(stringify(k)))
}

// isBearerLike reports whether s has the three dot-separated segments of a JWT.
func isBearerLike(s string) bool {
	parts := strings.Split(strings.TrimPrefix(s, "Bearer "), ".")
	return len(parts) == 3 && len(parts[0]) > 10 && len(parts[1]) > 10
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
