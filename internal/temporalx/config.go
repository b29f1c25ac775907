package temporalx

import (
	"strings"
	"time"

	"github.com/yungbote/coursetrack-backend/internal/platform/envutil"
)

type Config struct {
	Address   string
	Namespace string
	TaskQueue string

	ClientCertPath string
	ClientKeyPath  string
	ClientCAPath   string

	DialTimeout    time.Duration
	DialMaxWait    time.Duration
	DialBackoff    time.Duration
	DialBackoffMax time.Duration

	AutoRegisterNamespace bool
	NamespaceRetention    time.Duration
}

// Enabled reports whether a Temporal frontend is configured.
func (c Config) Enabled() bool { return strings.TrimSpace(c.Address) != "" }

func (c Config) mTLS() bool {
	return c.ClientCertPath != "" || c.ClientKeyPath != "" || c.ClientCAPath != ""
}

func LoadConfig() Config {
	retentionDays := envutil.Int("TEMPORAL_NAMESPACE_RETENTION_DAYS", 7)
	if retentionDays < 1 || retentionDays > 365 {
		retentionDays = 7
	}
	return Config{
		Address:   strings.TrimSpace(envutil.String("TEMPORAL_ADDRESS", "")),
		Namespace: strings.TrimSpace(envutil.String("TEMPORAL_NAMESPACE", "coursetrack")),
		TaskQueue: strings.TrimSpace(envutil.String("TEMPORAL_TASK_QUEUE", "coursetrack-sync")),

		ClientCertPath: strings.TrimSpace(envutil.String("TEMPORAL_CLIENT_CERT_PATH", "")),
		ClientKeyPath:  strings.TrimSpace(envutil.String("TEMPORAL_CLIENT_KEY_PATH", "")),
		ClientCAPath:   strings.TrimSpace(envutil.String("TEMPORAL_CLIENT_CA_PATH", "")),

		DialTimeout:    envutil.Duration("TEMPORAL_DIAL_TIMEOUT", 5*time.Second),
		DialMaxWait:    envutil.Duration("TEMPORAL_DIAL_MAX_WAIT", time.Minute),
		DialBackoff:    envutil.Duration("TEMPORAL_DIAL_BACKOFF", 250*time.Millisecond),
		DialBackoffMax: envutil.Duration("TEMPORAL_DIAL_BACKOFF_MAX", 5*time.Second),

		AutoRegisterNamespace: envutil.Bool("TEMPORAL_AUTO_REGISTER_NAMESPACE", false),
		NamespaceRetention:    time.Duration(retentionDays) * 24 * time.Hour,
	}
}
