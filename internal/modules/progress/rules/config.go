package rules

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/coursetrack-backend/internal/platform/envutil"
)

// Thresholds are the percentage cut-offs that complete percentage-driven kinds.
// A zero threshold disables percentage completion for that kind.
type Thresholds struct {
	VideoPercent    float64 `yaml:"video_completion_percent"`
	AudioPercent    float64 `yaml:"audio_completion_percent"`
	DocumentPercent float64 `yaml:"document_completion_percent"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		VideoPercent:    0,
		AudioPercent:    0,
		DocumentPercent: 80,
	}
}

type fileConfig struct {
	Thresholds *Thresholds `yaml:"thresholds"`
}

// LoadThresholds starts from the defaults, applies the YAML file at path (if any) and
// then the RULES_* environment overrides.
func LoadThresholds(path string) (Thresholds, error) {
	th := DefaultThresholds()
	path = strings.TrimSpace(path)
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return th, fmt.Errorf("read rules config: %w", err)
		}
		// keys missing from the file keep their default
		fc := fileConfig{Thresholds: &th}
		if err := yaml.Unmarshal(raw, &fc); err != nil {
			return DefaultThresholds(), fmt.Errorf("parse rules config: %w", err)
		}
	}
	th.VideoPercent = envutil.Float("RULES_VIDEO_COMPLETION_PERCENT", th.VideoPercent)
	th.AudioPercent = envutil.Float("RULES_AUDIO_COMPLETION_PERCENT", th.AudioPercent)
	th.DocumentPercent = envutil.Float("RULES_DOCUMENT_COMPLETION_PERCENT", th.DocumentPercent)
	if err := th.Validate(); err != nil {
		return th, err
	}
	return th, nil
}

func (t Thresholds) Validate() error {
	for name, v := range map[string]float64{
		"video_completion_percent":    t.VideoPercent,
		"audio_completion_percent":    t.AudioPercent,
		"document_completion_percent": t.DocumentPercent,
	} {
		if v < 0 || v > 100 {
			return fmt.Errorf("%s must be within 0..100, got %v", name, v)
		}
	}
	return nil
}
