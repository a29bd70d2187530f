package domain

import "time"

// TargetName identifies one of the configured model backends.
type TargetName string

const (
	TargetSmallLocal    TargetName = "small_local"
	TargetLargeLocal    TargetName = "large_local"
	TargetCloudFallback TargetName = "cloud_fallback"
)

// FallbackOrder is the escalation chain tried on dispatch. The router never
// retries a failed target within a request; it moves to the next entry.
var FallbackOrder = []TargetName{TargetSmallLocal, TargetLargeLocal, TargetCloudFallback}

// ModelTarget describes one model backend. Configured at startup, immutable
// thereafter.
type ModelTarget struct {
	Name       TargetName    `json:"name"`
	Endpoint   string        `json:"endpoint"`
	Model      string        `json:"model"`
	APIKey     string        `json:"-"`
	Timeout    time.Duration `json:"timeout"`
	MaxContext int           `json:"max_context"`
}
