package model

import (
	"strings"
	"time"
)

// Well-known marker names written by the hardware probe.
const (
	MarkerSSHKey       = "ssh_key_verified"
	MarkerBMP280       = "bmp280_verified"
	MarkerNeoSlider    = "neoslider_verified"
	MarkerBMP280Script = "bmp280_script_verified"
	MarkerAllPassed    = "all_tests_passed"
)

// Marker is persisted evidence that a hardware check passed locally.
//
// Nothing ties a marker to a specific run: a hand-written file with the same
// name is indistinguishable from one written by the probe.
type Marker struct {
	Name       string    `json:"name" yaml:"name"`
	Path       string    `json:"path" yaml:"path"`
	VerifiedAt time.Time `json:"verified_at" yaml:"verified_at"`
	Body       string    `json:"body" yaml:"body"`
	ModTime    time.Time `json:"mod_time" yaml:"mod_time"`
}

// Fields reads key=value tokens out of the body, e.g. "T=21.3C P=1013.2hPa".
func (m Marker) Fields() map[string]string {
	out := make(map[string]string)
	for _, tok := range strings.Fields(m.Body) {
		k, v, ok := strings.Cut(tok, "=")
		if !ok || k == "" {
			continue
		}
		out[k] = v
	}
	return out
}
