package id

import (
	"strings"

	"github.com/google/uuid"
)

// New returns prefix_<uuid> with the dashes removed, e.g. run_3f2a...
// An empty prefix yields the bare identifier.
func New(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return raw
	}
	return prefix + "_" + raw
}
