package xid

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a random document id with a readable prefix, e.g.
// "entry-3f0c9b1e8a4d4b6f9d2e7c1a5b8e0f42".
func New(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return id
	}
	return prefix + "-" + id
}
