package utils

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateID returns a new random identifier
func GenerateID() string {
	return uuid.New().String()
}

// DerivedID returns a name-based (v5) identifier. The same namespace and
// parts always give the same id.
func DerivedID(namespace uuid.UUID, parts ...string) string {
	return uuid.NewSHA1(namespace, []byte(strings.Join(parts, "|"))).String()
}
