package storage

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ValidateCollectionName rejects names Qdrant would refuse.
func ValidateCollectionName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	if len(name) > 255 {
		return fmt.Errorf("%w: name longer than 255 characters", ErrInvalidName)
	}
	if strings.ContainsAny(name, "/\\:*?\"<>|\x00") {
		return fmt.Errorf("%w: %q contains a reserved character", ErrInvalidName, name)
	}
	return nil
}

// NumericID reports the integer value of a point ID, if it is numeric.
func NumericID(id string) (uint64, bool) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// sessionPointID maps an arbitrary session identifier to a stable UUID point ID.
func sessionPointID(sessionID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("chat-session:"+sessionID)).String()
}
