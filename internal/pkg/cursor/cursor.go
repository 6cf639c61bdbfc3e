// Package cursor implements the opaque pagination cursors used by store
// listings: a base64-url-encoded (orderedKey, tieBreakerID) tuple scanned
// with strict less-than ordering.
package cursor

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Cursor is the decoded position of a paginated scan.
type Cursor struct {
	Key time.Time `json:"k"`
	ID  uuid.UUID `json:"id"`
}

// Encode serializes a cursor position.
func Encode(key time.Time, id uuid.UUID) string {
	data, _ := json.Marshal(Cursor{Key: key.UTC(), ID: id})
	return base64.RawURLEncoding.EncodeToString(data)
}

// Decode parses an opaque cursor. An empty string is not an error; callers
// treat it as "start from the top".
func Decode(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("cursor: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("cursor: %w", err)
	}
	if c.ID == uuid.Nil || c.Key.IsZero() {
		return nil, fmt.Errorf("cursor: missing key or id")
	}
	return &c, nil
}
