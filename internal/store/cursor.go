package store

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// EncodeCursor creates a URL-safe base64-encoded cursor from an insert id
// and row id. Uses RawURLEncoding for safe use in HTTP query parameters.
func EncodeCursor(key string, id int64) string {
	s := fmt.Sprintf("%s|%d", key, id)
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

// decodeCursor parses a base64-encoded cursor into insert id and row id.
// Insert ids may contain '|', so the row id is taken after the last one.
func decodeCursor(cur string) (string, int64, error) {
	b, err := base64.RawURLEncoding.DecodeString(cur)
	if err != nil {
		return "", 0, fmt.Errorf("%w: base64 decode failed", ErrInvalidCursor)
	}

	i := strings.LastIndexByte(string(b), '|')
	if i < 0 {
		return "", 0, fmt.Errorf("%w: missing separator", ErrInvalidCursor)
	}
	key, idStr := string(b[:i]), string(b[i+1:])

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("%w: invalid id", ErrInvalidCursor)
	}

	return key, id, nil
}
