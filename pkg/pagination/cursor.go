package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Direction is the sort order carried by a cursor.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Cursor is the canonical, opaque grid-pagination token (pre-encoding) with
// short field names to minimize payload size. It is serialized to minified
// JSON and encoded with URL-safe base64.
//
// Fields:
//   - v:   version of the cursor schema
//   - sid: session ID
//   - dv:  dataset version snapshot; a mismatch invalidates the cursor
//   - off: row offset from the start of the filtered result
//   - ps:  page size in rows
//   - sf:  sort field (empty = ingestion order)
//   - sd:  sort direction when sf is set
//   - iat: issued-at timestamp (unix seconds)
type Cursor struct {
	V   int       `json:"v"`
	Sid string    `json:"sid"`
	Dv  int64     `json:"dv"`
	Off int       `json:"off"`
	Ps  int       `json:"ps"`
	Sf  string    `json:"sf,omitempty"`
	Sd  Direction `json:"sd,omitempty"`
	Iat int64     `json:"iat"`
}

// Encode serializes and encodes the cursor as URL-safe base64 (without padding).
func Encode(c Cursor) (string, error) {
	if err := validate(&c); err != nil {
		return "", err
	}
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Decode decodes a URL-safe base64 token and parses the JSON cursor.
func Decode(token string) (*Cursor, error) {
	t := strings.TrimSpace(token)
	if t == "" {
		return nil, errors.New("cursor: empty token")
	}
	data, err := base64.RawURLEncoding.DecodeString(t)
	if err != nil {
		return nil, fmt.Errorf("cursor: invalid base64: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("cursor: invalid json: %w", err)
	}
	if err := validate(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// validate performs structural checks and defaulting.
func validate(c *Cursor) error {
	if c.V <= 0 {
		c.V = 1
	}
	if c.Iat == 0 {
		c.Iat = time.Now().Unix()
	}
	if strings.TrimSpace(c.Sid) == "" {
		return errors.New("cursor: sid (session id) required")
	}
	if c.Dv < 0 {
		return errors.New("cursor: dv must be >= 0")
	}
	if c.Off < 0 {
		return errors.New("cursor: off must be >= 0")
	}
	if c.Ps <= 0 {
		return errors.New("cursor: ps must be > 0")
	}
	switch c.Sd {
	case "", Asc, Desc:
		// ok
	default:
		return fmt.Errorf("cursor: invalid direction %q", string(c.Sd))
	}
	return nil
}

// NextOffset computes the next offset after returning n rows.
func NextOffset(curr, n int) int {
	if curr < 0 {
		curr = 0
	}
	if n <= 0 {
		return curr
	}
	return curr + n
}
