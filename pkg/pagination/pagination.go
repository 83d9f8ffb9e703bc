package pagination

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

var ErrInvalidCursor = errors.New("invalid cursor")

// Page is one slice of a keyset-paginated listing, newest first.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// Params are the raw inputs taken from the query string.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the (timestamp, id) key of the last row a caller has seen.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// NormalizeLimit clamps limit into [1, MaxLimit], defaulting to DefaultLimit.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer asks for one extra row so Cut can tell whether a next page exists.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// Cut converts rows fetched with LimitWithBuffer into a page, mapping each
// kept row through conv and deriving the next cursor from the last kept row.
func Cut[R, T any](rows []R, limit int, key func(R) Cursor, conv func(R) T) *Page[T] {
	limit = NormalizeLimit(limit)
	page := &Page[T]{}
	if len(rows) > limit {
		rows = rows[:limit]
		page.NextCursor = EncodeCursor(key(rows[limit-1]))
	}
	page.Items = make([]T, 0, len(rows))
	for _, row := range rows {
		page.Items = append(page.Items, conv(row))
	}
	return page
}

// EncodeCursor renders "<unix nanos>.<uuid>" as unpadded URL-safe base64.
func EncodeCursor(c Cursor) string {
	raw := strconv.FormatInt(c.CreatedAt.UnixNano(), 10) + "." + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// ParseCursor returns nil for an empty value and ErrInvalidCursor for anything
// EncodeCursor could not have produced.
func ParseCursor(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	nanos, id, ok := strings.Cut(string(raw), ".")
	if !ok {
		return nil, ErrInvalidCursor
	}
	ts, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	return &Cursor{CreatedAt: time.Unix(0, ts).UTC(), ID: parsed}, nil
}
