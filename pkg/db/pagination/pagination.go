package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strconv"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 250
)

var ErrInvalidPageToken = errors.New("invalid_page_token")

type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

// Limit clamps the requested page size.
func (p Pagination) Limit() int {
	switch {
	case p.PageSize <= 0:
		return DefaultPageSize
	case p.PageSize > MaxPageSize:
		return MaxPageSize
	default:
		return p.PageSize
	}
}

type Cursor struct {
	ID string `json:"id"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token,omitempty"`
	HasMore       bool   `json:"has_more"`
}

func EncodeCursor(data Cursor) string {
	b, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeCursorID returns the id carried by token, or 0 when token is empty.
func DecodeCursorID(token string) (int64, error) {
	if token == "" {
		return 0, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, ErrInvalidPageToken
	}
	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return 0, ErrInvalidPageToken
	}
	id, err := strconv.ParseInt(cursor.ID, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidPageToken
	}
	return id, nil
}

// Trim cuts a limit+1 result set down to limit and reports the next page.
func Trim[T any](items []T, limit int, idOf func(T) int64) ([]T, PageInfo) {
	if len(items) <= limit {
		return items, PageInfo{}
	}
	items = items[:limit]
	next := EncodeCursor(Cursor{ID: strconv.FormatInt(idOf(items[len(items)-1]), 10)})
	return items, PageInfo{NextPageToken: next, HasMore: true}
}
