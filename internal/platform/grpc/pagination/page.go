// Package pagination normalizes page sizes and opaque page tokens for list RPCs.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// PageSizeConfig configures page size normalization.
type PageSizeConfig struct {
	Default int
	Max     int
}

// OrderByConfig configures order_by validation.
type OrderByConfig struct {
	Default string
	Allowed []string
}

// ClampPageSize applies defaults and limits for page sizes.
func ClampPageSize(value int32, cfg PageSizeConfig) int {
	pageSize := int(value)
	if pageSize <= 0 {
		pageSize = cfg.Default
	}
	if cfg.Max > 0 && pageSize > cfg.Max {
		pageSize = cfg.Max
	}
	if pageSize <= 0 {
		pageSize = 1
	}
	return pageSize
}

// NormalizeOrderBy validates order_by and applies defaults.
func NormalizeOrderBy(orderBy string, cfg OrderByConfig) (string, error) {
	orderBy = strings.TrimSpace(orderBy)
	if orderBy == "" {
		return cfg.Default, nil
	}
	for _, allowed := range cfg.Allowed {
		if orderBy == allowed {
			return orderBy, nil
		}
	}
	return "", fmt.Errorf("invalid order_by: %s", orderBy)
}

// Cursor is the decoded form of a page token. Filter and OrderBy are echoed
// so a token cannot be replayed against a different query.
type Cursor struct {
	Offset  int    `json:"o"`
	Filter  string `json:"f,omitempty"`
	OrderBy string `json:"b,omitempty"`
}

// EncodeToken renders c as an opaque URL-safe token.
func EncodeToken(c Cursor) string {
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeToken parses a token produced by EncodeToken. An empty token is the
// first page.
func DecodeToken(token string) (Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Cursor{}, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("decode page token: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return Cursor{}, fmt.Errorf("parse page token: %w", err)
	}
	if c.Offset < 0 {
		return Cursor{}, fmt.Errorf("page token offset must not be negative")
	}
	return c, nil
}

// Matches reports whether c was issued for the given filter and order.
func (c Cursor) Matches(filter, orderBy string) bool {
	return c.Filter == filter && c.OrderBy == orderBy
}
