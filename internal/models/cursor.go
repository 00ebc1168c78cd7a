package models

import (
	"encoding/base64"
	"encoding/json"
	"time"
)

// Cursor is the keyset position after the last row of a page
type Cursor struct {
	Sort         ProjectSort `json:"s"`
	TrendingDate time.Time   `json:"t,omitempty"`
	StarsCount   int         `json:"c,omitempty"`
	Owner        string      `json:"o"`
	Name         string      `json:"n"`
}

// CursorAfter returns the cursor pointing past project for the given sort
func CursorAfter(project *Project, sort ProjectSort) *Cursor {
	return &Cursor{
		Sort:         sort,
		TrendingDate: project.TrendingDate,
		StarsCount:   project.StarsCount,
		Owner:        project.Owner,
		Name:         project.Name,
	}
}

// Encode returns the opaque token handed to API clients
func (c *Cursor) Encode() string {
	data, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor parses a token produced by Encode
func DecodeCursor(token string) (*Cursor, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, &ValidationError{Field: "cursor", Message: "Malformed cursor"}
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil || c.Owner == "" || c.Name == "" {
		return nil, &ValidationError{Field: "cursor", Message: "Malformed cursor"}
	}
	if _, err := ParseProjectSort(string(c.Sort)); err != nil {
		return nil, err
	}
	return &c, nil
}
