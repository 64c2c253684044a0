// Package catalog holds the read-only view of comics and chapters the unlock engine needs.
package catalog

import (
	"errors"
	"time"
)

var ErrChapterNotFound = errors.New("chapter not found")

// Chapter carries the pricing attributes of a chapter together with its comic's free allowance.
type Chapter struct {
	ID           int64
	ComicID      int64
	Title        string
	UnlockCost   int64
	IsFree       bool
	PublishedAt  time.Time
	FreeChapters int
}

// Pricing is the only catalog field set the credits service may change.
type Pricing struct {
	UnlockCost int64 `json:"unlock_cost" validate:"min=0,max=1000000"`
	IsFree     bool  `json:"is_free"`
}
