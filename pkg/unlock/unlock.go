// Package unlock defines chapter entitlements: the outcome of an unlock
// request and the read models derived from the same eligibility rules.
package unlock

import (
	"errors"
	"time"
)

// Outcome is the successful result of an unlock request.
type Outcome string

const (
	OutcomeFree            Outcome = "free"
	OutcomeAlreadyUnlocked Outcome = "already_unlocked"
	OutcomePaid            Outcome = "paid"
)

// Reason explains why a chapter is or is not readable.
type Reason string

const (
	// ReasonFreeFlag is a chapter explicitly marked free.
	ReasonFreeFlag Reason = "free"
	// ReasonFreePosition is a chapter within its comic's free allowance.
	ReasonFreePosition Reason = "free_chapter"
	ReasonUnlocked     Reason = "unlocked"
	ReasonLocked       Reason = "locked"
)

// Readable reports whether the reason grants access.
func (r Reason) Readable() bool {
	return r != ReasonLocked
}

var (
	ErrAlreadyUnlocked     = errors.New("chapter already unlocked")
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// ChapterUnlock is a permanent entitlement. At most one exists per (user, chapter).
type ChapterUnlock struct {
	ID           int64
	UserID       int64
	ChapterID    int64
	CreditsSpent int64
	UnlockedAt   time.Time
}

// Result is returned by an unlock request. Balance is set only for paid unlocks.
type Result struct {
	Outcome      Outcome `json:"outcome"`
	CreditsSpent int64   `json:"credits_spent"`
	Balance      *int64  `json:"balance,omitempty"`
}

// Access is the readability of a chapter for a user.
type Access struct {
	ChapterID  int64  `json:"chapter_id"`
	Readable   bool   `json:"readable"`
	Reason     Reason `json:"reason"`
	UnlockCost int64  `json:"unlock_cost"`
}

// LibraryEntry is an unlocked chapter listed in a user's library.
type LibraryEntry struct {
	ChapterID    int64     `json:"chapter_id"`
	ComicID      int64     `json:"comic_id"`
	Title        string    `json:"title"`
	CreditsSpent int64     `json:"credits_spent"`
	UnlockedAt   time.Time `json:"unlocked_at"`
}
