package domain

import "time"

// Entry is one record of an ordered roster collection.
//
// DisplayOrder is the entry's position within its collection. At rest (after a
// successful order save) the orders of a collection are exactly 0..N-1.
type Entry[P any] struct {
	ID           EntryID
	DisplayOrder int
	Payload      P

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Profile is the payload shared by the executives and moderators rosters.
type Profile struct {
	Name     string
	Position string
	Bio      string
	Email    string

	// Optional links; nil means unset.
	ImageURL    *string
	GithubURL   *string
	LinkedInURL *string
}

// Clone returns a deep copy of p.
func (p Profile) Clone() Profile {
	out := p
	out.ImageURL = cloneStringPtr(p.ImageURL)
	out.GithubURL = cloneStringPtr(p.GithubURL)
	out.LinkedInURL = cloneStringPtr(p.LinkedInURL)
	return out
}

// CloneProfileEntry deep-copies a profile entry.
func CloneProfileEntry(e Entry[Profile]) Entry[Profile] {
	e.Payload = e.Payload.Clone()
	return e
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
