package httpapi

import (
	"time"

	"github.com/oapi-codegen/nullable"

	"github.com/campus-tech-club/roster-api/internal/app/profiles"
	"github.com/campus-tech-club/roster-api/internal/app/roster"
	"github.com/campus-tech-club/roster-api/internal/domain"
)

type ErrorBody struct {
	Code      string                            `json:"code"`
	Message   string                            `json:"message"`
	Details   nullable.Nullable[map[string]any] `json:"details,omitempty"`
	RequestId nullable.Nullable[string]         `json:"requestId,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type RosterEntry struct {
	EntryId      string    `json:"entryId"`
	DisplayOrder int       `json:"displayOrder"`
	Name         string    `json:"name"`
	Position     string    `json:"position"`
	Bio          string    `json:"bio"`
	Email        string    `json:"email"`
	ImageUrl     *string   `json:"imageUrl"`
	GithubUrl    *string   `json:"githubUrl"`
	LinkedInUrl  *string   `json:"linkedInUrl"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type ListEntriesResponse struct {
	Collection      string        `json:"collection"`
	State           string        `json:"state"`
	HasUnsavedOrder bool          `json:"hasUnsavedOrder"`
	Entries         []RosterEntry `json:"entries"`
}

type EntryResponse struct {
	Entry RosterEntry `json:"entry"`
}

type CreateEntryRequest struct {
	Name        string  `json:"name"`
	Position    string  `json:"position"`
	Bio         string  `json:"bio"`
	Email       string  `json:"email"`
	GithubUrl   *string `json:"githubUrl,omitempty"`
	LinkedInUrl *string `json:"linkedInUrl,omitempty"`
}

// UpdateEntryRequest distinguishes omitted fields from explicit nulls.
type UpdateEntryRequest struct {
	Name        nullable.Nullable[string] `json:"name,omitempty"`
	Position    nullable.Nullable[string] `json:"position,omitempty"`
	Bio         nullable.Nullable[string] `json:"bio,omitempty"`
	Email       nullable.Nullable[string] `json:"email,omitempty"`
	GithubUrl   nullable.Nullable[string] `json:"githubUrl,omitempty"`
	LinkedInUrl nullable.Nullable[string] `json:"linkedInUrl,omitempty"`
	ImageUrl    nullable.Nullable[string] `json:"imageUrl,omitempty"`
}

type StepRequest struct {
	Direction string `json:"direction"`
}

type StepResponse struct {
	Moved   bool          `json:"moved"`
	Entries []RosterEntry `json:"entries"`
}

type MoveRequest struct {
	EntryId  string `json:"entryId"`
	Position *int   `json:"position"`
}

type SaveOrderResponse struct {
	Saved int `json:"saved"`
	ListEntriesResponse
}

func toRosterEntry(e profiles.Entry) RosterEntry {
	p := e.Payload
	return RosterEntry{
		EntryId:      string(e.ID),
		DisplayOrder: e.DisplayOrder,
		Name:         p.Name,
		Position:     p.Position,
		Bio:          p.Bio,
		Email:        p.Email,
		ImageUrl:     p.ImageURL,
		GithubUrl:    p.GithubURL,
		LinkedInUrl:  p.LinkedInURL,
		CreatedAt:    e.CreatedAt.UTC(),
		UpdatedAt:    e.UpdatedAt.UTC(),
	}
}

func toRosterEntries(es []profiles.Entry) []RosterEntry {
	out := make([]RosterEntry, 0, len(es))
	for _, e := range es {
		out = append(out, toRosterEntry(e))
	}
	return out
}

func toListEntriesResponse(s roster.Snapshot[domain.Profile]) ListEntriesResponse {
	return ListEntriesResponse{
		Collection:      string(s.Collection),
		State:           string(s.State),
		HasUnsavedOrder: s.HasUnsavedOrder,
		Entries:         toRosterEntries(s.Entries),
	}
}

func toCreateInput(b CreateEntryRequest) profiles.CreateInput {
	return profiles.CreateInput{
		Name:        b.Name,
		Position:    b.Position,
		Bio:         b.Bio,
		Email:       b.Email,
		GithubURL:   b.GithubUrl,
		LinkedInURL: b.LinkedInUrl,
	}
}

func toOptional(n nullable.Nullable[string]) profiles.Optional[string] {
	if !n.IsSpecified() {
		return profiles.Unspecified[string]()
	}
	if n.IsNull() {
		return profiles.Null[string]()
	}
	v, err := n.Get()
	if err != nil {
		return profiles.Null[string]()
	}
	return profiles.Some(v)
}

func toUpdateInput(b UpdateEntryRequest) profiles.UpdateInput {
	return profiles.UpdateInput{
		Name:        toOptional(b.Name),
		Position:    toOptional(b.Position),
		Bio:         toOptional(b.Bio),
		Email:       toOptional(b.Email),
		GithubURL:   toOptional(b.GithubUrl),
		LinkedInURL: toOptional(b.LinkedInUrl),
		ImageURL:    toOptional(b.ImageUrl),
	}
}
