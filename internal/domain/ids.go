package domain

// SubjectID is the authenticated subject extracted from JWT claims (typically "sub").
// We model it as an opaque identifier: its format is controlled by the IdP.
type SubjectID string

// EntryID is the identifier of a roster entry. Immutable after creation.
type EntryID string

// CollectionName names one ordered roster (the backing table).
type CollectionName string

const (
	CollectionExecutives CollectionName = "executives"
	CollectionModerators CollectionName = "moderators"
)

// Collections lists every roster the service manages.
func Collections() []CollectionName {
	return []CollectionName{CollectionExecutives, CollectionModerators}
}

// ParseCollectionName returns the known collection matching s.
func ParseCollectionName(s string) (CollectionName, bool) {
	for _, c := range Collections() {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}
