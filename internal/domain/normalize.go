package domain

import "strings"

// NormalizeHumanName trims leading/trailing whitespace and collapses internal whitespace runs.
// It is used for names and position titles.
func NormalizeHumanName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TrimOptional trims an optional text field. Blank values become nil.
func TrimOptional(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}

// Normalized returns p with its text fields cleaned up the way they are stored.
// ImageURL is managed by the image upload flow and left untouched.
func (p Profile) Normalized() Profile {
	p.Name = NormalizeHumanName(p.Name)
	p.Position = NormalizeHumanName(p.Position)
	p.Bio = strings.TrimSpace(p.Bio)
	p.Email = strings.TrimSpace(p.Email)
	p.GithubURL = TrimOptional(p.GithubURL)
	p.LinkedInURL = TrimOptional(p.LinkedInURL)
	return p
}
