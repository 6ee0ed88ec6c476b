package profiles

import (
	"errors"
	"net/mail"
	"net/url"
	"strings"

	"github.com/campus-tech-club/roster-api/internal/app/roster"
	"github.com/campus-tech-club/roster-api/internal/domain"
)

// ValidateProfile checks the required profile fields and the shape of the
// optional links. It returns a *roster.Error with code VALIDATION_ERROR.
func ValidateProfile(p domain.Profile) error {
	for _, f := range []struct{ name, value string }{
		{"name", p.Name},
		{"position", p.Position},
		{"bio", p.Bio},
	} {
		if strings.TrimSpace(f.value) == "" {
			return roster.ValidationError(f.name, "must be non-empty")
		}
	}
	if err := validateEmail(p.Email); err != nil {
		return roster.ValidationError("email", err.Error())
	}
	if err := validateLink(p.GithubURL); err != nil {
		return roster.ValidationError("githubUrl", err.Error())
	}
	if err := validateLink(p.LinkedInURL); err != nil {
		return roster.ValidationError("linkedInUrl", err.Error())
	}
	return nil
}

// Matches reports whether a profile matches a lower-cased search term.
func Matches(p domain.Profile, term string) bool {
	for _, s := range []string{p.Name, p.Position, p.Email} {
		if strings.Contains(strings.ToLower(s), term) {
			return true
		}
	}
	return false
}

func validateEmail(email string) error {
	if email == "" {
		return errors.New("must be non-empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return err
	}
	// Ensure no "Name <email@x>" format sneaks in.
	if addr.Address != email {
		return errors.New("must be a bare email address")
	}
	return nil
}

func validateLink(link *string) error {
	if link == nil {
		return nil
	}
	u, err := url.ParseRequestURI(*link)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("must be an absolute http(s) URL")
	}
	return nil
}

func normalize(p domain.Profile) domain.Profile {
	return p.Normalized()
}
