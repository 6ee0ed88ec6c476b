package httpapi

import (
	"context"

	"github.com/campus-tech-club/roster-api/internal/domain"
)

type subjectKey struct{}

// WithSubject records the authenticated admin on ctx.
func WithSubject(ctx context.Context, sub domain.SubjectID) context.Context {
	return context.WithValue(ctx, subjectKey{}, sub)
}

func SubjectFromContext(ctx context.Context) (domain.SubjectID, bool) {
	v, ok := ctx.Value(subjectKey{}).(domain.SubjectID)
	return v, ok && v != ""
}
