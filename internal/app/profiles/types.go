package profiles

import "io"

// Optional is a tri-state field used to distinguish:
// - unspecified (omitted)
// - specified as null
// - specified with a value
type Optional[T any] struct {
	specified bool
	isNull    bool
	value     T
}

func Unspecified[T any]() Optional[T] { return Optional[T]{} }
func Null[T any]() Optional[T]        { return Optional[T]{specified: true, isNull: true} }
func Some[T any](v T) Optional[T]     { return Optional[T]{specified: true, value: v} }

func (o Optional[T]) IsSpecified() bool { return o.specified }
func (o Optional[T]) IsNull() bool      { return o.specified && o.isNull }
func (o Optional[T]) Value() T          { return o.value }

type CreateInput struct {
	Name        string
	Position    string
	Bio         string
	Email       string
	GithubURL   *string
	LinkedInURL *string
}

type UpdateInput struct {
	Name     Optional[string] // cannot be null
	Position Optional[string] // cannot be null
	Bio      Optional[string] // cannot be null
	Email    Optional[string] // cannot be null

	GithubURL   Optional[string]
	LinkedInURL Optional[string]
	// ImageURL may only be set to null, which removes the image. New images
	// arrive as an ImageUpload.
	ImageURL Optional[string]
}

// ImageUpload is a profile picture handed to the object store as-is.
type ImageUpload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}
