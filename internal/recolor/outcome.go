package recolor

import (
	"idphoto/internal/domain"
)

// Kind classifies a failed Outcome.
type Kind int

const (
	KindNone Kind = iota
	// KindConfiguration: the credential is missing; no network call was made.
	KindConfiguration
	// KindInput: an image was missing or not decodable.
	KindInput
	// KindTransport: the call itself failed.
	KindTransport
	// KindEmptyResult: the call succeeded but no part carried image data.
	KindEmptyResult
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindInput:
		return "input"
	case KindTransport:
		return "transport"
	case KindEmptyResult:
		return "empty_result"
	default:
		return "none"
	}
}

const (
	MsgMissingKey = "API Key is missing. Please check your configuration."
	MsgNoImage    = "No image data returned from the model."
	MsgFallback   = "Failed to generate image. Please try again."
)

// Outcome is the result of one orchestrator invocation: either a generated
// image data URL or a failure message, never both and never neither.
type Outcome struct {
	image   string
	message string
	kind    Kind
}

// Succeeded builds a success outcome. An empty image cannot be a success and
// yields an empty-result failure instead.
func Succeeded(image string) Outcome {
	if image == "" {
		return Failed(KindEmptyResult, MsgNoImage)
	}
	return Outcome{image: image}
}

// Failed builds a failure outcome. An empty message is replaced by a generic
// one so the caller always has something to show.
func Failed(kind Kind, message string) Outcome {
	if kind == KindNone {
		kind = KindTransport
	}
	if message == "" {
		message = MsgFallback
	}
	return Outcome{message: message, kind: kind}
}

// OK reports whether the outcome carries an image.
func (o Outcome) OK() bool { return o.image != "" }

// Image returns the generated image as a data URL, empty on failure.
func (o Outcome) Image() string { return o.image }

// Message returns the failure message, empty on success.
func (o Outcome) Message() string { return o.message }

// Kind returns the failure class, KindNone on success.
func (o Outcome) Kind() Kind { return o.kind }

// Err converts a failure into an error; nil on success.
func (o Outcome) Err() error {
	if o.OK() {
		return nil
	}
	return &Error{Kind: o.kind, Message: o.message}
}

// Error is the error form of a failed Outcome. It unwraps to the matching
// domain sentinel so callers can use errors.Is.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error {
	switch e.Kind {
	case KindConfiguration:
		return domain.ErrMissingCredentials
	case KindInput:
		return domain.ErrInvalidInput
	case KindEmptyResult:
		return domain.ErrNoImageProduced
	default:
		return domain.ErrProviderFailure
	}
}
