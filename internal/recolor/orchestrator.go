// Package recolor turns a source portrait and a color template into a single
// generation request and normalizes the answer into an Outcome.
package recolor

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"idphoto/internal/infra"
	"idphoto/internal/media"
	"idphoto/internal/providers/genai"
)

// Instruction is sent as the first part of every request. It refers to the
// two image parts as "first" and "second", so part order is fixed.
const Instruction = "This is an ID photo editing task. \n" +
	"First Image: Source portrait.\n" +
	"Second Image: Reference template.\n" +
	"Task: Replace the background color of the first image to exactly match the solid background color of the second image. " +
	"Ensure the edges around the hair and shoulders are clean and professional. " +
	"Preserve the person's face, skin tone, and clothing details from the first image exactly. " +
	"Do not change the person's identity or facial features. " +
	"Output only the modified ID photo."

// Generator is the external generation capability.
type Generator interface {
	GenerateContent(ctx context.Context, req genai.Request) (*genai.Response, error)
	HasCredentials() bool
}

// Option tunes an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the fallback logger used when the context carries none.
func WithLogger(l *infra.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTimeout bounds the generation call. Zero leaves the call's own timeout
// behaviour in charge.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithAttempts allows extra attempts after a transport failure. Empty results
// are never retried. The default is a single attempt.
func WithAttempts(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.attempts = n
		}
	}
}

// WithFixedInputType declares every inline input part as mediaType instead of
// the type parsed from its data url.
func WithFixedInputType(mediaType string) Option {
	return func(o *Orchestrator) {
		o.fixedInputType = media.Normalize(mediaType)
	}
}

// WithDeclaredOutputType labels the result with the media type the service
// declared instead of always using PNG.
func WithDeclaredOutputType(enabled bool) Option {
	return func(o *Orchestrator) {
		o.declaredOutputType = enabled
	}
}

// Orchestrator is stateless: images in, Outcome out. It does not serialize
// callers; that is the session's job.
type Orchestrator struct {
	gen                Generator
	logger             *infra.Logger
	timeout            time.Duration
	attempts           int
	fixedInputType     string
	declaredOutputType bool
}

func New(gen Generator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gen:      gen,
		logger:   infra.NopLogger(),
		attempts: 1,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Recolor runs the pipeline for one image pair. It always returns exactly one
// Outcome; errors and panics from the generator are converted, never raised.
func (o *Orchestrator) Recolor(ctx context.Context, source, template string) (out Outcome) {
	start := time.Now()
	logger := o.loggerFor(ctx)
	defer func() {
		if r := recover(); r != nil {
			out = Failed(KindTransport, fmt.Sprintf("generation failed: %v", r))
		}
		observeOutcome(out, time.Since(start))
		var ev *zerolog.Event
		if out.OK() {
			ev = logger.Info()
		} else {
			ev = logger.Warn().Str("kind", out.Kind().String()).Str("error", out.Message())
		}
		ev.Dur("duration", time.Since(start)).Msg("recolor: finished")
	}()

	if o.gen == nil || !o.gen.HasCredentials() {
		return Failed(KindConfiguration, MsgMissingKey)
	}

	src, err := o.normalize("source", source)
	if err != nil {
		return Failed(KindInput, err.Error())
	}
	tpl, err := o.normalize("template", template)
	if err != nil {
		return Failed(KindInput, err.Error())
	}

	req := BuildRequest(src, tpl)
	logger.Debug().
		Int("source_bytes", len(src.Data)).
		Int("template_bytes", len(tpl.Data)).
		Msg("recolor: invoking generation")

	resp, err := o.invoke(ctx, req)
	if err != nil {
		return Failed(KindTransport, err.Error())
	}

	img, ok := resp.FirstImage()
	if !ok {
		logger.Debug().Strs("model_text", resp.Texts()).Msg("recolor: response carried no image")
		msg := MsgNoImage
		if resp != nil && resp.PromptFeedback != "" {
			msg = fmt.Sprintf("%s (blocked: %s)", MsgNoImage, resp.PromptFeedback)
		}
		return Failed(KindEmptyResult, msg)
	}
	return Succeeded(o.packageImage(img))
}

// BuildRequest assembles the request parts in their fixed order: instruction,
// source, template.
func BuildRequest(source, template genai.ImagePart) genai.Request {
	return genai.Request{Parts: []genai.Part{
		genai.TextPart{Text: Instruction},
		source,
		template,
	}}
}

func (o *Orchestrator) normalize(label, encoded string) (genai.ImagePart, error) {
	d, err := media.ParseDataURL(encoded)
	if err != nil {
		return genai.ImagePart{}, fmt.Errorf("%s image is missing or malformed", label)
	}
	if d.MediaType != "" && !media.Supported(d.MediaType) {
		return genai.ImagePart{}, fmt.Errorf("%s image has unsupported type %s", label, d.MediaType)
	}
	decoded, err := d.Decode()
	if err != nil || len(decoded) == 0 {
		return genai.ImagePart{}, fmt.Errorf("%s image is not valid base64", label)
	}

	mediaType := d.MediaType
	if o.fixedInputType != "" {
		mediaType = o.fixedInputType
	}
	if mediaType == "" {
		mediaType = media.JPEG
	}
	// The decoder tolerates line breaks, so the payload is re-encoded rather
	// than forwarded as received.
	return genai.ImagePart{MediaType: mediaType, Data: base64.StdEncoding.EncodeToString(decoded)}, nil
}

func (o *Orchestrator) invoke(ctx context.Context, req genai.Request) (*genai.Response, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	var lastErr error
	for attempt := 1; attempt <= o.attempts; attempt++ {
		resp, err := o.gen.GenerateContent(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil || errors.Is(err, genai.ErrMissingAPIKey) {
			break
		}
		if attempt < o.attempts {
			o.loggerFor(ctx).Warn().Err(err).Int("attempt", attempt).Msg("recolor: generation failed, retrying")
		}
	}
	return nil, lastErr
}

func (o *Orchestrator) packageImage(img genai.ImagePart) string {
	mediaType := media.PNG
	if o.declaredOutputType && media.Normalize(img.MediaType) != "" {
		mediaType = img.MediaType
	}
	return media.DataURL{Payload: img.Data}.WithMediaType(mediaType).String()
}

func (o *Orchestrator) loggerFor(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return o.logger
}
