// Package session tracks the two uploaded images of one user and the
// lifecycle of the generation run that uses them.
package session

import (
	"context"
	"sync"
	"time"

	"idphoto/internal/intake"
	"idphoto/internal/recolor"
)

// MsgUploadBoth is recorded when generation is requested before both images
// are ready.
const MsgUploadBoth = "Please upload both the source photo and the color template."

// State is the processing state of a session.
type State int

const (
	Idle State = iota
	Running
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Running:
		return "RUNNING"
	case Succeeded:
		return "SUCCEEDED"
	case Failed:
		return "FAILED"
	default:
		return "IDLE"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Recolorer is the orchestrator as seen by a session.
type Recolorer interface {
	Recolor(ctx context.Context, source, template string) recolor.Outcome
}

// Releaser invalidates display references that a session drops.
type Releaser interface {
	Release(img intake.EncodedImage)
}

// View is a point-in-time copy of a session.
type View struct {
	ID          string
	State       State
	Source      intake.EncodedImage
	Template    intake.EncodedImage
	Result      string
	Error       string
	CanGenerate bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Session holds the image slots and the state machine. At most one
// generation is in flight per session: Generate and Start refuse to begin
// while the state is Running.
type Session struct {
	id        string
	recolorer Recolorer
	releaser  Releaser
	now       func() time.Time

	mu        sync.Mutex
	source    intake.EncodedImage
	template  intake.EncodedImage
	state     State
	result    string
	errMsg    string
	epoch     uint64
	createdAt time.Time
	updatedAt time.Time
	seenAt    time.Time
	closed    bool
}

// New creates an idle session. releaser may be nil.
func New(id string, recolorer Recolorer, releaser Releaser) *Session {
	now := time.Now()
	return &Session{
		id:        id,
		recolorer: recolorer,
		releaser:  releaser,
		now:       time.Now,
		createdAt: now,
		updatedAt: now,
		seenAt:    now,
	}
}

func (s *Session) ID() string { return s.id }

// SetSource replaces the source image wholesale. Images that are not ready
// are ignored, and so is everything once the session is closed.
func (s *Session) SetSource(img intake.EncodedImage) bool {
	return s.set(&s.source, img)
}

// SetTemplate replaces the template image wholesale.
func (s *Session) SetTemplate(img intake.EncodedImage) bool {
	return s.set(&s.template, img)
}

// ClearSource empties the source slot and discards any stored result. The
// processing state is left as is.
func (s *Session) ClearSource() {
	s.set(&s.source, intake.EncodedImage{})
}

// ClearTemplate empties the template slot and discards any stored result.
func (s *Session) ClearTemplate() {
	s.set(&s.template, intake.EncodedImage{})
}

func (s *Session) set(slot *intake.EncodedImage, img intake.EncodedImage) bool {
	if img != (intake.EncodedImage{}) && !img.Ready() {
		return false
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	previous := *slot
	*slot = img
	s.result = ""
	s.epoch++
	s.updatedAt = s.now()
	s.seenAt = s.updatedAt
	s.mu.Unlock()

	if s.releaser != nil && previous.Display != img.Display {
		s.releaser.Release(previous)
	}
	return true
}

// CanGenerate reports whether Generate would start a run.
func (s *Session) CanGenerate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canGenerateLocked()
}

func (s *Session) canGenerateLocked() bool {
	return s.source.Ready() && s.template.Ready() && s.state != Running
}

// Generate runs the orchestrator synchronously. It returns false without
// doing anything when an image is missing or a run is already in flight.
func (s *Session) Generate(ctx context.Context) bool {
	source, template, epoch, ok := s.begin()
	if !ok {
		return false
	}
	s.finish(epoch, s.recolorer.Recolor(ctx, source, template))
	return true
}

// Start is Generate on a separate goroutine. done is closed once the session
// has left Running; it is nil when the run was not started.
func (s *Session) Start(ctx context.Context) (<-chan struct{}, bool) {
	source, template, epoch, ok := s.begin()
	if !ok {
		return nil, false
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.finish(epoch, s.recolorer.Recolor(ctx, source, template))
	}()
	return done, true
}

func (s *Session) begin() (string, string, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Running {
		return "", "", 0, false
	}
	if !s.source.Ready() || !s.template.Ready() {
		s.errMsg = MsgUploadBoth
		s.updatedAt = s.now()
		return "", "", 0, false
	}
	s.state = Running
	s.result = ""
	s.errMsg = ""
	s.updatedAt = s.now()
	s.seenAt = s.updatedAt
	return s.source.Transport, s.template.Transport, s.epoch, true
}

// finish leaves Running. A result produced for an image pair that has since
// been replaced or cleared is dropped.
func (s *Session) finish(epoch uint64, out recolor.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if out.OK() {
		s.state = Succeeded
		if epoch == s.epoch {
			s.result = out.Image()
		}
	} else {
		s.state = Failed
		s.errMsg = out.Message()
	}
	s.updatedAt = s.now()
	s.seenAt = s.updatedAt
}

// Snapshot copies the current state.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		ID:          s.id,
		State:       s.state,
		Source:      s.source,
		Template:    s.template,
		Result:      s.result,
		Error:       s.errMsg,
		CanGenerate: s.canGenerateLocked(),
		CreatedAt:   s.createdAt,
		UpdatedAt:   s.updatedAt,
	}
}

// Touch marks the session as in use without changing it. Idle sweeping
// counts from the later of the last change and the last touch.
func (s *Session) Touch() {
	s.mu.Lock()
	s.seenAt = s.now()
	s.mu.Unlock()
}

// Close releases both display references. A closed session accepts no more
// images.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	source, template := s.source, s.template
	s.source, s.template = intake.EncodedImage{}, intake.EncodedImage{}
	s.result = ""
	s.epoch++
	s.mu.Unlock()
	if s.releaser != nil {
		s.releaser.Release(source)
		s.releaser.Release(template)
	}
}

func (s *Session) idleSince() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seenAt.After(s.updatedAt) {
		return s.seenAt, s.state == Running
	}
	return s.updatedAt, s.state == Running
}
