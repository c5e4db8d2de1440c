package intake

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Preview is the locally displayable copy of an uploaded image.
type Preview struct {
	MediaType string
	Data      []byte
	CreatedAt time.Time
}

// Previews is a process-local registry of display references. Every Put hands
// out a fresh handle; handles stay resolvable until released.
type Previews struct {
	mu    sync.RWMutex
	items map[string]Preview
}

func NewPreviews() *Previews {
	return &Previews{items: make(map[string]Preview)}
}

// Put stores a copy of data and returns its handle.
func (p *Previews) Put(mediaType string, data []byte) string {
	handle := uuid.NewString()
	p.mu.Lock()
	p.items[handle] = Preview{
		MediaType: mediaType,
		Data:      append([]byte(nil), data...),
		CreatedAt: time.Now(),
	}
	p.mu.Unlock()
	return handle
}

// Get resolves a handle.
func (p *Previews) Get(handle string) (Preview, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	item, ok := p.items[handle]
	return item, ok
}

// Release invalidates a handle. Unknown handles are ignored.
func (p *Previews) Release(handle string) bool {
	if handle == "" {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.items[handle]; !ok {
		return false
	}
	delete(p.items, handle)
	return true
}

// Len reports the number of live handles.
func (p *Previews) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.items)
}
