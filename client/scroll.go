package client

import "sync"

// NearBottomThreshold is how close (in logical pixels) the viewport bottom must be to the end
// of the content for the list to follow new messages.
const NearBottomThreshold = 50.0

// ScrollTracker decides whether a message list should auto-scroll when content is appended.
// Call Scrolled on every scroll event and ContentChanged when new messages render.
type ScrollTracker struct {
	mu       sync.Mutex
	offset   float64
	content  float64
	viewport float64
	follow   bool
}

// NewScrollTracker starts pinned to the bottom, which is where a freshly opened chat is.
func NewScrollTracker() *ScrollTracker {
	return &ScrollTracker{follow: true}
}

// Scrolled records the current geometry.
func (t *ScrollTracker) Scrolled(offset, contentHeight, viewportHeight float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.offset, t.content, t.viewport = offset, contentHeight, viewportHeight
	t.follow = t.nearBottom()
}

// NearBottom reports whether the recorded viewport is within the threshold of the end.
func (t *ScrollTracker) NearBottom() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nearBottom()
}

// ShouldAutoScroll reports the state captured before the latest content change.
func (t *ScrollTracker) ShouldAutoScroll() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.follow
}

// ContentChanged records a new content height and returns whether to scroll to the end.
// When it returns true the tracker assumes the scroll happened.
func (t *ScrollTracker) ContentChanged(contentHeight float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	follow := t.follow
	t.content = contentHeight
	if follow {
		t.offset = max(0, contentHeight-t.viewport)
	}
	return follow
}

func (t *ScrollTracker) nearBottom() bool {
	return t.content-(t.offset+t.viewport) <= NearBottomThreshold
}
