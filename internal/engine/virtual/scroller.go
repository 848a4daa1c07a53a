package virtual

import (
	"fmt"
	"sync"

	"github.com/xtxerr/streamscope/internal/errors"
)

// Config holds the fixed geometry of a virtualized list.
type Config struct {
	ItemExtent      float64
	ContainerExtent float64
	Overscan        int
}

// Validate checks the geometry.
func (c Config) Validate() error {
	verrs := errors.NewValidationErrors()
	if !(c.ItemExtent > 0) {
		verrs.Add(fmt.Errorf("item extent %v must be positive: %w", c.ItemExtent, errors.ErrInvalidConfig))
	}
	if !(c.ContainerExtent >= 0) {
		verrs.Add(fmt.Errorf("container extent %v must not be negative: %w", c.ContainerExtent, errors.ErrInvalidConfig))
	}
	if c.Overscan < 0 {
		verrs.Add(fmt.Errorf("overscan %d must not be negative: %w", c.Overscan, errors.ErrInvalidConfig))
	}
	return verrs.Err()
}

// Scroller holds the scroll offset of a virtualized list. The offset is
// always kept in [0, max(0, TotalExtent-ContainerExtent)] for the current
// length. It is safe for concurrent use.
type Scroller struct {
	mu     sync.Mutex
	cfg    Config
	length int
	offset float64
}

// NewScroller creates a scroller at offset 0.
func NewScroller(cfg Config) (*Scroller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scroller{cfg: cfg}, nil
}

// SetLength updates the list length and re-clamps the offset.
func (s *Scroller) SetLength(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.length = max(0, n)
	s.offset = s.clamp(s.offset)
}

// Resize updates the container extent and re-clamps the offset.
func (s *Scroller) Resize(containerExtent float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !(containerExtent > 0) {
		containerExtent = 0
	}
	s.cfg.ContainerExtent = containerExtent
	s.offset = s.clamp(s.offset)
}

// ScrollTo sets the offset, clamped. Returns the applied offset.
func (s *Scroller) ScrollTo(offset float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offset = s.clamp(offset)
	return s.offset
}

// ScrollBy moves the offset by delta, clamped. Returns the applied offset.
func (s *Scroller) ScrollBy(delta float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offset = s.clamp(s.offset + delta)
	return s.offset
}

// ScrollRows moves by n rows.
func (s *Scroller) ScrollRows(n int) float64 {
	return s.ScrollBy(float64(n) * s.cfg.ItemExtent)
}

// PageDown moves by one container height.
func (s *Scroller) PageDown() float64 {
	s.mu.Lock()
	page := s.cfg.ContainerExtent
	s.mu.Unlock()
	return s.ScrollBy(page)
}

// PageUp moves back by one container height.
func (s *Scroller) PageUp() float64 {
	s.mu.Lock()
	page := s.cfg.ContainerExtent
	s.mu.Unlock()
	return s.ScrollBy(-page)
}

// ScrollToEnd moves to the last page.
func (s *Scroller) ScrollToEnd() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offset = MaxScroll(s.length, s.cfg.ItemExtent, s.cfg.ContainerExtent)
	return s.offset
}

// Geometry returns the current geometry, including any Resize.
func (s *Scroller) Geometry() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Offset returns the current offset.
func (s *Scroller) Offset() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}

// Window computes the window at the current offset.
func (s *Scroller) Window() Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Compute(s.length, s.offset, s.cfg.ItemExtent, s.cfg.ContainerExtent, s.cfg.Overscan)
}

func (s *Scroller) clamp(offset float64) float64 {
	return ClampScroll(offset, s.length, s.cfg.ItemExtent, s.cfg.ContainerExtent)
}
