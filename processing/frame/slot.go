// Package frame holds the hand-off primitives shared by the capture and
// analysis loops: a single-slot mailbox for images and a one-shot latch.
package frame

import (
	"image"
	"image/draw"
	"sync/atomic"
	"time"
)

// Frame is an immutable published image. Readers must not modify Image.
type Frame struct {
	Image *image.RGBA
	Seq   uint64
	At    time.Time
}

// Slot is a single-writer, multi-reader mailbox holding the latest frame.
// A Store happens-before every Load that returns the stored frame.
type Slot struct {
	cur atomic.Pointer[Frame]
	seq atomic.Uint64
}

// Store publishes img. The caller hands over ownership and must not touch
// img afterwards.
func (s *Slot) Store(img *image.RGBA) uint64 {
	f := &Frame{Image: img, Seq: s.seq.Add(1), At: time.Now()}
	s.cur.Store(f)
	return f.Seq
}

// Seed publishes img only if nothing has been stored yet.
func (s *Slot) Seed(img *image.RGBA) bool {
	f := &Frame{Image: img, Seq: 1, At: time.Now()}
	if !s.cur.CompareAndSwap(nil, f) {
		return false
	}
	s.seq.CompareAndSwap(0, 1)
	return true
}

// Load returns the current frame, or nil when the slot is empty.
func (s *Slot) Load() *Frame {
	return s.cur.Load()
}

// Snapshot returns a private copy of the current image, or nil.
func (s *Slot) Snapshot() *image.RGBA {
	f := s.cur.Load()
	if f == nil {
		return nil
	}
	return Clone(f.Image)
}

// Clone copies any image into a fresh RGBA with origin at (0,0).
func Clone(src image.Image) *image.RGBA {
	if src == nil {
		return nil
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
