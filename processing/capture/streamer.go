package capture

import (
	"errors"
	"fmt"
	"image"
)

var (
	ErrDeviceUnavailable = errors.New("device unavailable")
	ErrReadFailed        = errors.New("frame read failed")
)

// CaptureError reports a failure of the frame source. It ends the run.
type CaptureError struct {
	Source string
	Err    error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture %s: %v", e.Source, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// VideoStreamer produces frames until stopped or the source fails.
// FrameChan is closed when the stream ends; ErrorChan carries at most one
// error and is closed afterwards.
type VideoStreamer interface {
	Start() error
	Stop()
	FrameChan() <-chan image.Image
	ErrorChan() <-chan error
}
