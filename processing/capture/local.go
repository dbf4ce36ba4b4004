package capture

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"sync"
	"time"
)

// LocalFileStreamer replays a video file through ffmpeg at the target FPS.
// The stream ends cleanly at end of file.
type LocalFileStreamer struct {
	stopOnce sync.Once

	path      string
	targetFPS uint

	width  int
	height int

	cmd       *exec.Cmd
	frameChan chan image.Image
	errChan   chan error
	stopChan  chan struct{}
}

func NewLocalStreamer(path string, targetFPS uint) (*LocalFileStreamer, error) {
	w, h, err := probeVideoDimensions(path)
	if err != nil {
		return nil, &CaptureError{Source: path, Err: fmt.Errorf("%w: probe video: %v", ErrDeviceUnavailable, err)}
	}

	return newLocalStreamer(path, targetFPS, w, h), nil
}

func newLocalStreamer(path string, targetFPS uint, width, height int) *LocalFileStreamer {
	return &LocalFileStreamer{
		path:      path,
		targetFPS: targetFPS,
		width:     width,
		height:    height,
		frameChan: make(chan image.Image, 10),
		errChan:   make(chan error, 1),
		stopChan:  make(chan struct{}),
	}
}

func (ls *LocalFileStreamer) Start() error {
	args := []string{
		"-i", ls.path,
		"-f", "image2pipe",
		"-pix_fmt", "rgba",
		"-vcodec", "rawvideo",
		"-",
	}

	ls.cmd = exec.Command("ffmpeg", args...)

	stdout, err := ls.cmd.StdoutPipe()
	if err != nil {
		return &CaptureError{Source: ls.path, Err: err}
	}

	if err := ls.cmd.Start(); err != nil {
		return &CaptureError{Source: ls.path, Err: fmt.Errorf("%w: ffmpeg start: %v", ErrDeviceUnavailable, err)}
	}

	go ls.readFrames(stdout)

	return nil
}

const (
	bytesPerPixel = 4
	standardFps   = 30
)

func (ls *LocalFileStreamer) readFrames(stdout io.ReadCloser) {
	defer close(ls.frameChan)
	defer close(ls.errChan)
	defer stdout.Close()
	defer ls.stopCmdOut()

	frameSize := ls.width * ls.height * bytesPerPixel
	buffer := make([]byte, frameSize)

	if ls.targetFPS == 0 {
		ls.targetFPS = standardFps
	}

	frameDuration := time.Second / time.Duration(ls.targetFPS)
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ls.stopChan:
			return

		case <-ticker.C:
			_, err := io.ReadFull(stdout, buffer)
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return
			}
			if err != nil {
				select {
				case <-ls.stopChan:
				default:
					ls.errChan <- &CaptureError{Source: ls.path, Err: fmt.Errorf("%w: %v", ErrReadFailed, err)}
				}
				return
			}

			pixelData := make([]byte, len(buffer))
			copy(pixelData, buffer)

			img := &image.RGBA{
				Pix:    pixelData,
				Stride: ls.width * bytesPerPixel,
				Rect:   image.Rect(0, 0, ls.width, ls.height),
			}

			select {
			case ls.frameChan <- img:
			case <-ls.stopChan:
				return
			}
		}
	}
}

func (ls *LocalFileStreamer) stopCmdOut() {
	if ls.cmd != nil && ls.cmd.Process != nil {
		ls.cmd.Process.Kill()
		ls.cmd.Wait()
	}
}

func (ls *LocalFileStreamer) Stop() {
	ls.stopOnce.Do(func() {
		close(ls.stopChan)
	})
}

func (ls *LocalFileStreamer) FrameChan() <-chan image.Image {
	return ls.frameChan
}

func (ls *LocalFileStreamer) ErrorChan() <-chan error {
	return ls.errChan
}

type probeData struct {
	Streams []struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"streams"`
}

func probeVideoDimensions(path string) (int, int, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "json",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		return 0, 0, err
	}

	return parseProbe(output)
}

func parseProbe(output []byte) (int, int, error) {
	var data probeData
	if err := json.Unmarshal(output, &data); err != nil {
		return 0, 0, err
	}

	if len(data.Streams) == 0 {
		return 0, 0, fmt.Errorf("no video streams found")
	}

	s := data.Streams[0]
	if s.Width <= 0 || s.Height <= 0 {
		return 0, 0, fmt.Errorf("invalid video dimensions %dx%d", s.Width, s.Height)
	}

	return s.Width, s.Height, nil
}
