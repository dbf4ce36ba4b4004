package capture

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// DeviceStreamer reads frames from a local camera through OpenCV.
type DeviceStreamer struct {
	stopOnce sync.Once

	index     int
	width     int
	height    int
	targetFPS uint

	frameChan chan image.Image
	errChan   chan error
	stopChan  chan struct{}
}

// NewDeviceStreamer opens nothing until Start. Zero width or height keeps
// the device default.
func NewDeviceStreamer(index int, targetFPS uint, width, height int) *DeviceStreamer {
	return &DeviceStreamer{
		index:     index,
		width:     width,
		height:    height,
		targetFPS: targetFPS,

		frameChan: make(chan image.Image),
		errChan:   make(chan error, 1),
		stopChan:  make(chan struct{}),
	}
}

func (ds *DeviceStreamer) source() string {
	return fmt.Sprintf("device %d", ds.index)
}

func (ds *DeviceStreamer) Start() error {
	cam, err := gocv.OpenVideoCapture(ds.index)
	if err != nil {
		return &CaptureError{Source: ds.source(), Err: fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)}
	}
	if !cam.IsOpened() {
		cam.Close()
		return &CaptureError{Source: ds.source(), Err: ErrDeviceUnavailable}
	}

	if ds.width > 0 && ds.height > 0 {
		cam.Set(gocv.VideoCaptureFrameWidth, float64(ds.width))
		cam.Set(gocv.VideoCaptureFrameHeight, float64(ds.height))
	}
	if ds.targetFPS > 0 {
		cam.Set(gocv.VideoCaptureFPS, float64(ds.targetFPS))
	}

	go ds.readLoop(cam)

	return nil
}

func (ds *DeviceStreamer) readLoop(cam *gocv.VideoCapture) {
	defer close(ds.frameChan)
	defer close(ds.errChan)
	defer cam.Close()

	mat := gocv.NewMat()
	defer mat.Close()

	for {
		select {
		case <-ds.stopChan:
			return
		default:
		}

		if ok := cam.Read(&mat); !ok || mat.Empty() {
			select {
			case <-ds.stopChan:
			default:
				ds.errChan <- &CaptureError{Source: ds.source(), Err: ErrReadFailed}
			}
			return
		}

		img, err := mat.ToImage()
		if err != nil {
			ds.errChan <- &CaptureError{Source: ds.source(), Err: fmt.Errorf("convert frame: %w", err)}
			return
		}

		select {
		case ds.frameChan <- img:
		case <-ds.stopChan:
			return
		}
	}
}

// Stop ends the read loop; the device is released when the loop exits.
func (ds *DeviceStreamer) Stop() {
	ds.stopOnce.Do(func() {
		close(ds.stopChan)
	})
}

func (ds *DeviceStreamer) FrameChan() <-chan image.Image { return ds.frameChan }
func (ds *DeviceStreamer) ErrorChan() <-chan error       { return ds.errChan }
