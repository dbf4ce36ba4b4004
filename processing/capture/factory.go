package capture

import (
	"fmt"

	config "facelens/internal/config"
)

func NewStreamer(t *config.Config) (VideoStreamer, error) {
	switch t.ActiveSource {
	case config.SourceWebcam:
		return NewDeviceStreamer(t.Webcam.DeviceIndex, t.GetFPS(), t.Webcam.Width, t.Webcam.Height), nil
	case config.SourceLocal:
		return NewLocalStreamer(t.Local.Path, t.GetFPS())
	default:
		return nil, fmt.Errorf("unknown source: %s", t.ActiveSource)
	}
}
