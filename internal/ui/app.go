package ui

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"facelens/internal/config"
	log "facelens/internal/log"
	"facelens/internal/ui/cwidget"
	processing "facelens/processing/detector"
)

const (
	statRefresh       = 200 * time.Millisecond
	minIntervalMillis = 50
)

// DetectApp shows the composed [live | annotated] view of a running
// Processor. Closing the window calls stop; the window closes itself when
// the run context ends for any other reason.
type DetectApp struct {
	fyneApp fyne.App
	mainWin fyne.Window

	config     *config.Config
	configPath string
	processor  *processing.Processor
	stop       context.CancelFunc

	videoCanvas    *canvas.Image
	fpsLabel       *widget.Label
	latencyLabel   *widget.Label
	emotionsLabel  *widget.Label
	failuresLabel  *widget.Label
	remainingLabel *widget.Label
}

func CreateApp(p *processing.Processor, cfg *config.Config, configPath string, stop context.CancelFunc) *DetectApp {
	a := app.New()
	w := a.NewWindow(cfg.WindowTitle)

	w.Resize(fyne.NewSize(1500, 600))

	return &DetectApp{
		fyneApp:    a,
		mainWin:    w,
		processor:  p,
		config:     cfg,
		configPath: configPath,
		stop:       stop,
	}
}

// Run blocks on the fyne event loop until the window is closed.
func (a *DetectApp) Run(ctx context.Context) {
	a.videoCanvas = canvas.NewImageFromImage(nil)
	a.videoCanvas.FillMode = canvas.ImageFillContain
	a.videoCanvas.SetMinSize(fyne.NewSize(1280, 480))

	stats := a.processor.Stats()
	a.fpsLabel = widget.NewLabel(formatFPS(stats.FPS))
	a.latencyLabel = widget.NewLabel(formatLatency(stats.Latency))
	a.emotionsLabel = widget.NewLabel(formatEmotions(stats.Distinct))
	a.failuresLabel = widget.NewLabel(formatFailures(stats.Failures))
	a.remainingLabel = widget.NewLabel(formatRemaining(stats.Remaining))
	a.remainingLabel.Wrapping = fyne.TextWrapWord

	videoContainer := container.NewBorder(
		container.NewHBox(
			a.fpsLabel, widget.NewSeparator(),
			a.latencyLabel, widget.NewSeparator(),
			a.emotionsLabel, widget.NewSeparator(),
			a.failuresLabel,
		),
		a.remainingLabel, nil, nil,
		a.videoCanvas,
	)

	split := container.NewHSplit(
		container.NewPadded(a.sidebar()),
		container.NewPadded(videoContainer),
	)
	split.SetOffset(0.2)

	a.mainWin.SetContent(split)

	a.mainWin.SetCloseIntercept(func() {
		log.Info("window closed, stopping")
		a.stop()
	})

	go a.runPlayerLoop(ctx)
	go a.runStatLoop(ctx)
	go func() {
		<-ctx.Done()
		fyne.Do(func() {
			a.mainWin.Close()
		})
	}()

	a.mainWin.CenterOnScreen()
	a.mainWin.ShowAndRun()
}

func (a *DetectApp) sidebar() fyne.CanvasObject {
	settingsLabel := widget.NewLabelWithStyle("Configuration", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})

	intervalInput := cwidget.NewIntInput(
		"Analysis interval",
		"ms",
		int(a.config.AnalysisInterval()/time.Millisecond),
		minIntervalMillis,
		func(ms int) {
			a.config.SetAnalysisInterval(time.Duration(ms) * time.Millisecond)
		},
	)

	saveBtn := widget.NewButtonWithIcon("Save config", theme.DocumentSaveIcon(), func() {
		if err := a.config.Save(a.configPath); err != nil {
			dialog.ShowError(err, a.mainWin)
			return
		}
		log.Info("config saved", "path", a.configPath)
		dialog.ShowInformation("Config saved", a.configPath, a.mainWin)
	})

	analyzer := a.config.GetAnalyzer()

	return container.NewVBox(
		settingsLabel,
		widget.NewSeparator(),
		widget.NewLabel("Source: "+describeSource(a.config)),
		widget.NewLabel("Backend: "+string(analyzer.Backend)),
		widget.NewLabel("Session: "+a.processor.SessionID.String()[:8]),
		widget.NewSeparator(),
		intervalInput,
		widget.NewSeparator(),
		saveBtn,
	)
}

func (a *DetectApp) runStatLoop(ctx context.Context) {
	uiTicker := time.NewTicker(statRefresh)
	defer uiTicker.Stop()

	for {
		select {
		case <-uiTicker.C:
			s := a.processor.Stats()
			fyne.Do(func() {
				a.fpsLabel.SetText(formatFPS(s.FPS))
				a.latencyLabel.SetText(formatLatency(s.Latency))
				a.emotionsLabel.SetText(formatEmotions(s.Distinct))
				a.failuresLabel.SetText(formatFailures(s.Failures))
				a.remainingLabel.SetText(formatRemaining(s.Remaining))
			})
		case <-ctx.Done():
			return
		}
	}
}

func (a *DetectApp) runPlayerLoop(ctx context.Context) {
	frameChan := a.processor.OutImageStream

	displayFPS := a.config.GetFPS()
	if displayFPS == 0 {
		displayFPS = 1
	}
	displayTicker := time.NewTicker(time.Second / time.Duration(displayFPS))
	defer displayTicker.Stop()

	var lastFrame image.Image

	for {
		select {
		case frame, ok := <-frameChan:
			if !ok {
				return
			}
			if frame != nil {
				lastFrame = frame
			}

		case <-displayTicker.C:
			if lastFrame != nil {
				img := lastFrame
				fyne.Do(func() {
					a.videoCanvas.Image = img
					a.videoCanvas.Refresh()
				})
				lastFrame = nil
			}

		case <-ctx.Done():
			return
		}
	}
}

func describeSource(cfg *config.Config) string {
	switch cfg.ActiveSource {
	case config.SourceLocal:
		return fmt.Sprintf("%s (%s)", cfg.ActiveSource, cfg.Local.Path)
	case config.SourceWebcam:
		return fmt.Sprintf("%s (device %d)", cfg.ActiveSource, cfg.Webcam.DeviceIndex)
	default:
		return string(cfg.ActiveSource)
	}
}

func formatFPS(v uint) string {
	return fmt.Sprintf("FPS: %d", v)
}

func formatLatency(v time.Duration) string {
	return fmt.Sprintf("Analysis: %d ms", v.Milliseconds())
}

func formatEmotions(n int) string {
	return fmt.Sprintf("#emotions : %d", n)
}

func formatFailures(n uint64) string {
	return fmt.Sprintf("Failed ticks: %d", n)
}

func formatRemaining(labels []string) string {
	if len(labels) == 0 {
		return "All emotions seen"
	}
	return "Not seen yet: " + strings.Join(labels, ", ")
}
