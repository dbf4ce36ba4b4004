package processing

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"facelens/internal/config"
	log "facelens/internal/log"
	"facelens/internal/models"
	stream "facelens/processing/capture"
	"facelens/processing/frame"
	"facelens/processing/overlay"
)

// Recorder receives every annotation the analysis loop publishes.
type Recorder interface {
	Record(ctx context.Context, sessionID uuid.UUID, a models.Annotation) error
}

type Stats struct {
	FPS      uint
	Latency  time.Duration
	Distinct int
	Ticks    uint64
	Failures uint64

	// Remaining lists the emotions not seen yet. The slice is never mutated.
	Remaining []string
}

var errStreamEnded = errors.New("capture stream ended")

// Processor runs the capture/display loop and the analysis loop.
//
// The capture loop owns the raw slot: it stores every frame and pushes the
// composed [live | annotated] view to OutImageStream, dropping frames the
// display cannot keep up with. The analysis loop owns the annotated slot
// and the emotion tally. Both stop when the context passed to Run ends.
type Processor struct {
	InImageStream  stream.VideoStreamer
	OutImageStream chan image.Image

	SessionID uuid.UUID

	cfg      *config.Config
	analyzer FaceAnalyzer
	recorder Recorder
	logger   *slog.Logger

	raw       frame.Slot
	annotated frame.Slot
	ready     *frame.Latch
	tally     *EmotionTally

	mu    sync.RWMutex
	stats Stats
}

type Option func(*Processor)

func WithRecorder(r Recorder) Option {
	return func(p *Processor) { p.recorder = r }
}

func WithSessionID(id uuid.UUID) Option {
	return func(p *Processor) { p.SessionID = id }
}

func NewProcessor(cfg *config.Config, in stream.VideoStreamer, analyzer FaceAnalyzer, opts ...Option) *Processor {
	fps := cfg.GetFPS()
	if fps == 0 {
		fps = 1
	}

	p := &Processor{
		InImageStream:  in,
		OutImageStream: make(chan image.Image, fps),
		SessionID:      uuid.New(),
		cfg:            cfg,
		analyzer:       analyzer,
		ready:          frame.NewLatch(),
		tally:          NewEmotionTally(),
	}
	p.stats.Remaining = p.tally.Remaining()
	for _, opt := range opts {
		opt(p)
	}
	p.logger = log.With("session", p.SessionID.String())

	return p
}

// Run starts the stream and both loops and blocks until they finish.
// It returns nil when ctx is cancelled or the stream ends, the capture
// error when the source fails, and the analysis error in fail-fast mode.
func (p *Processor) Run(ctx context.Context) error {
	if err := p.InImageStream.Start(); err != nil {
		close(p.OutImageStream)
		return err
	}

	p.logger.Info("processing started",
		"interval", p.cfg.AnalysisInterval(),
		"fail_fast", p.cfg.FailFast)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.runCapture(gctx) })
	g.Go(func() error { return p.runAnalysis(gctx) })

	err := g.Wait()
	if errors.Is(err, errStreamEnded) {
		err = nil
	}

	s := p.Stats()
	p.logger.Info("processing stopped",
		"ticks", s.Ticks,
		"failures", s.Failures,
		"distinct_emotions", s.Distinct)

	return err
}

// Ready is closed once the first frame has been captured.
func (p *Processor) Ready() <-chan struct{} {
	return p.ready.Done()
}

// Annotated returns the latest annotated frame, or nil before the first capture.
func (p *Processor) Annotated() *frame.Frame {
	return p.annotated.Load()
}

// Raw returns the latest captured frame, or nil before the first capture.
func (p *Processor) Raw() *frame.Frame {
	return p.raw.Load()
}

func (p *Processor) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats
}

func (p *Processor) runCapture(ctx context.Context) error {
	defer close(p.OutImageStream)
	defer p.InImageStream.Stop()

	var frameCount uint
	lastFpsUpdate := time.Now()

	frames := p.InImageStream.FrameChan()
	errs := p.InImageStream.ErrorChan()

	for {
		select {
		case <-ctx.Done():
			return nil

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			p.logger.Error("capture failed", "err", err)
			return err

		case img, ok := <-frames:
			if !ok {
				// A failure is reported before the frame channel closes.
				select {
				case err, ok := <-errs:
					if ok && err != nil {
						p.logger.Error("capture failed", "err", err)
						return err
					}
				default:
				}
				p.logger.Info("capture stream ended")
				return errStreamEnded
			}
			if img == nil {
				continue
			}

			p.publishRaw(toRGBA(img))

			frameCount++
			if time.Since(lastFpsUpdate) >= time.Second {
				p.mu.Lock()
				p.stats.FPS = frameCount
				p.mu.Unlock()
				frameCount = 0
				lastFpsUpdate = time.Now()
			}
		}
	}
}

// publishRaw stores rgba, seeds the annotated slot on the first frame and
// emits the composed view.
func (p *Processor) publishRaw(rgba *image.RGBA) {
	p.raw.Store(rgba)

	if p.annotated.Load() == nil && p.annotated.Seed(frame.Clone(rgba)) {
		p.logger.Debug("first frame captured", "bounds", rgba.Bounds().String())
		p.ready.Open()
	}

	var right image.Image
	if f := p.annotated.Load(); f != nil {
		right = f.Image
	}
	composed := overlay.SideBySide(overlay.LabelLive(rgba), right)

	select {
	case p.OutImageStream <- composed:
	default:
	}
}

func (p *Processor) runAnalysis(ctx context.Context) error {
	if err := p.ready.Wait(ctx, p.cfg.ReadinessTimeout()); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("analysis: %w", err)
	}

	timer := time.NewTimer(p.cfg.AnalysisInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		backoff, err := p.tick(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if p.cfg.FailFast {
				p.logger.Error("analysis failed", "err", err)
				return err
			}
			p.logger.Warn("analysis failed, skipping tick", "err", err)
		}

		timer.Reset(max(p.cfg.AnalysisInterval(), backoff))
	}
}

// tick runs one analysis round. The returned duration is a server-requested
// delay before the next attempt, zero when none was given.
func (p *Processor) tick(ctx context.Context) (time.Duration, error) {
	snap := p.raw.Snapshot()
	if snap == nil {
		return 0, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.GetAnalyzer().Timeout())
	defer cancel()

	start := time.Now()
	res, err := AnalyzeFrame(callCtx, p.analyzer, snap, p.cfg.JPEGQuality, p.tally)
	latency := time.Since(start)

	p.mu.Lock()
	p.stats.Ticks++
	p.stats.Latency = latency
	if err != nil {
		p.stats.Failures++
	}
	p.mu.Unlock()

	if err != nil {
		var se *ServiceError
		if errors.As(err, &se) {
			return se.RetryAfter, err
		}
		return 0, err
	}

	if !res.Found {
		p.logger.Debug("no face detected", "latency", latency)
		return 0, nil
	}

	p.annotated.Store(res.Annotated)

	a := res.Annotation
	p.mu.Lock()
	p.stats.Distinct = a.Distinct
	if a.Novel {
		p.stats.Remaining = p.tally.Remaining()
	}
	p.mu.Unlock()

	p.logger.Debug("face analysed",
		"faces", res.FaceCount,
		"emotion", a.Emotion,
		"confidence", a.Confidence,
		"age", a.Age,
		"gender", a.Gender,
		"latency", latency)
	if a.Novel {
		p.logger.Info("new emotion observed", "emotion", a.Emotion, "distinct", a.Distinct)
	}

	if p.recorder != nil {
		if err := p.recorder.Record(ctx, p.SessionID, a); err != nil {
			p.logger.Warn("journal write failed", "err", err)
		}
	}

	return 0, nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	return frame.Clone(img)
}
