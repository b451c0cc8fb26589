package classifier

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/grafana/regexp"

	"iptv-check/work/logger"
	"iptv-check/work/media"
	"iptv-check/work/types"
)

// DefaultOffset is where the sampled frame is taken from.
const DefaultOffset = 2 * time.Second

// errorTextRe matches on-screen failure text. It only catches screens that
// literally say "error"; other phrasings and languages pass as valid.
var errorTextRe = regexp.MustCompile(`(?i)error`)

// Verdict is the outcome of the content stage.
type Verdict struct {
	ContentValid bool
	Health       *types.StreamHealthData // nil without an analyzer or when analysis failed
	AudioOnly    bool                    // no video stream, OCR skipped
	OCRFailed    bool                    // the recognizer failed, content assumed valid
}

// Classifier inspects a captured stream for error screens.
type Classifier struct {
	sampler    media.FrameSampler
	recognizer media.Recognizer
	analyzer   media.Analyzer
	offset     time.Duration
}

// New creates a Classifier. analyzer may be nil.
func New(sampler media.FrameSampler, recognizer media.Recognizer, analyzer media.Analyzer, offset time.Duration) *Classifier {
	if offset < 0 {
		offset = DefaultOffset
	}
	return &Classifier{
		sampler:    sampler,
		recognizer: recognizer,
		analyzer:   analyzer,
		offset:     offset,
	}
}

// Classify samples one frame of the capture at mediaPath and runs text
// recognition on it. The image is written next to the capture and removed
// before returning. types.ErrNoFrame is returned when no frame could be
// taken.
//
// Parameters:
//   - ctx: bounds the ffprobe, ffmpeg and tesseract subprocesses
//   - mediaPath: a capture produced by the probe engine
//
// Returns:
//   - Verdict: ContentValid is false only when error text was recognised
//   - error: types.ErrNoFrame, or a recognition failure
func (c *Classifier) Classify(ctx context.Context, mediaPath string) (Verdict, error) {
	var verdict Verdict

	// radio streams have no picture to read
	if c.analyzer != nil {
		health, err := c.analyzer.Analyze(ctx, mediaPath)
		if err != nil {
			logger.Debug("{classifier - Classify} analysis failed: %v", err)
		} else {
			verdict.Health = &health
			if health.Valid && !health.HasVideo {
				verdict.ContentValid = true
				verdict.AudioOnly = true
				return verdict, nil
			}
		}
	}

	image := filepath.Join(filepath.Dir(mediaPath), "frame.png")
	defer os.Remove(image)

	if err := c.sampler.SampleFrame(ctx, mediaPath, c.offset, image); err != nil {
		if ctx.Err() != nil {
			return verdict, ctx.Err()
		}
		return verdict, fmt.Errorf("%w: %v", types.ErrNoFrame, err)
	}
	if info, err := os.Stat(image); err != nil || info.Size() == 0 {
		return verdict, types.ErrNoFrame
	}

	text, err := c.recognizer.Recognize(ctx, image)
	if err != nil {
		if ctx.Err() != nil {
			return verdict, ctx.Err()
		}
		logger.Warn("{classifier - Classify} OCR failed, treating content as valid: %v", err)
		verdict.ContentValid = true
		verdict.OCRFailed = true
		return verdict, nil
	}

	verdict.ContentValid = !ContainsErrorText(text)
	return verdict, nil
}

// ContainsErrorText reports whether recognised text announces a failure.
func ContainsErrorText(text string) bool {
	return errorTextRe.MatchString(text)
}

// IsNoFrame reports whether err came from a failed frame grab.
func IsNoFrame(err error) bool {
	return errors.Is(err, types.ErrNoFrame)
}
