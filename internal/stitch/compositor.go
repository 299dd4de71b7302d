package stitch

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"

	"golang.org/x/image/draw"

	"sideline/internal/calibration"
	"sideline/internal/config"
	"sideline/internal/logging"
	"sideline/internal/media/video"
	"sideline/internal/services"
)

// Compositor streams time-matched frame pairs through the calibration
// transform into a single panoramic output stream. It holds no mutable
// state across frames beyond the immutable calibration geometry.
type Compositor struct {
	cfg     *config.Config
	logger  *slog.Logger
	record  *calibration.Record
	warper  *warper
	weights []float64
	canvas  image.Rectangle
}

// NewCompositor prepares the warp and blend geometry from a validated
// calibration record.
func NewCompositor(cfg *config.Config, logger *slog.Logger, record *calibration.Record) (*Compositor, error) {
	if err := record.Validate(); err != nil {
		return nil, services.Wrap(services.ErrValidation, "Stitching", "prepare", "", err)
	}
	w, err := newWarper(record.Transform(), record.OffsetX, record.OffsetY)
	if err != nil {
		return nil, services.Wrap(services.ErrDegenerateTransform, "Stitching", "prepare", "transform not invertible", err)
	}
	curve, err := CurveByName(record.BlendCurve)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "Stitching", "prepare", "", err)
	}
	return &Compositor{
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "stitch"),
		record:  record,
		warper:  w,
		weights: columnWeights(record.CanvasWidth, record.BlendXStart, record.BlendXEnd, curve),
		canvas:  image.Rect(0, 0, record.CanvasWidth, record.CanvasHeight),
	}, nil
}

// frameItem carries one decoded frame or a decode failure through the
// pipeline channels.
type frameItem struct {
	frame *image.RGBA
	err   error
}

// Run consumes both aligned source streams and writes composed frames
// to the sink. The leading frames implied by the temporal offset must
// already be skipped by the caller. Decoding is pipelined ahead of
// compositing through bounded channels so a slow warp never starves
// the decoders.
//
// The returned frame count is valid even on error. When one stream
// ends before the other the error carries the stream-length-mismatch
// marker; everything composed so far has already been written.
func (c *Compositor) Run(ctx context.Context, left, right video.Source, sink video.Sink, onProgress func(frames int)) (int, error) {
	logger := logging.WithContext(ctx, c.logger)

	// The decode goroutines park on their channel when Run returns
	// early; cancelling releases them.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	depth := c.cfg.Stitch.PipelineDepth
	if depth < 1 {
		depth = 1
	}
	leftCh := decodeAhead(ctx, left, depth)
	rightCh := decodeAhead(ctx, right, depth)

	interval := c.cfg.Stitch.ProgressInterval
	if interval < 1 {
		interval = 1
	}

	frames := 0
	for {
		if err := ctx.Err(); err != nil {
			return frames, err
		}
		leftItem, leftOpen := <-leftCh
		rightItem, rightOpen := <-rightCh

		if !leftOpen && !rightOpen {
			return frames, nil
		}
		if leftOpen != rightOpen {
			ended, continuing := "right", "left"
			if !leftOpen {
				ended, continuing = "left", "right"
			}
			logger.Warn("source streams diverge",
				slog.String("ended", ended),
				slog.Int("frames_composed", frames),
			)
			return frames, services.Wrap(services.ErrStreamLengthMismatch, "Stitching", "compose",
				fmt.Sprintf("%s stream ended at frame %d while %s continues", ended, frames, continuing), nil)
		}
		if leftItem.err != nil {
			return frames, services.Wrap(services.ErrSourceDecode, "Stitching", "decode-left", "", leftItem.err)
		}
		if rightItem.err != nil {
			return frames, services.Wrap(services.ErrSourceDecode, "Stitching", "decode-right", "", rightItem.err)
		}

		composed := c.composeFrame(leftItem.frame, rightItem.frame)
		if err := sink.Write(composed); err != nil {
			return frames, services.Wrap(services.ErrExternalTool, "Stitching", "encode", "", err)
		}
		frames++
		if onProgress != nil && frames%interval == 0 {
			onProgress(frames)
		}
	}
}

// decodeAhead drains a source into a bounded channel. The channel is
// closed on a clean end of stream; a decode failure is delivered as
// the final item.
func decodeAhead(ctx context.Context, src video.Source, depth int) <-chan frameItem {
	ch := make(chan frameItem, depth)
	go func() {
		defer close(ch)
		for {
			frame, err := src.Next()
			if err == io.EOF {
				return
			}
			item := frameItem{frame: frame, err: err}
			select {
			case ch <- item:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return ch
}

// composeFrame builds one canvas frame: the left frame placed unwarped
// at its canvas position, the right frame resampled through the
// transform, and the blend region combined column by column.
func (c *Compositor) composeFrame(left, right *image.RGBA) *image.RGBA {
	out := image.NewRGBA(c.canvas)

	// Left frame is a straight copy at the canvas offset.
	leftBounds := left.Bounds()
	leftRect := image.Rect(
		c.record.OffsetX,
		c.record.OffsetY,
		c.record.OffsetX+leftBounds.Dx(),
		c.record.OffsetY+leftBounds.Dy(),
	)
	draw.Copy(out, leftRect.Min, left, leftBounds, draw.Src, nil)

	for y := 0; y < c.record.CanvasHeight; y++ {
		inLeftRow := y >= leftRect.Min.Y && y < leftRect.Max.Y
		for x := 0; x < c.record.CanvasWidth; x++ {
			wr, wg, wb, warped := c.warper.sample(right, x, y)
			if !warped {
				// Outside the warped right frame the canvas keeps the
				// left copy, or stays black where neither covers.
				continue
			}
			inLeft := inLeftRow && x >= leftRect.Min.X && x < leftRect.Max.X
			if !inLeft {
				out.SetRGBA(x, y, rgba(wr, wg, wb))
				continue
			}
			weight := c.weights[x]
			if weight <= 0 {
				continue
			}
			if weight >= 1 {
				out.SetRGBA(x, y, rgba(wr, wg, wb))
				continue
			}
			base := out.RGBAAt(x, y)
			out.SetRGBA(x, y, rgba(
				mix(base.R, wr, weight),
				mix(base.G, wg, weight),
				mix(base.B, wb, weight),
			))
		}
	}
	return out
}

func rgba(r, g, b uint8) color.RGBA {
	return color.RGBA{R: r, G: g, B: b, A: 0xFF}
}

func mix(left, right uint8, rightWeight float64) uint8 {
	return uint8(float64(left)*(1-rightWeight) + float64(right)*rightWeight + 0.5)
}
