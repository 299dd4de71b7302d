package calibration

import (
	"fmt"
	"math"
	"time"

	"sideline/internal/align"
	"sideline/internal/calibrate"
)

// CurrentVersion is the record format version this build writes.
const CurrentVersion = 1

// Resolution is the pixel dimensions of one source stream.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// TemporalOffset is the persisted alignment outcome.
type TemporalOffset struct {
	Seconds    float64 `json:"seconds"`
	Method     string  `json:"method"`
	Confidence float64 `json:"confidence"`
}

// Record is the persisted calibration for one capture session. A
// record is atomic: it is written whole and never partially updated.
type Record struct {
	Version    int    `json:"version"`
	SessionKey string `json:"session_key"`

	// Homography maps right-frame coordinates into left-frame
	// coordinates, row-major.
	Homography [9]float64 `json:"homography"`

	CanvasWidth  int `json:"canvas_width"`
	CanvasHeight int `json:"canvas_height"`
	OffsetX      int `json:"offset_x"`
	OffsetY      int `json:"offset_y"`

	BlendXStart int    `json:"blend_x_start"`
	BlendXEnd   int    `json:"blend_x_end"`
	BlendCurve  string `json:"blend_curve"`

	Offset TemporalOffset `json:"temporal_offset"`

	Matches     int     `json:"matches"`
	Inliers     int     `json:"inliers"`
	InlierRatio float64 `json:"inlier_ratio"`

	LeftResolution  Resolution `json:"left_resolution"`
	RightResolution Resolution `json:"right_resolution"`

	CreatedAt time.Time `json:"created_at"`
}

// NewRecord assembles a record from a calibration result and the
// session's resolved offset.
func NewRecord(sessionKey string, result calibrate.Result, offset align.Offset, blendCurve string, left, right Resolution) *Record {
	return &Record{
		Version:      CurrentVersion,
		SessionKey:   sessionKey,
		Homography:   [9]float64(result.Homography),
		CanvasWidth:  result.Canvas.Width,
		CanvasHeight: result.Canvas.Height,
		OffsetX:      result.Canvas.OffsetX,
		OffsetY:      result.Canvas.OffsetY,
		BlendXStart:  result.Blend.XStart,
		BlendXEnd:    result.Blend.XEnd,
		BlendCurve:   blendCurve,
		Offset: TemporalOffset{
			Seconds:    offset.Seconds,
			Method:     offset.Method,
			Confidence: offset.Confidence,
		},
		Matches:         result.Matches,
		Inliers:         result.Inliers,
		InlierRatio:     result.InlierRatio,
		LeftResolution:  left,
		RightResolution: right,
		CreatedAt:       time.Now().UTC(),
	}
}

// Transform returns the record's homography as a calibrate type.
func (r *Record) Transform() calibrate.Homography {
	return calibrate.Homography(r.Homography)
}

// Validate checks structural integrity. A record that fails here was
// corrupted or hand-edited and must not drive a stitch.
func (r *Record) Validate() error {
	if r.Version != CurrentVersion {
		return fmt.Errorf("calibration record: unsupported version %d", r.Version)
	}
	if r.SessionKey == "" {
		return fmt.Errorf("calibration record: missing session key")
	}
	for i, v := range r.Homography {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("calibration record: homography entry %d is not finite", i)
		}
	}
	if r.Homography[8] == 0 {
		return fmt.Errorf("calibration record: homography is not normalized")
	}
	if r.CanvasWidth <= 0 || r.CanvasHeight <= 0 {
		return fmt.Errorf("calibration record: invalid canvas %dx%d", r.CanvasWidth, r.CanvasHeight)
	}
	if r.OffsetX < 0 || r.OffsetY < 0 {
		return fmt.Errorf("calibration record: negative canvas offset (%d, %d)", r.OffsetX, r.OffsetY)
	}
	// An empty region (start == end) is a hard seam; inverted bounds are not.
	if r.BlendXEnd < r.BlendXStart {
		return fmt.Errorf("calibration record: inverted blend region [%d, %d)", r.BlendXStart, r.BlendXEnd)
	}
	if r.BlendXStart < 0 || r.BlendXEnd > r.CanvasWidth {
		return fmt.Errorf("calibration record: blend region [%d, %d) outside canvas width %d", r.BlendXStart, r.BlendXEnd, r.CanvasWidth)
	}
	if r.Offset.Method == "" {
		return fmt.Errorf("calibration record: missing offset method")
	}
	if r.LeftResolution.Width <= 0 || r.LeftResolution.Height <= 0 ||
		r.RightResolution.Width <= 0 || r.RightResolution.Height <= 0 {
		return fmt.Errorf("calibration record: missing source resolutions")
	}
	return nil
}
