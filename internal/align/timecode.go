package align

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseTimecode converts an embedded start timecode into seconds since
// midnight. Supported forms are HH:MM:SS:FF (non-drop frame count),
// HH:MM:SS;FF (drop-frame, same arithmetic at the camera's real rate),
// and HH:MM:SS.mmm (milliseconds). Frame-count forms need the stream's
// frame rate to resolve the final field.
func ParseTimecode(value string, fps float64) (float64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("timecode: empty value")
	}

	if sep := strings.IndexByte(trimmed, ';'); sep >= 0 {
		return parseFrameTimecode(trimmed[:sep], trimmed[sep+1:], fps)
	}

	parts := strings.Split(trimmed, ":")
	switch len(parts) {
	case 4:
		return parseFrameTimecode(strings.Join(parts[:3], ":"), parts[3], fps)
	case 3:
		// HH:MM:SS with optional fractional seconds.
		base, err := parseClock(parts[0], parts[1])
		if err != nil {
			return 0, err
		}
		seconds, err := strconv.ParseFloat(parts[2], 64)
		if err != nil || seconds < 0 || seconds >= 60 {
			return 0, fmt.Errorf("timecode %q: bad seconds field", value)
		}
		return base + seconds, nil
	default:
		return 0, fmt.Errorf("timecode %q: unrecognized format", value)
	}
}

func parseFrameTimecode(clock, frameField string, fps float64) (float64, error) {
	if fps <= 0 {
		return 0, fmt.Errorf("timecode %s:%s: frame rate unknown", clock, frameField)
	}
	parts := strings.Split(clock, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("timecode %q: unrecognized format", clock)
	}
	base, err := parseClock(parts[0], parts[1])
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.Atoi(parts[2])
	if err != nil || seconds < 0 || seconds >= 60 {
		return 0, fmt.Errorf("timecode %q: bad seconds field", clock)
	}
	frames, err := strconv.Atoi(strings.TrimSpace(frameField))
	if err != nil || frames < 0 || float64(frames) >= fps+1 {
		return 0, fmt.Errorf("timecode frame field %q out of range for %.3f fps", frameField, fps)
	}
	return base + float64(seconds) + float64(frames)/fps, nil
}

func parseClock(hourField, minuteField string) (float64, error) {
	hours, err := strconv.Atoi(hourField)
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("timecode: bad hours field %q", hourField)
	}
	minutes, err := strconv.Atoi(minuteField)
	if err != nil || minutes < 0 || minutes >= 60 {
		return 0, fmt.Errorf("timecode: bad minutes field %q", minuteField)
	}
	return float64(hours)*3600 + float64(minutes)*60, nil
}
