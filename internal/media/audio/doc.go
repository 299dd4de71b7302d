// Package audio extracts mono waveforms from camera recordings for
// cross-correlation alignment. Extraction shells out to ffmpeg and
// resamples to the configured correlation rate.
package audio
