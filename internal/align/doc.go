// Package align resolves the temporal offset between the left and
// right camera recordings.
//
// Two strategies exist. The metadata path compares embedded container
// timecodes and needs no signal processing. The fallback extracts a
// low-bandwidth mono waveform from each source and finds the lag that
// maximizes normalized FFT cross-correlation. Strategy selection is an
// explicit once-per-session decision recorded with the offset, not a
// retry loop.
//
// Sign convention: a positive offset means the right source started
// recording after the left. Consumers skip leading left frames to
// pair the streams.
package align
