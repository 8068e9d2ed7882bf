// Package frame implements the OpenDrop serial wire format.
//
// One transaction writes two frames back to back and reads one:
//
//	out: 18 bytes electrode bits + 14 bytes control parameters
//	in:  24 bytes telemetry
//
// Electrode bits pack 8 channels per byte with channel order reversed
// inside each byte: channel c lives at byte c/8, bit 7-(c%8). The control
// frame carries the feedback flag at byte 6 and three temperature
// setpoints at bytes 8-10. Telemetry carries a 128-channel feedback
// bitset in the first 16 bytes, temperature readings split into
// fractional/integer byte pairs at 17-22, and the board id at byte 23.
//
// The codec is pure: no I/O and no state beyond its inputs.
package frame
