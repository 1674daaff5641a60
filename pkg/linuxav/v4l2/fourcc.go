//go:build linux

package v4l2

import (
	"bytes"
	"strconv"
	"strings"
)

// FourCC packs a four character code such as "MJPG" into a pixel format value.
// Shorter codes are padded with spaces.
func FourCC(code string) uint32 {
	var b [4]byte
	copy(b[:], code+"    ")
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// FormatFourCC converts a 4-byte pixel format to a human-readable string.
func FormatFourCC(format uint32) string {
	b := []byte{
		byte(format & 0xFF),
		byte((format >> 8) & 0xFF),
		byte((format >> 16) & 0xFF),
		byte((format >> 24) & 0xFF),
	}
	return strings.TrimRight(string(b), " \x00")
}

// cstr converts a null-terminated byte slice to a Go string.
func cstr(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

func itoa(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}
