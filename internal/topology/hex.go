package topology

import (
	"strconv"
	"strings"
)

// IntToHexString formats n in lowercase base 16, left-padded with '0' to
// length characters. Values wider than length are returned unpadded.
func IntToHexString(n, length int) string {
	s := strconv.FormatInt(int64(n), 16)
	if len(s) >= length {
		return s
	}
	return strings.Repeat("0", length-len(s)) + s
}

// FormatRloc16 returns the display form of a short address, e.g. "0x0400".
func FormatRloc16(rloc16 uint16) string {
	return "0x" + IntToHexString(int(rloc16), 4)
}

// ParseRloc16 accepts the display form "0x0400" or a decimal string "1024".
func ParseRloc16(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	v, err := strconv.ParseUint(s, base, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}
