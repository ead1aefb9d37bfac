// Package timecode parses seek payloads received from the automation hub.
//
// A payload is either a plain decimal number of seconds ("125", "-3.5") or a
// colon-separated timecode with two or three segments ("05:30", "01:02:03").
package timecode

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalid is returned for payloads that are neither a number nor a timecode.
var ErrInvalid = errors.New("timecode: invalid payload")

var (
	decimalPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)
	integerPattern = regexp.MustCompile(`^\d+$`)
)

// Parse converts a payload into seconds.
//
// Only the rightmost timecode segment may carry a fraction, and only the
// leading segment may carry a sign. Negative results are returned as-is;
// clamping is left to the caller.
func Parse(payload string) (float64, error) {
	s := strings.TrimSpace(payload)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalid)
	}

	if decimalPattern.MatchString(s) {
		return parseFloat(s)
	}

	if !strings.Contains(s, ":") {
		return 0, fmt.Errorf("%w: %q", ErrInvalid, s)
	}

	segments := strings.Split(s, ":")
	if len(segments) < 2 || len(segments) > 3 {
		return 0, fmt.Errorf("%w: %q has %d segments", ErrInvalid, s, len(segments))
	}

	negative := false
	switch segments[0][:min(1, len(segments[0]))] {
	case "-":
		negative = true
		segments[0] = segments[0][1:]
	case "+":
		segments[0] = segments[0][1:]
	}

	var total float64
	last := len(segments) - 1
	for i, seg := range segments {
		var ok bool
		if i == last {
			ok = decimalPattern.MatchString(seg) && !strings.ContainsAny(seg, "+-")
		} else {
			ok = integerPattern.MatchString(seg)
		}
		if !ok {
			return 0, fmt.Errorf("%w: segment %q in %q", ErrInvalid, seg, s)
		}

		v, err := parseFloat(seg)
		if err != nil {
			return 0, err
		}
		total = total*60 + v
	}

	if negative {
		total = -total
	}
	return total, nil
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	return v, nil
}
