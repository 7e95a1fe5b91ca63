package subtitles

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidTimestamp reports a timestamp that is not HH:MM:SS,mmm.
var ErrInvalidTimestamp = errors.New("invalid timestamp")

const (
	srtFractionSep = ','
	vttFractionSep = '.'
)

// FormatSRT renders ms as HH:MM:SS,mmm.
func FormatSRT(ms uint64) string {
	return formatTimestamp(ms, srtFractionSep)
}

// FormatVTT renders ms as HH:MM:SS.mmm.
func FormatVTT(ms uint64) string {
	return formatTimestamp(ms, vttFractionSep)
}

func formatTimestamp(ms uint64, sep byte) string {
	total := ms / 1000
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", hours, minutes, seconds, sep, ms%1000)
}

// ParseSRT reads HH:MM:SS,f where f is one to three digits taken as a plain
// millisecond count, so "00:00:01,5" is 1005 ms. Hours run 0-23. A fraction
// longer than three digits is rejected rather than carried into the seconds,
// so "00:00:01,1500" is an error and never 2500 ms.
func ParseSRT(value string) (uint64, error) {
	return parseTimestamp(value, srtFractionSep)
}

// ParseVTT is ParseSRT with a period before the millisecond field.
func ParseVTT(value string) (uint64, error) {
	return parseTimestamp(value, vttFractionSep)
}

// ValidSRT reports whether value parses with ParseSRT.
func ValidSRT(value string) bool {
	_, err := ParseSRT(value)
	return err == nil
}

func parseTimestamp(value string, sep byte) (uint64, error) {
	value = strings.TrimSpace(value)
	clock, fraction, ok := strings.Cut(value, string(sep))
	if !ok {
		return 0, fmt.Errorf("%w %q", ErrInvalidTimestamp, value)
	}
	hms := strings.Split(clock, ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("%w %q", ErrInvalidTimestamp, value)
	}
	hours, errH := timestampField(hms[0], 2, 23)
	minutes, errM := timestampField(hms[1], 2, 59)
	seconds, errS := timestampField(hms[2], 2, 59)
	millis, errMS := timestampField(fraction, 3, 999)
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("%w %q", ErrInvalidTimestamp, value)
	}
	return hours*3_600_000 + minutes*60_000 + seconds*1000 + millis, nil
}

func timestampField(field string, maxDigits int, maxValue uint64) (uint64, error) {
	if field == "" || len(field) > maxDigits {
		return 0, ErrInvalidTimestamp
	}
	for _, r := range field {
		if r < '0' || r > '9' {
			return 0, ErrInvalidTimestamp
		}
	}
	v, err := strconv.ParseUint(field, 10, 64)
	if err != nil || v > maxValue {
		return 0, ErrInvalidTimestamp
	}
	return v, nil
}
