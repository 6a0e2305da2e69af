package units

import (
	"fmt"
	"math"
	"time"
)

// RecordTimeLayout is the layout used for the human-readable timestamp kept
// alongside each stored record.
const RecordTimeLayout = "2006-01-02 15:04:05"

// IsTimezoneValid checks if the given timezone is valid by attempting to load it from the tz database
func IsTimezoneValid(tz string) bool {
	if tz == "" {
		return false
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

// EpochToTime converts fractional epoch seconds to a UTC time.
func EpochToTime(epoch float64) time.Time {
	sec, frac := math.Modf(epoch)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

// ConvertTime converts a UTC time to the specified timezone
func ConvertTime(utcTime time.Time, targetTimezone string) (time.Time, error) {
	if targetTimezone == "UTC" || targetTimezone == "" {
		return utcTime, nil
	}

	loc, err := time.LoadLocation(targetTimezone)
	if err != nil {
		return utcTime, fmt.Errorf("failed to load timezone %s: %w", targetTimezone, err)
	}

	return utcTime.In(loc), nil
}

// FormatEpoch renders epoch seconds with RecordTimeLayout in the given zone.
func FormatEpoch(epoch float64, timezone string) (string, error) {
	t, err := ConvertTime(EpochToTime(epoch), timezone)
	if err != nil {
		return "", err
	}
	return t.Format(RecordTimeLayout), nil
}

// ParseRecordTime parses a RecordTimeLayout string in the given zone and
// returns epoch seconds.
func ParseRecordTime(s, timezone string) (float64, error) {
	loc := time.UTC
	if timezone != "" && timezone != "UTC" {
		var err error
		if loc, err = time.LoadLocation(timezone); err != nil {
			return 0, fmt.Errorf("failed to load timezone %s: %w", timezone, err)
		}
	}
	t, err := time.ParseInLocation(RecordTimeLayout, s, loc)
	if err != nil {
		return 0, err
	}
	return float64(t.UnixNano()) / 1e9, nil
}
