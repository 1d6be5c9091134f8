package app

import "time"

const timestampLayout = "2006-01-02 PM 03:04:05"

// FormatTimestamp renders a server timestamp for display, in local
// time. A blank timestamp means the message was just sent, so the
// current time is shown instead.
func FormatTimestamp(timestamp string) string {
	if timestamp == "" {
		return time.Now().Format(timestampLayout)
	}

	t, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		// Some endpoints omit the zone suffix.
		t, err = time.ParseInLocation("2006-01-02T15:04:05", timestamp, time.Local)
		if err != nil {
			return timestamp
		}
	}

	return t.Local().Format(timestampLayout)
}
