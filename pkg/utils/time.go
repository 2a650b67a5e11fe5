package utils

import "time"

const exportStampLayout = "2006-01-02 15:04:05"

func TruncateToSeconds(t time.Time) time.Time {
	return t.Truncate(time.Second)
}

// ExportStamp formats t the way it appears in the header of an exported page.
func ExportStamp(t time.Time) string {
	return t.Format(exportStampLayout)
}
