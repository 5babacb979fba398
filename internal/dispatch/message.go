package dispatch

import (
	"fmt"
	"time"
)

// ComposeMessage builds the alert text sent to every contact. The maps
// link lets a recipient navigate to the user without any app installed;
// when no fix is available the message says so rather than omitting the
// section silently.
func ComposeMessage(userName string, loc *Location, now time.Time) string {
	if userName == "" {
		userName = "The user"
	}
	msg := fmt.Sprintf("EMERGENCY: %s may have fallen and did not respond.\nTime: %s",
		userName, now.Format("2006-01-02 15:04:05"))

	switch {
	case loc == nil:
		msg += "\nLocation: unavailable"
	case loc.LastKnown:
		msg += fmt.Sprintf("\nLast known location (%s): https://maps.google.com/?q=%.6f,%.6f",
			loc.CapturedAt.Format("15:04:05"), loc.Latitude, loc.Longitude)
	default:
		msg += fmt.Sprintf("\nLocation: https://maps.google.com/?q=%.6f,%.6f", loc.Latitude, loc.Longitude)
	}
	msg += "\nPlease check on them immediately."
	return msg
}
