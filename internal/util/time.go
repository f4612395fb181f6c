package util

import (
	"sync"
	"time"
)

var kstLocation = sync.OnceValue(func() *time.Location {
	if loc, err := time.LoadLocation("Asia/Seoul"); err == nil {
		return loc
	}
	return time.FixedZone("KST", 9*60*60)
})

// FormatKST formats t in Korean Standard Time, the zone the chat rooms use.
func FormatKST(t time.Time, layout string) string {
	return t.In(kstLocation()).Format(layout)
}
