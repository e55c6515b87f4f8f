package tracker

import (
	"log"
	"os"
	"strings"
)

var trackerDebugEnabled = strings.EqualFold(os.Getenv("DOCSEARCH_TRACKER_DEBUG"), "1")

func debugLog(format string, args ...interface{}) {
	if trackerDebugEnabled {
		log.Printf(format, args...)
	}
}
