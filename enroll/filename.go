package enroll

import (
	"fmt"
	"regexp"
	"time"
)

var whitespaceRuns = regexp.MustCompile(`\s+`)

// Filename builds the captured-file name for an uploaded reference photo:
// {sanitizedPersonName}_{unixMillis}.jpg, where whitespace runs in the person
// name collapse to single underscores.
func Filename(personName string, ts time.Time) string {
	return fmt.Sprintf("%s_%d.jpg", whitespaceRuns.ReplaceAllString(personName, "_"), ts.UnixMilli())
}
