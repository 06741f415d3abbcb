package main

import (
	"fmt"
	"io"

	"dcir/internal/observ"
)

// printTimings writes the timer summary when --timings is on. A nil timer
// means timings were not requested.
func printTimings(out io.Writer, timer *observ.Timer) {
	if out == nil || timer == nil {
		return
	}
	fmt.Fprint(out, timer.Summary())
}
