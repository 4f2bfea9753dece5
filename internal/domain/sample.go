package domain

import (
	"strconv"
	"time"
)

// Sample is a single heart-rate reading in beats per minute.
type Sample struct {
	Value     float64
	Timestamp time.Time
}

type LogEntry struct {
	Timestamp time.Time
	Value     float64
}

const logTimeLayout = "15:04:05"

// String renders the entry the way the wearer's log shows it: the wall clock
// time on one line and the rounded-down bpm on the next.
func (e LogEntry) String() string {
	return e.Timestamp.Format(logTimeLayout) + "\n" + strconv.Itoa(int(e.Value))
}
