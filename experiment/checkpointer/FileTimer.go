package checkpointer

import (
	"fmt"
	"time"
)

// timerFormat sorts lexically in time order
const timerFormat = "20060102T150405.000000000"

// FileTimer returns a function which appends the current UTC time,
// as reported by now, to filename. Filenames produced this way sort in
// the order they were created.
func FileTimer(filename, extension string, now func() time.Time) func() string {
	return func() string {
		return fmt.Sprintf("%v-%v%v", filename, now().UTC().Format(timerFormat),
			extension)
	}
}
