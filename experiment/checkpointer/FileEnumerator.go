package checkpointer

import "fmt"

// fileEnumerator enumerates filenames
type fileEnumerator struct {
	i         int
	name      string
	extension string
}

// filename returns the name of the next enumerated file
func (f *fileEnumerator) filename() string {
	f.i++
	return fmt.Sprintf("%v%v%v", f.name, f.i, f.extension)
}

// FilenameEnumerator returns a function which returns filenames with
// an integer suffix one higher than on the previous call, starting at
// start+1. The filename parameter is the full filename with its path,
// and extension is appended after the suffix.
func FilenameEnumerator(start int, filename, extension string) func() string {
	enum := fileEnumerator{i: start, name: filename, extension: extension}

	return enum.filename
}

// FixedFilename returns a function that always returns filename, so
// that each checkpoint overwrites the previous one
func FixedFilename(filename string) func() string {
	return func() string {
		return filename
	}
}
