package memory

import (
	"github.com/ezrec/regvm/translate"
)

var f = translate.From

// ErrOutOfBounds is returned when an index falls outside of the memory.
type ErrOutOfBounds struct {
	Index int
	Size  int
}

func (err ErrOutOfBounds) Error() string {
	return f("index %d out of bounds (size %d)", err.Index, err.Size)
}

func (err ErrOutOfBounds) Is(target error) (ok bool) {
	_, ok = target.(ErrOutOfBounds)
	return
}
