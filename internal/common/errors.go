package common

import "fmt"

// ShapeError reports grids or vectors whose dimensions do not line up.
type ShapeError struct {
	Op   string // operation that detected the mismatch
	Want string // expected shape, e.g. "24x37"
	Got  string // actual shape
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: shape mismatch: want %s, got %s", e.Op, e.Want, e.Got)
}

// Shape formats a rows x cols pair the way ShapeError reports it.
func Shape(r, c int) string {
	return fmt.Sprintf("%dx%d", r, c)
}
