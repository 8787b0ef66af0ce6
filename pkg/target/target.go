// Package target holds what update target implementations share.
// Implementations live in sub-packages and satisfy ota.Target.
package target

import "errors"

var (
	// ErrNoSpace indicates the target can't hold an image of the declared size.
	ErrNoSpace = errors.New("insufficient storage space")
	// ErrNotOpen indicates the target is used without Open.
	ErrNotOpen = errors.New("target not open")
	// ErrOverflow indicates more bytes are written than declared.
	ErrOverflow = errors.New("write beyond declared size")
	// ErrSizeMismatch indicates the written size differs from the declared one at commit.
	ErrSizeMismatch = errors.New("image size mismatch")
)
