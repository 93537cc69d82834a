package tunnel

import "context"

// KeyKind classifies a keystroke.
type KeyKind int

const (
	KeyOther KeyKind = iota
	KeyEnter
	KeyBackspace
	KeyChar
	// KeyInterrupt is Ctrl-C or Ctrl-D, which raw mode no longer turns into signals.
	KeyInterrupt
)

// Key is a single keystroke. Rune is only set for KeyChar.
type Key struct {
	Kind KeyKind
	Rune rune
}

// Terminal is the screen and keyboard a Tunnel renders to and reads from.
// Rows and columns are zero based.
type Terminal interface {
	// Size returns the number of rows and columns.
	Size() (rows int, cols int)
	MoveCursor(col int, row int) error
	ClearLine() error
	ClearToEndOfScreen() error
	Write(p []byte) (int, error)
	Flush() error
	// ReadKey blocks until a key is pressed or ctx is done.
	ReadKey(ctx context.Context) (Key, error)
}
