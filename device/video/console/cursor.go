package console

import "fridayos/kernel"

var errCursorOutOfBounds = &kernel.Error{Module: "vga_text_console", Message: "cursor position is outside the screen"}

// Cursor tracks the cell where a console writes its next character. Columns
// and rows are 0-based. A Cursor never leaves the screen: every move that
// would take it outside is rejected and leaves its position unchanged.
type Cursor struct {
	x, y          uint32
	width, height uint32
}

// NewCursor returns a cursor at the top-left cell of a width x height screen.
func NewCursor(width, height uint32) Cursor {
	return Cursor{width: width, height: height}
}

// Position returns the current column and row.
func (c *Cursor) Position() (uint32, uint32) {
	return c.x, c.y
}

// MoveTo places the cursor at column x of row y.
func (c *Cursor) MoveTo(x, y uint32) *kernel.Error {
	if x >= c.width || y >= c.height {
		return errCursorOutOfBounds
	}

	c.x, c.y = x, y
	return nil
}

// Advance moves the cursor to the next cell, wrapping to the start of the
// next row. It returns false if the cursor is on the last cell.
func (c *Cursor) Advance() bool {
	switch {
	case c.x+1 < c.width:
		c.x++
	case c.y+1 < c.height:
		c.x, c.y = 0, c.y+1
	default:
		return false
	}
	return true
}

// NextLine moves the cursor to the start of the next row. It returns false
// if the cursor is on the last row.
func (c *Cursor) NextLine() bool {
	if c.y+1 >= c.height {
		return false
	}

	c.x, c.y = 0, c.y+1
	return true
}

// Retreat moves the cursor one cell to the left. It returns false if the
// cursor is on the first column.
func (c *Cursor) Retreat() bool {
	if c.x == 0 {
		return false
	}

	c.x--
	return true
}
