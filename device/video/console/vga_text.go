// Package console contains the VGA text mode console driver.
package console

import (
	"fridayos/device"
	"fridayos/kernel"
	"fridayos/kernel/bootinfo"
	"fridayos/kernel/kfmt"
	"io"
	"unsafe"
)

// Attr selects the foreground (low nibble) and background (high nibble)
// colors of a character cell.
type Attr uint8

// The 16 EGA colors.
const (
	Black Attr = iota
	Blue
	Green
	Cyan
	Red
	Magenta
	Brown
	LightGray
	DarkGray
	LightBlue
	LightGreen
	LightCyan
	LightRed
	Pink
	Yellow
	White
)

const (
	vgaTextFbPhysAddr = 0xb8000
	vgaTextColumns    = 80
	vgaTextRows       = 25

	// placeholder for bytes outside the printable ASCII range
	unprintableChar = 0xfe
)

// ScrollDir defines a scroll direction.
type ScrollDir uint8

// The supported list of scroll directions.
const (
	ScrollDirUp ScrollDir = iota
	ScrollDirDown
)

var (
	// mirrorOffsetFn is mocked by tests.
	mirrorOffsetFn = bootinfo.PhysicalMemoryOffset
)

// MakeAttr combines a foreground and a background color.
func MakeAttr(fg, bg Attr) Attr {
	return bg<<4 | fg&0xf
}

// VgaTextConsole implements an EGA-compatible text console on top of the
// VGA mode 0x3 framebuffer. Each cell uses two bytes: the character code in
// the low byte and its Attr in the high byte.
//
// Text written to the console flows from the cursor position; the screen
// scrolls up once the last row is full. Output of the error channel uses a
// separate color.
type VgaTextConsole struct {
	width  uint32
	height uint32

	fbPhysAddr uintptr
	fb         []uint16

	cursor    Cursor
	attr      Attr
	errAttr   Attr
	clearChar uint16

	errWriter errorWriter
}

// NewVgaTextConsole creates a new vga text console whose framebuffer lives
// at physical address fbPhysAddr.
func NewVgaTextConsole(columns, rows uint32, fbPhysAddr uintptr) *VgaTextConsole {
	return &VgaTextConsole{
		width:      columns,
		height:     rows,
		fbPhysAddr: fbPhysAddr,
		cursor:     NewCursor(columns, rows),
		attr:       MakeAttr(Green, Black),
		errAttr:    MakeAttr(Red, Black),
		clearChar:  uint16(' '),
	}
}

// Dimensions returns the console width and height in characters.
func (cons *VgaTextConsole) Dimensions() (uint32, uint32) {
	return cons.width, cons.height
}

// Cursor returns the cursor that tracks where the next character is written.
func (cons *VgaTextConsole) Cursor() *Cursor {
	return &cons.cursor
}

// Fill sets the contents of the specified rectangular region to the clear
// character using attr. The region is clipped to the screen. Both x and y
// are 0-based.
func (cons *VgaTextConsole) Fill(x, y, width, height uint32, attr Attr) {
	if x >= cons.width || y >= cons.height {
		return
	}

	if width > cons.width-x {
		width = cons.width - x
	}
	if height > cons.height-y {
		height = cons.height - y
	}

	clr := uint16(attr)<<8 | cons.clearChar
	rowOffset := y*cons.width + x
	for ; height > 0; height, rowOffset = height-1, rowOffset+cons.width {
		for colOffset := rowOffset; colOffset < rowOffset+width; colOffset++ {
			cons.fb[colOffset] = clr
		}
	}
}

// Clear blanks the screen and moves the cursor to the top-left cell.
func (cons *VgaTextConsole) Clear() {
	cons.Fill(0, 0, cons.width, cons.height, cons.attr)
	_ = cons.cursor.MoveTo(0, 0)
}

// Scroll the console contents to the specified direction. The caller
// is responsible for updating (e.g. clear or replace) the contents of
// the region that was scrolled.
func (cons *VgaTextConsole) Scroll(dir ScrollDir, lines uint32) {
	if lines == 0 || lines > cons.height {
		return
	}

	var i uint32
	offset := lines * cons.width

	switch dir {
	case ScrollDirUp:
		for ; i < (cons.height-lines)*cons.width; i++ {
			cons.fb[i] = cons.fb[i+offset]
		}
	case ScrollDirDown:
		for i = cons.height*cons.width - 1; i >= offset; i-- {
			cons.fb[i] = cons.fb[i-offset]
		}
	}
}

// WriteAt writes a char to the specified location. Positions outside the
// screen are ignored. Both x and y are 0-based.
func (cons *VgaTextConsole) WriteAt(ch byte, attr Attr, x, y uint32) {
	if x >= cons.width || y >= cons.height {
		return
	}

	cons.fb[y*cons.width+x] = uint16(attr)<<8 | uint16(ch)
}

// Write implements io.Writer. Printable ASCII characters are written at the
// cursor; '\n', '\r' and '\b' move it. Any other character is shown as a
// block, once per UTF-8 encoded rune.
func (cons *VgaTextConsole) Write(p []byte) (int, error) {
	cons.write(p, cons.attr)
	return len(p), nil
}

// Backspace moves the cursor back by one position and erases the character
// under it. It has no effect on the first column.
func (cons *VgaTextConsole) Backspace() {
	if !cons.cursor.Retreat() {
		return
	}

	x, y := cons.cursor.Position()
	cons.WriteAt(byte(cons.clearChar), cons.attr, x, y)
}

// ErrorWriter returns a writer that prints using the error color.
func (cons *VgaTextConsole) ErrorWriter() io.Writer {
	cons.errWriter.cons = cons
	return &cons.errWriter
}

func (cons *VgaTextConsole) write(p []byte, attr Attr) {
	for _, b := range p {
		switch {
		case b == '\n':
			cons.newLine()
			continue
		case b == '\r':
			_, y := cons.cursor.Position()
			_ = cons.cursor.MoveTo(0, y)
			continue
		case b == '\b':
			cons.Backspace()
			continue
		case b >= 0x80 && b < 0xc0:
			// UTF-8 continuation byte; the leading byte got the block.
			continue
		case b < 0x20 || b > 0x7e:
			b = unprintableChar
		}

		x, y := cons.cursor.Position()
		cons.WriteAt(b, attr, x, y)
		if !cons.cursor.Advance() {
			cons.newLine()
		}
	}
}

// newLine moves the cursor to the start of the next row, scrolling the
// screen up when the cursor is on the last row.
func (cons *VgaTextConsole) newLine() {
	if cons.cursor.NextLine() {
		return
	}

	cons.Scroll(ScrollDirUp, 1)
	cons.Fill(0, cons.height-1, cons.width, 1, cons.attr)
	_ = cons.cursor.MoveTo(0, cons.height-1)
}

type errorWriter struct {
	cons *VgaTextConsole
}

func (w *errorWriter) Write(p []byte) (int, error) {
	w.cons.write(p, w.cons.errAttr)
	return len(p), nil
}

// DriverName returns the name of this driver.
func (cons *VgaTextConsole) DriverName() string {
	return "vga_text_console"
}

// DriverVersion returns the version of this driver.
func (cons *VgaTextConsole) DriverVersion() (uint16, uint16, uint16) {
	return 0, 0, 1
}

// DriverInit reaches the framebuffer through the boot loader's physical
// memory mirror and clears the screen.
func (cons *VgaTextConsole) DriverInit(w io.Writer) *kernel.Error {
	fbAddr := mirrorOffsetFn() + cons.fbPhysAddr
	cons.fb = unsafe.Slice((*uint16)(unsafe.Pointer(fbAddr)), cons.width*cons.height)
	cons.Clear()

	kfmt.Fprintf(w, "framebuffer at 0x%16x\n", fbAddr)
	return nil
}

var _ device.ErrorConsole = (*VgaTextConsole)(nil)

// probeForVgaTextConsole returns a console for the standard 80x25 text mode
// framebuffer. The framebuffer is only reachable once the boot loader has
// mirrored the physical memory.
func probeForVgaTextConsole() device.Driver {
	if mirrorOffsetFn() == 0 {
		return nil
	}

	return NewVgaTextConsole(vgaTextColumns, vgaTextRows, vgaTextFbPhysAddr)
}

func init() {
	device.RegisterDriver(&device.DriverInfo{
		Order: device.DetectOrderEarly,
		Probe: probeForVgaTextConsole,
	})
}
