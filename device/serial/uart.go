// Package serial implements a console driver for 16550-compatible UARTs.
// Output is best-effort: bytes that cannot be sent within a bounded number
// of polls are dropped so a missing or stuck UART never blocks the kernel.
package serial

import (
	"fridayos/device"
	"fridayos/kernel"
	"fridayos/kernel/cpu"
	"io"
)

const (
	// COM1 is the I/O base of the first serial port.
	COM1 = 0x3f8

	regData        = 0
	regIntEnable   = 1
	regFIFOControl = 2
	regLineControl = 3
	regModemCtrl   = 4
	regLineStatus  = 5

	// With DLAB set, registers 0 and 1 hold the baud rate divisor.
	regDivisorLow  = 0
	regDivisorHigh = 1

	lcrDLAB = 1 << 7
	lcr8N1  = 0x03

	// Enable and clear both FIFOs with a 14-byte trigger level.
	fcrEnableClear14 = 0xc7

	mcrDTR      = 1 << 0
	mcrRTS      = 1 << 1
	mcrOUT1     = 1 << 2
	mcrOUT2     = 1 << 3
	mcrLoopback = 1 << 4

	lsrTHRE = 1 << 5

	// 115200 / 3 = 38400 baud
	baudDivisor = 3

	loopbackTestByte = 0xae

	// maxTransmitPolls bounds the wait for the transmit holding register.
	maxTransmitPolls = 1 << 12

	ansiRed   = "\x1b[31m"
	ansiReset = "\x1b[0m"
)

var (
	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	portWriteByteFn = cpu.PortWriteByte
	portReadByteFn  = cpu.PortReadByte

	errLoopbackFailed = &kernel.Error{Module: "serial", Message: "loopback self-test failed"}

	eraseSeq    = []byte("\b \b")
	newlineSeq  = []byte("\r\n")
	errorPrefix = []byte(ansiRed)
	errorSuffix = []byte(ansiReset)
)

// UART is a 16550 serial port used as a text console.
type UART struct {
	port uint16

	// dropped counts the bytes that could not be transmitted.
	dropped uint64

	errWriter errorWriter
}

// DriverName returns the name of this driver.
func (u *UART) DriverName() string {
	return "serial_16550"
}

// DriverVersion returns the version of this driver.
func (u *UART) DriverVersion() (uint16, uint16, uint16) {
	return 0, 0, 1
}

// DriverInit programs the line parameters and FIFOs and verifies that the
// UART responds using its loopback mode.
func (u *UART) DriverInit(w io.Writer) *kernel.Error {
	portWriteByteFn(u.port+regIntEnable, 0)
	portWriteByteFn(u.port+regLineControl, lcrDLAB)
	portWriteByteFn(u.port+regDivisorLow, baudDivisor&0xff)
	portWriteByteFn(u.port+regDivisorHigh, baudDivisor>>8)
	portWriteByteFn(u.port+regLineControl, lcr8N1)
	portWriteByteFn(u.port+regFIFOControl, fcrEnableClear14)

	portWriteByteFn(u.port+regModemCtrl, mcrRTS|mcrOUT1|mcrOUT2|mcrLoopback)
	portWriteByteFn(u.port+regData, loopbackTestByte)
	if portReadByteFn(u.port+regData) != loopbackTestByte {
		return errLoopbackFailed
	}

	portWriteByteFn(u.port+regModemCtrl, mcrDTR|mcrRTS|mcrOUT1|mcrOUT2)
	return nil
}

// Write implements io.Writer. Line feeds are expanded to CR LF. Write never
// fails; bytes that cannot be sent are dropped.
func (u *UART) Write(p []byte) (int, error) {
	for _, b := range p {
		if b == '\n' {
			u.writeBytes(newlineSeq)
			continue
		}
		u.writeByte(b)
	}

	return len(p), nil
}

// Backspace erases the character before the cursor.
func (u *UART) Backspace() {
	u.writeBytes(eraseSeq)
}

// ErrorWriter returns a writer that prints its output in red.
func (u *UART) ErrorWriter() io.Writer {
	u.errWriter.uart = u
	return &u.errWriter
}

// Dropped returns the number of bytes that were discarded because the
// transmitter did not become ready in time.
func (u *UART) Dropped() uint64 {
	return u.dropped
}

func (u *UART) writeBytes(p []byte) {
	for _, b := range p {
		u.writeByte(b)
	}
}

func (u *UART) writeByte(b byte) {
	for polls := 0; polls < maxTransmitPolls; polls++ {
		if portReadByteFn(u.port+regLineStatus)&lsrTHRE != 0 {
			portWriteByteFn(u.port+regData, b)
			return
		}
	}

	u.dropped++
}

// errorWriter wraps each write in ANSI color escapes.
type errorWriter struct {
	uart *UART
}

func (w *errorWriter) Write(p []byte) (int, error) {
	w.uart.writeBytes(errorPrefix)
	w.uart.Write(p)
	w.uart.writeBytes(errorSuffix)
	return len(p), nil
}

var (
	com1 = UART{port: COM1}

	_ device.ErrorConsole = (*UART)(nil)
)

func probeForCOM1() device.Driver {
	return &com1
}

func init() {
	// After the text console so that the screen becomes the active console
	// and the serial port mirrors it.
	device.RegisterDriver(&device.DriverInfo{
		Order: device.DetectOrderEarly + 1,
		Probe: probeForCOM1,
	})
}
