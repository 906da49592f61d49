package device

import (
	"fridayos/kernel"
	"io"
)

// Driver is an interface implemented by all drivers.
type Driver interface {
	// DriverName returns the name of the driver.
	DriverName() string

	// DriverVersion returns the driver version.
	DriverVersion() (major uint16, minor uint16, patch uint16)

	// DriverInit initializes the device driver. If the driver init code
	// needs to log some output, it can use the supplied io.Writer in
	// conjunction with a call to kfmt.Fprint.
	DriverInit(io.Writer) *kernel.Error
}

// Console is implemented by drivers that can display the kernel output.
type Console interface {
	io.Writer

	// Backspace moves the cursor back by one position and erases the
	// character under it.
	Backspace()
}

// ErrorConsole is implemented by consoles that can highlight the output of
// the error channel.
type ErrorConsole interface {
	Console

	// ErrorWriter returns a writer for the error channel.
	ErrorWriter() io.Writer
}

// ProbeFn is a function that scans for the presence of a particular
// piece of hardware and returns a driver for it.
type ProbeFn func() Driver

// DetectOrder specifies when each driver's probe function will be invoked
// by the hal package.
type DetectOrder int8

const (
	// DetectOrderEarly specifies that the driver's probe function should
	// be executed before anything else. Drivers for the debug console use
	// this so that the output of the remaining probes is visible.
	DetectOrderEarly DetectOrder = -128

	// DetectOrderInput specifies that the driver's probe function should
	// be executed after the console drivers.
	DetectOrderInput DetectOrder = -32

	// DetectOrderNormal is the default detection order.
	DetectOrderNormal DetectOrder = 0

	// DetectOrderLast specifies that the driver's probe function should
	// be executed after all other probes.
	DetectOrderLast DetectOrder = 127
)

// DriverInfo is used by device drivers to register themselves with the hal.
type DriverInfo struct {
	// Order specifies at which stage of the boot process the driver is
	// probed.
	Order DetectOrder

	// Probe is invoked to detect the device and return a driver for it.
	Probe ProbeFn
}

// DriverInfoList is a list of registered drivers that implements
// sort.Interface.
type DriverInfoList []*DriverInfo

// Len returns the length of the driver info list.
func (l DriverInfoList) Len() int { return len(l) }

// Swap exchanges 2 elements in the driver info list.
func (l DriverInfoList) Swap(i, j int) { l[i], l[j] = l[j], l[i] }

// Less compares 2 elements of the driver info list.
func (l DriverInfoList) Less(i, j int) bool { return l[i].Order < l[j].Order }

var (
	// registeredDrivers tracks the drivers registered via RegisterDriver.
	registeredDrivers DriverInfoList
)

// RegisterDriver adds the supplied driver info to the list of drivers
// probed by the hal. Drivers register themselves from their package init
// functions.
func RegisterDriver(info *DriverInfo) {
	registeredDrivers = append(registeredDrivers, info)
}

// DriverList returns the list of registered drivers.
func DriverList() DriverInfoList {
	return registeredDrivers
}
