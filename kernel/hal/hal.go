// Package hal probes the registered device drivers and attaches the first
// console that comes up to the kernel output channels.
package hal

import (
	"bytes"
	"fridayos/device"
	"fridayos/kernel/kfmt"
	"io"
	"sort"
)

// maxConsoles is the number of consoles that can mirror the kernel output.
const maxConsoles = 4

// consoleMux forwards writes to every attached console.
type consoleMux struct {
	count   int
	writers [maxConsoles]io.Writer
}

func (m *consoleMux) attach(w io.Writer) {
	m.writers[m.count] = w
	m.count++
}

func (m *consoleMux) Write(p []byte) (int, error) {
	for i := 0; i < m.count; i++ {
		m.writers[i].Write(p)
	}
	return len(p), nil
}

// managedDevices contains the devices discovered by the HAL.
type managedDevices struct {
	activeConsole device.Console

	// output and errOutput mirror the kernel output channels to all
	// attached consoles.
	output    consoleMux
	errOutput consoleMux

	// activeDrivers tracks all initialized device drivers.
	activeDrivers []device.Driver
}

var (
	devices managedDevices
	strBuf  bytes.Buffer

	// driverListFn is mocked by tests.
	driverListFn = device.DriverList
)

// ActiveConsole returns the console attached to the kernel output or nil if
// no console driver was initialized.
func ActiveConsole() device.Console {
	return devices.activeConsole
}

// DetectHardware probes for hardware devices and initializes the appropriate
// drivers.
func DetectHardware() {
	// Get driver list and sort by detection priority
	drivers := driverListFn()
	sort.Sort(drivers)

	probe(drivers)
}

// probe executes the probe function for each driver and invokes
// onDriverInit for each successfully initialized driver.
func probe(driverInfoList device.DriverInfoList) {
	var w kfmt.PrefixWriter

	for _, info := range driverInfoList {
		drv := info.Probe()
		if drv == nil {
			continue
		}

		// The sink changes once the first console is attached
		w.Sink = outputSink()

		strBuf.Reset()
		major, minor, patch := drv.DriverVersion()
		kfmt.Fprintf(&strBuf, "[hal] %s(%d.%d.%d): ", drv.DriverName(), major, minor, patch)
		w.Prefix = strBuf.Bytes()

		if err := drv.DriverInit(&w); err != nil {
			kfmt.Fprintf(&w, "init failed: %s\n", err.Message)
			continue
		}

		kfmt.Fprintf(&w, "initialized\n")
		onDriverInit(drv)
		devices.activeDrivers = append(devices.activeDrivers, drv)
	}
}

// onDriverInit is invoked by probe() whenever a piece of hardware is detected
// and successfully initialized.
func onDriverInit(drv device.Driver) {
	if cons, ok := drv.(device.Console); ok {
		onConsoleInit(cons)
	}
}

// onConsoleInit is invoked whenever a console is initialized. Every console
// receives the kernel output from then on; consoles that can highlight errors
// get the error channel through their error writer. The first console becomes
// the active one and also receives anything buffered before it came up.
func onConsoleInit(cons device.Console) {
	if devices.output.count == maxConsoles {
		return
	}

	devices.output.attach(cons)
	if errCons, ok := cons.(device.ErrorConsole); ok {
		devices.errOutput.attach(errCons.ErrorWriter())
	} else {
		devices.errOutput.attach(cons)
	}

	if devices.activeConsole != nil {
		return
	}

	devices.activeConsole = cons
	kfmt.SetOutputSink(&devices.output)
	kfmt.SetErrorSink(&devices.errOutput)
}

// earlyWriter forwards writes to kfmt.Printf so that they end up in the
// early ring buffer while no console is attached.
type earlyWriter struct{}

func (earlyWriter) Write(p []byte) (int, error) {
	kfmt.Printf("%s", p)
	return len(p), nil
}

func outputSink() io.Writer {
	if sink := kfmt.GetOutputSink(); sink != nil {
		return sink
	}
	return earlyWriter{}
}
