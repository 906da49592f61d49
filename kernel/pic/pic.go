// Package pic drives the two chained legacy 8259 programmable interrupt
// controllers. The controllers are remapped so that hardware interrupt lines
// 0-15 raise vectors PrimaryOffset to SecondaryOffset+7, clear of the CPU
// exception range.
package pic

import (
	"fridayos/kernel/cpu"
	"fridayos/kernel/sync"
)

const (
	// PrimaryOffset is the vector raised by line 0 of the primary controller.
	PrimaryOffset = 32

	// SecondaryOffset is the vector raised by line 0 of the secondary
	// controller (IRQ 8).
	SecondaryOffset = PrimaryOffset + 8

	primaryCommandPort   = 0x20
	primaryDataPort      = 0x21
	secondaryCommandPort = 0xa0
	secondaryDataPort    = 0xa1

	// ICW1: start initialization, ICW4 follows.
	icw1Init = 0x11

	// ICW4: 8086/88 mode.
	icw4Mode8086 = 0x01

	// The secondary controller is wired to line 2 of the primary.
	cascadeLine = 2

	// OCW2: specific end of interrupt. The low 3 bits select the line.
	ocw2SpecificEOI = 0x60

	// OCW3: the next read from the command port returns the in-service
	// register.
	ocw3ReadISR = 0x0b

	// Line 7 of either controller is reported when a request is withdrawn
	// before it can be serviced.
	spuriousLine = 7
)

var (
	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	portWriteByteFn = cpu.PortWriteByte
	portReadByteFn  = cpu.PortReadByte
	ioWaitFn        = cpu.IOWait

	// Controllers is the chained controller pair found on every PC.
	Controllers = ChainedPICs{
		primary:   controller{offset: PrimaryOffset, commandPort: primaryCommandPort, dataPort: primaryDataPort},
		secondary: controller{offset: SecondaryOffset, commandPort: secondaryCommandPort, dataPort: secondaryDataPort},
	}
)

// controller describes a single 8259 chip.
type controller struct {
	offset      uint8
	commandPort uint16
	dataPort    uint16
}

// handles returns true if vector belongs to one of the 8 lines of c.
func (c *controller) handles(vector uint8) bool {
	return vector >= c.offset && vector < c.offset+8
}

// endOfInterrupt signals the end of service for line.
func (c *controller) endOfInterrupt(line uint8) {
	portWriteByteFn(c.commandPort, ocw2SpecificEOI|line)
}

func (c *controller) inService() uint8 {
	portWriteByteFn(c.commandPort, ocw3ReadISR)
	return portReadByteFn(c.commandPort)
}

// ChainedPICs is a primary 8259 with a secondary 8259 cascaded on line 2.
// All methods are safe to call from interrupt handlers.
type ChainedPICs struct {
	lock      sync.IRQSpinlock
	primary   controller
	secondary controller
}

// Init runs the initialization sequence on both controllers, remaps them to
// PrimaryOffset and SecondaryOffset and unmasks all lines. Interrupts must be
// disabled at the CPU while Init runs.
func (p *ChainedPICs) Init() {
	state := p.lock.Acquire()
	defer p.lock.Release(state)

	// ICW1
	p.write(p.primary.commandPort, icw1Init)
	p.write(p.secondary.commandPort, icw1Init)

	// ICW2: vector offsets
	p.write(p.primary.dataPort, p.primary.offset)
	p.write(p.secondary.dataPort, p.secondary.offset)

	// ICW3: the primary takes a bitmask of the lines with a cascaded
	// controller; the secondary takes its cascade identity.
	p.write(p.primary.dataPort, 1<<cascadeLine)
	p.write(p.secondary.dataPort, cascadeLine)

	// ICW4
	p.write(p.primary.dataPort, icw4Mode8086)
	p.write(p.secondary.dataPort, icw4Mode8086)

	p.write(p.primary.dataPort, 0)
	p.write(p.secondary.dataPort, 0)
}

// write sends val to port and gives the controller time to process it.
func (p *ChainedPICs) write(port uint16, val uint8) {
	portWriteByteFn(port, val)
	ioWaitFn()
}

// Handles returns true if vector was raised by one of the two controllers.
func (p *ChainedPICs) Handles(vector uint8) bool {
	return p.primary.handles(vector) || p.secondary.handles(vector)
}

// Acknowledge sends a specific end-of-interrupt for vector. Lines of the
// secondary controller are acknowledged on both chips. Vectors that belong to
// neither controller are ignored.
func (p *ChainedPICs) Acknowledge(vector uint8) {
	if !p.Handles(vector) {
		return
	}

	state := p.lock.Acquire()
	defer p.lock.Release(state)

	if p.secondary.handles(vector) {
		p.secondary.endOfInterrupt(vector - p.secondary.offset)
		p.primary.endOfInterrupt(cascadeLine)
		return
	}

	p.primary.endOfInterrupt(vector - p.primary.offset)
}

// IsSpurious returns true if vector is a line 7 request of either controller
// whose in-service bit is not set. Spurious interrupts must not be
// acknowledged with Acknowledge; use AcknowledgeSpurious instead.
func (p *ChainedPICs) IsSpurious(vector uint8) bool {
	var c *controller
	switch vector {
	case p.primary.offset + spuriousLine:
		c = &p.primary
	case p.secondary.offset + spuriousLine:
		c = &p.secondary
	default:
		return false
	}

	state := p.lock.Acquire()
	defer p.lock.Release(state)

	return c.inService()&(1<<spuriousLine) == 0
}

// AcknowledgeSpurious completes the handling of a spurious interrupt. The
// primary controller does not expect an EOI for a spurious IRQ 7. A spurious
// IRQ 15 was however seen as a real request on the primary cascade line
// which still needs to be acknowledged.
func (p *ChainedPICs) AcknowledgeSpurious(vector uint8) {
	if vector != p.secondary.offset+spuriousLine {
		return
	}

	state := p.lock.Acquire()
	defer p.lock.Release(state)

	p.primary.endOfInterrupt(cascadeLine)
}

// SetMask updates the interrupt mask registers. A set bit disables the
// corresponding line.
func (p *ChainedPICs) SetMask(primary, secondary uint8) {
	state := p.lock.Acquire()
	defer p.lock.Release(state)

	portWriteByteFn(p.primary.dataPort, primary)
	portWriteByteFn(p.secondary.dataPort, secondary)
}

// Masks returns the contents of the interrupt mask registers.
func (p *ChainedPICs) Masks() (primary, secondary uint8) {
	state := p.lock.Acquire()
	defer p.lock.Release(state)

	return portReadByteFn(p.primary.dataPort), portReadByteFn(p.secondary.dataPort)
}
