package hwio

import "debug80/emu/log"

// OpenBus is the value read from an unmapped port.
const OpenBus = 0xFF

// Device is anything that can sit behind an I/O port.
type Device interface {
	Read8(port uint8) uint8
	Write8(port uint8, val uint8)
}

// Port is a Device built out of callbacks. A nil callback behaves as open
// bus on reads and ignores writes.
type Port struct {
	Name    string
	Flags   RWFlags
	ReadCb  func(port uint8) uint8
	WriteCb func(port uint8, val uint8)
}

func (p *Port) Read8(port uint8) uint8 {
	if p.Flags&WriteOnlyFlag != 0 || p.ReadCb == nil {
		return OpenBus
	}
	return p.ReadCb(port)
}

func (p *Port) Write8(port uint8, val uint8) {
	if p.Flags&ReadOnlyFlag != 0 || p.WriteCb == nil {
		return
	}
	p.WriteCb(port, val)
}

// Table dispatches the 256 Z80 I/O ports to their devices. Only the low
// byte of the port address is decoded.
type Table struct {
	Name string

	ports [256]Device
}

func NewTable(name string) *Table {
	return &Table{Name: name}
}

func (t *Table) Reset() {
	clear(t.ports[:])
}

func (t *Table) Map(port uint8, dev Device) {
	log.ModHwIo.DebugZ("mapping port").
		String("bus", t.Name).
		Hex8("port", port).
		End()
	t.ports[port] = dev
}

// MapRange maps dev on every port of the inclusive range [first, last].
func (t *Table) MapRange(first, last uint8, dev Device) {
	for p := int(first); p <= int(last); p++ {
		t.ports[p] = dev
	}
}

func (t *Table) Unmap(port uint8) {
	t.ports[port] = nil
}

func (t *Table) Lookup(port uint8) Device {
	return t.ports[port]
}

func (t *Table) Read8(port uint8) uint8 {
	dev := t.ports[port]
	if dev == nil {
		log.ModHwIo.DebugZ("unmapped read").
			String("bus", t.Name).
			Hex8("port", port).
			End()
		return OpenBus
	}
	return dev.Read8(port)
}

func (t *Table) Write8(port uint8, val uint8) {
	dev := t.ports[port]
	if dev == nil {
		log.ModHwIo.DebugZ("unmapped write").
			String("bus", t.Name).
			Hex8("port", port).
			Hex8("val", val).
			End()
		return
	}
	dev.Write8(port, val)
}
