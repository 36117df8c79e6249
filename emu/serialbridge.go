package emu

import (
	"context"
	"errors"
	"fmt"
	"io"

	"debug80/emu/log"
	"debug80/hw/uart"

	"github.com/jacobsa/go-serial/serial"
)

// A SerialBridge connects the emulated serial line to a host byte stream,
// usually a serial port.
type SerialBridge struct {
	rwc io.ReadWriteCloser
	tx  chan byte
}

const bridgeQueueLen = 1024

func NewSerialBridge(rwc io.ReadWriteCloser) *SerialBridge {
	return &SerialBridge{rwc: rwc, tx: make(chan byte, bridgeQueueLen)}
}

// OpenSerialBridge opens a host serial port with the line settings of cfg.
func OpenSerialBridge(cfg SerialConfig) (*SerialBridge, error) {
	opts := serial.OpenOptions{
		PortName:        cfg.Device,
		BaudRate:        uint(cfg.Baud),
		DataBits:        uint(cfg.DataBits),
		StopBits:        uint(cfg.StopBits),
		MinimumReadSize: 1,
	}
	switch cfg.Parity {
	case uart.ParityEven:
		opts.ParityMode = serial.PARITY_EVEN
	case uart.ParityOdd:
		opts.ParityMode = serial.PARITY_ODD
	default:
		opts.ParityMode = serial.PARITY_NONE
	}

	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}
	log.ModSerial.InfoZ("serial bridge open").String("device", cfg.Device).Int("baud", cfg.Baud).End()
	return NewSerialBridge(port), nil
}

// Attach forwards the bytes the firmware sends to the host. Frames with
// errors are dropped. Must be called before the emulator runs.
func (b *SerialBridge) Attach(e *Emulator) {
	e.OnSerial(func(f uart.Frame) {
		if !f.FramingOK || !f.ParityOK {
			return
		}
		select {
		case b.tx <- f.Byte:
		default:
			log.ModSerial.WarnZ("serial bridge overflow").Hex8("byte", f.Byte).End()
		}
	})
}

// Run copies host input to the emulator and emulator output to the host
// until ctx is done or the host stream fails. It closes the stream on
// return.
func (b *SerialBridge) Run(ctx context.Context, e *Emulator) error {
	errc := make(chan error, 1)
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := b.rwc.Read(buf)
			if n > 0 {
				e.Serial(buf[:n])
			}
			if err != nil {
				errc <- err
				return
			}
		}
	}()

	defer b.rwc.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("serial bridge read: %w", err)
		case c := <-b.tx:
			if _, err := b.rwc.Write([]byte{c}); err != nil {
				return fmt.Errorf("serial bridge write: %w", err)
			}
		}
	}
}
