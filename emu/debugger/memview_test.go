package debugger

import (
	"testing"

	"debug80/hw/cpu"
)

func TestViewMemory(t *testing.T) {
	mem := &cpu.Memory{}
	for i := range 0x100 {
		mem.Load(uint16(0x2000+i), []byte{uint8(i)})
	}
	mem.Protect(0x0000, 0x07FF)
	regs := cpu.Regs{PC: 0x2040, SP: 0xFFFE, HL: 0x0005}

	tests := []struct {
		name      string
		sel       Selector
		addr      uint16
		size      int
		wantBase  uint16
		wantFocus int
		wantLen   int
	}{
		{"pc", SelPC, 0, 64, 0x2020, 0x20, 64},
		{"absolute", SelAbsolute, 0x2047, 32, 0x2030, 0x17, 32},
		{"rounded", SelPC, 0, 20, 0x2030, 0x10, 32},
		{"min", SelPC, 0, 0, 0x2040, 0x00, 16},
		{"sp", SelSP, 0, 64, 0xFFD0, 0x2E, 64},
		{"wraps", SelHL, 0, 32, 0xFFF0, 0x15, 32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ViewMemory(mem, regs, tt.sel, tt.addr, tt.size)
			if err != nil {
				t.Fatal(err)
			}
			if v.Base != tt.wantBase || v.Focus != tt.wantFocus || len(v.Bytes) != tt.wantLen {
				t.Fatalf("base=%04X focus=%X len=%d, want %04X %X %d",
					v.Base, v.Focus, len(v.Bytes), tt.wantBase, tt.wantFocus, tt.wantLen)
			}
			focus := v.Base + uint16(v.Focus)
			if got, want := v.Bytes[v.Focus], mem.Get(focus); got != want {
				t.Fatalf("focus byte = %02X, want %02X", got, want)
			}
		})
	}

	v, _ := ViewMemory(mem, regs, SelHL, 0, 32)
	if !v.ReadOnly[v.Focus] || v.ReadOnly[0] {
		t.Fatalf("read-only flags wrong: focus=%v first=%v", v.ReadOnly[v.Focus], v.ReadOnly[0])
	}
}

func TestParseSelector(t *testing.T) {
	for i, name := range selectorNames {
		sel, err := ParseSelector(name)
		if err != nil || sel != Selector(i) {
			t.Errorf("ParseSelector(%q) = %v, %v", name, sel, err)
		}
	}
	if _, err := ParseSelector("af"); err == nil {
		t.Error("ParseSelector(af) succeeded")
	}
}
