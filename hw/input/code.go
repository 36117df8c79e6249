package input

import (
	"fmt"
	"strings"
)

// A Code identifies a host terminal key, as read from a raw-mode terminal.
type Code struct {
	Byte byte
	Set  bool
}

var namedKeys = map[string]byte{
	"enter":     '\r',
	"tab":       '\t',
	"space":     ' ',
	"backspace": 0x7F,
	"escape":    0x1B,
}

// Name returns an user-friendly name for the input code.
func (c Code) Name() string {
	if !c.Set {
		return ""
	}
	for name, b := range namedKeys {
		if b == c.Byte {
			return name
		}
	}
	if c.Byte < 0x20 {
		return fmt.Sprintf("ctrl-%c", c.Byte+'a'-1)
	}
	return string(rune(c.Byte))
}

func (c Code) MarshalText() ([]byte, error) {
	if !c.Set {
		return nil, nil
	}
	return []byte("key " + c.Name()), nil
}

func (c *Code) UnmarshalText(text []byte) error {
	s := string(text)
	if s == "" {
		*c = Code{}
		return nil
	}

	str, ok := strings.CutPrefix(s, "key ")
	if !ok || str == "" {
		return fmt.Errorf("malformed key code: %s", s)
	}
	if b, ok := namedKeys[str]; ok {
		*c = Code{Byte: b, Set: true}
		return nil
	}
	if ctrl, ok := strings.CutPrefix(str, "ctrl-"); ok && len(ctrl) == 1 && ctrl[0] >= 'a' && ctrl[0] <= 'z' {
		*c = Code{Byte: ctrl[0] - 'a' + 1, Set: true}
		return nil
	}
	if len(str) != 1 || str[0] < 0x20 || str[0] > 0x7E {
		return fmt.Errorf("unrecognized key %q", str)
	}
	*c = Code{Byte: str[0], Set: true}
	return nil
}

func keyCode(b byte) Code { return Code{Byte: b, Set: true} }
