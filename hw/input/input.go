// Package input maps host keyboard input to trainer keypad keys.
package input

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"debug80/emu/log"
)

// A Key identifies a key of the trainer hex keypad, by the code the keypad
// encoder presents to the CPU.
type Key uint8

const (
	Key0 Key = iota
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	KeyA
	KeyB
	KeyC
	KeyD
	KeyE
	KeyF
	KeyPlus
	KeyMinus
	KeyGo
	KeyAddr

	KeyCount
)

func (k Key) String() string {
	switch {
	case k <= KeyF:
		return fmt.Sprintf("%X", uint8(k))
	case k == KeyPlus:
		return "+"
	case k == KeyMinus:
		return "-"
	case k == KeyGo:
		return "GO"
	case k == KeyAddr:
		return "AD"
	}
	return fmt.Sprintf("Key(%d)", uint8(k))
}

func (k Key) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Key) UnmarshalText(text []byte) error {
	key, err := ParseKey(string(text))
	if err != nil {
		return err
	}
	*k = key
	return nil
}

// ParseKey parses a keypad key name, case insensitive.
func ParseKey(s string) (Key, error) {
	s = strings.ToUpper(s)
	for k := range KeyCount {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown keypad key %q", s)
}

// Config holds the terminal key bound to each keypad key.
type Config struct {
	Keys [KeyCount]Code `toml:"keys"`
	Quit Code           `toml:"quit"`
}

// DefaultConfig binds hex digits to themselves (both cases), enter to GO and
// tab to AD. Ctrl-C quits.
func DefaultConfig() Config {
	var cfg Config
	for k := Key0; k <= KeyF; k++ {
		cfg.Keys[k] = keyCode(strings.ToLower(k.String())[0])
	}
	cfg.Keys[KeyPlus] = keyCode('+')
	cfg.Keys[KeyMinus] = keyCode('-')
	cfg.Keys[KeyGo] = keyCode('\r')
	cfg.Keys[KeyAddr] = keyCode('\t')
	cfg.Quit = keyCode(0x03)
	return cfg
}

// Provider translates terminal bytes into keypad keys.
type Provider struct {
	keys map[byte]Key
	quit Code
}

func NewProvider(cfg Config) *Provider {
	p := &Provider{keys: make(map[byte]Key), quit: cfg.Quit}
	for k, code := range cfg.Keys {
		if !code.Set {
			continue
		}
		p.keys[code.Byte] = Key(k)
		// Letters match regardless of case.
		if b := code.Byte; b >= 'a' && b <= 'z' {
			p.keys[b-'a'+'A'] = Key(k)
		}
	}
	return p
}

// Lookup returns the keypad key bound to b.
func (p *Provider) Lookup(b byte) (Key, bool) {
	k, ok := p.keys[b]
	return k, ok
}

// Run reads bytes from r and calls press for each bound key. It returns nil
// when the quit key is read or r is exhausted, and ctx.Err() when ctx is
// cancelled. The read itself is not interrupted by ctx.
func (p *Provider) Run(ctx context.Context, r io.Reader, press func(Key)) error {
	br := bufio.NewReader(r)
	for {
		b, err := br.ReadByte()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if p.quit.Set && b == p.quit.Byte {
			return nil
		}
		k, ok := p.Lookup(b)
		if !ok {
			log.ModInput.DebugZ("unbound key").Hex8("byte", b).End()
			continue
		}
		press(k)
	}
}
