package input

import (
	"context"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/google/go-cmp/cmp"
)

func TestProviderRun(t *testing.T) {
	p := NewProvider(DefaultConfig())

	var got []Key
	err := p.Run(context.Background(), strings.NewReader("1aF+-\r\tz\x03ab"), func(k Key) {
		got = append(got, k)
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []Key{Key1, KeyA, KeyF, KeyPlus, KeyMinus, KeyGo, KeyAddr}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigTOML(t *testing.T) {
	const doc = `
keys = ["key 0", "key 1", "key 2", "key 3", "key 4", "key 5", "key 6", "key 7",
        "key 8", "key 9", "key a", "key b", "key c", "key d", "key e", "key f",
        "key space", "key backspace", "key g", "key ctrl-a"]
quit = "key escape"
`
	var cfg Config
	if _, err := toml.Decode(doc, &cfg); err != nil {
		t.Fatal(err)
	}

	p := NewProvider(cfg)
	for b, want := range map[byte]Key{' ': KeyPlus, 0x7F: KeyMinus, 'G': KeyGo, 0x01: KeyAddr} {
		if k, ok := p.Lookup(b); !ok || k != want {
			t.Errorf("Lookup(%q) = %v, %v, want %v", b, k, ok, want)
		}
	}
	if !cfg.Quit.Set || cfg.Quit.Byte != 0x1B {
		t.Errorf("quit = %+v, want escape", cfg.Quit)
	}

	txt, err := cfg.Keys[KeyAddr].MarshalText()
	if err != nil || string(txt) != "key ctrl-a" {
		t.Errorf("MarshalText = %q, %v", txt, err)
	}
}

func TestBadCodes(t *testing.T) {
	for _, s := range []string{"joybtn a", "key", "key ab", "key \x01"} {
		var c Code
		if err := c.UnmarshalText([]byte(s)); err == nil {
			t.Errorf("UnmarshalText(%q) succeeded", s)
		}
	}
}

func TestParseKey(t *testing.T) {
	for _, s := range []string{"0", "a", "F", "+", "-", "go", "AD"} {
		k, err := ParseKey(s)
		if err != nil {
			t.Fatalf("ParseKey(%q): %v", s, err)
		}
		if !strings.EqualFold(k.String(), s) {
			t.Errorf("ParseKey(%q).String() = %q", s, k)
		}
	}
	if _, err := ParseKey("Z"); err == nil {
		t.Error("ParseKey(Z) succeeded")
	}
}
