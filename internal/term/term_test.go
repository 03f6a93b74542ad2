package term

import (
	"os"
	"testing"

	"github.com/backmassage/streammux/internal/config"
)

func TestResolve(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	t.Setenv("TERM", "xterm-256color")

	tests := []struct {
		name string
		mode config.ColorMode
		tty  bool
		want bool
	}{
		{"always ignores tty", config.ColorAlways, false, true},
		{"never ignores tty", config.ColorNever, true, false},
		{"auto on tty", config.ColorAuto, true, true},
		{"auto off tty", config.ColorAuto, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolve(tt.mode, tt.tty); got != tt.want {
				t.Errorf("resolve(%q, %v) = %v, want %v", tt.mode, tt.tty, got, tt.want)
			}
		})
	}
}

func TestResolve_NoColorEnv(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	if resolve(config.ColorAuto, true) {
		t.Error("NO_COLOR must disable auto colors")
	}
	t.Setenv("NO_COLOR", "")
	t.Setenv("TERM", "dumb")
	if resolve(config.ColorAuto, true) {
		t.Error("TERM=dumb must disable auto colors")
	}
}

func TestConfigure(t *testing.T) {
	defer Configure(config.ColorNever)
	if !Configure(config.ColorAlways) || !Enabled() {
		t.Error("ColorAlways should enable colors")
	}
	if Configure(config.ColorNever) || Enabled() {
		t.Error("ColorNever should disable colors")
	}
}

func TestIsTerminal_RegularFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "x")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if IsTerminal(f) {
		t.Error("a regular file is not a terminal")
	}
	if IsTerminal(nil) {
		t.Error("nil is not a terminal")
	}
}
