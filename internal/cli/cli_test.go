package cli

import (
	"os"
	"testing"
)

func TestOutputMode(t *testing.T) {
	tests := []struct {
		name  string
		mode  OutputMode
		tty   bool
		plain bool
	}{
		{"ModeTTY", ModeTTY, true, false},
		{"ModePlain", ModePlain, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Mode: tt.mode}
			if got := cfg.IsTTY(); got != tt.tty {
				t.Errorf("IsTTY() = %v, want %v", got, tt.tty)
			}
			if got := cfg.IsPlain(); got != tt.plain {
				t.Errorf("IsPlain() = %v, want %v", got, tt.plain)
			}
		})
	}
}

func TestNoColorDisablesTTY(t *testing.T) {
	original := os.Getenv("NO_COLOR")
	defer os.Setenv("NO_COLOR", original)

	os.Setenv("NO_COLOR", "1")
	cfg := DefaultConfig()
	if cfg.Mode != ModePlain {
		t.Error("NO_COLOR should force plain output")
	}
}

func TestSetDefault(t *testing.T) {
	original := Default()
	defer SetDefault(original)

	SetDefault(NewConfigWithMode(ModePlain))
	if EnableColors() {
		t.Error("plain mode should disable colors")
	}
}

func TestPlainModePassthrough(t *testing.T) {
	original := Default()
	defer SetDefault(original)
	SetDefault(NewConfigWithMode(ModePlain))

	for name, fn := range map[string]func(string) string{
		"Error":   Error,
		"Warning": Warning,
		"Success": Success,
		"Info":    Info,
		"Code":    Code,
		"Dim":     Dim,
		"Header":  Header,
	} {
		if got := fn("text"); got != "text" {
			t.Errorf("%s in plain mode = %q, want unstyled text", name, got)
		}
	}
	if got := Pipe(); got != "|" {
		t.Errorf("Pipe() in plain mode = %q", got)
	}
}
