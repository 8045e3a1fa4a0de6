package logging

import (
	"strings"
	"testing"
)

func TestInitialize_SilentByDefault(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")

	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if GetLogger().Core().Enabled(0) {
		t.Error("silent logger should not enable info level")
	}
}

func TestInitialize_FromEnv(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "debug")

	if err := InitializeFromEnv(); err != nil {
		t.Fatalf("InitializeFromEnv() error = %v", err)
	}
	if !GetLogger().Core().Enabled(-1) {
		t.Error("debug level should be enabled")
	}
	SetLogger(nil)
}

func TestHexDump(t *testing.T) {
	if got := hexDump(nil); got != "" {
		t.Errorf("hexDump(nil) = %q, want empty", got)
	}
	if got := hexDump([]byte{0xAB, 0x01}); got != "ab01" {
		t.Errorf("hexDump() = %q, want ab01", got)
	}

	long := make([]byte, 300)
	if got := hexDump(long); !strings.HasSuffix(got, "...") || len(got) != 512+3 {
		t.Errorf("hexDump(300 bytes) length = %d, want truncated to 515", len(got))
	}
}

func TestASCIIDump(t *testing.T) {
	got := asciiDump([]byte("A-BDSC\x00\n"))
	if got != "A-BDSC.." {
		t.Errorf("asciiDump() = %q, want %q", got, "A-BDSC..")
	}
}
