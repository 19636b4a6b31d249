package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestInit_JSONOutputAndLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "warn", Format: "json", Output: &buf})
	defer Init(Config{})

	Info().Msg("hidden")
	Warn().Str("user", "alice").Msg("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info 级别不应输出：%s", out)
	}
	if !strings.Contains(out, `"user":"alice"`) || !strings.Contains(out, `"level":"warn"`) {
		t.Fatalf("输出缺少字段：%s", out)
	}
}

func TestWith_AddsComponent(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Output: &buf})
	defer Init(Config{})

	l := With("fetch")
	l.Debug().Msg("x")
	if !strings.Contains(buf.String(), `"component":"fetch"`) {
		t.Fatalf("缺少 component 字段：%s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":    zerolog.DebugLevel,
		"WARN":     zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"disabled": zerolog.Disabled,
		"":         zerolog.InfoLevel,
		"nope":     zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q)=%v，期望 %v", in, got, want)
		}
	}
	if ValidLevel("nope") || !ValidLevel("") || !ValidLevel("Info") {
		t.Fatalf("ValidLevel 不符合预期")
	}
}
