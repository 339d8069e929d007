package logtail

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestRead(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "test.log")

	var content strings.Builder
	var expectedAll []string
	for i := 1; i <= 10; i++ {
		line := fmt.Sprintf("Line %d", i)
		content.WriteString(line + "\n")
		expectedAll = append(expectedAll, line)
	}

	if err := os.WriteFile(logPath, []byte(content.String()), 0644); err != nil {
		t.Fatalf("failed to create test log file: %v", err)
	}

	tests := []struct {
		name     string
		maxLines int
		expected []string
	}{
		{name: "zero", maxLines: 0, expected: nil},
		{name: "negative", maxLines: -1, expected: nil},
		{name: "read partial (5)", maxLines: 5, expected: expectedAll[5:]},
		{name: "read exactly all (10)", maxLines: 10, expected: expectedAll},
		{name: "read more than exists (20)", maxLines: 20, expected: expectedAll},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Read(logPath, tt.maxLines)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Read() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRead_MissingFile(t *testing.T) {
	lines, err := Read(filepath.Join(t.TempDir(), "nope.log"), 10)
	if err != nil || lines != nil {
		t.Fatalf("Read(missing) = %v, %v; want nil, nil", lines, err)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantLevel string
		wantMsg   string
		wantAttrs []Attr
	}{
		{
			name:      "slog line with quoted values",
			input:     `time=2025-12-13T10:11:12.000Z level=WARN msg="stream disconnected" component=live error="read: unexpected EOF" retry_in=10s`,
			wantLevel: "WARN",
			wantMsg:   "stream disconnected",
			wantAttrs: []Attr{{"component", "live"}, {"error", "read: unexpected EOF"}, {"retry_in", "10s"}},
		},
		{
			name:      "escaped quote inside value",
			input:     `level=INFO msg="say \"hi\"" n=1`,
			wantLevel: "INFO",
			wantMsg:   `say "hi"`,
			wantAttrs: []Attr{{"n", "1"}},
		},
		{
			name:    "plain text line",
			input:   "panic: something broke",
			wantMsg: "panic: something broke",
		},
		{
			name:    "unterminated quote",
			input:   `level=INFO msg="oops`,
			wantMsg: `level=INFO msg="oops`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.input)
			if got.Level != tt.wantLevel || got.Msg != tt.wantMsg {
				t.Fatalf("Parse() = level %q msg %q, want %q %q", got.Level, got.Msg, tt.wantLevel, tt.wantMsg)
			}
			if !reflect.DeepEqual(got.Attrs, tt.wantAttrs) {
				t.Fatalf("Parse() attrs = %v, want %v", got.Attrs, tt.wantAttrs)
			}
		})
	}

	first := Parse(tests[0].input)
	if first.Time.IsZero() {
		t.Fatalf("Parse() did not read the time field")
	}
	if v, ok := first.Attr("component"); !ok || v != "live" {
		t.Fatalf("Attr(component) = %q, %v", v, ok)
	}
}

func TestReadEntries_SkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentinel.log")
	body := "level=INFO msg=one\n\nlevel=ERROR msg=two\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	entries, err := ReadEntries(path, 10)
	if err != nil {
		t.Fatalf("ReadEntries error = %v", err)
	}
	if len(entries) != 2 || entries[1].Level != "ERROR" || entries[1].Msg != "two" {
		t.Fatalf("ReadEntries = %+v, want two entries", entries)
	}
}
