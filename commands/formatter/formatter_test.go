package formatter

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{" csv ", FormatCSV, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPrintTableIgnoresColorCodes(t *testing.T) {
	var buf bytes.Buffer
	out := New(&buf, FormatTable)
	out.PrintTable([]string{"FILE", "STATE"}, [][]string{
		{"a.png", "\x1b[32msucceeded\x1b[0m"},
		{"long-name.wav", "failed"},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("Expected 4 lines, got %d: %q", len(lines), buf.String())
	}
	if lines[0] != "FILE          | STATE    " {
		t.Errorf("Unexpected header %q", lines[0])
	}
	if lines[1] != "--------------+----------" {
		t.Errorf("Unexpected separator %q", lines[1])
	}
	for _, l := range lines {
		if VisibleWidth(l) != VisibleWidth(lines[0]) {
			t.Errorf("Misaligned row %q", l)
		}
	}
}

func TestPrintCSVStripsColor(t *testing.T) {
	var buf bytes.Buffer
	if err := New(&buf, FormatCSV).Print([]string{"state"}, [][]string{{"\x1b[31mfailed\x1b[0m"}}, nil); err != nil {
		t.Fatalf("Print failed: %v", err)
	}
	if buf.String() != "state\nfailed\n" {
		t.Errorf("Unexpected CSV %q", buf.String())
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := New(&buf, FormatJSON).Print(nil, nil, map[string]int{"total": 3}); err != nil {
		t.Fatalf("Print failed: %v", err)
	}
	if !strings.Contains(buf.String(), `"total": 3`) {
		t.Errorf("Unexpected JSON %q", buf.String())
	}
}

func TestTruncateAndBytes(t *testing.T) {
	if got := Truncate("/very/long/path/photo.png", 10); got != "…photo.png" {
		t.Errorf("Truncate = %q", got)
	}
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate = %q", got)
	}

	sizes := map[int64]string{
		512:             "512 B",
		2048:            "2.0 KiB",
		5 * 1024 * 1024: "5.0 MiB",
	}
	for n, want := range sizes {
		if got := Bytes(n); got != want {
			t.Errorf("Bytes(%d) = %q, want %q", n, got, want)
		}
	}
}
