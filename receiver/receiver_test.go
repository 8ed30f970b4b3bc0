package receiver

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParse(t *testing.T) {
	tests := []struct {
		line string
		want string
		ok   bool
	}{
		{"UID Value: 012E4C3A11223344", "012E4C3A11223344", true},
		{"UID Value: 04A1FF02", "012E000004A1FF02", true},
		{"UID Value: 1122334455667788", "012E334455667788", true},
		{"UID Value: 0102030405060708090A", "012E030405060708090A", true},
		{"  UID Value: ABCDEF  ", "012E000000ABCDEF", true},
		{"Found a FeliCa card!", "", false},
		{"UID Value: ", "", false},
		{"UID Value: deadbeef", "", false},
	}
	for _, tt := range tests {
		got, ok := Parse(tt.line)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Parse(%q) = %q, %v; want %q, %v", tt.line, got, ok, tt.want, tt.ok)
		}
	}
}

func TestWriteCode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "felica.txt")
	if err := os.WriteFile(path, []byte("old contents that are longer"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := WriteCode(path, "012E000004A1FF02"); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "012E000004A1FF02" {
		t.Fatalf("unexpected contents %q", b)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("temp file left behind")
	}
}

func TestWriteCodeMissingDir(t *testing.T) {
	if err := WriteCode(filepath.Join(t.TempDir(), "nope", "felica.txt"), "x"); err == nil {
		t.Fatal("expected error")
	}
}

// chunkReader returns one chunk per Read, with empty reads standing in for
// serial timeouts.
type chunkReader struct {
	chunks []string
	err    error
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.chunks) == 0 {
		if c.err != nil {
			return 0, c.err
		}
		return 0, io.EOF
	}
	n := copy(p, c.chunks[0])
	c.chunks = c.chunks[1:]
	return n, nil
}

func TestRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "felica.txt")
	src := &chunkReader{chunks: []string{
		"\r\nFound a FeliCa card!\r\nUID Val",
		"",
		"ue: 012E4C3A11223344\r\n",
		"\nFound a ISO14443A card!\nUID Value: 04A1FF02",
	}}

	var codes []string
	r := New(src, path, zerolog.Nop())
	r.OnCode = func(code string) { codes = append(codes, code) }

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []string{"012E4C3A11223344", "012E000004A1FF02"}
	if strings.Join(codes, ",") != strings.Join(want, ",") {
		t.Fatalf("codes = %v, want %v", codes, want)
	}
	b, _ := os.ReadFile(path)
	if string(b) != want[1] {
		t.Fatalf("file holds %q, want last code", b)
	}
}

func TestRunReadError(t *testing.T) {
	boom := errors.New("port gone")
	r := New(&chunkReader{err: boom}, filepath.Join(t.TempDir(), "f"), zerolog.Nop())
	if err := r.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := New(strings.NewReader("UID Value: 01\n"), filepath.Join(t.TempDir(), "f"), zerolog.Nop())
	called := false
	r.OnCode = func(string) { called = true }
	if err := r.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if called {
		t.Fatal("no lines should be handled after cancel")
	}
}
