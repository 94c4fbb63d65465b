package preview

import (
	"archive/zip"
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/disintegration/imaging"

	fsutil "github.com/kk-code-lab/mill/internal/fs"
)

func prepareJob(t *testing.T, path string, limits Limits) *Job {
	t.Helper()
	e, err := fsutil.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	sniff, err := sniffEntry(context.Background(), e)
	if err != nil {
		t.Fatalf("sniff: %v", err)
	}
	return &Job{Entry: e, Key: KeyFor(e), Limits: limits.withDefaults(), Sniff: sniff}
}

func runDefault(t *testing.T, path string, limits Limits) (string, *Artifact) {
	t.Helper()
	job := prepareJob(t, path, limits)
	gen := DefaultRegistry().Select(job)
	artifact, err := gen.Generate(job)
	if err != nil {
		t.Fatalf("%s generator: %v", gen.Name(), err)
	}
	return gen.Name(), artifact
}

func writeZip(t *testing.T, path string, names ...string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	zw := zip.NewWriter(f)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip entry: %v", err)
		}
		if _, err := w.Write([]byte("content of " + name)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("file close: %v", err)
	}
}

func TestImageGeneratorScalesToFit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "b.png")
	img := imaging.New(2000, 1000, color.NRGBA{R: 200, A: 255})
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("save png: %v", err)
	}

	name, artifact := runDefault(t, path, Limits{})
	if name != "image" || artifact.Kind != KindImage {
		t.Fatalf("got generator %q kind %v", name, artifact.Kind)
	}
	bounds := artifact.Image.Bounds()
	if bounds.Dx() != 960 || bounds.Dy() != 480 {
		t.Fatalf("scaled to %dx%d, want 960x480", bounds.Dx(), bounds.Dy())
	}
	if artifact.Fields[1].Value != "2000x1000" {
		t.Fatalf("dimensions field = %q", artifact.Fields[1].Value)
	}
}

func TestArchiveGeneratorListsEntriesByMagic(t *testing.T) {
	dir := t.TempDir()
	// The extension lies; the magic bytes decide.
	path := filepath.Join(dir, "notes.txt")
	writeZip(t, path, "one.txt", "two.txt", "sub/three.txt")

	name, artifact := runDefault(t, path, Limits{})
	if name != "archive" || artifact.Kind != KindMetadata {
		t.Fatalf("got generator %q kind %v", name, artifact.Kind)
	}
	if len(artifact.Lines) != 3 {
		t.Fatalf("listed %d entries, want 3: %v", len(artifact.Lines), artifact.Lines)
	}
	if !strings.HasSuffix(artifact.Lines[2], "sub/three.txt") {
		t.Fatalf("unexpected listing line %q", artifact.Lines[2])
	}
}

func TestArchiveGeneratorCapsListing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "many.zip")
	writeZip(t, path, "a", "b", "c", "d", "e")

	_, artifact := runDefault(t, path, Limits{ArchiveEntries: 2})
	if len(artifact.Lines) != 2 || !artifact.Truncated {
		t.Fatalf("expected 2 lines and truncation, got %d truncated=%v", len(artifact.Lines), artifact.Truncated)
	}
}

func TestTextGeneratorTruncatesByLinesAndBytes(t *testing.T) {
	dir := t.TempDir()
	byLines := filepath.Join(dir, "lines.txt")
	if err := os.WriteFile(byLines, []byte(strings.Repeat("row\n", 10)), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	name, artifact := runDefault(t, byLines, Limits{TextLines: 5})
	if name != "text" || len(artifact.Lines) != 5 || !artifact.Truncated {
		t.Fatalf("got %q lines=%d truncated=%v", name, len(artifact.Lines), artifact.Truncated)
	}

	byBytes := filepath.Join(dir, "bytes.txt")
	if err := os.WriteFile(byBytes, []byte(strings.Repeat("abcdefg\n", 512)), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, artifact = runDefault(t, byBytes, Limits{TextBytes: 1024})
	if !artifact.Truncated {
		t.Fatalf("expected byte-budget truncation")
	}

	small := filepath.Join(dir, "small.txt")
	if err := os.WriteFile(small, []byte("a\tb\n\x1b[31mred\x1b[0m\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, artifact = runDefault(t, small, Limits{})
	if artifact.Truncated || len(artifact.Lines) != 2 {
		t.Fatalf("small file: %+v", artifact)
	}
	if artifact.Lines[0] != "a   b" || artifact.Lines[1] != "red" {
		t.Fatalf("lines not cleaned: %q", artifact.Lines)
	}
}

func TestTextGeneratorDecodesUTF16(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wide.txt")
	content := []byte{0xFF, 0xFE, 'h', 0, 'i', 0, '\n', 0}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, artifact := runDefault(t, path, Limits{})
	if len(artifact.Lines) != 1 || artifact.Lines[0] != "hi" {
		t.Fatalf("decoded %q", artifact.Lines)
	}
	if artifact.Title != "text (UTF-16LE)" {
		t.Fatalf("title %q", artifact.Title)
	}
}

func TestTextGeneratorStopsWhenCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	job := prepareJob(t, path, Limits{})
	var flag atomic.Bool
	flag.Store(true)
	job.cancelled = &flag

	if _, err := (textGenerator{}).Generate(job); !errors.Is(err, fsutil.ErrCancelled) {
		t.Fatalf("got %v, want ErrCancelled", err)
	}
}

func TestHighlightGeneratorProducesStyledLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.go")
	src := "package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	name, artifact := runDefault(t, path, Limits{})
	if name != "highlight" || artifact.Kind != KindHighlighted {
		t.Fatalf("got generator %q kind %v", name, artifact.Kind)
	}
	if len(artifact.Styled) != len(artifact.Lines) || artifact.Lines[0] != "package main" {
		t.Fatalf("unexpected lines %q", artifact.Lines)
	}
	if artifact.Lines[3] != "    println(\"hi\")" {
		t.Fatalf("tab not expanded: %q", artifact.Lines[3])
	}
}

func TestHighlightGeneratorIndentsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte(`{"a":1,"b":[true]}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, artifact := runDefault(t, path, Limits{})
	if len(artifact.Lines) < 4 {
		t.Fatalf("json not indented: %q", artifact.Lines)
	}
}

func TestMarkdownGeneratorRendersPlainText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "README.md")
	if err := os.WriteFile(path, []byte("# Title\n\nSome *text*.\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	name, artifact := runDefault(t, path, Limits{})
	if name != "markdown" {
		t.Fatalf("generator %q", name)
	}
	joined := strings.Join(artifact.Lines, "\n")
	if !strings.Contains(joined, "Title") || strings.Contains(joined, "\x1b") {
		t.Fatalf("unexpected render %q", joined)
	}
}

func TestSubtitleGeneratorSummarisesCues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "movie.srt")
	srt := "1\n00:00:01,000 --> 00:00:02,500\nHello\n\n2\n00:00:03,000 --> 00:00:04,000\nWorld\n"
	if err := os.WriteFile(path, []byte(srt), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	name, artifact := runDefault(t, path, Limits{})
	if name != "subtitle" {
		t.Fatalf("generator %q", name)
	}
	if artifact.Fields[0].Value != "2" {
		t.Fatalf("cue count %q", artifact.Fields[0].Value)
	}
	if artifact.Lines[0] != "00:00:01.000  Hello" {
		t.Fatalf("first cue %q", artifact.Lines[0])
	}
}

func TestBinaryGeneratorDumpsHex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob")
	if err := os.WriteFile(path, []byte{0, 1, 2, 'A', 0, 0, 0, 0xff}, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	name, artifact := runDefault(t, path, Limits{})
	if name != "binary" {
		t.Fatalf("generator %q", name)
	}
	if !strings.HasPrefix(artifact.Lines[0], "00000000  00 01 02 41") {
		t.Fatalf("hex line %q", artifact.Lines[0])
	}
	if !strings.HasSuffix(artifact.Lines[0], "|...A....|") {
		t.Fatalf("ascii column %q", artifact.Lines[0])
	}
}

func TestDirectoryGeneratorCountsChildren(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "f"), make([]byte, 2048), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	name, artifact := runDefault(t, dir, Limits{})
	if name != "directory" || artifact.Kind != KindMetadata {
		t.Fatalf("got generator %q kind %v", name, artifact.Kind)
	}
	if artifact.Fields[0].Value != "2" || artifact.Fields[1].Value != "2.0 KiB" {
		t.Fatalf("fields %+v", artifact.Fields)
	}
	if artifact.Lines[0] != "sub/" || artifact.Lines[1] != "f" {
		t.Fatalf("listing %q", artifact.Lines)
	}
}

func TestDanglingSymlinkIsUnsupported(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(dir, "dangling")
	if err := os.Symlink(filepath.Join(dir, "missing"), link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	name, artifact := runDefault(t, link, Limits{})
	if name != "unsupported" || artifact.Kind != KindUnsupported {
		t.Fatalf("got generator %q kind %v", name, artifact.Kind)
	}
	if artifact.Title != "dangling symlink" {
		t.Fatalf("title %q", artifact.Title)
	}
}
