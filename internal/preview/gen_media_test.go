package preview

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func fieldValue(a *Artifact, label string) string {
	for _, f := range a.Fields {
		if f.Label == label {
			return f.Value
		}
	}
	return ""
}

func writeBytes(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// wavFile builds a PCM WAV header followed by seconds of silence.
func wavFile(channels uint16, rate uint32, bits uint16, seconds int) []byte {
	byteRate := rate * uint32(channels) * uint32(bits/8)
	dataSize := byteRate * uint32(seconds)
	var b bytes.Buffer
	le := func(v any) { _ = binary.Write(&b, binary.LittleEndian, v) }
	b.WriteString("RIFF")
	le(uint32(36 + dataSize))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	le(uint32(16))
	le(uint16(1))
	le(channels)
	le(rate)
	le(byteRate)
	le(channels * bits / 8)
	le(bits)
	b.WriteString("data")
	le(dataSize)
	b.Write(make([]byte, dataSize))
	return b.Bytes()
}

func id3Frame(id, text string) []byte {
	var b bytes.Buffer
	b.WriteString(id)
	_ = binary.Write(&b, binary.BigEndian, uint32(len(text)+1))
	b.Write([]byte{0, 0, 0})
	b.WriteString(text)
	return b.Bytes()
}

// taggedMP3 builds an ID3v2.3 tag followed by a silent MPEG frame header.
func taggedMP3(title, artist string) []byte {
	frames := append(id3Frame("TIT2", title), id3Frame("TPE1", artist)...)
	size := len(frames)
	var b bytes.Buffer
	b.WriteString("ID3")
	b.Write([]byte{3, 0, 0})
	b.Write([]byte{byte(size >> 21 & 0x7f), byte(size >> 14 & 0x7f), byte(size >> 7 & 0x7f), byte(size & 0x7f)})
	b.Write(frames)
	b.Write([]byte{0xff, 0xfb, 0x90, 0x00})
	b.Write(make([]byte, 413))
	return b.Bytes()
}

func TestSniffMediaByMagic(t *testing.T) {
	ts := make([]byte, 3*tsPacketSize)
	for i := 0; i < len(ts); i += tsPacketSize {
		ts[i] = 0x47
	}
	cases := []struct {
		name string
		head []byte
		want string
	}{
		{"id3", []byte("ID3\x03\x00"), "mp3"},
		{"frame sync", []byte{0xff, 0xfb, 0x90, 0x00}, "mp3"},
		{"flac", []byte("fLaC\x00\x00"), "flac"},
		{"ogg", []byte("OggS\x00\x02"), "ogg"},
		{"wav", []byte("RIFF\x24\x00\x00\x00WAVEfmt "), "wav"},
		{"mp4", []byte("\x00\x00\x00\x20ftypisom\x00\x00"), "mp4"},
		{"m4a", []byte("\x00\x00\x00\x20ftypM4A \x00\x00"), "m4a"},
		{"mkv", []byte{0x1a, 0x45, 0xdf, 0xa3, 0x01}, "matroska"},
		{"transport stream", ts, "mpegts"},
		{"jpeg is not audio", []byte{0xff, 0xd8, 0xff, 0xe0}, ""},
		{"riff but not wave", []byte("RIFF\x24\x00\x00\x00AVI LIST"), ""},
	}
	for _, tc := range cases {
		if got := sniffMedia(tc.head); got != tc.want {
			t.Fatalf("%s: sniffMedia = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestMediaGeneratorDescribesWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.bin")
	writeBytes(t, path, wavFile(2, 8000, 16, 2))

	name, artifact := runDefault(t, path, Limits{})
	if name != "media" {
		t.Fatalf("generator %q, want media", name)
	}
	if artifact.Kind != KindMetadata {
		t.Fatalf("kind %v", artifact.Kind)
	}
	checks := map[string]string{
		"Container":   "wav",
		"Channels":    "2",
		"Sample rate": "8000 Hz",
		"Bits":        "16",
		"Duration":    "00:00:02.000",
	}
	for label, want := range checks {
		if got := fieldValue(artifact, label); got != want {
			t.Fatalf("%s = %q, want %q (fields %+v)", label, got, want, artifact.Fields)
		}
	}
}

func TestMediaGeneratorReadsAudioTags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "song.mp3")
	writeBytes(t, path, taggedMP3("Blue Train", "Coltrane"))

	name, artifact := runDefault(t, path, Limits{})
	if name != "media" {
		t.Fatalf("generator %q, want media", name)
	}
	if got := fieldValue(artifact, "Title"); got != "Blue Train" {
		t.Fatalf("title %q (fields %+v)", got, artifact.Fields)
	}
	if got := fieldValue(artifact, "Artist"); got != "Coltrane" {
		t.Fatalf("artist %q", got)
	}
}

func TestMediaGeneratorKeepsContainerWhenUnparsed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mkv")
	writeBytes(t, path, append([]byte{0x1a, 0x45, 0xdf, 0xa3}, make([]byte, 64)...))

	name, artifact := runDefault(t, path, Limits{})
	if name != "media" {
		t.Fatalf("generator %q, want media", name)
	}
	if got := fieldValue(artifact, "Container"); got != "matroska" {
		t.Fatalf("container %q", got)
	}
	if fieldValue(artifact, "Size") == "" {
		t.Fatalf("missing size field: %+v", artifact.Fields)
	}
}
