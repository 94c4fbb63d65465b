package preview

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abema/go-mp4"
	"github.com/asticode/go-astits"
	"github.com/dhowden/tag"
	"github.com/dustin/go-humanize"

	fsutil "github.com/kk-code-lab/mill/internal/fs"
	"github.com/kk-code-lab/mill/internal/textutil"
)

const (
	tsProbeBytes  = 4 << 20
	wavMaxChunks  = 64
	mediaMaxLyric = 40
)

var tsStreamNames = map[astits.StreamType]string{
	0x01: "MPEG-1 video",
	0x02: "MPEG-2 video",
	0x03: "MPEG-1 audio",
	0x04: "MPEG-2 audio",
	0x0f: "AAC",
	0x11: "AAC (LATM)",
	0x1b: "H.264",
	0x24: "H.265",
	0x81: "AC-3",
	0x87: "E-AC-3",
}

// mediaGenerator summarises audio and video files: tags, duration and
// streams. Nothing is decoded.
type mediaGenerator struct{}

func (mediaGenerator) Name() string { return "media" }

func (mediaGenerator) CanHandle(job *Job) bool {
	return job.Sniff.Class == ClassMedia
}

func (g mediaGenerator) Generate(job *Job) (*Artifact, error) {
	path := job.Entry.Path
	f, err := os.Open(path)
	if err != nil {
		return nil, fsutil.Classify("preview", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	format := job.Sniff.Format
	a := &Artifact{
		Kind:  KindMetadata,
		Title: format,
		Fields: []Field{
			{Label: "Container", Value: format},
			{Label: "Size", Value: humanize.IBytes(uint64(job.Entry.EffectiveSize()))},
		},
	}

	var probeErr error
	switch format {
	case "mp4", "m4a":
		probeErr = g.probeMP4(f, a)
	case "mpegts":
		probeErr = g.probeTS(job, f, a)
	case "wav":
		probeErr = g.probeWAV(f, a)
	}
	if err := job.Check(); err != nil {
		return nil, err
	}
	if probeErr != nil {
		a.Lines = append(a.Lines, "stream details unavailable: "+textutil.SanitizeTerminalText(probeErr.Error()))
	}

	switch format {
	case "mp3", "flac", "ogg", "m4a", "mp4":
		g.readTags(f, a)
	}
	return a, nil
}

func (mediaGenerator) readTags(f *os.File, a *Artifact) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return
	}
	md, err := tag.ReadFrom(f)
	if err != nil {
		// Untagged files are common; the container fields still stand.
		return
	}
	add := func(label, value string) {
		if value = strings.TrimSpace(value); value != "" {
			a.Fields = append(a.Fields, Field{Label: label, Value: textutil.SanitizeTerminalText(value)})
		}
	}
	add("Title", md.Title())
	add("Artist", md.Artist())
	add("Album", md.Album())
	add("Album artist", md.AlbumArtist())
	add("Composer", md.Composer())
	add("Genre", md.Genre())
	if year := md.Year(); year > 0 {
		add("Year", fmt.Sprintf("%d", year))
	}
	if n, total := md.Track(); n > 0 {
		add("Track", countOf(n, total))
	}
	if n, total := md.Disc(); n > 0 {
		add("Disc", countOf(n, total))
	}
	if pic := md.Picture(); pic != nil {
		add("Cover", fmt.Sprintf("%s, %s", pic.MIMEType, humanize.IBytes(uint64(len(pic.Data)))))
	}
	add("Tag format", string(md.Format()))

	if lyrics := strings.TrimSpace(md.Lyrics()); lyrics != "" {
		lines := strings.Split(lyrics, "\n")
		if len(lines) > mediaMaxLyric {
			lines = lines[:mediaMaxLyric]
			a.Truncated = true
		}
		for _, line := range lines {
			a.Lines = append(a.Lines, textutil.SanitizeTerminalText(line))
		}
	}
}

func (mediaGenerator) probeMP4(f *os.File, a *Artifact) error {
	info, err := mp4.Probe(f)
	if err != nil {
		return fmt.Errorf("probe mp4: %w", err)
	}
	a.Fields = append(a.Fields, Field{Label: "Brand", Value: strings.TrimSpace(string(info.MajorBrand[:]))})
	if info.Timescale > 0 {
		a.Fields = append(a.Fields, Field{Label: "Duration", Value: formatCueTime(scaleDuration(info.Duration, info.Timescale))})
	}
	a.Fields = append(a.Fields, Field{Label: "Tracks", Value: fmt.Sprintf("%d", len(info.Tracks))})
	for _, track := range info.Tracks {
		line := fmt.Sprintf("track %d  %s", track.TrackID, mp4CodecName(track))
		if track.Timescale > 0 {
			line += "  " + formatCueTime(scaleDuration(track.Duration, track.Timescale))
		}
		if track.Encrypted {
			line += "  encrypted"
		}
		a.Lines = append(a.Lines, line)
	}
	return nil
}

func mp4CodecName(track *mp4.Track) string {
	switch track.Codec {
	case mp4.CodecAVC1:
		if track.AVC != nil {
			return fmt.Sprintf("H.264 %dx%d", track.AVC.Width, track.AVC.Height)
		}
		return "H.264"
	case mp4.CodecMP4A:
		if track.MP4A != nil && track.MP4A.ChannelCount > 0 {
			return fmt.Sprintf("AAC %d ch", track.MP4A.ChannelCount)
		}
		return "AAC"
	default:
		return "unknown codec"
	}
}

// probeTS demuxes the head of a transport stream until the first program
// map table.
func (mediaGenerator) probeTS(job *Job, f *os.File, a *Artifact) error {
	dmx := astits.NewDemuxer(job.Context(), bufio.NewReader(io.LimitReader(f, tsProbeBytes)))
	for {
		if err := job.Check(); err != nil {
			return err
		}
		data, err := dmx.NextData()
		if err != nil {
			if errors.Is(err, astits.ErrNoMorePackets) {
				return errors.New("no program map table found")
			}
			return fmt.Errorf("demux: %w", err)
		}
		if data.PMT == nil {
			continue
		}
		a.Fields = append(a.Fields,
			Field{Label: "Program", Value: fmt.Sprintf("%d", data.PMT.ProgramNumber)},
			Field{Label: "Streams", Value: fmt.Sprintf("%d", len(data.PMT.ElementaryStreams))},
		)
		for _, es := range data.PMT.ElementaryStreams {
			name, ok := tsStreamNames[es.StreamType]
			if !ok {
				name = fmt.Sprintf("stream type 0x%02x", uint8(es.StreamType))
			}
			a.Lines = append(a.Lines, fmt.Sprintf("pid 0x%04x  %s", es.ElementaryPID, name))
		}
		return nil
	}
}

// probeWAV walks the RIFF chunks for the format and the data length.
func (mediaGenerator) probeWAV(f *os.File, a *Artifact) error {
	if _, err := f.Seek(12, io.SeekStart); err != nil {
		return err
	}
	var (
		channels, bits uint16
		rate, byteRate uint32
		haveFmt        bool
		header         [8]byte
	)
	for range wavMaxChunks {
		if _, err := io.ReadFull(f, header[:]); err != nil {
			break
		}
		id := string(header[:4])
		size := binary.LittleEndian.Uint32(header[4:])
		switch id {
		case "fmt ":
			var body [16]byte
			if size < uint32(len(body)) {
				return fmt.Errorf("short fmt chunk (%d bytes)", size)
			}
			if _, err := io.ReadFull(f, body[:]); err != nil {
				return err
			}
			channels = binary.LittleEndian.Uint16(body[2:])
			rate = binary.LittleEndian.Uint32(body[4:])
			byteRate = binary.LittleEndian.Uint32(body[8:])
			bits = binary.LittleEndian.Uint16(body[14:])
			haveFmt = true
			a.Fields = append(a.Fields,
				Field{Label: "Channels", Value: fmt.Sprintf("%d", channels)},
				Field{Label: "Sample rate", Value: fmt.Sprintf("%d Hz", rate)},
				Field{Label: "Bits", Value: fmt.Sprintf("%d", bits)},
			)
			size -= uint32(len(body))
		case "data":
			if haveFmt && byteRate > 0 {
				d := time.Duration(float64(size) / float64(byteRate) * float64(time.Second))
				a.Fields = append(a.Fields, Field{Label: "Duration", Value: formatCueTime(d)})
			}
			return nil
		}
		// Chunks are padded to an even length.
		if _, err := f.Seek(int64(size+size&1), io.SeekCurrent); err != nil {
			return err
		}
	}
	if !haveFmt {
		return errors.New("no fmt chunk")
	}
	return nil
}

func scaleDuration(units uint64, timescale uint32) time.Duration {
	return time.Duration(float64(units) / float64(timescale) * float64(time.Second))
}

func countOf(n, total int) string {
	if total > 0 {
		return fmt.Sprintf("%d/%d", n, total)
	}
	return fmt.Sprintf("%d", n)
}
