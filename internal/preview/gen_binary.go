package preview

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

const hexLineWidth = 16

type binaryGenerator struct{}

func (binaryGenerator) Name() string { return "binary" }

func (binaryGenerator) CanHandle(job *Job) bool {
	return true
}

func (binaryGenerator) Generate(job *Job) (*Artifact, error) {
	content := job.Sniff.Head
	if len(content) > job.Limits.HexBytes {
		content = content[:job.Limits.HexBytes]
	}
	total := job.Entry.EffectiveSize()

	lines := make([]string, 0, len(content)/hexLineWidth+2)
	for offset := 0; offset < len(content); offset += hexLineWidth {
		chunk := content[offset:min(offset+hexLineWidth, len(content))]
		lines = append(lines, formatHexLine(offset, chunk))
	}
	truncated := int64(len(content)) < total
	if truncated {
		lines = append(lines, fmt.Sprintf("… (%s not shown)", humanize.IBytes(uint64(total-int64(len(content))))))
	}
	return &Artifact{
		Kind:      KindText,
		Title:     "binary, " + humanize.IBytes(uint64(max(total, 0))),
		Lines:     lines,
		Truncated: truncated,
	}, nil
}

func formatHexLine(offset int, chunk []byte) string {
	var builder strings.Builder
	builder.Grow(80)
	fmt.Fprintf(&builder, "%08X  ", offset)

	for i := 0; i < hexLineWidth; i++ {
		if i < len(chunk) {
			fmt.Fprintf(&builder, "%02X ", chunk[i])
		} else {
			builder.WriteString("   ")
		}
		if i == 7 {
			builder.WriteString(" ")
		}
	}

	builder.WriteString(" |")
	for _, b := range chunk {
		if b >= 0x20 && b <= 0x7e {
			builder.WriteByte(b)
		} else {
			builder.WriteByte('.')
		}
	}
	builder.WriteString("|")
	return builder.String()
}
