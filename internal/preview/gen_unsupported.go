package preview

import (
	"os"

	fsutil "github.com/kk-code-lab/mill/internal/fs"
)

type unsupportedGenerator struct{}

func (unsupportedGenerator) Name() string { return "unsupported" }

func (unsupportedGenerator) CanHandle(job *Job) bool {
	return job.Sniff.Class == ClassSpecial
}

func (unsupportedGenerator) Generate(job *Job) (*Artifact, error) {
	e := job.Entry
	a := &Artifact{Kind: KindUnsupported, Title: describeSpecial(e)}
	if e.IsSymlink() {
		a.Fields = append(a.Fields, Field{Label: "Target", Value: e.LinkTarget})
	}
	a.Fields = append(a.Fields, Field{Label: "Mode", Value: e.Mode.String()})
	return a, nil
}

func describeSpecial(e fsutil.Entry) string {
	if e.IsSymlink() && e.Dangling {
		return "dangling symlink"
	}
	mode := e.Mode
	switch {
	case mode&os.ModeNamedPipe != 0:
		return "named pipe"
	case mode&os.ModeSocket != 0:
		return "socket"
	case mode&os.ModeCharDevice != 0:
		return "character device"
	case mode&os.ModeDevice != 0:
		return "block device"
	default:
		return "special file"
	}
}
