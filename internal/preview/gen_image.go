package preview

import (
	"fmt"
	"image"
	"io"
	"os"

	"github.com/disintegration/imaging"
	exif "github.com/dsoprea/go-exif/v3"
	"github.com/dustin/go-humanize"

	fsutil "github.com/kk-code-lab/mill/internal/fs"
)

const exifScanLimit = 4 << 20

var exifLabels = []struct {
	tag   string
	label string
}{
	{"Make", "Camera make"},
	{"Model", "Camera model"},
	{"DateTimeOriginal", "Taken"},
	{"ExposureTime", "Exposure"},
	{"FNumber", "Aperture"},
	{"ISOSpeedRatings", "ISO"},
	{"FocalLength", "Focal length"},
}

type imageGenerator struct{}

func (imageGenerator) Name() string { return "image" }

func (imageGenerator) CanHandle(job *Job) bool {
	return job.Sniff.Class == ClassImage && job.Entry.EffectiveSize() <= job.Limits.ImageMaxBytes
}

func (imageGenerator) Generate(job *Job) (*Artifact, error) {
	path := job.Entry.Path
	f, err := os.Open(path)
	if err != nil {
		return nil, fsutil.Classify("preview", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", job.Sniff.Format, err)
	}
	if err := job.Check(); err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	var scaled *image.NRGBA
	if bounds.Dx() > job.Limits.ImageWidth || bounds.Dy() > job.Limits.ImageHeight {
		scaled = imaging.Fit(img, job.Limits.ImageWidth, job.Limits.ImageHeight, imaging.Lanczos)
	} else {
		scaled = imaging.Clone(img)
	}
	if err := job.Check(); err != nil {
		return nil, err
	}

	fields := []Field{
		{Label: "Format", Value: job.Sniff.Format},
		{Label: "Dimensions", Value: fmt.Sprintf("%dx%d", bounds.Dx(), bounds.Dy())},
		{Label: "Size", Value: humanize.IBytes(uint64(job.Entry.EffectiveSize()))},
	}
	if _, err := f.Seek(0, io.SeekStart); err == nil {
		fields = append(fields, exifFields(io.LimitReader(f, exifScanLimit))...)
	}

	return &Artifact{
		Kind:   KindImage,
		Title:  fmt.Sprintf("%s image %dx%d", job.Sniff.Format, bounds.Dx(), bounds.Dy()),
		Image:  scaled,
		Fields: fields,
	}, nil
}

// exifFields extracts a few camera tags. Images without EXIF yield nothing.
func exifFields(r io.Reader) []Field {
	raw, err := exif.SearchAndExtractExifWithReader(r)
	if err != nil {
		return nil
	}
	tags, _, err := exif.GetFlatExifData(raw, nil)
	if err != nil {
		return nil
	}
	values := make(map[string]string, len(tags))
	for _, tag := range tags {
		if _, seen := values[tag.TagName]; !seen {
			values[tag.TagName] = tag.FormattedFirst
		}
	}
	var fields []Field
	for _, l := range exifLabels {
		if v, ok := values[l.tag]; ok && v != "" {
			fields = append(fields, Field{Label: l.label, Value: v})
		}
	}
	return fields
}
