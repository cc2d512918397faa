// Package image is the per-file scrub pipeline: sniff the container, pull
// out the metadata segment, parse it, apply the edit plan, and rebuild the
// container around the re-serialized segment. Everything operates on
// in-memory byte buffers; reading and writing files is the caller's job.
package image

import (
	"fmt"

	"github.com/proxypixel/metascrub/core"
	"github.com/proxypixel/metascrub/core/jpeg"
	"github.com/proxypixel/metascrub/core/plan"
	"github.com/proxypixel/metascrub/core/png"
	"github.com/proxypixel/metascrub/core/tiff"
)

// Scrub applies the edit plan to one image buffer. The input buffer is
// never modified. Result.Output is nil when nothing changed, either because
// the container carries no metadata (Report.NoMetadata) or because the plan
// matched nothing. Pixel data passes through byte-identical in every case.
//
// A partially unreadable metadata segment is a hard error: re-serializing
// a lossy tree could silently drop tags the plan meant to keep, so the
// file is left untouched and reported instead.
func Scrub(data []byte, p *plan.Plan, opts core.Options) (*core.Result, error) {
	kind, err := core.DetectContainer(data)
	if err != nil {
		return nil, err
	}
	switch kind {
	case core.JPEG:
		return scrubJPEG(data, p, opts)
	case core.PNG:
		return scrubPNG(data, p, opts)
	case core.TIFF:
		return scrubTIFF(data, p)
	}
	return nil, core.ErrUnsupportedFormat
}

// Inspect parses the metadata of one image buffer without mutating
// anything. Parsing is best-effort: a partial tree comes back together
// with warnings describing what was dropped.
func Inspect(data []byte) (*tiff.Tree, core.Container, []string, error) {
	kind, err := core.DetectContainer(data)
	if err != nil {
		return nil, kind, nil, err
	}

	var seg []byte
	switch kind {
	case core.JPEG:
		segs, err := jpeg.Split(data)
		if err != nil {
			return nil, kind, nil, err
		}
		idx, payload := jpeg.FindExif(segs)
		if idx < 0 {
			return nil, kind, nil, core.ErrNoMetadata
		}
		seg = payload
	case core.PNG:
		chunks, err := png.Split(data)
		if err != nil {
			return nil, kind, nil, err
		}
		idx, payload := png.FindExif(chunks)
		if idx < 0 {
			return nil, kind, nil, core.ErrNoMetadata
		}
		seg = payload
	case core.TIFF:
		seg = data
	}

	tree, perr := tiff.Parse(seg)
	if tree == nil {
		return nil, kind, nil, fmt.Errorf("parsing %s metadata: %w", kind, perr)
	}
	var warnings []string
	if perr != nil {
		warnings = append(warnings, perr.Error())
	}
	return tree, kind, warnings, nil
}

func scrubJPEG(data []byte, p *plan.Plan, opts core.Options) (*core.Result, error) {
	segs, err := jpeg.Split(data)
	if err != nil {
		return nil, err
	}
	idx, payload := jpeg.FindExif(segs)
	if idx < 0 {
		return unchanged(core.JPEG), nil
	}

	newSeg, report, err := rewriteSegment(payload, p, opts)
	if err != nil {
		return nil, err
	}
	report.Container = core.JPEG
	if !report.Changed {
		return &core.Result{Report: *report}, nil
	}
	return &core.Result{
		Output: jpeg.Join(jpeg.WithExif(segs, idx, newSeg)),
		Report: *report,
	}, nil
}

func scrubPNG(data []byte, p *plan.Plan, opts core.Options) (*core.Result, error) {
	chunks, err := png.Split(data)
	if err != nil {
		return nil, err
	}
	idx, payload := png.FindExif(chunks)
	if idx < 0 {
		return unchanged(core.PNG), nil
	}

	newSeg, report, err := rewriteSegment(payload, p, opts)
	if err != nil {
		return nil, err
	}
	report.Container = core.PNG
	if !report.Changed {
		return &core.Result{Report: *report}, nil
	}
	return &core.Result{
		Output: png.Join(png.WithExif(chunks, idx, newSeg)),
		Report: *report,
	}, nil
}

func scrubTIFF(data []byte, p *plan.Plan) (*core.Result, error) {
	tree, perr := tiff.Parse(data)
	if tree == nil {
		return nil, fmt.Errorf("parsing tiff: %w", perr)
	}
	if perr != nil {
		return nil, fmt.Errorf("tiff metadata partially unreadable, file left untouched: %w", perr)
	}
	if tree.Empty() {
		return unchanged(core.TIFF), nil
	}

	// A bare TIFF is its own metadata segment: pixel-layout tags must
	// survive strip-all or the image is gone with them.
	scoped := *p
	scoped.KeepStructural = true

	newTree, changes, _ := tiff.Apply(tree, &scoped)
	report := &core.Report{Container: core.TIFF, Changes: changes}
	report.Changed = report.Deleted() > 0 || report.Replaced() > 0
	if !report.Changed {
		return &core.Result{Report: *report}, nil
	}

	out, err := tiff.Serialize(newTree)
	if err != nil {
		return nil, err
	}
	return &core.Result{Output: out, Report: *report}, nil
}

// rewriteSegment parses, mutates and re-serializes an embedded metadata
// segment. It returns nil segment bytes when the emptied segment should be
// omitted from the container.
func rewriteSegment(payload []byte, p *plan.Plan, opts core.Options) ([]byte, *core.Report, error) {
	tree, perr := tiff.Parse(payload)
	if tree == nil {
		return nil, nil, fmt.Errorf("parsing metadata segment: %w", perr)
	}
	if perr != nil {
		return nil, nil, fmt.Errorf("metadata partially unreadable, file left untouched: %w", perr)
	}

	newTree, changes, _ := tiff.Apply(tree, p)
	report := &core.Report{Changes: changes}
	report.Changed = report.Deleted() > 0 || report.Replaced() > 0
	if !report.Changed {
		return nil, report, nil
	}

	if newTree.Empty() && !opts.KeepEmptyShell {
		return nil, report, nil
	}
	out, err := tiff.Serialize(newTree)
	if err != nil {
		return nil, nil, err
	}
	return out, report, nil
}

func unchanged(kind core.Container) *core.Result {
	return &core.Result{Report: core.Report{Container: kind, NoMetadata: true}}
}
