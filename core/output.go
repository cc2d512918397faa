package core

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/proxypixel/metascrub/core/tiff"
)

// Printer handles all display output for the CLI.
type Printer struct {
	JSON    bool
	Verbose bool
	Writer  io.Writer
}

// NewPrinter creates a default Printer writing to stdout.
func NewPrinter(jsonMode, verbose bool) *Printer {
	return &Printer{JSON: jsonMode, Verbose: verbose, Writer: os.Stdout}
}

// PrintReport renders a per-file audit report.
func (p *Printer) PrintReport(r *Report) {
	if p.JSON {
		b, _ := json.MarshalIndent(r, "", "  ")
		fmt.Fprintln(p.Writer, string(b))
		return
	}

	fmt.Fprintf(p.Writer, "File     : %s\n", r.Path)
	fmt.Fprintf(p.Writer, "Container: %s\n", r.Container)
	if r.NoMetadata {
		fmt.Fprintln(p.Writer, "(no metadata present)")
		return
	}
	fmt.Fprintf(p.Writer, "Deleted %d, replaced %d, rejected %d\n",
		r.Deleted(), r.Replaced(), r.Rejected())
	for _, c := range r.Changes {
		if c.Action == "kept" && !p.Verbose {
			continue
		}
		switch c.Action {
		case "replaced":
			fmt.Fprintf(p.Writer, "  %-9s %s/%s: %s -> %s\n", c.Action, c.IFD, c.Name, c.Old, c.New)
		case "rejected":
			fmt.Fprintf(p.Writer, "  %-9s %s/%s: %s\n", c.Action, c.IFD, c.Name, c.Reason)
		default:
			fmt.Fprintf(p.Writer, "  %-9s %s/%s: %s\n", c.Action, c.IFD, c.Name, c.Old)
		}
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(p.Writer, "  warning: %s\n", w)
	}
}

// PrintTree dumps a parsed tag tree for the inspect command, grouped by
// IFD, with registry names and categories, and decoded GPS coordinates
// when present.
func (p *Printer) PrintTree(path string, c Container, t *tiff.Tree) {
	if p.JSON {
		p.printTreeJSON(path, c, t)
		return
	}

	fmt.Fprintf(p.Writer, "File     : %s\n", path)
	fmt.Fprintf(p.Writer, "Container: %s\n", c)
	if t.Empty() {
		fmt.Fprintln(p.Writer, "(no metadata found)")
		return
	}

	var last *tiff.IFD
	t.Walk(func(ifd *tiff.IFD, e *tiff.Entry) {
		if ifd != last {
			fmt.Fprintf(p.Writer, "\n── %s IFD ──\n", ifd.Space.Name())
			last = ifd
		}
		info := tiff.Lookup(ifd.Space, e.Tag)
		fmt.Fprintf(p.Writer, "  %-28s %s", info.Name+":", e.String())
		if p.Verbose {
			fmt.Fprintf(p.Writer, "  [%s]", info.Category)
		}
		fmt.Fprintln(p.Writer)
	})

	if coords, ok := tiff.DecimalCoords(t); ok {
		fmt.Fprintf(p.Writer, "\nGPS position: %.6f, %.6f\n", coords.Lat, coords.Lon)
	}
}

func (p *Printer) printTreeJSON(path string, c Container, t *tiff.Tree) {
	type jsonTag struct {
		IFD      string `json:"ifd"`
		Tag      uint16 `json:"tag"`
		Name     string `json:"name"`
		Type     string `json:"type"`
		Count    uint32 `json:"count"`
		Value    string `json:"value"`
		Category string `json:"category"`
	}
	type jsonOutput struct {
		Path      string       `json:"file"`
		Container Container    `json:"container"`
		Tags      []jsonTag    `json:"tags"`
		GPS       *tiff.Coords `json:"gps,omitempty"`
	}

	out := jsonOutput{Path: path, Container: c}
	t.Walk(func(ifd *tiff.IFD, e *tiff.Entry) {
		info := tiff.Lookup(ifd.Space, e.Tag)
		out.Tags = append(out.Tags, jsonTag{
			IFD:      ifd.Space.Name(),
			Tag:      e.Tag,
			Name:     info.Name,
			Type:     e.Type.String(),
			Count:    e.Count,
			Value:    e.String(),
			Category: string(info.Category),
		})
	})
	if coords, ok := tiff.DecimalCoords(t); ok {
		out.GPS = &coords
	}

	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Fprintln(p.Writer, string(b))
}

// PrintSuccess prints a success message.
func (p *Printer) PrintSuccess(msg string) {
	fmt.Fprintln(p.Writer, "✓ "+msg)
}

// PrintInfo prints an info line (suppressed in JSON mode).
func (p *Printer) PrintInfo(msg string) {
	if !p.JSON {
		fmt.Fprintln(p.Writer, msg)
	}
}

// PrintError prints an error to stderr.
func PrintError(msg string) {
	fmt.Fprintln(os.Stderr, "✗ Error: "+msg)
}
