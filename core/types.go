// Package core defines the shared types, the container sniffer, the error
// taxonomy, and the report printer for metascrub.
package core

import (
	"github.com/proxypixel/metascrub/core/tiff"
)

// Report is the structured audit record for one file: what container it
// was, whether anything changed, and what happened to every tag.
type Report struct {
	Path      string        `json:"file,omitempty"`
	Container Container     `json:"container"`
	Changed   bool          `json:"changed"`
	// NoMetadata marks the valid "nothing to strip" outcome.
	NoMetadata bool          `json:"no_metadata,omitempty"`
	Changes    []tiff.Change `json:"changes,omitempty"`
	// Warnings lists recoverable oddities (dropped entries, ignored
	// pointers) from best-effort parsing during inspect.
	Warnings []string `json:"warnings,omitempty"`
}

// Deleted counts the tags removed from the tree.
func (r *Report) Deleted() int { return r.count("deleted") }

// Replaced counts the tags whose values were substituted.
func (r *Report) Replaced() int { return r.count("replaced") }

// Rejected counts the edits refused for type/count mismatches.
func (r *Report) Rejected() int { return r.count("rejected") }

func (r *Report) count(action string) int {
	n := 0
	for _, c := range r.Changes {
		if c.Action == action {
			n++
		}
	}
	return n
}

// Options tunes the scrub pipeline.
type Options struct {
	// KeepEmptyShell emits a structurally valid empty metadata segment
	// when the plan deletes every tag, instead of omitting the segment.
	KeepEmptyShell bool
}

// Result is the outcome of scrubbing one buffer. Output is nil when the
// file did not change (no metadata present, or the plan touched nothing).
type Result struct {
	Output []byte
	Report Report
}
