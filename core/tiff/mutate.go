package tiff

import (
	"encoding/binary"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/proxypixel/metascrub/core/plan"
)

// Change is one line of the audit report: what happened to one tag.
type Change struct {
	IFD    string `json:"ifd"`
	Tag    uint16 `json:"tag"`
	Name   string `json:"name"`
	Action string `json:"action"` // kept | deleted | replaced | rejected
	Old    string `json:"old,omitempty"`
	New    string `json:"new,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Apply runs an edit plan over the tree and returns a new tree plus the
// per-tag change report. The input tree is never modified, so the caller
// keeps the parsed original for diffing. Rejected edits (type/count
// mismatches) are reported both in the change list and in the returned
// multierror; all other edits still go through.
func Apply(t *Tree, p *plan.Plan) (*Tree, []Change, error) {
	m := &mutator{plan: p, order: t.Order}
	root := m.applyIFD(t.Root)
	out := &Tree{Order: t.Order, Root: root}
	if root == nil {
		out.Root = &IFD{Space: PrimarySpace, Sub: make(map[uint16]*IFD)}
	}
	return out, m.changes, m.errs
}

type mutator struct {
	plan    *plan.Plan
	order   binary.ByteOrder
	changes []Change
	errs    error
}

// applyIFD returns the mutated copy of ifd, or nil when every entry of the
// IFD (and of its chain) was deleted.
func (m *mutator) applyIFD(ifd *IFD) *IFD {
	if ifd == nil {
		return nil
	}
	out := &IFD{Space: ifd.Space, Sub: make(map[uint16]*IFD)}

	for _, e := range ifd.Entries {
		info := Lookup(ifd.Space, e.Tag)

		if sub, ok := ifd.Sub[e.Tag]; ok {
			action, _ := m.resolve(ifd.Space, e, info)
			if action == plan.Delete {
				// Deleting a pointer tag removes the whole sub-tree.
				m.record(ifd.Space, e, info, "deleted", "")
				m.recordSubtreeDeleted(sub)
				continue
			}
			newSub := m.applyIFD(sub)
			if newSub == nil {
				// Sub-IFD emptied out; a pointer to an empty directory is
				// dead weight, drop the pointer with it.
				m.record(ifd.Space, e, info, "deleted", "")
				continue
			}
			out.Sub[e.Tag] = newSub
			out.Entries = append(out.Entries, e.clone())
			m.record(ifd.Space, e, info, "kept", "")
			continue
		}

		action, value := m.resolve(ifd.Space, e, info)
		switch action {
		case plan.Delete:
			m.record(ifd.Space, e, info, "deleted", "")
		case plan.Replace:
			ne, err := replaceValue(e, value, m.order)
			if err != nil {
				m.errs = multierror.Append(m.errs, fmt.Errorf("%s %s: %w", ifd.Space.Name(), info.Name, err))
				c := Change{IFD: ifd.Space.Name(), Tag: e.Tag, Name: info.Name,
					Action: "rejected", Old: e.String(), Reason: err.Error()}
				m.changes = append(m.changes, c)
				out.Entries = append(out.Entries, e.clone())
				continue
			}
			out.Entries = append(out.Entries, ne)
			m.record(ifd.Space, e, info, "replaced", ne.String())
		default:
			out.Entries = append(out.Entries, e.clone())
			m.record(ifd.Space, e, info, "kept", "")
		}
	}

	out.Next = m.applyIFD(ifd.Next)
	out.imageData = cloneImageData(ifd.imageData)

	if len(out.Entries) == 0 && out.Next == nil {
		return nil
	}
	return out
}

// resolve picks the action for one entry: explicit tag rules win over name
// rules, name rules over category rules, and the plan default (StripAll or
// keep) covers the rest.
func (m *mutator) resolve(space Space, e *Entry, info TagInfo) (plan.Action, *plan.Value) {
	var byName, byCat *plan.Rule
	for i := range m.plan.Rules {
		r := &m.plan.Rules[i]
		if !ruleScopeMatches(r.IFD, space) {
			continue
		}
		switch {
		case r.Tag != nil:
			if *r.Tag == e.Tag {
				return r.Action, r.Value
			}
		case r.Name != "":
			if r.Name == info.Name && byName == nil {
				byName = r
			}
		case r.Category != "":
			if Category(r.Category) == info.Category && byCat == nil {
				byCat = r
			}
		}
	}
	if byName != nil {
		return byName.Action, byName.Value
	}
	if byCat != nil {
		return byCat.Action, byCat.Value
	}
	if m.plan.StripAll {
		if m.plan.KeepStructural && info.Category == CatStructural {
			return plan.Keep, nil
		}
		return plan.Delete, nil
	}
	return plan.Keep, nil
}

func ruleScopeMatches(scope string, space Space) bool {
	switch scope {
	case "":
		return true
	case "primary":
		return space == PrimarySpace
	case "thumbnail":
		return space == ThumbnailSpace
	case "exif":
		return space == ExifSpace
	case "gps":
		return space == GPSSpace
	case "interop":
		return space == InteropSpace
	}
	return false
}

// replaceValue encodes a plan value against the original entry's contract.
// The type must match; for fixed-width types the count must match too
// (ASCII counts follow the new string, since the string length is the
// value). Anything else invalidates offset bookkeeping and is rejected.
func replaceValue(e *Entry, v *plan.Value, order binary.ByteOrder) (*Entry, error) {
	if e.opaque {
		return nil, fmt.Errorf("%w: cannot replace opaque entry", ErrTypeMismatch)
	}
	if v == nil {
		return nil, fmt.Errorf("%w: no replacement value", ErrTypeMismatch)
	}
	switch {
	case v.ASCII != nil:
		if e.Type != DTAscii {
			return nil, fmt.Errorf("%w: ascii value for %s entry", ErrTypeMismatch, e.Type)
		}
		val := append([]byte(*v.ASCII), 0)
		return &Entry{Tag: e.Tag, Type: DTAscii, Count: uint32(len(val)), Val: val, order: order}, nil

	case v.Ints != nil:
		size := e.Type.Size()
		switch e.Type {
		case DTByte, DTUndefined, DTSByte, DTShort, DTSShort, DTLong, DTSLong:
		default:
			return nil, fmt.Errorf("%w: integer value for %s entry", ErrTypeMismatch, e.Type)
		}
		if uint32(len(v.Ints)) != e.Count {
			return nil, fmt.Errorf("%w: %d values for count %d", ErrTypeMismatch, len(v.Ints), e.Count)
		}
		val := make([]byte, size*e.Count)
		for i, n := range v.Ints {
			switch size {
			case 1:
				val[i] = byte(n)
			case 2:
				order.PutUint16(val[i*2:], uint16(n))
			case 4:
				order.PutUint32(val[i*4:], uint32(n))
			}
		}
		return &Entry{Tag: e.Tag, Type: e.Type, Count: e.Count, Val: val, order: order}, nil

	case v.Rationals != nil:
		if e.Type != DTRational && e.Type != DTSRational {
			return nil, fmt.Errorf("%w: rational value for %s entry", ErrTypeMismatch, e.Type)
		}
		if uint32(len(v.Rationals)) != e.Count {
			return nil, fmt.Errorf("%w: %d values for count %d", ErrTypeMismatch, len(v.Rationals), e.Count)
		}
		val := make([]byte, 8*e.Count)
		for i, r := range v.Rationals {
			order.PutUint32(val[i*8:], uint32(r[0]))
			order.PutUint32(val[i*8+4:], uint32(r[1]))
		}
		return &Entry{Tag: e.Tag, Type: e.Type, Count: e.Count, Val: val, order: order}, nil
	}
	return nil, fmt.Errorf("%w: empty replacement value", ErrTypeMismatch)
}

func (m *mutator) record(space Space, e *Entry, info TagInfo, action, newVal string) {
	m.changes = append(m.changes, Change{
		IFD:    space.Name(),
		Tag:    e.Tag,
		Name:   info.Name,
		Action: action,
		Old:    e.String(),
		New:    newVal,
	})
}

func (m *mutator) recordSubtreeDeleted(ifd *IFD) {
	for _, e := range ifd.Entries {
		info := Lookup(ifd.Space, e.Tag)
		m.record(ifd.Space, e, info, "deleted", "")
		if sub, ok := ifd.Sub[e.Tag]; ok {
			m.recordSubtreeDeleted(sub)
		}
	}
}

func cloneImageData(in []imageData) []imageData {
	if in == nil {
		return nil
	}
	out := make([]imageData, len(in))
	for i, id := range in {
		out[i] = imageData{offsetTag: id.offsetTag, segments: append([][]byte(nil), id.segments...)}
	}
	return out
}
