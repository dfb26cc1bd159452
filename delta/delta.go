package delta

import "bytes"

// Delta is the changeset between two polls: items that are new or changed
// (in the order of the current poll) and ids that disappeared.
type Delta struct {
	Data    []Item   `json:"data"`
	Removed []string `json:"removed"`
}

// Empty reports whether nothing changed.
func (d Delta) Empty() bool { return len(d.Data) == 0 && len(d.Removed) == 0 }

// Compute diffs current against previous. previous may be nil (first poll).
//
// Duplicate ids inside one list resolve to their last occurrence in the
// identity maps; positions are never compared.
func Compute(previous, current []Item) Delta {
	prev := index(previous)
	curr := index(current)

	d := Delta{
		Data:    make([]Item, 0),
		Removed: make([]string, 0),
	}

	reported := make(map[string]struct{})
	for _, it := range previous {
		if _, still := curr[it.ID]; still {
			continue
		}
		if _, dup := reported[it.ID]; dup {
			continue
		}
		reported[it.ID] = struct{}{}
		d.Removed = append(d.Removed, it.ID)
	}

	for _, it := range current {
		old, known := prev[it.ID]
		if !known || Changed(old, it) {
			d.Data = append(d.Data, it)
		}
	}
	return d
}

// Changed reports whether next differs from prev for the same id.
func Changed(prev, next Item) bool {
	if prev.UpdatedAt != "" && next.UpdatedAt != "" {
		return prev.UpdatedAt != next.UpdatedAt
	}
	return !bytes.Equal(prev.Payload, next.Payload)
}

func index(items []Item) map[string]Item {
	m := make(map[string]Item, len(items))
	for _, it := range items {
		m[it.ID] = it
	}
	return m
}
