package head

import (
	"strings"

	"github.com/eslider/mailbox/field"
)

// resentFieldOrder is the canonical order of fields within one resent
// group, most-significant first; Received anchors the group at the end.
var resentFieldOrder = []string{
	"resent-from", "resent-sender", "resent-to", "resent-cc", "resent-bcc",
	"resent-date", "resent-message-id", "received",
}

// ResentGroup is one reply/relay event: a set of Resent-* fields plus the
// trailing Received field that anchors it.
type ResentGroup struct {
	Fields []field.Field
}

// ResentGroups returns the resent groups found in h, most recent first,
// one group per "run" of resent-* fields followed by (at most) one
// Received field.
func (h *Head) ResentGroups() []ResentGroup {
	// Build a flat, interleaved timeline of resent/received fields in the
	// order they actually occur across h.order, since multiple groups may
	// repeat the same field names.
	type occ struct {
		name string
		f    field.Field
	}
	var timeline []occ
	seenIdx := make(map[string]int)
	for _, n := range h.order {
		if !isResentGroupField(n) {
			continue
		}
		for _, f := range h.byName[n] {
			timeline = append(timeline, occ{name: n, f: f})
		}
		seenIdx[n]++
	}

	var groups []ResentGroup
	var current ResentGroup
	for _, o := range timeline {
		current.Fields = append(current.Fields, o.f)
		if o.name == "received" {
			groups = append(groups, current)
			current = ResentGroup{}
		}
	}
	if len(current.Fields) > 0 {
		groups = append(groups, current)
	}
	return groups
}

func isResentGroupField(name string) bool {
	if name == "received" {
		return true
	}
	return strings.HasPrefix(name, "resent-")
}

// AddResentGroup injects a new resent group above any existing groups
// (i.e. it becomes the most-recent group): each field is prepended to its
// name's occurrence list.
func (h *Head) AddResentGroup(g ResentGroup) {
	// Prepend each name's fields as one block in declared order, so the
	// group's fields of that name keep their order when read back
	// left-to-right.
	byName := make(map[string][]field.Field)
	var order []string
	for _, f := range g.Fields {
		n := f.Name()
		if _, ok := byName[n]; !ok {
			order = append(order, n)
		}
		byName[n] = append(byName[n], f)
	}
	for _, n := range order {
		existing := h.byName[n]
		if _, seen := h.byName[n]; !seen {
			h.order = append(h.order, n)
		}
		h.byName[n] = append(append([]field.Field(nil), byName[n]...), existing...)
	}
	h.modified = true
}

// RemoveResentGroups drops every Resent-* and Received field from h.
func (h *Head) RemoveResentGroups() {
	for _, n := range append([]string(nil), h.order...) {
		if isResentGroupField(n) {
			h.Reset(n)
		}
	}
}
