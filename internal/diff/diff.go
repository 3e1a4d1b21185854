// Package diff renders line-level unified diffs of patched files, used to
// preview branding substitutions before they touch the build tree.
package diff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// LineType is the kind of a diff line.
type LineType int

const (
	LineContext LineType = iota
	LineAdded
	LineRemoved
)

// Line is one line of a hunk.
type Line struct {
	Type    LineType
	Content string
}

// Hunk is a run of changes with surrounding context. Starts are 1-based.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []Line
}

// FileDiff is the set of hunks between two versions of one file.
type FileDiff struct {
	Path  string
	Hunks []Hunk
}

// Empty reports whether the two versions were identical.
func (d *FileDiff) Empty() bool { return len(d.Hunks) == 0 }

// DefaultContext is the number of unchanged lines kept around a change.
const DefaultContext = 3

type op struct {
	typ      LineType
	old, new int // 0-based line numbers; -1 when absent on that side
	content  string
}

// Compute diffs oldContent against newContent line by line.
func Compute(path, oldContent, newContent string, context int) *FileDiff {
	fd := &FileDiff{Path: path}
	if oldContent == newContent {
		return fd
	}

	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	a, b, lines := dmp.DiffLinesToChars(oldContent, newContent)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	fd.Hunks = group(toOps(diffs), context)
	return fd
}

func toOps(diffs []diffmatchpatch.Diff) []op {
	var ops []op
	oldLine, newLine := 0, 0
	for _, d := range diffs {
		text := strings.TrimSuffix(d.Text, "\n")
		if text == "" && d.Text == "" {
			continue
		}
		for _, line := range strings.Split(text, "\n") {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				ops = append(ops, op{LineContext, oldLine, newLine, line})
				oldLine++
				newLine++
			case diffmatchpatch.DiffDelete:
				ops = append(ops, op{LineRemoved, oldLine, -1, line})
				oldLine++
			case diffmatchpatch.DiffInsert:
				ops = append(ops, op{LineAdded, -1, newLine, line})
				newLine++
			}
		}
	}
	return ops
}

// group splits ops into hunks; changes closer than 2*context lines share one.
func group(ops []op, context int) []Hunk {
	if context < 0 {
		context = 0
	}
	var hunks []Hunk
	i := 0
	for i < len(ops) {
		if ops[i].typ == LineContext {
			i++
			continue
		}
		start := max(i-context, 0)
		end := i
		for j := i; j < len(ops); j++ {
			if ops[j].typ != LineContext {
				end = j
				continue
			}
			if j-end > 2*context {
				break
			}
		}
		stop := min(end+context+1, len(ops))
		hunks = append(hunks, newHunk(ops[start:stop]))
		i = stop
	}
	return hunks
}

func newHunk(ops []op) Hunk {
	var h Hunk
	for _, o := range ops {
		if o.old >= 0 && h.OldStart == 0 {
			h.OldStart = o.old + 1
		}
		if o.new >= 0 && h.NewStart == 0 {
			h.NewStart = o.new + 1
		}
		if o.typ != LineAdded {
			h.OldCount++
		}
		if o.typ != LineRemoved {
			h.NewCount++
		}
		h.Lines = append(h.Lines, Line{Type: o.typ, Content: o.content})
	}
	return h
}

// Unified renders fd in unified diff format.
func (d *FileDiff) Unified() string {
	if d.Empty() {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "--- a/%s\n+++ b/%s\n", d.Path, d.Path)
	for _, h := range d.Hunks {
		fmt.Fprintf(&sb, "@@ -%d,%d +%d,%d @@\n", h.OldStart, h.OldCount, h.NewStart, h.NewCount)
		for _, l := range h.Lines {
			switch l.Type {
			case LineAdded:
				sb.WriteByte('+')
			case LineRemoved:
				sb.WriteByte('-')
			default:
				sb.WriteByte(' ')
			}
			sb.WriteString(l.Content)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
