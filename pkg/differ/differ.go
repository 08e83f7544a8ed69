// Package differ implements Forkline's Structural Differ: a
// deterministic, ordered list of edit operations transforming an "old"
// value.Value into a "new" value.Value.
//
// The traversal shape mirrors pkg/canonical's recursive type-switch walker
// (same path-building convention, same depth bound) but produces Op
// values instead of bytes.
package differ

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sauravvenkat/forkline/pkg/value"
)

// OpKind is the kind of edit operation.
type OpKind string

const (
	OpAdd     OpKind = "add"
	OpRemove  OpKind = "remove"
	OpReplace OpKind = "replace"
)

// Op is a single edit operation. Old is present for remove/replace; New is
// present for add/replace. Exactly one of the two is absent for add and
// remove.
type Op struct {
	Op   OpKind       `json:"op"`
	Path string       `json:"path"`
	Old  *value.Value `json:"old,omitempty"`
	New  *value.Value `json:"new,omitempty"`
}

// MaxDepth bounds recursion, mirroring pkg/canonical's cycle defense.
const MaxDepth = value.DefaultMaxDepth

// Diff computes the ordered patch transforming old into new, rooted at
// "$". Diff is total and deterministic: repeated invocation on the same
// (old, new) yields byte-identical (here, value-identical and
// order-identical) output.
func Diff(old, new_ value.Value) ([]Op, error) {
	var ops []Op
	if err := diffValue(&ops, old, new_, "$", 0); err != nil {
		return nil, err
	}
	return ops, nil
}

func diffValue(ops *[]Op, oldV, newV value.Value, path string, depth int) error {
	if depth > MaxDepth {
		return &value.BadValueKindError{Path: path, Reason: "exceeds max recursion depth"}
	}

	// Numeric cross-type: compare by value, not by tag.
	oldNum, oldIsNum := numericValue(oldV)
	newNum, newIsNum := numericValue(newV)
	if oldIsNum && newIsNum {
		if oldNum == newNum {
			return nil
		}
		ov, nv := oldV, newV
		*ops = append(*ops, Op{Op: OpReplace, Path: path, Old: &ov, New: &nv})
		return nil
	}

	if oldV.Kind() != newV.Kind() {
		ov, nv := oldV, newV
		*ops = append(*ops, Op{Op: OpReplace, Path: path, Old: &ov, New: &nv})
		return nil
	}

	switch oldV.Kind() {
	case value.KindMap:
		return diffMap(ops, oldV.AsMap(), newV.AsMap(), path, depth)
	case value.KindSeq:
		return diffSeq(ops, oldV.AsSeq(), newV.AsSeq(), path, depth)
	default:
		if atomsEqual(oldV, newV) {
			return nil
		}
		ov, nv := oldV, newV
		*ops = append(*ops, Op{Op: OpReplace, Path: path, Old: &ov, New: &nv})
		return nil
	}
}

// numericValue reports the float64 value of v if it is KindInt or
// KindFloat, so the caller can compare integers and floats by numeric
// value rather than by tag.
func numericValue(v value.Value) (float64, bool) {
	switch v.Kind() {
	case value.KindInt:
		return float64(v.AsInt()), true
	case value.KindFloat:
		return v.AsFloat(), true
	default:
		return 0, false
	}
}

func atomsEqual(a, b value.Value) bool {
	switch a.Kind() {
	case value.KindNull:
		return true
	case value.KindBool:
		return a.AsBool() == b.AsBool()
	case value.KindString:
		return a.AsString() == b.AsString()
	case value.KindBytes:
		return string(a.AsBytes()) == string(b.AsBytes())
	default:
		return false
	}
}

func diffMap(ops *[]Op, oldM, newM map[string]value.Value, path string, depth int) error {
	var onlyOld, onlyNew, common []string
	for k := range oldM {
		if _, ok := newM[k]; ok {
			common = append(common, k)
		} else {
			onlyOld = append(onlyOld, k)
		}
	}
	for k := range newM {
		if _, ok := oldM[k]; !ok {
			onlyNew = append(onlyNew, k)
		}
	}
	sort.Strings(onlyOld)
	sort.Strings(onlyNew)
	sort.Strings(common)

	for _, k := range onlyOld {
		ov := oldM[k]
		*ops = append(*ops, Op{Op: OpRemove, Path: childPath(path, k), Old: &ov})
	}
	for _, k := range onlyNew {
		nv := newM[k]
		*ops = append(*ops, Op{Op: OpAdd, Path: childPath(path, k), New: &nv})
	}
	for _, k := range common {
		if err := diffValue(ops, oldM[k], newM[k], childPath(path, k), depth+1); err != nil {
			return err
		}
	}
	return nil
}

func diffSeq(ops *[]Op, oldS, newS []value.Value, path string, depth int) error {
	n := len(oldS)
	if len(newS) < n {
		n = len(newS)
	}
	for i := 0; i < n; i++ {
		if err := diffValue(ops, oldS[i], newS[i], indexPath(path, i), depth+1); err != nil {
			return err
		}
	}
	if len(oldS) > len(newS) {
		for i := n; i < len(oldS); i++ {
			ov := oldS[i]
			*ops = append(*ops, Op{Op: OpRemove, Path: indexPath(path, i), Old: &ov})
		}
	} else if len(newS) > len(oldS) {
		for i := n; i < len(newS); i++ {
			nv := newS[i]
			*ops = append(*ops, Op{Op: OpAdd, Path: indexPath(path, i), New: &nv})
		}
	}
	return nil
}

// childPath appends a mapping-entry descent to path, quoting names that
// contain dots or brackets so the path remains unambiguous to parse.
func childPath(path, name string) string {
	if strings.ContainsAny(name, ".[]") {
		escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(name)
		return path + "['" + escaped + "']"
	}
	return path + "." + name
}

// indexPath appends a sequence index to path.
func indexPath(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}
