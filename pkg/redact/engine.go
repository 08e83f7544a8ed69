package redact

import (
	"strconv"

	"github.com/sauravvenkat/forkline/pkg/canonical"
	"github.com/sauravvenkat/forkline/pkg/value"
)

// MaxDepth bounds recursion, mirroring pkg/canonical's cycle defense.
const MaxDepth = value.DefaultMaxDepth

// Apply redacts v under policy, returning a new Value. v is never
// mutated: every traversal branch below constructs fresh Value trees
// rather than writing into v's backing maps or slices.
func Apply(policy Policy, v value.Value) (value.Value, error) {
	return applyValue(policy, v, "", "")
}

// applyValue redacts a single Value positioned at path, where key is the
// mapping key that produced it ("" for the root and for sequence
// elements).
func applyValue(policy Policy, v value.Value, key, path string) (value.Value, error) {
	switch v.Kind() {
	case value.KindMap:
		return applyMap(policy, v, path)
	case value.KindSeq:
		return applySeq(policy, v, path)
	default:
		return v, nil
	}
}

func applyMap(policy Policy, v value.Value, path string) (value.Value, error) {
	src := v.AsMap()
	out := make(map[string]value.Value, len(src))
	for k, child := range src {
		childPath := joinPath(path, k)
		if policy.Allowlist[k] {
			redactedChild, err := applyValue(policy, child, k, childPath)
			if err != nil {
				return value.Value{}, err
			}
			out[k] = redactedChild
			continue
		}
		rule, matched := firstMatch(policy.Rules, k, childPath)
		if !matched {
			redactedChild, err := applyValue(policy, child, k, childPath)
			if err != nil {
				return value.Value{}, err
			}
			out[k] = redactedChild
			continue
		}
		switch rule.Action {
		case ActionDrop:
			continue // entry omitted entirely
		case ActionMask:
			out[k] = value.String("[REDACTED]")
		case ActionHash:
			h, err := canonical.ContentHash(child)
			if err != nil {
				return value.Value{}, err
			}
			out[k] = value.String("hash:" + h)
		}
	}
	return value.Map(out), nil
}

func applySeq(policy Policy, v value.Value, path string) (value.Value, error) {
	src := v.AsSeq()
	out := make([]value.Value, len(src))
	for i, child := range src {
		childPath := indexPath(path, i)
		// A rule with only a key_pattern never fires on a sequence
		// element: Rule.matches already enforces this by requiring a
		// non-empty key for KeyPattern rules, and here key is always "".
		rule, matched := firstMatch(policy.Rules, "", childPath)
		if !matched {
			redactedChild, err := applyValue(policy, child, "", childPath)
			if err != nil {
				return value.Value{}, err
			}
			out[i] = redactedChild
			continue
		}
		switch rule.Action {
		case ActionDrop:
			out[i] = value.Null() // sequence order is significant; dropping collapses to null
		case ActionMask:
			out[i] = value.String("[REDACTED]")
		case ActionHash:
			h, err := canonical.ContentHash(child)
			if err != nil {
				return value.Value{}, err
			}
			out[i] = value.String("hash:" + h)
		}
	}
	return value.Seq(out...), nil
}

// firstMatch returns the first rule (in policy order) that matches the
// given key/path; rules are evaluated first-match-wins.
func firstMatch(rules []Rule, key, path string) (Rule, bool) {
	for _, r := range rules {
		if r.matches(key, path) {
			return r, true
		}
	}
	return Rule{}, false
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func indexPath(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}
