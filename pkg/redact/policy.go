// Package redact implements Forkline's Redaction Engine: a pure,
// policy-driven traversal that masks, hashes, or drops mapping entries
// before a recorded payload is ever persisted. Rules are evaluated in
// list order, first match wins.
package redact

import "strings"

// Action is what a matched rule does to a mapping entry's value.
type Action string

const (
	ActionMask Action = "MASK"
	ActionHash Action = "HASH"
	ActionDrop Action = "DROP"
)

// Rule is a single ordered policy rule. KeyPattern matches the mapping
// key (case-insensitive substring); PathPattern matches the dot-separated
// path from the root (case-insensitive substring). A rule fires only if
// every pattern it declares matches; a rule with only PathPattern may
// still fire against sequence elements, which have no key.
type Rule struct {
	Action      Action `json:"action" yaml:"action"`
	KeyPattern  string `json:"key_pattern,omitempty" yaml:"key_pattern,omitempty"`
	PathPattern string `json:"path_pattern,omitempty" yaml:"path_pattern,omitempty"`
}

// matches reports whether the rule fires for a mapping entry with the
// given key (empty for sequence elements) and dot-separated path.
func (r Rule) matches(key, path string) bool {
	if r.KeyPattern != "" {
		if key == "" {
			return false // key_pattern rules never fire on keyless sequence elements
		}
		if !strings.Contains(strings.ToLower(key), strings.ToLower(r.KeyPattern)) {
			return false
		}
	}
	if r.PathPattern != "" {
		if !strings.Contains(strings.ToLower(path), strings.ToLower(r.PathPattern)) {
			return false
		}
	}
	return r.KeyPattern != "" || r.PathPattern != ""
}

// Policy is an ordered list of rules plus an allowlist of structural
// metadata keys exempt from rule matching (key_pattern and path_pattern
// rules alike).
type Policy struct {
	Name      string
	Version   string
	Rules     []Rule
	Allowlist map[string]bool
}

// defaultAllowlist is the SAFE policy's structural-metadata exemption
// list: a mapping entry under one of these keys is never matched by any
// rule, even if a key or path substring would otherwise fire.
var defaultAllowlist = []string{
	"run_id", "event_id", "step_id", "timestamp", "created_at", "started_at",
	"ended_at", "status", "duration", "type", "name", "tool", "model", "entrypoint",
}

// defaultSecretSubstrings is the SAFE policy's fixed list of key
// substrings that trigger MASK.
var defaultSecretSubstrings = []string{
	"api_key", "apikey", "token", "secret", "password", "access_token",
	"refresh_token", "private_key", "credentials", "auth", "session",
	"csrf", "authorization", "cookie", "set-cookie",
}

// SAFEPolicy returns the default production policy: MASK on any key
// matching a secret substring, with the structural-metadata allowlist
// applied.
func SAFEPolicy() Policy {
	rules := make([]Rule, len(defaultSecretSubstrings))
	for i, s := range defaultSecretSubstrings {
		rules[i] = Rule{Action: ActionMask, KeyPattern: s}
	}
	allow := make(map[string]bool, len(defaultAllowlist))
	for _, k := range defaultAllowlist {
		allow[k] = true
	}
	return Policy{Name: "SAFE", Version: "1.0.0", Rules: rules, Allowlist: allow}
}

// DEBUGPolicy is the identity policy: no rule ever fires, so payloads
// persist unredacted. Nothing restricts its use to debug builds: neither
// the engine nor pkg/record checks which policy it is given, and
// cmd/forkline does not select it.
func DEBUGPolicy() Policy {
	return Policy{Name: "DEBUG", Version: "1.0.0"}
}

// ENCRYPTEDDEBUGPolicy is the identity policy used as the pre-image for
// sealing with secretbox (OpenEncryptedDebug/SealEncryptedDebug); secret
// keys are still masked before sealing via secretMaskRules, the same
// MASK rule set as SAFE applied before sealing rather than after.
func ENCRYPTEDDEBUGPolicy() Policy {
	return Policy{Name: "ENCRYPTED_DEBUG", Version: "1.0.0", Rules: secretMaskRules()}
}

// secretMaskRules is the same MASK rule set as SAFEPolicy, broken out so
// ENCRYPTED_DEBUG can share it without inheriting SAFE's allowlist object.
func secretMaskRules() []Rule {
	rules := make([]Rule, len(defaultSecretSubstrings))
	for i, s := range defaultSecretSubstrings {
		rules[i] = Rule{Action: ActionMask, KeyPattern: s}
	}
	return rules
}
