package redact

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// PolicyError reports a malformed policy bundle, raised at load time
// only, never during redaction itself.
type PolicyError struct {
	Source string // file path or "<embedded>"
	Reason string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("redact: policy %q invalid: %s", e.Source, e.Reason)
}

// supportedVersions is the semver range of policy bundle versions this
// engine understands, mirroring pkg/policyloader.Loader's version gate.
const supportedVersions = "^1.0.0"

var bundleSchema *jsonschema.Schema

func init() {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	const schemaURL = "https://forkline.schemas.local/redact/policy-bundle.schema.json"
	if err := c.AddResource(schemaURL, strings.NewReader(bundleSchemaJSON)); err != nil {
		panic(fmt.Sprintf("redact: embedded policy bundle schema is invalid: %v", err))
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		panic(fmt.Sprintf("redact: embedded policy bundle schema failed to compile: %v", err))
	}
	bundleSchema = compiled
}

const bundleSchemaJSON = `{
  "type": "object",
  "required": ["version", "name", "rules"],
  "properties": {
    "version": {"type": "string"},
    "name": {"type": "string"},
    "rules": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["action"],
        "properties": {
          "action": {"enum": ["MASK", "HASH", "DROP"]},
          "key_pattern": {"type": "string"},
          "path_pattern": {"type": "string"}
        }
      }
    }
  }
}`

// bundle is the wire shape of a policy bundle: {"version", "name",
// "rules": [{"action", "key_pattern", "path_pattern"}]}.
type bundle struct {
	Version string `json:"version" yaml:"version"`
	Name    string `json:"name" yaml:"name"`
	Rules   []Rule `json:"rules" yaml:"rules"`
}

// LoadPolicyJSON parses and validates a JSON policy bundle.
func LoadPolicyJSON(source string, data []byte) (Policy, error) {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Policy{}, &PolicyError{Source: source, Reason: "invalid JSON: " + err.Error()}
	}
	return loadBundle(source, data, raw, json.Unmarshal)
}

// LoadPolicyYAML parses and validates a YAML policy bundle.
func LoadPolicyYAML(source string, data []byte) (Policy, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Policy{}, &PolicyError{Source: source, Reason: "invalid YAML: " + err.Error()}
	}
	// jsonschema validates against JSON-shaped data (map[string]interface{}
	// with string keys); re-marshal through JSON to normalize YAML's
	// map[interface{}]interface{} quirks before validation.
	asJSON, err := json.Marshal(raw)
	if err != nil {
		return Policy{}, &PolicyError{Source: source, Reason: "YAML not representable as JSON: " + err.Error()}
	}
	var normalized interface{}
	if err := json.Unmarshal(asJSON, &normalized); err != nil {
		return Policy{}, &PolicyError{Source: source, Reason: err.Error()}
	}
	return loadBundle(source, asJSON, normalized, json.Unmarshal)
}

func loadBundle(source string, data []byte, validated interface{}, unmarshal func([]byte, interface{}) error) (Policy, error) {
	if err := bundleSchema.Validate(validated); err != nil {
		return Policy{}, &PolicyError{Source: source, Reason: "schema validation failed: " + err.Error()}
	}

	var b bundle
	if err := unmarshal(data, &b); err != nil {
		return Policy{}, &PolicyError{Source: source, Reason: err.Error()}
	}

	v, err := semver.NewVersion(b.Version)
	if err != nil {
		return Policy{}, &PolicyError{Source: source, Reason: "invalid version: " + err.Error()}
	}
	constraint, err := semver.NewConstraint(supportedVersions)
	if err != nil {
		return Policy{}, &PolicyError{Source: source, Reason: "internal: bad constraint: " + err.Error()}
	}
	if !constraint.Check(v) {
		return Policy{}, &PolicyError{Source: source, Reason: fmt.Sprintf("version %s not in supported range %s", b.Version, supportedVersions)}
	}

	for i, r := range b.Rules {
		if r.KeyPattern == "" && r.PathPattern == "" {
			return Policy{}, &PolicyError{Source: source, Reason: fmt.Sprintf("rule %d has neither key_pattern nor path_pattern", i)}
		}
		switch r.Action {
		case ActionMask, ActionHash, ActionDrop:
		default:
			return Policy{}, &PolicyError{Source: source, Reason: fmt.Sprintf("rule %d has unknown action %q", i, r.Action)}
		}
	}

	return Policy{Name: b.Name, Version: b.Version, Rules: b.Rules, Allowlist: nil}, nil
}
