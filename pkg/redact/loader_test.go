package redact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validJSONBundle = `{
  "version": "1.0.0",
  "name": "custom",
  "rules": [
    {"action": "MASK", "key_pattern": "api_key"},
    {"action": "DROP", "path_pattern": "debug"}
  ]
}`

const validYAMLBundle = `
version: 1.0.0
name: custom
rules:
  - action: MASK
    key_pattern: api_key
  - action: HASH
    path_pattern: user.email
`

func TestLoadPolicyJSON_ValidBundle(t *testing.T) {
	p, err := LoadPolicyJSON("bundle.json", []byte(validJSONBundle))
	require.NoError(t, err)
	assert.Equal(t, "custom", p.Name)
	assert.Equal(t, "1.0.0", p.Version)
	require.Len(t, p.Rules, 2)
	assert.Equal(t, ActionMask, p.Rules[0].Action)
	assert.Equal(t, ActionDrop, p.Rules[1].Action)
}

func TestLoadPolicyYAML_ValidBundle(t *testing.T) {
	p, err := LoadPolicyYAML("bundle.yaml", []byte(validYAMLBundle))
	require.NoError(t, err)
	assert.Equal(t, "custom", p.Name)
	require.Len(t, p.Rules, 2)
	assert.Equal(t, ActionHash, p.Rules[1].Action)
}

func TestLoadPolicyJSON_MalformedJSONIsPolicyError(t *testing.T) {
	_, err := LoadPolicyJSON("bad.json", []byte("{not json"))
	require.Error(t, err)
	var pe *PolicyError
	require.ErrorAs(t, err, &pe)
}

func TestLoadPolicyJSON_FailsSchemaValidation(t *testing.T) {
	_, err := LoadPolicyJSON("bad.json", []byte(`{"name": "missing-version-and-rules"}`))
	require.Error(t, err)
	var pe *PolicyError
	require.ErrorAs(t, err, &pe)
}

func TestLoadPolicyJSON_UnsupportedVersionRejected(t *testing.T) {
	_, err := LoadPolicyJSON("bad.json", []byte(`{
		"version": "2.0.0",
		"name": "too-new",
		"rules": [{"action": "MASK", "key_pattern": "token"}]
	}`))
	require.Error(t, err)
	var pe *PolicyError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Reason, "not in supported range")
}

func TestLoadPolicyJSON_UnknownActionRejected(t *testing.T) {
	_, err := LoadPolicyJSON("bad.json", []byte(`{
		"version": "1.0.0",
		"name": "bad-action",
		"rules": [{"action": "WIPE", "key_pattern": "token"}]
	}`))
	require.Error(t, err)
}

func TestLoadPolicyYAML_MalformedYAMLIsPolicyError(t *testing.T) {
	_, err := LoadPolicyYAML("bad.yaml", []byte("version: [unterminated"))
	require.Error(t, err)
	var pe *PolicyError
	require.ErrorAs(t, err, &pe)
}
