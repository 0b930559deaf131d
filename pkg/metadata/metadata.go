package metadata

import (
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Kind selects which schema a fetched metadata document must satisfy.
type Kind int

const (
	// Bounty metadata accompanies NewBounty events.
	Bounty Kind = iota
	// Assertion metadata accompanies RevealedAssertion events.
	Assertion
)

const bountySchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "array",
	"items": {
		"type": "object",
		"properties": {
			"name": {"type": "string"},
			"mimetype": {"type": "string"},
			"size": {"type": "integer"},
			"sha256": {"type": "string"},
			"sha1": {"type": "string"},
			"md5": {"type": "string"}
		},
		"required": ["mimetype"]
	}
}`

const assertionSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "array",
	"items": {
		"type": "object",
		"properties": {
			"malware_family": {"type": "string"},
			"domains": {"type": "array", "items": {"type": "string"}},
			"ip_addresses": {"type": "array", "items": {"type": "string"}},
			"stix": {"type": "array"}
		},
		"required": ["malware_family"]
	}
}`

var schemas = map[Kind]*jsonschema.Schema{
	Bounty:    jsonschema.MustCompileString("bounty-metadata.json", bountySchema),
	Assertion: jsonschema.MustCompileString("assertion-metadata.json", assertionSchema),
}

// Schema returns the compiled schema for kind.
func Schema(kind Kind) *jsonschema.Schema {
	return schemas[kind]
}
