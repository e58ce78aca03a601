package translator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestCleanToolSchemaSurfacesConstraints(t *testing.T) {
	in := `{"type":"object","properties":{"x":{"type":"string","minLength":3,"pattern":"^a"}},"additionalProperties":false,"required":["x"]}`
	out := CleanToolSchema(in)

	assert.False(t, gjson.Get(out, "additionalProperties").Exists())
	assert.False(t, gjson.Get(out, "properties.x.minLength").Exists())
	assert.False(t, gjson.Get(out, "properties.x.pattern").Exists())
	assert.Equal(t, "string", gjson.Get(out, "properties.x.type").String())
	assert.Equal(t, `["x"]`, gjson.Get(out, "required").Raw)
	assert.Equal(t, "(minLength: 3, pattern: ^a, no additional properties)",
		gjson.Get(out, "description").String())
}

func TestCleanToolSchemaDropsRejectedFields(t *testing.T) {
	in := `{"$schema":"http://json-schema.org/draft-07/schema#","type":"object","properties":{"n":{"type":"number","exclusiveMinimum":0,"multipleOf":2},"tags":{"type":"array","uniqueItems":true,"maxItems":5}}}`
	out := CleanToolSchema(in)

	for _, field := range []string{"$schema", "properties.n.exclusiveMinimum", "properties.n.multipleOf",
		"properties.tags.uniqueItems", "properties.tags.maxItems"} {
		assert.Falsef(t, gjson.Get(out, field).Exists(), "field %s survived", field)
	}
	desc := gjson.Get(out, "description").String()
	assert.Contains(t, desc, "multipleOf: 2")
	assert.Contains(t, desc, "maxItems: 5")
	assert.NotContains(t, desc, "exclusiveMinimum")
}

func TestCleanToolSchemaAppendsToExistingDescription(t *testing.T) {
	in := `{"type":"object","description":"point","properties":{"x":{"type":"integer","minimum":0}}}`
	out := CleanToolSchema(in)
	assert.Equal(t, "point (minimum: 0)", gjson.Get(out, "description").String())
}

func TestCleanToolSchemaRemovesEmptyRequired(t *testing.T) {
	in := `{"type":"object","properties":{"x":{"type":"string"}},"required":[]}`
	out := CleanToolSchema(in)
	assert.False(t, gjson.Get(out, "required").Exists())
}

func TestCleanToolSchemaKeepsPropertyNamedLikeKeyword(t *testing.T) {
	// "pattern" here is a field name, not a validation keyword.
	in := `{"type":"object","properties":{"pattern":{"type":"string","description":"glob"}}}`
	out := CleanToolSchema(in)
	assert.Equal(t, "glob", gjson.Get(out, "properties.pattern.description").String())
	assert.False(t, gjson.Get(out, "description").Exists())
}

func TestCleanToolSchemaPropertyNamedProperties(t *testing.T) {
	// A field literally named "properties" is still a schema: its keyword
	// children must be elided, and its own field names must not be.
	in := `{"type":"object","properties":{"properties":{"type":"object","minProperties":1,"properties":{"pattern":{"type":"string","minLength":2}}}}}`
	out := CleanToolSchema(in)

	assert.False(t, gjson.Get(out, "properties.properties.minProperties").Exists())
	assert.False(t, gjson.Get(out, "properties.properties.properties.pattern.minLength").Exists())
	assert.Equal(t, "string", gjson.Get(out, "properties.properties.properties.pattern.type").String())
	desc := gjson.Get(out, "description").String()
	assert.Contains(t, desc, "minProperties: 1")
	assert.Contains(t, desc, "minLength: 2")
}

func TestCleanToolSchemaNested(t *testing.T) {
	in := `{"type":"object","properties":{"opts":{"type":"object","properties":{"name":{"type":"string","maxLength":10}},"additionalProperties":false}}}`
	out := CleanToolSchema(in)
	assert.False(t, gjson.Get(out, "properties.opts.additionalProperties").Exists())
	assert.False(t, gjson.Get(out, "properties.opts.properties.name.maxLength").Exists())
	desc := gjson.Get(out, "description").String()
	assert.Contains(t, desc, "maxLength: 10")
	assert.Contains(t, desc, "no additional properties")
}

func TestBuildFunctionDeclarations(t *testing.T) {
	tools := gjson.Parse(`[{"type":"function","function":{"name":"lookup","description":"find things","parameters":{"type":"object","properties":{"q":{"type":"string"}}}}},{"type":"retrieval"}]`)
	decls := buildFunctionDeclarations(tools)
	require.Len(t, decls, 1)

	wrapper := decls[0].(map[string]interface{})
	fns := wrapper["functionDeclarations"].([]interface{})
	require.Len(t, fns, 1)
	fn := fns[0].(map[string]interface{})
	assert.Equal(t, "lookup", fn["name"])
	assert.Equal(t, "find things", fn["description"])
	assert.NotNil(t, fn["parameters"])

	assert.Nil(t, buildFunctionDeclarations(gjson.Parse(`[]`)))
}
