package translator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Schema fields the upstream rejects outright.
var droppedSchemaFields = []string{
	"$schema", "additionalProperties", "uniqueItems", "exclusiveMinimum", "exclusiveMaximum",
}

// Schema fields the upstream rejects but whose intent is worth keeping: the
// value is surfaced into the top-level description before removal.
var elidedSchemaFields = []string{
	"minLength", "maxLength", "minimum", "maximum", "minItems", "maxItems",
	"minProperties", "maxProperties", "pattern", "format", "multipleOf",
}

// CleanToolSchema rewrites a tool parameters schema into the subset the
// upstream accepts. Rejected validation fields are deleted; the elidable ones
// are first summarized as a "field: value" list appended to the top-level
// description, with "no additional properties" added when
// additionalProperties:false was present anywhere.
func CleanToolSchema(schema string) string {
	if !gjson.Valid(schema) {
		return schema
	}

	var hints []string
	sawClosedObject := false
	var deletePaths []string

	walkSchema(gjson.Parse(schema), "", false, func(key, path string, value gjson.Result) {
		switch {
		case containsField(elidedSchemaFields, key):
			if !value.IsObject() && !value.IsArray() {
				hints = append(hints, fmt.Sprintf("%s: %s", key, value.String()))
			}
			deletePaths = append(deletePaths, path)
		case containsField(droppedSchemaFields, key):
			if key == "additionalProperties" && value.Type == gjson.False {
				sawClosedObject = true
			}
			deletePaths = append(deletePaths, path)
		case key == "required" && value.IsArray() && len(value.Array()) == 0:
			deletePaths = append(deletePaths, path)
		}
	})

	sort.Slice(deletePaths, func(i, j int) bool { return len(deletePaths[i]) > len(deletePaths[j]) })
	for _, p := range deletePaths {
		schema, _ = sjson.Delete(schema, p)
	}

	if sawClosedObject {
		hints = append(hints, "no additional properties")
	}
	if len(hints) > 0 {
		suffix := "(" + strings.Join(hints, ", ") + ")"
		if existing := gjson.Get(schema, "description").String(); existing != "" {
			suffix = existing + " " + suffix
		}
		schema, _ = sjson.Set(schema, "description", suffix)
	}
	return schema
}

// walkSchema visits every object member in document order. Keys under a
// "properties" object are field names, not schema keywords, so the visitor is
// not called for them directly (their subtrees are still descended).
// inProperties flags whether value itself is such a field-name map; the two
// levels alternate, so a field literally named "properties" is still a schema
// and its own "properties" child is again a field-name map.
func walkSchema(value gjson.Result, path string, inProperties bool, visit func(key, path string, value gjson.Result)) {
	if value.IsArray() {
		for i, item := range value.Array() {
			walkSchema(item, joinSchemaPath(path, fmt.Sprintf("%d", i)), false, visit)
		}
		return
	}
	if !value.IsObject() {
		return
	}
	value.ForEach(func(key, val gjson.Result) bool {
		childPath := joinSchemaPath(path, escapeSchemaKey(key.String()))
		if !inProperties {
			visit(key.String(), childPath, val)
		}
		walkSchema(val, childPath, !inProperties && key.String() == "properties", visit)
		return true
	})
}

func joinSchemaPath(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}

var schemaKeyReplacer = strings.NewReplacer(".", "\\.", "*", "\\*", "?", "\\?")

func escapeSchemaKey(key string) string {
	if strings.IndexAny(key, ".*?") == -1 {
		return key
	}
	return schemaKeyReplacer.Replace(key)
}

func containsField(fields []string, key string) bool {
	for _, f := range fields {
		if f == key {
			return true
		}
	}
	return false
}

// buildFunctionDeclarations maps OpenAI-style tool declarations into the
// upstream's {functionDeclarations: [...]} wrapper, cleaning each parameters
// schema on the way. A nil result means the request carries no usable tools.
func buildFunctionDeclarations(tools gjson.Result) []interface{} {
	var decls []interface{}
	for _, tool := range tools.Array() {
		if tool.Get("type").String() != "function" {
			continue
		}
		fn := tool.Get("function")
		name := fn.Get("name").String()
		if name == "" {
			continue
		}
		decl := map[string]interface{}{"name": name}
		if desc := fn.Get("description").String(); desc != "" {
			decl["description"] = desc
		}
		if params := fn.Get("parameters"); params.IsObject() {
			cleaned := CleanToolSchema(params.Raw)
			decl["parameters"] = gjson.Parse(cleaned).Value()
		}
		decls = append(decls, decl)
	}
	if len(decls) == 0 {
		return nil
	}
	return []interface{}{map[string]interface{}{"functionDeclarations": decls}}
}
