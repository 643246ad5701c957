package params

import "github.com/invopop/jsonschema"

// Schema describes the template as a JSON Schema document. Callers can use it
// to discover the accepted override fields and their types.
func Schema() *jsonschema.Schema {
	r := &jsonschema.Reflector{DoNotReference: true, RequiredFromJSONSchemaTags: true}
	s := r.Reflect(&Template{})
	s.Title = "Generation parameters"
	s.Description = "Fields accepted as overrides by the generation endpoints."
	return s
}
