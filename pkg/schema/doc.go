// Package schema describes and checks the arguments of actions.
//
// An action declares its parameters as a Schema: each parameter has a type,
// may be required and may carry a default. Apply checks the arguments of a
// call against it and fills the defaults:
//
//	params := schema.Schema{
//	    "name":  {Type: schema.String(), Required: true},
//	    "scope": {Type: schema.OneOf("user", "temp"), Default: "temp"},
//	    "tags":  {Type: schema.Slice(schema.String())},
//	}
//
//	args, err := schema.Apply(params, call.ActionArgs)
//
// Arguments the schema does not name are kept as they are. Schemas also read
// from JSON, where a type is written as a string ("string", "number",
// "boolean", "object", "any", or "[T]" for a list):
//
//	{"name": {"type": "string", "required": true}, "retries": {"type": "number", "default": 3}}
package schema
