// Package schema implements the typed parameter-tree AST tool providers use
// to declare their arguments, the JSON-schema wire-shape visitor the
// completion service receives, and the recursive validator that checks an
// inbound tool call's arguments against that tree.
//
// This replaces duck-typed, ad-hoc JSON-schema blobs with an explicit tagged
// union at the registry boundary, per the design's "typed unions at
// boundaries, provider-opaque interior" note.
package schema

// Type identifies a parameter's primitive shape.
type Type string

const (
	TypeString  Type = "string"
	TypeInteger Type = "integer"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
	TypeObject  Type = "object"
	TypeArray   Type = "array"
)

// Param is one node of a tool's parameter tree: a typed, optionally-nested,
// optionally-required field with an optional default and description.
type Param struct {
	Name        string
	Type        Type
	Description string
	Required    bool

	// Default is substituted when an optional field is absent from the
	// inbound arguments. Nil means "no default".
	Default any

	// Properties declares the nested fields of a TypeObject parameter.
	Properties []Param

	// OpenObject controls what happens to properties beyond those declared
	// in Properties of a TypeObject parameter. Unknown properties are always
	// allowed; when false they are dropped, when true they are forwarded
	// verbatim.
	OpenObject bool

	// Items declares the element schema of a TypeArray parameter. Nil means
	// elements are unconstrained.
	Items *Param
}

// Tree is a tool's full parameter tree: the top-level is always an implicit
// object whose properties are Params.
type Tree struct {
	Params []Param
}

// Declaration is a tool's full declarative record.
type Declaration struct {
	// ID is unique across the process.
	ID string

	// Name is the human-facing tool name (often equal to ID).
	Name string

	// Description is fed to the completion service verbatim.
	Description string

	// Parameters is the tool's input parameter tree.
	Parameters Tree

	// Returns optionally documents the shape of a successful result. It is
	// informational only; the registry does not validate return values
	// against it.
	Returns *Param
}
