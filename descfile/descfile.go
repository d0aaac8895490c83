// Package descfile loads module descriptors from YAML files. A file maps
// one to one onto the model API:
//
//	module: foo
//	includes: ['"foo.h"']
//	classes:
//	  - name: Foo
//	    allow_subclassing: true
//	    constructors:
//	      - params: [{type: std::string, name: datum}]
//	    methods:
//	      - name: get_datum
//	        return: std::string
//	        virtual: true
//	        const: true
//	functions:
//	  - name: print_something
//	    return: int
//	    params: [{type: const char*, name: message}]
//
// Classes refer to each other (parent, implicit conversions) by full C++
// name; references are resolved once the whole tree is declared, so order
// does not matter.
package descfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rubiojr/bindgen/model"
)

// File is the root of a descriptor file.
type File struct {
	Module   string   `yaml:"module"`
	Includes []string `yaml:"includes,omitempty"`
	Scope    `yaml:",inline"`
}

// Scope holds the entities of a module or namespace.
type Scope struct {
	Namespaces []Namespace `yaml:"namespaces,omitempty"`
	Classes    []Class     `yaml:"classes,omitempty"`
	Enums      []Enum      `yaml:"enums,omitempty"`
	Functions  []Function  `yaml:"functions,omitempty"`
}

type Namespace struct {
	Name  string `yaml:"name"`
	Scope `yaml:",inline"`
}

type Enum struct {
	Name   string   `yaml:"name"`
	Values []string `yaml:"values"`
}

type RefCount struct {
	Incref string `yaml:"incref"`
	Decref string `yaml:"decref"`
	Peek   string `yaml:"peek,omitempty"`
}

type Class struct {
	Name                       string    `yaml:"name"`
	Parent                     string    `yaml:"parent,omitempty"`
	AllowSubclassing           *bool     `yaml:"allow_subclassing,omitempty"`
	Singleton                  bool      `yaml:"singleton,omitempty"`
	AutomaticTypeNarrowing     bool      `yaml:"automatic_type_narrowing,omitempty"`
	InheritDefaultConstructors bool      `yaml:"inherit_default_constructors,omitempty"`
	InstanceCreator            string    `yaml:"instance_creator,omitempty"`
	CannotBeConstructed        string    `yaml:"cannot_be_constructed,omitempty"`
	RefCount                   *RefCount `yaml:"refcount,omitempty"`
	ImplicitConversions        []string  `yaml:"implicit_conversions,omitempty"`

	Constructors []Constructor `yaml:"constructors,omitempty"`
	Methods      []Method      `yaml:"methods,omitempty"`
	Attributes   []Attribute   `yaml:"attributes,omitempty"`
	Classes      []Class       `yaml:"classes,omitempty"`
	Enums        []Enum        `yaml:"enums,omitempty"`
}

type Constructor struct {
	Params     []Param `yaml:"params,omitempty"`
	Visibility string  `yaml:"visibility,omitempty"`
}

// Custom is a hand written wrapper inserted verbatim.
type Custom struct {
	Wrapper string   `yaml:"wrapper"`
	Body    string   `yaml:"body"`
	Flags   []string `yaml:"flags,omitempty"`
}

type Method struct {
	Name        string  `yaml:"name"`
	ExposedAs   string  `yaml:"exposed_as,omitempty"`
	Return      *Return `yaml:"return,omitempty"`
	Params      []Param `yaml:"params,omitempty"`
	Static      bool    `yaml:"static,omitempty"`
	Const       bool    `yaml:"const,omitempty"`
	Virtual     bool    `yaml:"virtual,omitempty"`
	PureVirtual bool    `yaml:"pure_virtual,omitempty"`
	Visibility  string  `yaml:"visibility,omitempty"`
	// Function exposes the free function Name as a method; its first
	// parameter receives the instance.
	Function bool    `yaml:"function,omitempty"`
	Custom   *Custom `yaml:"custom,omitempty"`
}

type Function struct {
	Name      string  `yaml:"name"`
	ExposedAs string  `yaml:"exposed_as,omitempty"`
	Return    *Return `yaml:"return,omitempty"`
	Params    []Param `yaml:"params,omitempty"`
	Custom    *Custom `yaml:"custom,omitempty"`
}

type Attribute struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Static   bool   `yaml:"static,omitempty"`
	Getter   string `yaml:"getter,omitempty"`
	Setter   string `yaml:"setter,omitempty"`
	ReadOnly bool   `yaml:"read_only,omitempty"`
}

type Param struct {
	Type              string `yaml:"type"`
	Name              string `yaml:"name"`
	TransferOwnership *bool  `yaml:"transfer_ownership,omitempty"`
	Custodian         *int   `yaml:"custodian,omitempty"`
	Direction         string `yaml:"direction,omitempty"`
	Default           string `yaml:"default,omitempty"`
	NullOK            bool   `yaml:"null_ok,omitempty"`
}

// Return is a return type. It is written either as a plain type
// ("return: int") or as a mapping with ownership annotations.
type Return struct {
	Type             string `yaml:"type"`
	CallerOwnsReturn *bool  `yaml:"caller_owns_return,omitempty"`
	Custodian        *int   `yaml:"custodian,omitempty"`
}

func (r *Return) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&r.Type)
	}
	type plain Return
	return node.Decode((*plain)(r))
}

// MarshalYAML writes a return without annotations as a plain type.
func (r Return) MarshalYAML() (any, error) {
	if r.CallerOwnsReturn == nil && r.Custodian == nil {
		return r.Type, nil
	}
	type plain Return
	return plain(r), nil
}

// Parse decodes a descriptor file. Unknown keys are errors.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty descriptor")
		}
		return nil, fmt.Errorf("parsing descriptor: %w", err)
	}
	if f.Module == "" {
		return nil, fmt.Errorf("descriptor has no module name")
	}
	return &f, nil
}

// Load reads the descriptor at path and builds its module.
func Load(path string) (*model.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading descriptor: %w", err)
	}
	f, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	mod, err := f.Build()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return mod, nil
}

// Marshal encodes f as YAML.
func Marshal(f *File) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
