package typehandlers

import (
	"fmt"
	"maps"
	"reflect"
	"slices"

	"github.com/rubiojr/bindgen/binderr"
	"github.com/rubiojr/bindgen/ctype"
	"github.com/rubiojr/bindgen/model"
)

// Binding is the result of a handler lookup.
type Binding struct {
	Handler Handler
	// Type is the signature the handler serves, after transformation.
	Type ctype.Signature
	// Original is the signature as looked up.
	Original ctype.Signature
	// Transform is the transformation applied, nil when none matched.
	Transform Transformation
	// Class is set for class instance handlers.
	Class *model.Class
}

// Value returns a Value for this binding, ready for ownership to be
// filled in.
func (b Binding) Value(name string, index int, role binderr.Role) *Value {
	return &Value{
		Name:      name,
		Type:      b.Type,
		Original:  b.Original,
		Transform: b.Transform,
		Class:     b.Class,
		Role:      role,
		Index:     index,
	}
}

// Registry resolves type signatures to handlers for one generation run.
// Its pluggable state (handlers, transformations) may only change while it
// is not sealed; the engine seals it for the duration of emission.
type Registry struct {
	params     map[string]Handler
	returns    map[string]Handler
	aliases    map[string]bool
	transforms []Transformation

	classes     map[string]*model.Class
	conversions map[*model.Class][]*model.Class
	enums       map[string]*model.Enum

	sealed bool
}

// NewRegistry returns a registry with the builtin handlers.
func NewRegistry() *Registry {
	r := &Registry{}
	r.Reset()
	return r
}

// Reset drops everything but the builtin handlers and unseals the
// registry.
func (r *Registry) Reset() {
	r.params = make(map[string]Handler)
	r.returns = make(map[string]Handler)
	r.aliases = make(map[string]bool)
	r.transforms = nil
	r.classes = make(map[string]*model.Class)
	r.conversions = make(map[*model.Class][]*model.Class)
	r.enums = make(map[string]*model.Enum)
	r.sealed = false
	r.registerBuiltins()
}

// Clone returns an unsealed copy of r. Registrations made on the copy do
// not reach r.
func (r *Registry) Clone() *Registry {
	c := &Registry{
		params:      maps.Clone(r.params),
		returns:     maps.Clone(r.returns),
		aliases:     maps.Clone(r.aliases),
		transforms:  slices.Clone(r.transforms),
		classes:     maps.Clone(r.classes),
		conversions: make(map[*model.Class][]*model.Class, len(r.conversions)),
		enums:       maps.Clone(r.enums),
	}
	for target, from := range r.conversions {
		c.conversions[target] = slices.Clone(from)
	}
	return c
}

func (r *Registry) registerBuiltins() {
	for _, p := range primitives {
		r.params[p.ctype] = p
		r.returns[p.ctype] = p
		for _, ref := range []string{p.ctype + "&", p.ctype + "*"} {
			r.params[ref] = primitiveRef{primitive: p, pointer: ref[len(ref)-1] == '*'}
		}
	}
	r.params["bool"] = boolean{}
	r.returns["bool"] = boolean{}
	r.params["const char*"] = cstring{}
	r.returns["const char*"] = cstring{}
	r.returns["char*"] = cstring{}
	for _, s := range []string{"std::string", "const std::string&"} {
		r.params[s] = stdString{}
		r.returns[s] = stdString{}
	}
	r.returns["std::string&"] = stdString{}
	r.params["std::string&"] = stdStringRef{}
	r.returns["void"] = void{}
}

// Seal freezes the pluggable state.
func (r *Registry) Seal() { r.sealed = true }

// Unseal allows changes again.
func (r *Registry) Unseal() { r.sealed = false }

// Sealed reports whether the registry is sealed.
func (r *Registry) Sealed() bool { return r.sealed }

// RegisterParam registers a parameter handler for a signature.
func (r *Registry) RegisterParam(sig string, h Handler) error {
	return r.register(r.params, sig, h)
}

// RegisterReturn registers a return handler for a signature.
func (r *Registry) RegisterReturn(sig string, h Handler) error {
	return r.register(r.returns, sig, h)
}

func (r *Registry) register(m map[string]Handler, sig string, h Handler) error {
	if r.sealed {
		return binderr.ErrRegistrySealed
	}
	s, err := ctype.Parse(sig)
	if err != nil {
		return err
	}
	m[s.String()] = h
	return nil
}

// AddTransformation appends t. Adding an identical rule again is a no-op;
// a different rule under the same name is ErrConflictingTransformation.
func (r *Registry) AddTransformation(t Transformation) error {
	if r.sealed {
		return binderr.ErrRegistrySealed
	}
	for _, x := range r.transforms {
		if x.Name() != t.Name() {
			continue
		}
		if reflect.DeepEqual(x, t) {
			return nil
		}
		return fmt.Errorf("%w: %q", binderr.ErrConflictingTransformation, t.Name())
	}
	r.transforms = append(r.transforms, t)
	return nil
}

// RemoveTransformation drops the rule called name. It reports whether one
// was registered.
func (r *Registry) RemoveTransformation(name string) (bool, error) {
	if r.sealed {
		return false, binderr.ErrRegistrySealed
	}
	for i, x := range r.transforms {
		if x.Name() == name {
			r.transforms = append(r.transforms[:i], r.transforms[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// Transformations returns the registered rules in order.
func (r *Registry) Transformations() []Transformation {
	return append([]Transformation(nil), r.transforms...)
}

// namePatterns are the signatures derived from a class or enum name.
var namePatterns = []string{"%s", "const %s&", "%s&", "%s*", "const %s*"}

// CheckName reports an error unless every signature derived from name
// parses, i.e. name can be registered as a class or enum.
func CheckName(name string) error {
	if name == "" {
		return binderr.Configf("empty type name")
	}
	for _, pattern := range namePatterns {
		if _, err := ctype.Parse(fmt.Sprintf(pattern, name)); err != nil {
			return binderr.Configf("invalid type name %q: %v", name, err)
		}
	}
	return nil
}

// RegisterClass registers the handlers of a class under its full name and,
// when free, its unqualified name: value, const reference, reference,
// pointer and const pointer.
func (r *Registry) RegisterClass(c *model.Class) error {
	if r.sealed {
		return binderr.ErrRegistrySealed
	}
	names := []string{c.FullName()}
	if c.Name != c.FullName() {
		names = append(names, c.Name)
	}
	for _, name := range names {
		if err := CheckName(name); err != nil {
			return err
		}
	}
	for i, name := range names {
		alias := i > 0
		if alias && r.taken(name) {
			continue
		}
		value := classValue{classBase: classBase{c}, reg: r}
		ref := classRef{classBase{c}}
		ptr := classPtr{classBase{c}}
		r.bind(name, alias, map[string]Handler{
			"%s": value, "const %s&": value, "%s&": ref, "%s*": ptr, "const %s*": ptr,
		}, map[string]Handler{
			"%s": value, "const %s&": value, "%s&": value, "%s*": ptr, "const %s*": ptr,
		})
		r.classes[name] = c
	}
	for _, target := range c.ImplicitConversions {
		if !slices.Contains(r.conversions[target], c) {
			r.conversions[target] = append(r.conversions[target], c)
		}
	}
	return nil
}

// RegisterEnum registers an enum under its full name and, when free, its
// unqualified name.
func (r *Registry) RegisterEnum(e *model.Enum) error {
	if r.sealed {
		return binderr.ErrRegistrySealed
	}
	names := []string{e.FullName()}
	if e.Name != e.FullName() {
		names = append(names, e.Name)
	}
	for _, name := range names {
		if err := CheckName(name); err != nil {
			return err
		}
	}
	for i, name := range names {
		alias := i > 0
		if alias && r.taken(name) {
			continue
		}
		h := enum{e}
		r.bind(name, alias, map[string]Handler{"%s": h, "const %s&": h}, map[string]Handler{"%s": h})
		r.enums[name] = e
	}
	return nil
}

// taken reports whether name is registered under a full (non-alias) name.
func (r *Registry) taken(name string) bool {
	_, ok := r.params[name]
	return ok && !r.aliases[name]
}

func (r *Registry) bind(name string, alias bool, params, returns map[string]Handler) {
	for pattern, h := range params {
		key := ctype.MustParse(fmt.Sprintf(pattern, name)).String()
		r.params[key] = h
		r.aliases[key] = alias
	}
	for pattern, h := range returns {
		key := ctype.MustParse(fmt.Sprintf(pattern, name)).String()
		r.returns[key] = h
		r.aliases[key] = alias
	}
}

// Class returns the class registered under name.
func (r *Registry) Class(name string) *model.Class {
	return r.classes[name]
}

// ConversionsTo lists the classes implicitly converting to target, in
// declaration order. Only one hop is followed.
func (r *Registry) ConversionsTo(target *model.Class) []*model.Class {
	return r.conversions[target]
}

// NarrowingRoot returns the outermost ancestor of c (or c itself) with
// automatic type narrowing, or nil.
func (r *Registry) NarrowingRoot(c *model.Class) *model.Class {
	var root *model.Class
	for k := c; k != nil; k = k.Parent {
		if k.AutomaticTypeNarrowing {
			root = k
		}
	}
	return root
}

// IsInstance reports whether sig is a pointer or reference to a registered
// class, i.e. a value that can hold a ward list.
func (r *Registry) IsInstance(sig ctype.Signature) bool {
	if sig.Pointers > 1 {
		return false
	}
	_, ok := r.classes[sig.Base]
	return ok
}

// LookupParam resolves the parameter handler of sig.
func (r *Registry) LookupParam(sig ctype.Signature) (Binding, error) {
	return r.lookup(sig, binderr.Parameter)
}

// LookupReturn resolves the return handler of sig.
func (r *Registry) LookupReturn(sig ctype.Signature) (Binding, error) {
	return r.lookup(sig, binderr.Return)
}

func (r *Registry) lookup(sig ctype.Signature, role binderr.Role) (Binding, error) {
	for _, t := range r.transforms {
		under, ok := t.Match(sig)
		if !ok {
			continue
		}
		b, err := r.direct(under, role)
		if err != nil {
			return Binding{}, &binderr.UnhandledTypeError{
				CType:  sig.String(),
				Role:   role,
				Reason: fmt.Sprintf("transformation %s gives %s, which has no handler", t.Name(), under),
			}
		}
		b.Original = sig
		b.Transform = t
		return b, nil
	}
	return r.direct(sig, role)
}

func (r *Registry) direct(sig ctype.Signature, role binderr.Role) (Binding, error) {
	m := r.params
	if role == binderr.Return {
		m = r.returns
	}
	try := []ctype.Signature{sig}
	if sig.Const && sig.IsValue() {
		try = append(try, sig.WithoutConst())
	}
	for _, s := range try {
		if h, ok := m[s.String()]; ok {
			b := Binding{Handler: h, Type: s, Original: sig}
			if ch, ok := h.(ClassHandler); ok {
				b.Class = ch.Class()
			}
			return b, nil
		}
	}
	return Binding{}, &binderr.UnhandledTypeError{CType: sig.String(), Role: role}
}

// ParamSignatures lists the signatures with a parameter handler.
func (r *Registry) ParamSignatures() []string { return signatures(r.params) }

// ReturnSignatures lists the signatures with a return handler.
func (r *Registry) ReturnSignatures() []string { return signatures(r.returns) }
