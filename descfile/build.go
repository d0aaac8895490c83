package descfile

import (
	"fmt"

	"github.com/rubiojr/bindgen/model"
)

// builder turns a File into a model tree in two passes: declare, then
// resolve class references.
type builder struct {
	mod     *model.Module
	pending []func() error
}

// Build declares the module described by f.
func (f *File) Build() (*model.Module, error) {
	b := &builder{mod: model.NewModule(f.Module)}
	for _, inc := range f.Includes {
		b.mod.AddInclude(inc)
	}
	if err := b.scope(b.mod.Namespace, f.Scope); err != nil {
		return nil, err
	}
	for _, resolve := range b.pending {
		if err := resolve(); err != nil {
			return nil, err
		}
	}
	return b.mod, nil
}

func (b *builder) scope(ns *model.Namespace, s Scope) error {
	for _, e := range s.Enums {
		ns.AddEnum(e.Name, e.Values...)
	}
	for _, c := range s.Classes {
		if err := b.class(ns.AddClass(c.Name), c); err != nil {
			return err
		}
	}
	for _, f := range s.Functions {
		if err := b.function(ns, f); err != nil {
			return err
		}
	}
	for _, child := range s.Namespaces {
		if child.Name == "" {
			return fmt.Errorf("namespace without a name in %s", ns.Describe())
		}
		if err := b.scope(ns.AddNamespace(child.Name), child.Scope); err != nil {
			return err
		}
	}
	return nil
}

// lookup resolves a class name as written in the descriptor: a full name,
// or a name relative to the scope of from.
func (b *builder) lookup(name string, from *model.Class) (*model.Class, error) {
	if c := b.mod.FindClass(name); c != nil {
		return c, nil
	}
	if scope := from.Namespace.Scope(); scope != "" {
		if c := b.mod.FindClass(scope + "::" + name); c != nil {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%s: unknown class %q", from.Describe(), name)
}

func (b *builder) class(c *model.Class, d Class) error {
	if d.Name == "" {
		return fmt.Errorf("class without a name in %s", c.Namespace.Describe())
	}
	if d.AllowSubclassing != nil {
		c.SetAllowSubclassing(*d.AllowSubclassing)
	}
	c.Singleton = d.Singleton
	c.AutomaticTypeNarrowing = d.AutomaticTypeNarrowing
	c.InheritDefaultConstructors = d.InheritDefaultConstructors
	c.InstanceCreator = d.InstanceCreator
	if d.CannotBeConstructed != "" {
		c.SetCannotBeConstructed(d.CannotBeConstructed)
	}
	if rc := d.RefCount; rc != nil {
		c.RefCount = &model.RefCount{Incref: rc.Incref, Decref: rc.Decref, Peek: rc.Peek}
	}

	if d.Parent != "" {
		b.pending = append(b.pending, func() error {
			p, err := b.lookup(d.Parent, c)
			if err != nil {
				return err
			}
			c.Parent = p
			return nil
		})
	}
	for _, name := range d.ImplicitConversions {
		b.pending = append(b.pending, func() error {
			t, err := b.lookup(name, c)
			if err != nil {
				return err
			}
			c.ImplicitlyConvertsTo(t)
			return nil
		})
	}

	for _, ct := range d.Constructors {
		v, err := model.ParseVisibility(ct.Visibility)
		if err != nil {
			return fmt.Errorf("constructor of %s: %w", c.FullName(), err)
		}
		params, err := buildParams(ct.Params)
		if err != nil {
			return fmt.Errorf("constructor of %s: %w", c.FullName(), err)
		}
		c.AddConstructorWithVisibility(v, params...)
	}
	for _, m := range d.Methods {
		if err := method(c, m); err != nil {
			return err
		}
	}
	for _, a := range d.Attributes {
		var opts []model.AttributeOption
		if a.Getter != "" {
			opts = append(opts, model.Getter(a.Getter))
		}
		if a.Setter != "" {
			opts = append(opts, model.Setter(a.Setter))
		}
		if a.ReadOnly {
			opts = append(opts, model.ReadOnly())
		}
		if a.Static {
			c.AddStaticAttribute(a.Type, a.Name, opts...)
		} else {
			c.AddInstanceAttribute(a.Type, a.Name, opts...)
		}
	}
	for _, e := range d.Enums {
		c.AddNestedEnum(e.Name, e.Values...)
	}
	for _, n := range d.Classes {
		if err := b.class(c.AddNestedClass(n.Name), n); err != nil {
			return err
		}
	}
	return nil
}

func method(c *model.Class, m Method) error {
	where := fmt.Sprintf("method %s::%s", c.FullName(), m.Name)
	hostName := m.Name
	if m.ExposedAs != "" {
		hostName = m.ExposedAs
	}
	if m.Custom != nil {
		c.AddCustomMethod(hostName, m.Custom.Wrapper, m.Custom.Body, m.Custom.Flags...)
		return nil
	}
	params, err := buildParams(m.Params)
	if err != nil {
		return fmt.Errorf("%s: %w", where, err)
	}
	ret := buildReturn(m.Return)
	if m.Function {
		c.AddFunctionAsMethod(m.Name, hostName, ret, params)
		return nil
	}

	v, err := model.ParseVisibility(m.Visibility)
	if err != nil {
		return fmt.Errorf("%s: %w", where, err)
	}
	opts := []model.MethodOption{model.WithVisibility(v), model.MethodExposedAs(hostName)}
	if m.Static {
		opts = append(opts, model.IsStatic())
	}
	if m.Const {
		opts = append(opts, model.IsConst())
	}
	if m.Virtual {
		opts = append(opts, model.IsVirtual())
	}
	if m.PureVirtual {
		opts = append(opts, model.IsPureVirtual())
	}
	c.AddMethod(m.Name, ret, params, opts...)
	return nil
}

func (b *builder) function(ns *model.Namespace, f Function) error {
	hostName := f.Name
	if f.ExposedAs != "" {
		hostName = f.ExposedAs
	}
	if f.Custom != nil {
		ns.AddCustomFunction(hostName, f.Custom.Wrapper, f.Custom.Body, f.Custom.Flags...)
		return nil
	}
	params, err := buildParams(f.Params)
	if err != nil {
		return fmt.Errorf("function %s: %w", f.Name, err)
	}
	ns.AddFunction(f.Name, buildReturn(f.Return), params, model.ExposedAs(hostName))
	return nil
}

// buildParams declares parameters. Malformed types are left to the engine,
// which reports them against the owning member.
func buildParams(list []Param) ([]*model.Parameter, error) {
	var out []*model.Parameter
	for _, p := range list {
		dir, err := model.ParseDirection(p.Direction)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", p.Name, err)
		}
		opts := []model.ParamOption{model.Dir(dir)}
		if p.TransferOwnership != nil {
			opts = append(opts, model.TransferOwnership(*p.TransferOwnership))
		}
		if p.Custodian != nil {
			opts = append(opts, model.Custodian(*p.Custodian))
		}
		if p.Default != "" {
			opts = append(opts, model.Default(p.Default))
		}
		if p.NullOK {
			opts = append(opts, model.NullOK())
		}
		out = append(out, model.Param(p.Type, p.Name, opts...))
	}
	return out, nil
}

func buildReturn(r *Return) *model.ReturnValue {
	if r == nil || r.Type == "" {
		return nil
	}
	var opts []model.ReturnOption
	if r.CallerOwnsReturn != nil {
		opts = append(opts, model.CallerOwnsReturn(*r.CallerOwnsReturn))
	}
	if r.Custodian != nil {
		opts = append(opts, model.ReturnCustodian(*r.Custodian))
	}
	return model.Ret(r.Type, opts...)
}
