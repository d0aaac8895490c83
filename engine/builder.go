package engine

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rubiojr/bindgen/binderr"
	"github.com/rubiojr/bindgen/model"
	"github.com/rubiojr/bindgen/typehandlers"
)

// build validates every class, completes the class model and registers the
// surviving classes and enums with the type registry.
func (r *run) build() error {
	classes := r.mod.Classes()
	for _, c := range classes {
		r.res.states[c] = Declared
	}
	b := &builder{run: r, names: make(map[string]*model.Class), visiting: make(map[*model.Class]bool)}
	for _, c := range classes {
		if _, err := b.validate(c); err != nil {
			return err
		}
	}
	for _, c := range classes {
		if r.res.states[c] == Validated {
			b.inheritConstructors(c)
		}
	}

	for _, c := range classes {
		if r.res.states[c] != Validated {
			continue
		}
		if err := r.reg.RegisterClass(c); err != nil {
			return fmt.Errorf("registering %s: %w", c.FullName(), err)
		}
	}
	for _, e := range r.mod.Enums() {
		if e.Outer != nil && r.res.states[e.Outer] != Validated {
			continue
		}
		if err := checkNames(e.Name, e.FullName()); err != nil {
			if err := r.report(e, err); err != nil {
				return err
			}
			r.badEnums[e] = true
			continue
		}
		if err := r.reg.RegisterEnum(e); err != nil {
			return fmt.Errorf("registering %s: %w", e.FullName(), err)
		}
	}
	return nil
}

type builder struct {
	*run
	names    map[string]*model.Class
	visiting map[*model.Class]bool
}

// validate moves c to Validated or Excluded. Parents and outer classes are
// validated first; their exclusion excludes c. It returns whether c
// survived, and an error only when the run aborts.
func (b *builder) validate(c *model.Class) (bool, error) {
	switch b.res.states[c] {
	case Validated:
		return true, nil
	case Excluded:
		return false, nil
	}
	if b.visiting[c] {
		return false, b.exclude(c, binderr.Configf("class %s inherits from itself", c.FullName()))
	}
	b.visiting[c] = true
	defer delete(b.visiting, c)

	if err := b.check(c); err != nil {
		return false, b.exclude(c, err)
	}
	for _, dep := range []*model.Class{c.Parent, c.Outer} {
		if dep == nil {
			continue
		}
		ok, err := b.validate(dep)
		if err != nil {
			return false, err
		}
		if !ok {
			if b.res.states[c] == Excluded {
				return false, nil
			}
			return false, b.exclude(c, binderr.Configf("%s depends on excluded class %s", c.FullName(), dep.FullName()))
		}
	}
	b.res.states[c] = Validated
	return true, nil
}

// check runs the structural checks of a single class.
func (b *builder) check(c *model.Class) error {
	full := c.FullName()
	if err := checkNames(c.Name, full); err != nil {
		return err
	}
	if prev, ok := b.names[full]; ok && prev != c {
		return binderr.Configf("class %s declared twice", full)
	}
	b.names[full] = c

	if c.Parent != nil && !b.mod.Contains(c.Parent) {
		return binderr.Configf("parent class %s of %s is not part of module %s",
			c.Parent.FullName(), full, b.mod.Name)
	}
	for _, t := range c.ImplicitConversions {
		if !b.mod.Contains(t) {
			return binderr.Configf("implicit conversion target %s of %s is not part of module %s",
				t.FullName(), full, b.mod.Name)
		}
	}
	if c.InstanceCreator != "" && strings.Count(c.InstanceCreator, "%s") != 3 {
		return binderr.Configf("instance creator of %s must have three %%s verbs (lvalue, type, arguments): %q",
			full, c.InstanceCreator)
	}
	if c.RefCount != nil && (c.RefCount.Incref == "" || c.RefCount.Decref == "") {
		return binderr.Configf("reference counting policy of %s needs incref and decref methods", full)
	}
	return nil
}

// checkNames validates the short and full name of a class or enum.
func checkNames(name, full string) error {
	if err := typehandlers.CheckName(name); err != nil {
		return err
	}
	if full == name {
		return nil
	}
	return typehandlers.CheckName(full)
}

func (b *builder) exclude(c *model.Class, err error) error {
	b.res.states[c] = Excluded
	b.log.Debug("class excluded", zap.String("class", c.FullName()), zap.Error(err))
	return b.report(c, err)
}

// inheritConstructors copies the parent's zero-argument constructors
// when asked to, at most once.
func (b *builder) inheritConstructors(c *model.Class) {
	if !c.InheritDefaultConstructors || c.Parent == nil {
		return
	}
	b.inheritConstructors(c.Parent)
	for _, ct := range c.Constructors {
		if len(ct.Params) == 0 {
			return
		}
	}
	for _, ct := range c.Parent.Constructors {
		if len(ct.Params) == 0 && ct.Visibility != model.Private {
			c.Constructors = append(c.Constructors,
				&model.Constructor{Class: c, Visibility: ct.Visibility, Inherited: true})
			return
		}
	}
}
