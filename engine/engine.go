// Package engine assembles a wrapper module from a descriptor tree.
//
// A run validates the classes (Declared -> Validated, or Excluded), seals
// the type registry, generates every wrapper in declaration order and
// finally writes the fragments to a sink. Member failures are routed to the
// ErrorHandler, which decides whether the run continues without the member
// or aborts.
package engine

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rubiojr/bindgen/binderr"
	"github.com/rubiojr/bindgen/codesink"
	"github.com/rubiojr/bindgen/hostapi"
	"github.com/rubiojr/bindgen/logging"
	"github.com/rubiojr/bindgen/model"
	"github.com/rubiojr/bindgen/trampoline"
	"github.com/rubiojr/bindgen/typehandlers"
)

// Engine generates modules against one base type registry. An Engine runs
// one module at a time; the base registry is sealed while a run is active.
type Engine struct {
	Dialect  *hostapi.Dialect
	Registry *typehandlers.Registry
	Handler  ErrorHandler
	Logger   *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithDialect selects the host ABI dialect.
func WithDialect(d *hostapi.Dialect) Option {
	return func(e *Engine) { e.Dialect = d }
}

// WithErrorHandler installs the error handler. The default aborts on the
// first error.
func WithErrorHandler(h ErrorHandler) Option {
	return func(e *Engine) { e.Handler = h }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.Logger = l }
}

// New returns an engine using reg.
func New(reg *typehandlers.Registry, opts ...Option) *Engine {
	e := &Engine{
		Dialect:  hostapi.Default(),
		Registry: reg,
		Handler:  AbortOnError,
		Logger:   logging.Logger(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Generate generates mod and writes it to sink. Nothing is written unless
// the run completes; a sink error is returned as is and ends the run.
//
// Each run registers the module's classes and enums on its own copy of the
// engine registry, so runs never see each other's types. The engine
// registry stays sealed while the run is active.
//
// The returned Result is never nil, also when the run aborted.
func (e *Engine) Generate(mod *model.Module, sink codesink.Sink) (*Result, error) {
	r := &run{
		e:        e,
		d:        e.Dialect,
		mod:      mod,
		res:      newResult(),
		log:      e.Logger.With(zap.String("module", mod.Name)),
		helpers:  make(map[*model.Class]*trampoline.Helper),
		statics:  make(map[*model.Class]bool),
		badEnums: make(map[*model.Enum]bool),
	}
	if e.Registry.Sealed() {
		return r.res, fmt.Errorf("module %s: %w", mod.Name, binderr.ErrRegistrySealed)
	}
	r.reg = e.Registry.Clone()
	e.Registry.Seal()
	defer e.Registry.Unseal()
	if err := r.build(); err != nil {
		return r.res, err
	}

	r.reg.Seal()
	if err := r.emit(); err != nil {
		return r.res, err
	}
	for _, f := range r.frags {
		if err := sink.WriteFragment(f); err != nil {
			return r.res, fmt.Errorf("writing module %s: %w", mod.Name, err)
		}
	}
	r.log.Debug("module generated",
		zap.Int("wrappers", r.res.Wrappers),
		zap.Int("suppressed", r.res.Suppressed))
	return r.res, nil
}

// run is the state of one Generate call.
type run struct {
	e   *Engine
	d   *hostapi.Dialect
	reg *typehandlers.Registry
	mod *model.Module
	res *Result
	log *zap.Logger

	helpers map[*model.Class]*trampoline.Helper
	// statics marks classes with a static attribute table.
	statics map[*model.Class]bool
	// badEnums holds enums skipped for an invalid name.
	badEnums map[*model.Enum]bool
	frags    []string
}

// report hands err to the error handler. It returns err when the run must
// abort, nil when it continues past it.
func (r *run) report(d model.Descriptor, err error) error {
	r.res.Failures = append(r.res.Failures, Failure{Desc: d, Err: err})
	if r.e.Handler.HandleError(d, err) == Abort {
		return fmt.Errorf("%s: %w", Describe(d), err)
	}
	r.res.Suppressed++
	return nil
}

func (r *run) fragment(s string) {
	if s != "" {
		r.frags = append(r.frags, s)
	}
}

func (r *run) emit() error {
	r.fragment(r.includes())
	r.fragment(r.forwardDeclarations())
	if err := r.emitNamespace(r.mod.Namespace); err != nil {
		return err
	}
	r.fragment(r.moduleInit())
	return nil
}

// emitNamespace emits child namespaces, then classes with their nested
// classes, then functions.
func (r *run) emitNamespace(ns *model.Namespace) error {
	for _, child := range ns.Namespaces {
		if err := r.emitNamespace(child); err != nil {
			return err
		}
	}
	for _, c := range ns.Classes {
		if err := r.emitClassTree(c); err != nil {
			return err
		}
	}
	return r.emitFunctions(ns)
}

func (r *run) emitClassTree(c *model.Class) error {
	if r.res.states[c] == Validated {
		if err := r.emitClass(c); err != nil {
			return err
		}
	}
	for _, n := range c.NestedClasses {
		if err := r.emitClassTree(n); err != nil {
			return err
		}
	}
	return nil
}

// emitted reports whether c made it to the output.
func (r *run) emitted(c *model.Class) bool {
	return r.res.states[c] == Emitted
}

func (r *run) includes() string {
	var w codesink.Writer
	for _, inc := range r.mod.Includes {
		w.Line("#include " + inc)
	}
	for _, c := range r.mod.Classes() {
		if c.AutomaticTypeNarrowing && r.res.states[c] == Validated {
			w.Line("#include <typeinfo>")
			break
		}
	}
	return w.String()
}

func (r *run) forwardDeclarations() string {
	d := r.d
	var w codesink.Writer
	for _, c := range r.mod.Classes() {
		if r.res.states[c] != Validated {
			continue
		}
		w.Blank()
		w.Line("typedef struct {")
		w.Indent()
		w.Line(d.Flag("OBJECT_HEAD"))
		w.Linef("%s *obj;", c.FullName())
		w.Linef("%s flags;", d.Prefix+"WrapperFlags")
		w.Dedent()
		w.Linef("} %s;", d.Wrapper(c.MangledName()))
		w.Linef("extern %s %s;", d.TypeObject(), d.Type(c.MangledName()))
		if c.AutomaticTypeNarrowing && r.reg.NarrowingRoot(c) == c {
			w.Linef("static %s %s;", d.Prefix+"TypeIdMap", typehandlers.TypeIDMap(d, c))
		}
	}
	return w.String()
}

// hostName is the dotted host name of a class ("foo.xpto.SomeClass").
func (r *run) hostName(c *model.Class) string {
	if c.Outer != nil {
		return r.hostName(c.Outer) + "." + c.Name
	}
	return namespaceHostName(c.Namespace) + "." + c.Name
}

func namespaceHostName(ns *model.Namespace) string {
	if ns.Parent == nil {
		return ns.Name
	}
	return namespaceHostName(ns.Parent) + "." + ns.Name
}

// namespacePrefix names the C identifiers of a namespace ("foo_xpto").
func namespacePrefix(ns *model.Namespace) string {
	return strings.ReplaceAll(namespaceHostName(ns), ".", "_")
}
