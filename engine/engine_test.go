package engine

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rubiojr/bindgen/binderr"
	"github.com/rubiojr/bindgen/codesink"
	"github.com/rubiojr/bindgen/model"
	"github.com/rubiojr/bindgen/typehandlers"
)

var continueOnError = HandlerFunc(func(model.Descriptor, error) Decision { return Continue })

func generate(t *testing.T, mod *model.Module, opts ...Option) (string, *Result) {
	t.Helper()
	var sink codesink.MemorySink
	res, err := New(typehandlers.NewRegistry(), opts...).Generate(mod, &sink)
	require.NoError(t, err)
	return sink.String(), res
}

func TestGenerateFunction(t *testing.T) {
	mod := model.NewModule("foo")
	mod.AddInclude(`"foo.h"`)
	mod.AddFunction("add", model.Ret("int"), []*model.Parameter{
		model.Param("int", "a"),
		model.Param("int", "b"),
	})

	out, res := generate(t, mod)
	assert.Equal(t, 1, res.Wrappers)
	assert.True(t, strings.HasPrefix(out, "#include \"foo.h\"\n"))
	assert.Contains(t, out, `static HbObject *
_wrap_foo_add(HbObject *HB_UNUSED(dummy), HbObject *args, HbObject *kwargs)
{
    HbObject *host_result;
    int a;
    int b;
    int retval;
    const char *keywords[] = {"a", "b", NULL};

    if (!hb_parse_args(args, kwargs, (char *) "ii", (char **) keywords, &a, &b)) {
        return NULL;
    }
    retval = add(a, b);
    host_result = hb_build_value((char *) "i", retval);
    return host_result;
}
`)
	assert.Contains(t, out, `static HbMethodDef foo_functions[] = {
    {(char *) "add", (HbCFunction) _wrap_foo_add, HB_METH_VARARGS|HB_METH_KEYWORDS, NULL },
    {NULL, NULL, 0, NULL}
};
`)
	assert.Contains(t, out, "HB_MODINIT_FUNC\ninitfoo(void)\n{")
	assert.Contains(t, out, `m = hb_module_new((char *) "foo", foo_functions);`)
}

func TestOverloadedFunctions(t *testing.T) {
	mod := model.NewModule("foo")
	mod.AddFunction("get_int", model.Ret("int"), []*model.Parameter{model.Param("std::string", "from_string")})
	mod.AddFunction("get_int", model.Ret("int"), []*model.Parameter{model.Param("double", "from_float")})

	out, res := generate(t, mod)
	assert.Equal(t, 2, res.Wrappers)
	assert.Contains(t, out, "_wrap_foo_get_int__0(HbObject *dummy, HbObject *args, HbObject *kwargs, HbObject **return_exception)")
	assert.Contains(t, out, "_wrap_foo_get_int__1(HbObject *dummy, HbObject *args, HbObject *kwargs, HbObject **return_exception)")
	assert.Contains(t, out, "        hb_fetch_error(return_exception);\n        return NULL;\n")
	assert.Contains(t, out, "static HbObject *\n_wrap_foo_get_int(HbObject *dummy, HbObject *args, HbObject *kwargs)\n{")
	assert.Contains(t, out, "retval = _wrap_foo_get_int__0(dummy, args, kwargs, &exceptions[0]);")
	assert.Contains(t, out, "retval = _wrap_foo_get_int__1(dummy, args, kwargs, &exceptions[1]);")
	assert.Contains(t, out, `{(char *) "get_int", (HbCFunction) _wrap_foo_get_int, HB_METH_VARARGS|HB_METH_KEYWORDS, NULL },`)
}

func TestAmbiguousOverload(t *testing.T) {
	build := func() *model.Module {
		mod := model.NewModule("foo")
		mod.AddFunction("f", nil, []*model.Parameter{model.Param("int", "x")})
		mod.AddFunction("f", nil, []*model.Parameter{model.Param("long", "x")})
		return mod
	}

	var sink codesink.MemorySink
	_, err := New(typehandlers.NewRegistry()).Generate(build(), &sink)
	require.Error(t, err)
	assert.True(t, errors.Is(err, binderr.ErrConfiguration))
	assert.Empty(t, sink.Fragments)

	out, res := generate(t, build(), WithErrorHandler(continueOnError))
	assert.Equal(t, 1, res.Suppressed)
	require.Len(t, res.Failures, 1)
	assert.Contains(t, res.Failures[0].Err.Error(), "ambiguous overloads of f")
	assert.Contains(t, out, "_wrap_foo_f__0")
	assert.NotContains(t, out, "_wrap_foo_f__1")
}

func TestUnhandledTypeSkipsMember(t *testing.T) {
	mod := model.NewModule("foo")
	foo := mod.AddClass("Foo")
	foo.AddConstructor()
	foo.AddMethod("ok", model.Ret("int"), nil)
	foo.AddMethod("broken", nil, []*model.Parameter{model.Param("Unknown*", "u")})
	mod.AddFunction("also_broken", model.Ret("Unknown"), nil)

	out, res := generate(t, mod, WithErrorHandler(continueOnError))
	assert.Equal(t, 2, res.Suppressed)
	for _, f := range res.Failures {
		assert.True(t, errors.Is(f.Err, binderr.ErrUnhandledType))
	}
	assert.Contains(t, out, "_wrap_HbFoo_ok")
	assert.NotContains(t, out, "_wrap_HbFoo_broken")
	assert.NotContains(t, out, "also_broken")
	assert.Equal(t, Emitted, res.State(foo))
}

func TestClassExclusionCascades(t *testing.T) {
	other := model.NewModule("other")
	alien := other.AddClass("Alien")

	mod := model.NewModule("foo")
	bar := mod.AddClass("Bar", model.WithParent(alien))
	baz := mod.AddClass("Baz", model.WithParent(bar))
	inner := bar.AddNestedClass("Inner")
	bar.AddNestedEnum("Color", "RED")
	ok := mod.AddClass("Ok")

	var sink codesink.MemorySink
	_, err := New(typehandlers.NewRegistry()).Generate(mod, &sink)
	require.Error(t, err)
	assert.True(t, errors.Is(err, binderr.ErrConfiguration))

	out, res := generate(t, mod, WithErrorHandler(continueOnError))
	assert.Equal(t, 3, res.Suppressed)
	assert.Equal(t, Excluded, res.State(bar))
	assert.Equal(t, Excluded, res.State(baz))
	assert.Equal(t, Excluded, res.State(inner))
	assert.Equal(t, Emitted, res.State(ok))
	assert.Equal(t, []*model.Class{bar, inner, baz}, res.Excluded(mod))
	assert.NotContains(t, out, "HbBar")
	assert.NotContains(t, out, "Bar::RED")
	assert.Contains(t, out, "HbOk_Type")
}

func TestInvalidInstanceCreator(t *testing.T) {
	mod := model.NewModule("foo")
	mod.AddClass("Foo", model.InstanceCreator("%s = create()"))

	_, err := New(typehandlers.NewRegistry()).Generate(mod, codesink.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "three %s verbs")
}

func TestInvalidTypeNames(t *testing.T) {
	for _, name := range []string{"Foo-Bar", "Foo Bar", "2Foo", ""} {
		t.Run("class "+name, func(t *testing.T) {
			mod := model.NewModule("foo")
			bad := mod.AddClass(name)
			mod.AddFunction("f", nil, nil)

			_, err := New(typehandlers.NewRegistry()).Generate(mod, codesink.Discard)
			require.Error(t, err)
			assert.True(t, errors.Is(err, binderr.ErrConfiguration))

			out, res := generate(t, mod, WithErrorHandler(continueOnError))
			require.Len(t, res.Failures, 1)
			assert.Equal(t, binderr.KindConfiguration, binderr.KindOf(res.Failures[0].Err))
			assert.Equal(t, Excluded, res.State(bad))
			assert.Contains(t, out, "_wrap_foo_f")
		})
		t.Run("enum "+name, func(t *testing.T) {
			mod := model.NewModule("foo")
			mod.AddEnum(name, "A")
			mod.AddEnum("good", "B")

			_, err := New(typehandlers.NewRegistry()).Generate(mod, codesink.Discard)
			require.Error(t, err)
			assert.True(t, errors.Is(err, binderr.ErrConfiguration))

			out, res := generate(t, mod, WithErrorHandler(continueOnError))
			assert.Equal(t, 1, res.Suppressed)
			assert.Contains(t, out, "/* Register the 'good' enum */")
			assert.NotContains(t, out, "/* Register the '"+name+"' enum */")
		})
	}
}

func TestInheritDefaultConstructors(t *testing.T) {
	mod := model.NewModule("foo")
	foo := mod.AddClass("Foo")
	foo.AddConstructor()
	foo.AddConstructor(model.Param("int", "x"))
	bar := mod.AddClass("Bar", model.WithParent(foo))
	bar.InheritDefaultConstructors = true

	out, _ := generate(t, mod)
	require.Len(t, bar.Constructors, 1)
	assert.True(t, bar.Constructors[0].Inherited)
	assert.Contains(t, out, "self->obj = new Bar();")
	assert.Contains(t, out, "hb_type_set_base(&HbBar_Type, &HbFoo_Type);")

	// A second run over the same descriptors adds nothing.
	generate(t, mod)
	assert.Len(t, bar.Constructors, 1)
}

func TestCannotBeConstructed(t *testing.T) {
	build := func() *model.Module {
		mod := model.NewModule("foo")
		c := mod.AddClass("CannotBeConstructed")
		c.SetCannotBeConstructed("no reason")
		c.AddConstructor()
		return mod
	}

	_, err := New(typehandlers.NewRegistry()).Generate(build(), codesink.Discard)
	require.Error(t, err)
	assert.True(t, errors.Is(err, binderr.ErrCodeGeneration))

	out, res := generate(t, build(), WithErrorHandler(continueOnError))
	assert.Equal(t, 1, res.Suppressed)
	assert.Contains(t, out, `hb_raise(HB_EXC_TypeError, "class 'CannotBeConstructed' cannot be constructed (no reason)");`)
}

func TestSingleton(t *testing.T) {
	mod := model.NewModule("foo")
	s := mod.AddClass("SingletonClass", model.Singleton())
	s.AddConstructor()
	s.AddMethod("GetInstance", model.Ret("SingletonClass*", model.CallerOwnsReturn(false)), nil, model.IsStatic())

	out, res := generate(t, mod)
	assert.Zero(t, res.Suppressed)
	assert.Contains(t, out, "cannot be constructed (it is a singleton)")
	assert.NotContains(t, out, "new SingletonClass()")
	assert.Contains(t, out, "_wrap_HbSingletonClass_GetInstance(HbSingletonClass *HB_UNUSED(dummy), HbObject *args, HbObject *kwargs)")
	assert.Contains(t, out, "retval = SingletonClass::GetInstance();")
	assert.Contains(t, out, "HB_METH_VARARGS|HB_METH_KEYWORDS|HB_METH_STATIC")
}

func TestSubclassableClass(t *testing.T) {
	mod := model.NewModule("foo")
	foo := mod.AddClass("Foo", model.AllowSubclassing())
	foo.AddConstructor(model.Param("std::string", "datum"))
	foo.AddMethod("get_datum", model.Ret("std::string"), nil, model.IsVirtual(), model.IsConst())

	out, res := generate(t, mod)
	assert.Zero(t, res.Suppressed)
	assert.Contains(t, out, "class HbFoo__HelperClass : public Foo")
	assert.Contains(t, out, "HbFoo__HelperClass *helper_class = dynamic_cast<HbFoo__HelperClass*> (self->obj);")
	assert.Contains(t, out, "retval = (helper_class == NULL) ? (self->obj->get_datum()) : (helper_class->get_datum__parent_caller());")
	assert.Contains(t, out, `host_result = hb_build_value((char *) "s#", (retval).c_str(), (retval).size());`)
	assert.Contains(t, out, `    if (hb_object_type((HbObject *) self) != &HbFoo_Type) {
        HbFoo__HelperClass *helper = new HbFoo__HelperClass(std::string(datum, datum_len));
        helper->set_hbself((HbObject *) self);
        self->obj = helper;
    } else {
        self->obj = new Foo(std::string(datum, datum_len));
    }
    self->flags = HB_WRAPPER_FLAG_NONE;
`)
	assert.Contains(t, out, "(hb_traverseproc) _wrap_HbFoo__tp_traverse, /* tp_traverse */")
	assert.Contains(t, out, "HB_TPFLAGS_DEFAULT|HB_TPFLAGS_BASETYPE|HB_TPFLAGS_HAVE_GC, /* tp_flags */")
}

func TestAbstractClass(t *testing.T) {
	mod := model.NewModule("foo")
	abs := mod.AddClass("AbstractBaseClass2", model.AllowSubclassing())
	abs.AddConstructorWithVisibility(model.Protected)
	abs.AddMethod("do_something", nil, nil, model.IsPureVirtual(), model.WithVisibility(model.Private))

	out, res := generate(t, mod)
	assert.Zero(t, res.Suppressed)
	assert.Contains(t, out, `if (!hb_has_override((HbObject *) self, "do_something")) {`)
	assert.Contains(t, out, "class 'AbstractBaseClass2' can only be constructed by host subclasses")

	// Without subclassing the class cannot be wrapped for construction.
	mod = model.NewModule("foo")
	abs = mod.AddClass("Abstract")
	abs.AddConstructor()
	abs.AddMethod("run", nil, nil, model.IsPureVirtual())
	_, err := New(typehandlers.NewRegistry()).Generate(mod, codesink.Discard)
	assert.True(t, errors.Is(err, binderr.ErrCodeGeneration))
}

func TestAttributes(t *testing.T) {
	mod := model.NewModule("foo")
	foo := mod.AddClass("Foo")
	foo.AddInstanceAttribute("int", "x")
	foo.AddInstanceAttribute("std::string", "label", model.Getter("get_label"), model.ReadOnly())
	foo.AddStaticAttribute("int", "instance_count")

	out, res := generate(t, mod)
	assert.Equal(t, 3, res.Wrappers)
	assert.Contains(t, out, "_wrap_HbFoo__get_x(HbFoo *self, void *HB_UNUSED(closure))")
	assert.Contains(t, out, "retval = self->obj->x;")
	assert.Contains(t, out, "_wrap_HbFoo__set_x(HbFoo *self, HbObject *value, void *HB_UNUSED(closure))")
	assert.Contains(t, out, `if (!hb_parse_value(value, (char *) "i", &value2)) {`)
	assert.Contains(t, out, "self->obj->x = value2;")
	assert.Contains(t, out, "retval = self->obj->get_label();")
	assert.NotContains(t, out, "_wrap_HbFoo__set_label")
	assert.Contains(t, out, `{(char *) "x", (hb_getter) _wrap_HbFoo__get_x, (hb_setter) _wrap_HbFoo__set_x, NULL, NULL },`)
	assert.Contains(t, out, "retval = Foo::instance_count;")
	assert.Contains(t, out, "hb_type_add_static_getsets(&HbFoo_Type, HbFoo__static_getsets);")
}

func TestNamespacesAndEnums(t *testing.T) {
	mod := model.NewModule("foo")
	xpto := mod.AddNamespace("xpto")
	xpto.AddEnum("FooType", "FOO_TYPE_AAA", "FOO_TYPE_BBB")
	xpto.AddClass("SomeClass").AddConstructor()
	xpto.AddFunction("get_foo_type", model.Ret("FooType"), nil)
	obj := mod.AddClass("SomeObject")
	obj.AddNestedClass("NestedClass").AddConstructor()
	obj.AddNestedEnum("NestedEnum", "XXX")

	out, res := generate(t, mod)
	assert.Zero(t, res.Suppressed)
	assert.Contains(t, out, "retval = xpto::get_foo_type();")
	assert.Contains(t, out, "static HbObject *\ninitfoo_xpto(void)\n{")
	assert.Contains(t, out, `m = hb_module_new((char *) "foo.xpto", foo_xpto_functions);`)
	assert.Contains(t, out, `hb_module_add_int(m, (char *) "FOO_TYPE_AAA", xpto::FOO_TYPE_AAA);`)
	assert.Contains(t, out, "submodule = initfoo_xpto();")
	assert.Contains(t, out, `hb_module_add_object(m, (char *) "xpto", submodule);`)
	assert.Contains(t, out, `(char *) "foo.xpto.SomeClass", /* tp_name */`)
	assert.Contains(t, out, `(char *) "foo.SomeObject.NestedClass", /* tp_name */`)
	assert.Contains(t, out, `hb_type_add_object(&HbSomeObject_Type, (char *) "NestedClass", (HbObject *) &HbSomeObject__NestedClass_Type);`)
	assert.Contains(t, out, `hb_type_add_int(&HbSomeObject_Type, (char *) "XXX", SomeObject::XXX);`)

	// Child namespaces come first, nested classes right after their
	// outer class, functions last.
	iSome := strings.Index(out, "/* --- xpto::SomeClass --- */")
	iObj := strings.Index(out, "/* --- SomeObject --- */")
	iNested := strings.Index(out, "/* --- SomeObject::NestedClass --- */")
	iInit := strings.Index(out, "initfoo_xpto(void)")
	require.True(t, iSome >= 0 && iObj >= 0 && iNested >= 0 && iInit >= 0)
	assert.Less(t, iSome, iObj)
	assert.Less(t, iObj, iNested)
	assert.Less(t, iNested, iInit)
}

func TestCustomWrapperJoinsGroup(t *testing.T) {
	body := `static HbObject *
_wrap_custom_function_that_takes_foo(HbObject *dummy, HbObject *args, HbObject *kwargs, HbObject **return_exception)
{
    return NULL;
}`
	mod := model.NewModule("foo")
	foo := mod.AddClass("Foo")
	mod.AddFunction("function_that_takes_foo", nil, []*model.Parameter{model.Param("Foo", "foo")})
	mod.AddCustomFunction("function_that_takes_foo", "_wrap_custom_function_that_takes_foo", body)
	foo.AddCustomMethod("Hooray", "_wrap_custom_Hooray", "/* custom */", "METH_NOARGS", "METH_STATIC")

	out, _ := generate(t, mod)
	assert.Contains(t, out, body+"\n")
	assert.Contains(t, out, "_wrap_foo_function_that_takes_foo__0(HbObject *dummy, HbObject *args, HbObject *kwargs, HbObject **return_exception)")
	assert.Contains(t, out, "retval = _wrap_custom_function_that_takes_foo(dummy, args, kwargs, &exceptions[1]);")
	assert.Contains(t, out, "/* custom */")
	assert.Contains(t, out, "retval = _wrap_custom_Hooray(self, args, kwargs, &exceptions[0]);")
	assert.Contains(t, out, `{(char *) "Hooray", (HbCFunction) _wrap_HbFoo_Hooray, HB_METH_VARARGS|HB_METH_KEYWORDS|HB_METH_STATIC|HB_METH_NOARGS, NULL },`)
}

func TestFunctionAsMethodAndValueReturn(t *testing.T) {
	mod := model.NewModule("foo")
	foo := mod.AddClass("Foo")
	foo.AddConstructor()
	obj := mod.AddClass("SomeObject")
	obj.AddConstructor()
	obj.AddFunctionAsMethod("some_object_get_something_prefixed", "get_something_prefixed",
		model.Ret("std::string"), []*model.Parameter{
			model.Param("const SomeObject*", "obj"),
			model.Param("std::string", "something"),
		})
	obj.AddMethod("get_foo_value", model.Ret("Foo"), nil)

	out, _ := generate(t, mod)
	assert.Contains(t, out, "retval = some_object_get_something_prefixed(self->obj, std::string(something, something_len));")
	assert.Contains(t, out, "host_retval->obj = new Foo(self->obj->get_foo_value());")
}

func TestCustodianSelf(t *testing.T) {
	mod := model.NewModule("foo")
	foobar := mod.AddClass("Foobar")
	foobar.AddConstructor()
	obj := mod.AddClass("SomeObject")
	obj.AddConstructor()
	obj.AddMethod("get_foobar_with_self_as_custodian",
		model.Ret("Foobar*", model.CallerOwnsReturn(true), model.ReturnCustodian(0)), nil)
	obj.AddMethod("bad", model.Ret("Foobar*", model.CallerOwnsReturn(true), model.ReturnCustodian(3)), nil)

	out, res := generate(t, mod, WithErrorHandler(continueOnError))
	assert.Contains(t, out, "hb_add_ward((HbObject *) self, (HbObject *) host_retval);")
	assert.Equal(t, 1, res.Suppressed)
	assert.True(t, errors.Is(res.Failures[0].Err, binderr.ErrConfiguration))
}

func TestTypeNarrowing(t *testing.T) {
	mod := model.NewModule("foo")
	foo := mod.AddClass("Foo", model.AutomaticTypeNarrowing())
	mod.AddClass("Bar", model.WithParent(foo))
	mod.AddFunction("get_foo", model.Ret("Foo*", model.CallerOwnsReturn(true)), nil)

	out, _ := generate(t, mod)
	assert.Contains(t, out, "#include <typeinfo>")
	assert.Contains(t, out, "static HbTypeIdMap HbFoo__typeid_map;")
	assert.Contains(t, out, "hb_typeid_map_register(&HbFoo__typeid_map, typeid(Bar).name(), &HbBar_Type);")
	assert.Contains(t, out, "hb_typeid_map_lookup(&HbFoo__typeid_map, typeid(*(retval)).name(), &HbFoo_Type)")
}

func TestRegistrySealing(t *testing.T) {
	reg := typehandlers.NewRegistry()
	mod := model.NewModule("foo")
	mod.AddClass("Foo")

	_, err := New(reg).Generate(mod, codesink.Discard)
	require.NoError(t, err)
	assert.False(t, reg.Sealed())

	reg.Seal()
	_, err = New(reg).Generate(mod, codesink.Discard)
	assert.True(t, errors.Is(err, binderr.ErrRegistrySealed))
}

func TestRunsDoNotShareTypes(t *testing.T) {
	reg := typehandlers.NewRegistry()
	e := New(reg)

	first := model.NewModule("first")
	foo := first.AddClass("Foo")
	first.AddClass("Zoo").ImplicitlyConvertsTo(foo)
	first.AddFunction("take", nil, []*model.Parameter{model.Param("Foo*", "foo")})
	var a, b codesink.MemorySink
	_, err := e.Generate(first, &a)
	require.NoError(t, err)
	_, err = e.Generate(first, &b)
	require.NoError(t, err)
	assert.Equal(t, a.String(), b.String())
	assert.Nil(t, reg.Class("Foo"))
	assert.Empty(t, reg.ConversionsTo(foo))

	second := model.NewModule("second")
	second.AddFunction("take", nil, []*model.Parameter{model.Param("Foo*", "foo")})
	_, err = e.Generate(second, codesink.Discard)
	require.Error(t, err)
	assert.True(t, errors.Is(err, binderr.ErrUnhandledType))
}

type failingSink struct{}

func (failingSink) WriteFragment(string) error { return errors.New("disk full") }

func TestSinkFailureIsFatal(t *testing.T) {
	mod := model.NewModule("foo")
	mod.AddFunction("f", nil, nil)
	handled := 0
	h := HandlerFunc(func(model.Descriptor, error) Decision {
		handled++
		return Continue
	})

	_, err := New(typehandlers.NewRegistry(), WithErrorHandler(h)).Generate(mod, failingSink{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Zero(t, handled)
}

func TestLogAndContinue(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	mod := model.NewModule("foo")
	mod.AddFunction("f", nil, []*model.Parameter{model.Param("Unknown", "u")})

	_, res := generate(t, mod, WithErrorHandler(LogAndContinue(zap.New(core))))
	assert.Equal(t, 1, res.Suppressed)
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "skipping", entry.Message)
	assert.Equal(t, "function f(Unknown)", entry.ContextMap()["member"])
	assert.Equal(t, "configuration", entry.ContextMap()["kind"])
}

func TestDescribe(t *testing.T) {
	mod := model.NewModule("foo")
	f := mod.AddFunction("f", nil, []*model.Parameter{model.Param("int", "x")})
	assert.Equal(t, "function f(int)", Describe(f))
	assert.Equal(t, "<none>", Describe(nil))
}

func TestRefCountedArgumentsBalance(t *testing.T) {
	mod := model.NewModule("foo")
	mod.AddClass("Zbr", model.RefCounted("Ref", "Unref", "GetReferenceCount"))
	mod.AddFunction("store_zbr", nil, []*model.Parameter{
		model.Param("Zbr*", "zbr", model.TransferOwnership(true)),
	})
	foo := mod.AddClass("Foo", model.AllowSubclassing())
	foo.AddConstructor()
	foo.AddMethod("visit", nil, []*model.Parameter{
		model.Param("Zbr*", "zbr", model.TransferOwnership(false)),
	}, model.IsVirtual())

	out, res := generate(t, mod)
	assert.Zero(t, res.Suppressed)

	// store_zbr keeps the reference it is given; the wrapper keeps the one
	// it already held, released by its finalizer.
	assert.Contains(t, out, `static HbObject *
_wrap_foo_store_zbr(HbObject *HB_UNUSED(dummy), HbObject *args, HbObject *kwargs)
{
    HbObject *host_result;
    HbZbr *host_zbr;
    const char *keywords[] = {"zbr", NULL};

    if (!hb_parse_args(args, kwargs, (char *) "O!", (char **) keywords, &HbZbr_Type, &host_zbr)) {
        return NULL;
    }
    host_zbr->obj->Ref();
    store_zbr(host_zbr->obj);
    host_result = hb_build_value((char *) "");
    return host_result;
}
`)
	assert.Contains(t, out, "    tmp->Unref();\n")

	// The downcall wrapper takes one reference and drops its wrapper on
	// every exit; the finalizer gives the reference back.
	body := out[strings.Index(out, "__HelperClass::visit("):]
	body = body[:strings.Index(body, "\n}\n")+3]
	assert.Contains(t, body, `    if (zbr) {
        host_zbr = hb_object_new(HbZbr, &HbZbr_Type);
        host_zbr->obj = zbr;
        host_zbr->obj->Ref();
        host_zbr->flags = HB_WRAPPER_FLAG_NONE;
    }
`)
	assert.Contains(t, body, `    if (!host_result) {
        hb_error_print();
        hb_xdecref((HbObject *) host_zbr);
        hb_decref(host_method);
        Foo::visit(zbr);
        return;
    }
`)
	assert.Contains(t, body, `    hb_decref(host_result);
    hb_xdecref((HbObject *) host_zbr);
    hb_decref(host_method);
}
`)
	assert.Equal(t, 1, strings.Count(body, "->Ref();"))
	assert.Zero(t, strings.Count(body, "->Unref();"))
	exits := strings.Split(body[strings.Index(body, "host_result = "):], "return;")
	for _, branch := range exits {
		assert.Equal(t, 1, strings.Count(branch, "hb_xdecref((HbObject *) host_zbr);"))
	}
}
