package trampoline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubiojr/bindgen/binderr"
	"github.com/rubiojr/bindgen/codesink"
	"github.com/rubiojr/bindgen/hostapi"
	"github.com/rubiojr/bindgen/model"
	"github.com/rubiojr/bindgen/typehandlers"
)

type fixture struct {
	mod *model.Module
	foo *model.Class
	gen *Generator
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	mod := model.NewModule("foo")
	foo := mod.AddClass("Foo", model.AllowSubclassing())
	foo.AddConstructor()
	foo.AddConstructor(model.Param("std::string", "datum"))
	foo.AddConstructorWithVisibility(model.Private, model.Param("int", "secret"))
	foo.AddMethod("get_datum", model.Ret("std::string"), nil, model.IsVirtual(), model.IsConst())
	foo.AddMethod("virtual_method", nil, []*model.Parameter{model.Param("int", "x")}, model.IsPureVirtual())
	foo.AddMethod("private_virtual", model.Ret("int"), nil, model.IsVirtual(), model.WithVisibility(model.Private))
	foo.AddMethod("protected_pure", model.Ret("int"), nil, model.IsPureVirtual(), model.WithVisibility(model.Protected))
	foo.AddMethod("get_name", model.Ret("const char*"), nil)
	mod.AddClass("Foobar")

	reg := typehandlers.NewRegistry()
	for _, c := range mod.Classes() {
		require.NoError(t, reg.RegisterClass(c))
	}
	return fixture{mod: mod, foo: foo, gen: New(hostapi.Default(), reg)}
}

func names(ms []*model.Method) []string {
	var out []string
	for _, m := range ms {
		out = append(out, m.Name)
	}
	return out
}

func TestGenerateMembers(t *testing.T) {
	f := newFixture(t)
	h, err := f.gen.Generate(f.foo)
	require.NoError(t, err)

	assert.Equal(t, "HbFoo__HelperClass", h.Name())
	assert.Equal(t, []string{"get_datum", "virtual_method", "protected_pure"}, names(h.Virtuals))
	assert.Equal(t, []string{"get_datum"}, names(h.Upcalls))
	assert.Equal(t, []string{"virtual_method", "protected_pure"}, names(h.PureVirtuals()))
	assert.True(t, h.HasUpcall(f.foo.Methods[0]))
	assert.False(t, h.HasUpcall(f.foo.Methods[1]))
	assert.Empty(t, h.Skipped)
}

func TestHelperDeclaration(t *testing.T) {
	f := newFixture(t)
	h, err := f.gen.Generate(f.foo)
	require.NoError(t, err)

	var w codesink.Writer
	h.Write(&w)
	out := w.String()

	assert.True(t, strings.HasPrefix(out, "class HbFoo__HelperClass : public Foo\n{\npublic:\n    HbObject *m_hbself;\n"))
	assert.Contains(t, out, "    HbFoo__HelperClass()\n        : Foo(), m_hbself(NULL)\n        {}\n")
	assert.Contains(t, out, "    HbFoo__HelperClass(std::string datum)\n        : Foo(datum), m_hbself(NULL)\n        {}\n")
	assert.NotContains(t, out, "int secret", "private constructors are not forwarded")
	assert.Contains(t, out, "    void set_hbself(HbObject *self)\n    {\n        hb_xdecref(m_hbself);\n        hb_incref(self);\n        m_hbself = self;\n    }\n")
	assert.Contains(t, out, "    inline std::string get_datum__parent_caller() const\n    {\n        return Foo::get_datum();\n    }\n")
	assert.Contains(t, out, "    virtual std::string get_datum() const;\n")
	assert.Contains(t, out, "protected:\n\n    virtual int protected_pure();\n")
	assert.NotContains(t, out, "private_virtual")
	assert.NotContains(t, out, "get_name")
	assert.NotContains(t, out, "virtual_method__parent_caller", "pure virtuals have no upcall")
	assert.True(t, strings.HasSuffix(out, "};\n"))
}

func TestDowncallDefinition(t *testing.T) {
	f := newFixture(t)
	h, err := f.gen.Generate(f.foo)
	require.NoError(t, err)

	var w codesink.Writer
	h.WriteDefinitions(&w)
	out := w.String()

	assert.Contains(t, out, `std::string
HbFoo__HelperClass::get_datum() const
{
    HbObject *host_method;
    HbObject *host_result;
    const char *retval_ptr;
    hb_ssize_t retval_len;

    host_method = hb_get_override(m_hbself, "get_datum");
    if (!host_method) {
        return Foo::get_datum();
    }
    host_result = hb_call_method(m_hbself, host_method, "()");
    if (!host_result) {
        hb_error_print();
        hb_decref(host_method);
        return Foo::get_datum();
    }
    if (!hb_parse_value(host_result, "s#", &retval_ptr, &retval_len)) {
        hb_error_print();
        hb_decref(host_result);
        hb_decref(host_method);
        return Foo::get_datum();
    }
    std::string native_retval = std::string(retval_ptr, retval_len);
    hb_decref(host_result);
    hb_decref(host_method);
    return native_retval;
}
`)
	assert.Contains(t, out, `void
HbFoo__HelperClass::virtual_method(int x)
{
    HbObject *host_method;
    HbObject *host_result;

    host_method = hb_get_override(m_hbself, "virtual_method");
    if (!host_method) {
        hb_fatal_error("pure virtual method Foo::virtual_method called without a host override");
    }
    host_result = hb_call_method(m_hbself, host_method, "(i)", x);
`)
}

func TestDowncallClassPointerParam(t *testing.T) {
	f := newFixture(t)
	f.foo.AddMethod("visit", nil, []*model.Parameter{model.Param("Foobar*", "foobar", model.TransferOwnership(false))}, model.IsVirtual())
	h, err := f.gen.Generate(f.foo)
	require.NoError(t, err)

	var w codesink.Writer
	h.WriteDefinitions(&w)
	out := w.String()
	assert.Contains(t, out, `    if (foobar) {
        host_foobar = hb_object_new(HbFoobar, &HbFoobar_Type);
        host_foobar->obj = foobar;
        host_foobar->flags = HB_WRAPPER_FLAG_OBJECT_NOT_OWNED;
    }
`)
	assert.Contains(t, out, `"(O)", host_foobar ? (HbObject *) host_foobar : hb_none());`)
	assert.Contains(t, out, `    if (host_foobar) {
        host_foobar->obj = NULL;
    }
    hb_xdecref((HbObject *) host_foobar);
`)
}

func TestDowncallReleasesArgumentsOnEveryExit(t *testing.T) {
	f := newFixture(t)
	f.foo.AddMethod("take", model.Ret("int"), []*model.Parameter{model.Param("Foobar*", "fb", model.TransferOwnership(false))}, model.IsVirtual())
	h, err := f.gen.Generate(f.foo)
	require.NoError(t, err)

	var w codesink.Writer
	h.WriteDefinitions(&w)
	out := w.String()

	release := `        if (host_fb) {
            host_fb->obj = NULL;
        }
        hb_xdecref((HbObject *) host_fb);
        hb_decref(host_method);
        return Foo::take(fb);
    }
`
	assert.Contains(t, out, `    host_result = hb_call_method(m_hbself, host_method, "(O)", host_fb ? (HbObject *) host_fb : hb_none());
    if (!host_result) {
        hb_error_print();
`+release)
	assert.Contains(t, out, `    if (!hb_parse_value(host_result, "i", &retval)) {
        hb_error_print();
        hb_decref(host_result);
`+release)
	assert.Contains(t, out, `    hb_decref(host_result);
    if (host_fb) {
        host_fb->obj = NULL;
    }
    hb_xdecref((HbObject *) host_fb);
    hb_decref(host_method);
    return native_retval;
`)

	// Every exit taken once the wrappers exist releases them.
	body := out[strings.Index(out, "::take("):]
	body = body[strings.Index(body, "host_result = "):]
	body = body[:strings.Index(body, "\n}\n")]
	for _, branch := range strings.Split(body, "return ")[:3] {
		assert.Contains(t, branch, "hb_xdecref((HbObject *) host_fb);")
	}
}

func TestNonSubclassable(t *testing.T) {
	f := newFixture(t)
	_, err := f.gen.Generate(f.mod.FindClass("Foobar"))
	assert.ErrorIs(t, err, binderr.ErrCodeGeneration)
}

func TestInheritedVirtuals(t *testing.T) {
	f := newFixture(t)
	bar := f.mod.AddClass("Bar", model.WithParent(f.foo))
	// redeclared without the virtual flag: still an override, no longer pure
	bar.AddMethod("virtual_method", nil, []*model.Parameter{model.Param("int", "x")})
	require.NoError(t, f.gen.Registry.RegisterClass(bar))
	assert.True(t, bar.AllowsSubclassing())

	h, err := f.gen.Generate(bar)
	require.NoError(t, err)
	assert.Equal(t, []string{"virtual_method", "get_datum", "protected_pure"}, names(h.Virtuals))
	assert.Equal(t, []string{"protected_pure"}, names(h.PureVirtuals()))
	assert.Equal(t, []string{"virtual_method", "get_datum"}, names(h.Upcalls))

	var w codesink.Writer
	h.Write(&w)
	assert.Contains(t, w.String(), "class HbBar__HelperClass : public Bar")
	assert.Contains(t, w.String(), "return Bar::get_datum();")
	assert.Contains(t, w.String(), "        Bar::virtual_method(x);\n")
}

func TestUnsupportedVirtual(t *testing.T) {
	f := newFixture(t)
	f.foo.AddMethod("get_raw", model.Ret("const char*"), nil, model.IsVirtual())
	h, err := f.gen.Generate(f.foo)
	require.NoError(t, err)
	require.Len(t, h.Skipped, 1)
	assert.Equal(t, "get_raw", h.Skipped[0].Method.Name)
	assert.ErrorIs(t, h.Skipped[0].Err, binderr.ErrUnhandledType)
	assert.NotContains(t, names(h.Virtuals), "get_raw")

	f.foo.AddMethod("take", nil, []*model.Parameter{model.Param("Unknown*", "u")}, model.IsPureVirtual())
	_, err = f.gen.Generate(f.foo)
	assert.ErrorIs(t, err, binderr.ErrConfiguration, "a pure virtual without downcall leaves the helper abstract")
}

func TestHooks(t *testing.T) {
	f := newFixture(t)
	var seen []string
	f.foo.AddHelperClassHook(func(e model.HelperClassEditor) {
		h := e.(*Helper)
		seen = names(h.Virtuals)
		e.AddCustomMethod("int custom_method();", "int\n"+e.Name()+"::custom_method()\n{\n    return 1;\n}")
		e.AddPostGenerationCode("// after " + e.Name())
	})
	h, err := f.gen.Generate(f.foo)
	require.NoError(t, err)
	assert.Equal(t, []string{"get_datum", "virtual_method", "protected_pure"}, seen, "hooks run on final members")

	var decl, defs, post codesink.Writer
	h.Write(&decl)
	h.WriteDefinitions(&defs)
	h.WritePostGeneration(&post)
	assert.Contains(t, decl.String(), "    int custom_method();\n")
	assert.Less(t, strings.Index(decl.String(), "get_datum() const;"), strings.Index(decl.String(), "custom_method"))
	assert.True(t, strings.HasSuffix(defs.String(), "HbFoo__HelperClass::custom_method()\n{\n    return 1;\n}\n"))
	assert.Equal(t, "\n// after HbFoo__HelperClass\n", post.String())
}

func TestOverrideChecks(t *testing.T) {
	f := newFixture(t)
	h, err := f.gen.Generate(f.foo)
	require.NoError(t, err)
	block := codesink.NewCodeBlock([]string{"return -1;"}, nil)
	h.WriteOverrideChecks(block, "self")
	assert.Equal(t, []string{
		`if (!hb_has_override((HbObject *) self, "virtual_method")) {`,
		`    hb_raise(HB_EXC_TypeError, "Foo: pure virtual method virtual_method is not overridden");`,
		"    return -1;",
		"}",
		`if (!hb_has_override((HbObject *) self, "protected_pure")) {`,
		`    hb_raise(HB_EXC_TypeError, "Foo: pure virtual method protected_pure is not overridden");`,
		"    return -1;",
		"}",
	}, block.Lines())
}
