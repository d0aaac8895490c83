package codesink

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterIndent(t *testing.T) {
	w := &Writer{}
	w.Line("int f()")
	w.Line("{")
	w.Indent()
	w.Linef("return %d;", 1)
	w.Line("a;\n\nb;")
	w.Dedent()
	w.Line("}")
	assert.Equal(t, "int f()\n{\n    return 1;\n    a;\n\n    b;\n}\n", w.String())
}

func TestWriterCapture(t *testing.T) {
	w := &Writer{}
	w.Line("before")
	w.Indent()
	out, err := w.Capture(func() error {
		w.Line("captured")
		w.Indent()
		w.Line("nested")
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, "captured\n    nested\n", out)
	w.Line("after")
	assert.Equal(t, "before\n    after\n", w.String())
}

func TestDeclarationsUnique(t *testing.T) {
	d := NewDeclarations()
	assert.Equal(t, "self", d.Reserve("self"))
	assert.Equal(t, "tmp", d.DeclareVariable("PointerHolder<Zbr>", "tmp", "", ""))
	assert.Equal(t, "tmp2", d.DeclareVariable("int", "tmp", "0", ""))
	assert.Equal(t, "self2", d.DeclareVariable("HbObject *", "self", "NULL", ""))
	assert.Equal(t, "exceptions", d.DeclareVariable("HbObject *", "exceptions", "{0,}", "2"))
	assert.Equal(t, []string{
		"PointerHolder<Zbr> tmp;",
		"int tmp2 = 0;",
		"HbObject *self2 = NULL;",
		"HbObject *exceptions[2] = {0,};",
	}, d.Lines())
}

func TestCodeBlockErrorPathsRunCleanups(t *testing.T) {
	before := NewCodeBlock([]string{"return NULL;"}, nil)
	before.AddCleanupCode("hb_decref(tmp_tuple);")
	after := NewCodeBlock([]string{"return NULL;"}, before)
	after.AddCleanupCode("delete tmp_obj;")
	after.WriteErrorCheck("retval == NULL", `hb_raise(HB_EXC_ValueError, "null");`)

	assert.Equal(t, []string{
		"if (retval == NULL) {",
		`    hb_raise(HB_EXC_ValueError, "null");`,
		"    delete tmp_obj;",
		"    hb_decref(tmp_tuple);",
		"    return NULL;",
		"}",
	}, after.Lines())
	assert.Equal(t, []string{"delete tmp_obj;", "hb_decref(tmp_tuple);"}, after.CleanupLines())
}

func TestCodeBlockErrorExit(t *testing.T) {
	b := NewCodeBlock([]string{"return -1;"}, nil)
	b.AddCleanupCode("delete a;")
	b.AddCleanupCode("delete b;")
	b.WriteErrorExit()
	assert.Equal(t, []string{"delete b;", "delete a;", "return -1;"}, b.Lines())
}

func TestSinks(t *testing.T) {
	var buf bytes.Buffer
	ws := NewWriterSink(&buf)
	require.NoError(t, ws.WriteFragment("a"))
	require.NoError(t, ws.WriteFragment("b"))
	assert.Equal(t, "ab", buf.String())

	ms := &MemorySink{}
	require.NoError(t, ms.WriteFragment("x"))
	require.NoError(t, ms.WriteFragment("y"))
	assert.Equal(t, "xy", ms.String())
	assert.Len(t, ms.Fragments, 2)

	assert.NoError(t, Discard.WriteFragment("ignored"))
}
