package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubiojr/bindgen/logging"
)

const moduleYAML = `
module: foo
includes: ['"foo.h"']
classes:
  - name: Foo
    constructors: [{}]
    methods:
      - {name: get_datum, return: std::string}
functions:
  - name: add
    return: int
    params: [{type: int, name: a}, {type: int, name: b}]
`

const brokenYAML = `
module: foo
classes:
  - name: Foo
    constructors: [{}]
    methods:
      - {name: ok, return: int}
      - name: broken
        params: [{type: Unknown*, name: u}]
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("NO_COLOR", "1")
	t.Cleanup(func() { logging.SetLogger(nil) })
	var stdout, stderr bytes.Buffer
	err := newApp("test", &stdout, &stderr).Run(context.Background(), append([]string{"bindgen"}, args...))
	return stdout.String(), stderr.String(), err
}

func TestGenerateToStdout(t *testing.T) {
	path := writeFile(t, "foo.yaml", moduleYAML)
	out, _, err := run(t, "generate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "#include \"foo.h\"\n")
	assert.Contains(t, out, "retval = add(a, b);")
	assert.Contains(t, out, "HB_MODINIT_FUNC\ninitfoo(void)")
}

func TestGenerateToFile(t *testing.T) {
	path := writeFile(t, "foo.yaml", moduleYAML)
	cfg := writeFile(t, "bindgen.toml", "[dialect]\nprefix = \"Py\"\n")
	target := filepath.Join(t.TempDir(), "foomodule.cc")

	out, _, err := run(t, "--config", cfg, "generate", "-o", target, path)
	require.NoError(t, err)
	assert.Empty(t, out)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "PyTypeObject PyFoo_Type = {")
	assert.Contains(t, string(data), "py_parse_args(args, kwargs")
}

func TestGenerateFailure(t *testing.T) {
	path := writeFile(t, "foo.yaml", brokenYAML)
	target := filepath.Join(t.TempDir(), "foomodule.cc")

	_, _, err := run(t, "generate", "-o", target, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "method Foo::broken(Unknown*)")
	assert.NoFileExists(t, target)

	out, stderr, err := run(t, "generate", "--keep-going", path)
	require.NoError(t, err)
	assert.Contains(t, out, "_wrap_HbFoo_ok")
	assert.NotContains(t, out, "_wrap_HbFoo_broken")
	assert.Contains(t, stderr, "skipped 1 member(s)")
}

func TestCheck(t *testing.T) {
	out, _, err := run(t, "check", writeFile(t, "foo.yaml", moduleYAML))
	require.NoError(t, err)
	assert.Equal(t, "ok foo: 3 wrappers\n", out)

	out, _, err = run(t, "check", writeFile(t, "broken.yaml", brokenYAML))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 problem(s)")
	assert.Contains(t, out, "configuration method Foo::broken(Unknown*): ")
	assert.Contains(t, out, "2 wrappers, 1 problem(s), 0 class(es) excluded")
}

func TestTypes(t *testing.T) {
	cfg := writeFile(t, "bindgen.toml", "[[holder]]\ntemplate = \"Holder\"\nfield = \"thePointer\"\n")
	out, _, err := run(t, "--config", cfg, "types")
	require.NoError(t, err)
	assert.Contains(t, out, "Parameter types (")
	assert.Contains(t, out, "  std::string\n")
	assert.Contains(t, out, "Return types (")
	assert.Contains(t, out, "transformation Holder\n")
}

func TestDoc(t *testing.T) {
	out, _, err := run(t, "doc", writeFile(t, "foo.yaml", moduleYAML))
	require.NoError(t, err)
	assert.Contains(t, out, "module foo\n")
	assert.Contains(t, out, "get_datum: std::string get_datum()\n")
	assert.Contains(t, out, "add: int add(int a, int b)\n")
}

func TestMissingArgument(t *testing.T) {
	for _, name := range []string{"generate", "check", "doc"} {
		_, _, err := run(t, name)
		require.Error(t, err, name)
		assert.Contains(t, err.Error(), "usage: bindgen "+name)
	}
}

func TestBadDescriptor(t *testing.T) {
	_, _, err := run(t, "doc", writeFile(t, "bad.yaml", "module: foo\nclasses: [{name: Foo, parent: Nope}]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown class "Nope"`)
}
