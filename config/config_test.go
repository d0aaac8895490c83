package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubiojr/bindgen/binderr"
	"github.com/rubiojr/bindgen/ctype"
	"github.com/rubiojr/bindgen/typehandlers"
)

func TestDefaults(t *testing.T) {
	cfg, err := Parse("")
	require.NoError(t, err)
	assert.Equal(t, PolicyAbort, cfg.ErrorPolicy)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "hb_parse_args(a)", cfg.HostDialect().Call("parse_args", "a"))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bindgen.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
error_policy = "continue"
log_level = "debug"

[dialect]
prefix = "Py"

[[holder]]
template = "Holder"
field = "thePointer"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, PolicyContinue, cfg.ErrorPolicy)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "PyFoo_Type", cfg.HostDialect().Type("Foo"))
	assert.Equal(t, []Holder{{Template: "Holder", Field: "thePointer"}}, cfg.Holders)

	reg := typehandlers.NewRegistry()
	require.NoError(t, cfg.Apply(reg))
	require.NoError(t, cfg.Apply(reg), "registering the same holder twice is a no-op")
	assert.Len(t, reg.Transformations(), 1)

	b, err := reg.LookupParam(ctype.MustParse("Holder<int>"))
	require.NoError(t, err)
	require.NotNil(t, b.Transform)
	assert.Equal(t, "Holder", b.Transform.Name())

	_, err = reg.LookupParam(ctype.MustParse("Other<int>"))
	assert.True(t, errors.Is(err, binderr.ErrUnhandledType))
}

func TestInvalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"policy", `error_policy = "retry"`, "error_policy"},
		{"prefix", "[dialect]\nprefix = \"\"", "prefix"},
		{"holder", "[[holder]]\ntemplate = \"Holder\"", "holder 1"},
		{"unknown key", `colour = true`, "colour"},
		{"syntax", `error_policy = `, "parsing config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config")
}

func TestExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "examples", "foo", "bindgen.toml"))
	require.NoError(t, err)
	assert.Equal(t, PolicyContinue, cfg.ErrorPolicy)
	assert.Equal(t, "info", cfg.LogLevel)
	require.Len(t, cfg.Holders, 1)
	assert.Equal(t, "Holder", cfg.Holders[0].Template)
}
