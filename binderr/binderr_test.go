package binderr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatching(t *testing.T) {
	unhandled := &UnhandledTypeError{CType: "Widget*", Role: Return}
	wrapped := fmt.Errorf("method get_widget: %w", unhandled)

	assert.True(t, errors.Is(wrapped, ErrUnhandledType))
	assert.True(t, errors.Is(wrapped, ErrConfiguration))
	assert.False(t, errors.Is(wrapped, ErrCodeGeneration))
	assert.Equal(t, `bindgen: no return value handler for type "Widget*"`, unhandled.Error())

	var ute *UnhandledTypeError
	assert.True(t, errors.As(wrapped, &ute))
	assert.Equal(t, "Widget*", ute.CType)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{Configf("bad custodian %d", 3), KindConfiguration},
		{&UnhandledTypeError{CType: "X"}, KindConfiguration},
		{fmt.Errorf("ctor: %w", Generationf("Foo cannot be constructed")), KindGeneration},
		{errors.New("disk full"), KindOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.err), tt.err.Error())
	}
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "bindgen: bad custodian 3", Configf("bad custodian %d", 3).Error())
	assert.Equal(t, "parameter", Parameter.String())
	err := &UnhandledTypeError{CType: "Foo*", Role: Parameter, Reason: "transfer_ownership not given"}
	assert.Contains(t, err.Error(), "(transfer_ownership not given)")
}
