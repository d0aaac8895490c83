package typehandlers

import (
	"fmt"

	"github.com/rubiojr/bindgen/binderr"
	"github.com/rubiojr/bindgen/model"
	"github.com/rubiojr/bindgen/ownership"
)

// BindParam resolves the handler and the ownership decision of parameter
// p at 1-based position index. reverse selects downcall semantics.
func (r *Registry) BindParam(p *model.Parameter, index int, reverse bool) (Binding, *Value, error) {
	if p.TypeErr != nil {
		return Binding{}, nil, binderr.Configf("parameter %s: %v", p.Name, p.TypeErr)
	}
	b, err := r.LookupParam(p.Type)
	if err != nil {
		return Binding{}, nil, err
	}
	v := b.Value(p.Name, index, Parameter)
	v.Direction = p.Direction
	v.Default = p.Default
	v.NullOK = p.NullOK

	own := p.Ownership
	if b.Transform != nil {
		b.Transform.AdjustParam(&own)
	}
	d, err := ownership.Resolve(ownership.Subject{
		Role: Parameter, Type: b.Type, Class: b.Class, Ownership: own, Reverse: reverse,
	})
	if err != nil {
		return Binding{}, nil, fmt.Errorf("parameter %s: %w", p.Name, err)
	}
	v.Ownership = d
	return b, v, nil
}

// BindReturn resolves the handler and the ownership decision of a return
// value, held in the native variable name.
func (r *Registry) BindReturn(ret *model.ReturnValue, name string, reverse bool) (Binding, *Value, error) {
	if ret.TypeErr != nil {
		return Binding{}, nil, binderr.Configf("return value: %v", ret.TypeErr)
	}
	b, err := r.LookupReturn(ret.Type)
	if err != nil {
		return Binding{}, nil, err
	}
	v := b.Value(name, -1, Return)
	own := ret.Ownership
	if b.Transform != nil {
		b.Transform.AdjustReturn(&own)
	}
	d, err := ownership.Resolve(ownership.Subject{
		Role: Return, Type: b.Type, Class: b.Class, Ownership: own, Reverse: reverse,
	})
	if err != nil {
		return Binding{}, nil, err
	}
	v.Ownership = d
	return b, v, nil
}
