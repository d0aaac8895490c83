package typehandlers

import (
	"fmt"

	"github.com/rubiojr/bindgen/codesink"
	"github.com/rubiojr/bindgen/ctype"
	"github.com/rubiojr/bindgen/model"
)

// Transformation rewrites a signature the registry has no handler for
// into one it has, plus the expressions converting between the two.
type Transformation interface {
	// Name identifies the rule. Registering a different rule under a taken
	// name is an error; registering an identical one is a no-op.
	Name() string
	// Match reports whether the rule applies to sig and returns the
	// underlying signature.
	Match(sig ctype.Signature) (ctype.Signature, bool)
	// Untransform converts an expression of the transformed type into the
	// underlying value of type underlying.
	Untransform(decls *codesink.Declarations, block *codesink.CodeBlock, underlying ctype.Signature, expr string) string
	// Transform converts an underlying value into the transformed type. It
	// may declare at most one temporary, in decls.
	Transform(decls *codesink.Declarations, block *codesink.CodeBlock, underlying ctype.Signature, expr string) string
	// AdjustParam and AdjustReturn let the rule impose ownership on the
	// underlying value.
	AdjustParam(own *model.Ownership)
	AdjustReturn(own *model.Ownership)
}

// HolderTransformation maps a single-argument smart holder template,
// Template<T>, to the raw pointer T* stored in its Field. The holder keeps
// no ownership of its own: parameters never transfer ownership and
// returned pointers belong to the caller.
type HolderTransformation struct {
	Template string
	Field    string
}

func (t HolderTransformation) Name() string { return t.Template }

func (t HolderTransformation) Match(sig ctype.Signature) (ctype.Signature, bool) {
	if sig.Base != t.Template || len(sig.Args) != 1 || !sig.IsValue() {
		return ctype.Signature{}, false
	}
	arg := sig.Args[0]
	if arg.Literal != "" || !arg.IsValue() {
		return ctype.Signature{}, false
	}
	return ctype.PointerTo(arg), true
}

func (t HolderTransformation) Untransform(_ *codesink.Declarations, _ *codesink.CodeBlock, _ ctype.Signature, expr string) string {
	return fmt.Sprintf("(%s).%s", expr, t.Field)
}

func (t HolderTransformation) Transform(decls *codesink.Declarations, _ *codesink.CodeBlock, underlying ctype.Signature, expr string) string {
	holder := ctype.Signature{Base: t.Template, Args: []ctype.Signature{underlying.Elem()}}
	tmp := decls.DeclareVariable(holder.String(), "tmp", "", "")
	return fmt.Sprintf("(%s.%s = (%s), %s)", tmp, t.Field, expr, tmp)
}

func (t HolderTransformation) AdjustParam(own *model.Ownership) {
	no := false
	own.TransferOwnership = &no
}

func (t HolderTransformation) AdjustReturn(own *model.Ownership) {
	yes := true
	own.CallerOwnsReturn = &yes
}
