package compress

import "context"

// Confirmer decides whether an original may be deleted in prompt mode.
type Confirmer interface {
	ConfirmDelete(ctx context.Context, source string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, source string) (bool, error)

// ConfirmDelete calls f.
func (f ConfirmFunc) ConfirmDelete(ctx context.Context, source string) (bool, error) {
	return f(ctx, source)
}

// Decline refuses every deletion.
var Decline = ConfirmFunc(func(context.Context, string) (bool, error) { return false, nil })
