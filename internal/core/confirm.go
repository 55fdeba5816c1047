package core

import "context"

// Confirmer obtains explicit consent before an irreversible operation.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

type ConfirmFunc func(ctx context.Context, prompt string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

// Confirmed approves every prompt. Non-interactive callers that already
// asked the user pass it explicitly.
var Confirmed Confirmer = ConfirmFunc(func(context.Context, string) bool { return true })
