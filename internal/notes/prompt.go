package notes

import (
	"context"
	"fmt"
)

// Prompt is a yes/no question put to the user.
type Prompt struct {
	Title       string
	Message     string
	OKLabel     string
	CancelLabel string
}

// Confirmer asks the user a yes/no question. true means OK.
type Confirmer interface {
	Confirm(ctx context.Context, p Prompt) (bool, error)
}

// SignalChannel carries sync requests from secondary contexts to the main one.
type SignalChannel interface {
	// SendSyncRequest asks the main context to run a cycle.
	SendSyncRequest(ctx context.Context) error

	// OnSyncRequest registers the main context's handler. The returned func
	// stops delivery.
	OnSyncRequest(fn func()) (stop func(), err error)
}

func accountSwitchPrompt(previous, current string) Prompt {
	return Prompt{
		Title: "Account changed",
		Message: fmt.Sprintf(
			"Notes were last synced as %s but the remote is now signed in as %s.\n"+
				"Switch replaces the notes on this device with %s's notes.\n"+
				"Merge combines the notes on this device with %s's notes.",
			previous, current, current, current),
		OKLabel:     "Switch",
		CancelLabel: "Merge",
	}
}
