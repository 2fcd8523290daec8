package executor

import (
	"context"

	dm "github.com/andrej220/formation/pkg/shared-models"
)

// Session runs commands over one established remote connection.
// Run returns the combined stdout+stderr of the command and its exit status;
// err is reserved for transport failures, not for non-zero exits.
type Session interface {
	Run(command string) (output []byte, exitStatus int, err error)
	Close() error
}

// Connector opens an authenticated Session to address.
type Connector interface {
	Connect(ctx context.Context, address string, creds dm.Credentials) (Session, error)
}

// Prober gates a session on the remote port being reachable.
type Prober interface {
	WaitReady(ctx context.Context, address string) bool
}
