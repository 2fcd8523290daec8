package executor

import (
	"errors"
	"fmt"
)

// ErrUnreachable means the host never accepted a TCP connection within the probe budget.
var ErrUnreachable = errors.New("host is not reachable")

// ConnectivityError reports that a host could not be reached, authenticated
// or kept connected. Provider and transport errors are wrapped in it.
type ConnectivityError struct {
	Host string
	Err  error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("connectivity to %s: %v", e.Host, e.Err)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// IsConnectivity reports whether err carries a ConnectivityError.
func IsConnectivity(err error) bool {
	var ce *ConnectivityError
	return errors.As(err, &ce)
}
