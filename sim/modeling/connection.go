package modeling

import (
	"github.com/sarchlab/hyperbus/sim/hooking"
	"github.com/sarchlab/hyperbus/sim/naming"
)

// SendError is returned when a buffer on the way has no room. The sender
// keeps the message and retries after it is notified.
type SendError struct{}

// NewSendError creates a SendError.
func NewSendError() *SendError {
	return &SendError{}
}

// A Connection moves messages from the outgoing buffer of one port to the
// incoming buffer of another.
type Connection interface {
	naming.Named
	hooking.Hookable

	PlugIn(port Port)
	NotifyAvailable(port Port)
	NotifySend()
}
