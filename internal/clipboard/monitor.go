// Package clipboard abstracts the host clipboard: watching it for changes
// and writing payloads back to it.
package clipboard

import "clipd/pkg/types"

// Monitor watches the host clipboard and reports each change as a raw
// payload. Implementations must not call the handler concurrently with
// itself.
type Monitor interface {
	Start() error
	Stop() error
	OnChange(handler func(types.Payload))

	// SetPayload writes a payload back to the host clipboard.
	SetPayload(types.Payload) error
}
