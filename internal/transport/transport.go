package transport

import (
	"context"
	"net/url"

	"mathbattle/internal/domain"
)

// Handler receives decoded events and connection lifecycle signals. The game
// client implements it; sessions invoke it synchronously from their receive
// goroutine, so event handling is serialized in arrival order.
type Handler interface {
	HandleEvent(domain.Event)
	HandleError(error)
	HandleClosed()
}

// Conn is one persistent room membership. Implementations carry no game
// state and never interpret event payloads. Exactly one Conn is paired with
// one game client at construction; the pairing is not reassignable.
type Conn interface {
	// SetHandler registers the event sink. Must be called before Connect
	// and never after.
	SetHandler(Handler)
	// Connect opens the connection and starts the receive loop. Callers
	// must not invoke it concurrently with itself.
	Connect(ctx context.Context) error
	// SendAnswer transmits an answer event. Errors are reported, never
	// retried; the next server broadcast resynchronizes the client.
	SendAnswer(answer string) error
	// ResetGame asks the server to clear the current round.
	ResetGame() error
	Close() error
}

// Identity is how a client introduces itself to the room: named players use
// a chosen user name, host/TV clients an anonymous device id.
type Identity struct {
	User   string
	Device string
}

// PlayerIdentity identifies a named player.
func PlayerIdentity(name string) Identity { return Identity{User: name} }

// DeviceIdentity identifies an anonymous host/TV client.
func DeviceIdentity(id string) Identity { return Identity{Device: id} }

// SetQuery adds the identity parameter to a connection URL query.
func (i Identity) SetQuery(q url.Values) {
	if i.User != "" {
		q.Set("user", i.User)
		return
	}
	q.Set("device", i.Device)
}
