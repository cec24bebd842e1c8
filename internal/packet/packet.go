// Package packet implements the Packet Protocol (spec §4.6): the typed
// messages exchanged between clients, the broker, and workers.
package packet

// Type discriminates a Packet's role in the protocol.
type Type string

const (
	TypeRegister Type = "REGISTER"
	TypeRun      Type = "RUN"
	TypeCancel   Type = "CANCEL"
	TypeResult   Type = "RESULT"
	TypeShutdown Type = "SHUTDOWN"
)

// RC enumerates a RESULT packet's return code (spec §4.6).
type RC string

const (
	RCOk                RC = "OK"
	RCError             RC = "ERROR"
	RCCancelled         RC = "CANCELLED"
	RCNoWorkerAvailable RC = "NO_WORKER_AVAILABLE"
	RCWorkerLost        RC = "WORKER_LOST"
	RCBrokerLost        RC = "BROKER_LOST"
)

// Packet is the abstract shape of spec §4.6, carried over the wire as
// JSON (one packet per transport frame, see internal/transport).
//
// ConnectionID is stamped by the Multiplexor/Broker on every outbound
// packet and used to route inbound ones; it is not part of the logical
// application payload but travels alongside it on every frame.
type Packet struct {
	Type Type `json:"type"`

	ConnectionID string `json:"connection_id,omitempty"`

	// RUN / CANCEL / RESULT
	Cookie string `json:"cookie,omitempty"`

	// RUN
	Pipeline  string         `json:"pipeline,omitempty"`
	Variables map[string]any `json:"variables,omitempty"`

	// REGISTER
	Capacity int `json:"capacity,omitempty"`

	// RESULT
	RC         RC     `json:"rc,omitempty"`
	Result     any    `json:"result,omitempty"`
	Error      string `json:"error,omitempty"`
	Stacktrace string `json:"stacktrace,omitempty"`
}

// Register builds a REGISTER packet.
func Register(capacity int) Packet {
	return Packet{Type: TypeRegister, Capacity: capacity}
}

// Run builds a RUN packet.
func Run(cookie, pipeline string, variables map[string]any) Packet {
	return Packet{Type: TypeRun, Cookie: cookie, Pipeline: pipeline, Variables: variables}
}

// Cancel builds a CANCEL packet.
func Cancel(cookie string) Packet {
	return Packet{Type: TypeCancel, Cookie: cookie}
}

// Result builds a successful RESULT packet.
func Result(cookie string, result any) Packet {
	return Packet{Type: TypeResult, Cookie: cookie, RC: RCOk, Result: result}
}

// ResultError builds a failed RESULT packet carrying an error class name
// and one-line stacktrace (spec §7 propagation policy).
func ResultError(cookie string, rc RC, errMsg, stacktrace string) Packet {
	return Packet{Type: TypeResult, Cookie: cookie, RC: rc, Error: errMsg, Stacktrace: stacktrace}
}

// Shutdown builds a SHUTDOWN packet.
func Shutdown() Packet {
	return Packet{Type: TypeShutdown}
}
