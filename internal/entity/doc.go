// Package entity defines the controllable objects the IR bridge exposes:
// remotes that replay named IR commands and relays that switch a contact.
//
// Entities are transport-agnostic. A RemoteEntity sends through any Sender
// and a RelayEntity drives any RelayTransport, so the Global Caché, LIRC and
// Broadlink backends all share one implementation of the on/off logic.
//
// # State
//
// Remote power is tracked locally; IR is one-way and nothing is read back.
// Relay state starts unknown and is refreshed by Update, by explicit
// commands, or by SetState when the hardware pushes a change.
//
// Every mutation invokes the entity's StateListener after the entity lock
// is released, so listeners may call back into the entity.
//
// # Thread Safety
//
// All exported types are safe for concurrent use. Calls into a transport
// are made without holding the entity lock; transports serialize their own
// I/O.
package entity
