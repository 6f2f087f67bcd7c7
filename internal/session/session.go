// Package session is the boundary to the authentication collaborator.
// Login, registration, and pairing live outside this repository; the sync
// engine only consumes the caller's identity, the paired partner's
// identity, and a credential to attach to remote calls and the realtime
// handshake.
package session

// Credential is an opaque session token presented to the remote service
// as a bearer credential.
type Credential string

// Caller identifies the current user and, when paired, the partner whose
// events share the calendar and whose room receives notifications.
type Caller struct {
	UserID    int64
	PartnerID int64 // 0 when unpaired
}

// Paired reports whether the caller has a paired partner.
func (c Caller) Paired() bool { return c.PartnerID != 0 }

// Source supplies the current caller and credential. Implemented by the
// configuration layer here; a real deployment would back it with the
// authentication service.
type Source interface {
	CurrentCaller() (Caller, error)
	Credential() (Credential, error)
}

// Static is a Source with fixed values, used by the CLI (which reads them
// from config) and by tests.
type Static struct {
	Caller Caller
	Token  Credential
}

func (s Static) CurrentCaller() (Caller, error)  { return s.Caller, nil }
func (s Static) Credential() (Credential, error) { return s.Token, nil }
