// Package wlp declares the optional Writer Liveliness Protocol collaborator
// hook (spec.md §6 "WLP (optional)"). WLP itself is out of scope; PDPStore
// only needs somewhere to forward participant-removal notifications.
package wlp

import "github.com/go-rtps/pdp/internal/proxydata"

// Collaborator is notified whenever a remote participant is removed, whether
// or not it advertised the optional writer-liveliness builtin endpoint, so it
// can purge any per-writer liveliness bookkeeping keyed by that participant.
type Collaborator interface {
	RemoveRemoteEndpoints(participant proxydata.ParticipantSnapshot) error
}

// Noop is the default when no WLP is configured.
type Noop struct{}

func (Noop) RemoveRemoteEndpoints(proxydata.ParticipantSnapshot) error { return nil }
