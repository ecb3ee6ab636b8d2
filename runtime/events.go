// Copyright (C) 2024, Lattice Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import "github.com/lattice-labs/wasmhost/codec"

// Event is a structured record emitted by a contract during execution.
// Events from a nested call are folded into the caller's log only when
// the nested call succeeds.
type Event struct {
	Contract codec.Address
	Name     string
	Data     []byte
}

type EventLog struct {
	events []Event
}

func (l *EventLog) Emit(e Event) error {
	if len(l.events) >= MaxEventsPerCall {
		return ErrTooManyEvents
	}
	l.events = append(l.events, e)
	return nil
}

func (l *EventLog) Merge(other *EventLog) error {
	if len(l.events)+len(other.events) > MaxEventsPerCall {
		return ErrTooManyEvents
	}
	l.events = append(l.events, other.events...)
	return nil
}

func (l *EventLog) Events() []Event {
	return l.events
}
