// Copyright (C) 2024, Lattice Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"errors"

	"github.com/ava-labs/avalanchego/database"
	"github.com/cockroachdb/pebble"
)

var _ Storage = (*Pebble)(nil)

// Pebble is a pebble-backed Storage for durable simulator state.
type Pebble struct {
	db *pebble.DB
}

func NewPebble(path string) (*Pebble, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Pebble{db: db}, nil
}

func (p *Pebble) Get(key []byte) ([]byte, error) {
	v, closer, err := p.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, database.ErrNotFound
		}
		return nil, err
	}
	out := make([]byte, len(v))
	copy(out, v)
	if err := closer.Close(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pebble) Put(key []byte, value []byte) error {
	return p.db.Set(key, value, pebble.Sync)
}

func (p *Pebble) Remove(key []byte) error {
	return p.db.Delete(key, pebble.Sync)
}

func (p *Pebble) Range(start []byte, end []byte, order Order) Iterator {
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: start,
		UpperBound: end,
	})
	if err != nil {
		return &pebbleIterator{err: err}
	}
	it := &pebbleIterator{iter: iter, order: order}
	if order == Ascending {
		it.positioned = iter.First()
	} else {
		it.positioned = iter.Last()
	}
	return it
}

func (p *Pebble) Close() error {
	return p.db.Close()
}

type pebbleIterator struct {
	iter       *pebble.Iterator
	order      Order
	positioned bool
	started    bool

	// err holds a failure opening the iterator; the iterator then
	// yields nothing and reports it from Error.
	err error
}

func (it *pebbleIterator) Next() bool {
	if it.err != nil {
		return false
	}
	if !it.started {
		it.started = true
		return it.positioned
	}
	if it.order == Ascending {
		return it.iter.Next()
	}
	return it.iter.Prev()
}

func (it *pebbleIterator) Key() []byte {
	if it.err != nil || !it.iter.Valid() {
		return nil
	}
	k := it.iter.Key()
	out := make([]byte, len(k))
	copy(out, k)
	return out
}

func (it *pebbleIterator) Value() []byte {
	if it.err != nil || !it.iter.Valid() {
		return nil
	}
	v := it.iter.Value()
	out := make([]byte, len(v))
	copy(out, v)
	return out
}

func (it *pebbleIterator) Error() error {
	if it.err != nil {
		return it.err
	}
	return it.iter.Error()
}

func (it *pebbleIterator) Release() {
	if it.iter != nil {
		_ = it.iter.Close()
	}
}
