package engine

import (
	"cmp"
	"slices"
)

// Op names what a change did to the live record set.
type Op int

const (
	OpInserted Op = iota
	OpUpdated
	OpRemoved
)

func (o Op) String() string {
	switch o {
	case OpInserted:
		return "inserted"
	case OpUpdated:
		return "updated"
	case OpRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Change is one applied mutation. Old is set for updates and removals,
// New for inserts and updates; the other is the zero value.
type Change[K cmp.Ordered, T Record[K]] struct {
	Op  Op
	Key K
	Old T
	New T
}

// Reconcile applies one query result's rows to the live set, mutating
// existing in place and returning the changes in application order.
//
// Per row: absent key inserts, differing value updates, equal value is a
// no-op (emitting nothing keeps downstream notifications free of churn).
// Keys missing from the result are never touched, so a filtered SELECT
// cannot evict records it did not name. When the result holds duplicate
// keys the last row wins.
func Reconcile[K cmp.Ordered, T Record[K]](existing map[K]T, incoming []T) []Change[K, T] {
	var changes []Change[K, T]
	for _, rec := range incoming {
		key := rec.PrimaryKey()
		old, ok := existing[key]
		switch {
		case !ok:
			existing[key] = rec
			changes = append(changes, Change[K, T]{Op: OpInserted, Key: key, New: rec})
		case old != rec:
			existing[key] = rec
			changes = append(changes, Change[K, T]{Op: OpUpdated, Key: key, Old: old, New: rec})
		}
	}
	return changes
}

// ReconcileDelete removes each returned row's key from the live set.
// Keys not currently live are ignored.
func ReconcileDelete[K cmp.Ordered, T Record[K]](existing map[K]T, incoming []T) []Change[K, T] {
	var changes []Change[K, T]
	for _, rec := range incoming {
		key := rec.PrimaryKey()
		old, ok := existing[key]
		if !ok {
			continue
		}
		delete(existing, key)
		changes = append(changes, Change[K, T]{Op: OpRemoved, Key: key, Old: old})
	}
	return changes
}

// ReconcileFull treats the result as the whole table: rows are upserted
// as in Reconcile, then every live key the result did not name is
// removed, in ascending key order so removal order is deterministic.
func ReconcileFull[K cmp.Ordered, T Record[K]](existing map[K]T, incoming []T) []Change[K, T] {
	changes := Reconcile(existing, incoming)

	seen := make(map[K]struct{}, len(incoming))
	for _, rec := range incoming {
		seen[rec.PrimaryKey()] = struct{}{}
	}

	var stale []K
	for key := range existing {
		if _, ok := seen[key]; !ok {
			stale = append(stale, key)
		}
	}
	slices.Sort(stale)
	for _, key := range stale {
		old := existing[key]
		delete(existing, key)
		changes = append(changes, Change[K, T]{Op: OpRemoved, Key: key, Old: old})
	}
	return changes
}
