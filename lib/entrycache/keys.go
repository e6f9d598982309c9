package entrycache

import (
	"bytes"

	"github.com/coredir/entrycache/lib/containers"
)

// dnKey and idKey are the Ordered key types (see
// lib/containers.Ordered) backing the DN Index and ID Index. Both
// orders are total, per spec.md's Data Model: DN compares
// lexicographically over bytes, ID compares numerically.

type dnKey struct {
	ndn string // normalized DN, as an immutable byte-sequence snapshot
}

func newDNKey(ndn []byte) dnKey {
	return dnKey{ndn: string(ndn)}
}

func (a dnKey) Cmp(b dnKey) int {
	return bytes.Compare([]byte(a.ndn), []byte(b.ndn))
}

type idKey struct {
	id ID
}

func (a idKey) Cmp(b idKey) int {
	return containers.CmpUint(uint64(a.id), uint64(b.id))
}
