// Package session projects resolved identities into the caller-scoped
// session bag. The bag itself is owned by the transport layer; this package
// only defines the fields and how they are filled.
package session

import "github.com/dialkey/dialkey/internal/identity"

// Session field names. FieldPhone holds the raw number between PIN issue and
// verification, then the hashed number once the caller is authenticated.
const (
	FieldPhone    = "phone"
	FieldUID      = "uid"
	FieldName     = "name"
	FieldOperator = "op"
)

// Bag is a mutable string map scoped to one caller's interaction.
type Bag interface {
	Get(key string) string
	Set(key, value string)
	Delete(key string)
	Reset()
}

// Project copies a resolved identity into the bag: hashed phone, uid, name
// when present, and the operator marker only for operators.
func Project(bag Bag, id identity.Identity) {
	bag.Set(FieldPhone, id.Phone)
	bag.Set(FieldUID, id.UID)
	if id.Name != "" {
		bag.Set(FieldName, id.Name)
	} else {
		bag.Delete(FieldName)
	}
	if id.Operator {
		bag.Set(FieldOperator, "true")
	}
}

// MemoryBag is a map-backed Bag for tests.
type MemoryBag map[string]string

func (b MemoryBag) Get(key string) string { return b[key] }
func (b MemoryBag) Set(key, value string) { b[key] = value }
func (b MemoryBag) Delete(key string)     { delete(b, key) }

func (b MemoryBag) Reset() {
	for key := range b {
		delete(b, key)
	}
}
