package models

import "time"

// ActorType classifies a dependent
type ActorType string

const (
	ActorTypeChild   ActorType = "child"
	ActorTypeElderly ActorType = "elderly"
	ActorTypePet     ActorType = "pet"
)

// ActorTypes lists every accepted actor type
var ActorTypes = []ActorType{ActorTypeChild, ActorTypeElderly, ActorTypePet}

// IsValid reports whether t is one of the known actor types
func (t ActorType) IsValid() bool {
	switch t {
	case ActorTypeChild, ActorTypeElderly, ActorTypePet:
		return true
	}
	return false
}

// Actor is a dependent (child, elderly person, pet) owned by one family
type Actor struct {
	ID              int64
	FamilyID        int64
	Name            string
	Type            ActorType
	CoinsStartMonth int
	CreatedAt       time.Time
}
