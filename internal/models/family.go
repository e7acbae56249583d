package models

import "time"

// Family is a household sharing one coin ledger
type Family struct {
	ID              int64
	Name            string
	PIN             string // 4-digit join credential, stored as received
	CoinsStartMonth int
	CoinsPending    int
	CoinsPaid       int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// FamilySummary is the public view of a family returned by search
type FamilySummary struct {
	ID   int64
	Name string
}

// Summary strips the join PIN and ledger counters
func (f *Family) Summary() FamilySummary {
	return FamilySummary{ID: f.ID, Name: f.Name}
}

// FamilyWithActors combines a family with the dependents it owns
type FamilyWithActors struct {
	Family Family
	Actors []Actor
}
