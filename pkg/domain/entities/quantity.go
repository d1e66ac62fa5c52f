package entities

// Quantity represents a whole number of units: occupants, kits, liters, staff shifts.
type Quantity int64

// MinQuantity returns the smaller of a and b
func MinQuantity(a, b Quantity) Quantity {
	if a < b {
		return a
	}
	return b
}

// Scope narrows queries to a single disaster operation. The zero Scope matches everything.
type Scope struct {
	DisasterID DisasterID
}

// AllScopes returns the unrestricted scope
func AllScopes() Scope {
	return Scope{}
}

// ForDisaster returns a scope restricted to one disaster
func ForDisaster(id DisasterID) Scope {
	return Scope{DisasterID: id}
}

// Includes reports whether a record tagged with disasterID falls inside the scope.
// Records with no disaster tag are shared and belong to every scope.
func (s Scope) Includes(disasterID DisasterID) bool {
	return s.DisasterID == "" || disasterID == "" || s.DisasterID == disasterID
}
