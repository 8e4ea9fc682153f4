package spreadsheet

import "strings"

// NamedRangeTable manages named ranges with ID tracking for efficient
// renaming. names are case-insensitive, so "Rates" and "RATES" are the same
// entry. a name can be referenced by formulas before it is defined.
type NamedRangeTable struct {
	nameToID map[string]uint32 // folded name -> ID
	idToName map[uint32]string // ID -> name as first written

	definedRanges map[uint32]RangeAddress // ID -> address for defined ranges
	undefinedIDs  map[uint32]struct{}     // referenced but not yet defined
	declared      map[uint32]struct{}     // added explicitly, kept without references

	refCounts map[uint32]int
	nextID    uint32
}

// NewNamedRangeTable creates a new named range table
func NewNamedRangeTable() *NamedRangeTable {
	nrt := &NamedRangeTable{}
	nrt.Clear()
	return nrt
}

func foldName(name string) string {
	return strings.ToUpper(name)
}

func (nrt *NamedRangeTable) add(name string) uint32 {
	id := nrt.nextID
	nrt.nextID++
	nrt.nameToID[foldName(name)] = id
	nrt.idToName[id] = name
	return id
}

// InternNamedRange adds a reference to a named range (defined or not) and
// returns its ID
func (nrt *NamedRangeTable) InternNamedRange(name string) uint32 {
	if id, exists := nrt.nameToID[foldName(name)]; exists {
		nrt.refCounts[id]++
		return id
	}
	id := nrt.add(name)
	nrt.undefinedIDs[id] = struct{}{}
	nrt.refCounts[id] = 1
	return id
}

// DefineNamedRange defines or redefines a named range with an address,
// moving it out of the undefined state. returns the ID of the named range.
func (nrt *NamedRangeTable) DefineNamedRange(name string, address RangeAddress) uint32 {
	id, exists := nrt.nameToID[foldName(name)]
	if !exists {
		id = nrt.add(name)
	}
	nrt.definedRanges[id] = address
	nrt.declared[id] = struct{}{}
	delete(nrt.undefinedIDs, id)
	return id
}

// DeclareNamedRange registers name without an address. a declared name
// survives having no formula references until it is undefined.
func (nrt *NamedRangeTable) DeclareNamedRange(name string) uint32 {
	id, exists := nrt.nameToID[foldName(name)]
	if !exists {
		id = nrt.add(name)
		nrt.undefinedIDs[id] = struct{}{}
	}
	nrt.declared[id] = struct{}{}
	return id
}

// IsDeclared reports whether the name was declared or defined, as opposed to
// only being referenced by formulas
func (nrt *NamedRangeTable) IsDeclared(id uint32) bool {
	_, ok := nrt.declared[id]
	return ok
}

// UndefineNamedRange removes the definition of a named range. if formulas
// still reference it, it stays as undefined. returns true if the range was
// removed completely.
func (nrt *NamedRangeTable) UndefineNamedRange(name string) bool {
	id, exists := nrt.nameToID[foldName(name)]
	if !exists {
		return false
	}
	delete(nrt.definedRanges, id)
	delete(nrt.declared, id)
	if nrt.refCounts[id] > 0 {
		nrt.undefinedIDs[id] = struct{}{}
		return false
	}
	nrt.removeRange(id)
	return true
}

func (nrt *NamedRangeTable) removeRange(id uint32) {
	delete(nrt.nameToID, foldName(nrt.idToName[id]))
	delete(nrt.idToName, id)
	delete(nrt.definedRanges, id)
	delete(nrt.undefinedIDs, id)
	delete(nrt.declared, id)
	delete(nrt.refCounts, id)
}

// RemoveReference decrements the reference count for a named range ID.
// undefined names are dropped once nothing references them. returns true if
// the range was removed.
func (nrt *NamedRangeTable) RemoveReference(id uint32) bool {
	if _, exists := nrt.idToName[id]; !exists {
		return false
	}
	if nrt.refCounts[id] > 0 {
		nrt.refCounts[id]--
	}
	if _, undefined := nrt.undefinedIDs[id]; undefined && nrt.refCounts[id] == 0 && !nrt.IsDeclared(id) {
		nrt.removeRange(id)
		return true
	}
	return false
}

// GetRangeAddress returns the address of a defined named range
func (nrt *NamedRangeTable) GetRangeAddress(id uint32) (RangeAddress, bool) {
	addr, exists := nrt.definedRanges[id]
	return addr, exists
}

// IsRangeDefined checks if a named range has a definition
func (nrt *NamedRangeTable) IsRangeDefined(id uint32) bool {
	_, exists := nrt.definedRanges[id]
	return exists
}

// GetNamedRangeID returns the ID for a named range
func (nrt *NamedRangeTable) GetNamedRangeID(name string) (uint32, bool) {
	id, exists := nrt.nameToID[foldName(name)]
	return id, exists
}

// GetNamedRangeName returns the name for a named range ID
func (nrt *NamedRangeTable) GetNamedRangeName(id uint32) (string, bool) {
	name, exists := nrt.idToName[id]
	return name, exists
}

// Contains checks if a named range exists (defined or undefined)
func (nrt *NamedRangeTable) Contains(name string) bool {
	_, exists := nrt.nameToID[foldName(name)]
	return exists
}

// GetReferenceCount returns the reference count for a named range ID
func (nrt *NamedRangeTable) GetReferenceCount(id uint32) int {
	return nrt.refCounts[id]
}

// GetAllDefinedRanges returns all defined named ranges
func (nrt *NamedRangeTable) GetAllDefinedRanges() map[string]RangeAddress {
	result := make(map[string]RangeAddress, len(nrt.definedRanges))
	for id, addr := range nrt.definedRanges {
		result[nrt.idToName[id]] = addr
	}
	return result
}

// GetAllUndefinedRanges returns names that were declared or referenced but
// never given an address
func (nrt *NamedRangeTable) GetAllUndefinedRanges() []string {
	result := make([]string, 0, len(nrt.undefinedIDs))
	for id := range nrt.undefinedIDs {
		result = append(result, nrt.idToName[id])
	}
	return result
}

// Count returns the total number of named ranges (defined and undefined)
func (nrt *NamedRangeTable) Count() int {
	return len(nrt.nameToID)
}

// Clear removes all named ranges from the table
func (nrt *NamedRangeTable) Clear() {
	nrt.nameToID = make(map[string]uint32)
	nrt.idToName = make(map[uint32]string)
	nrt.definedRanges = make(map[uint32]RangeAddress)
	nrt.undefinedIDs = make(map[uint32]struct{})
	nrt.declared = make(map[uint32]struct{})
	nrt.refCounts = make(map[uint32]int)
	nrt.nextID = 1 // 0 is reserved for "no range"
}
