package spreadsheet

// StringTable interns cell text so repeated strings share one copy. entries
// are reference counted and dropped when the last cell using them goes away.
type StringTable struct {
	ids       map[string]uint32
	values    map[uint32]string
	refCounts map[uint32]int
	nextID    uint32
}

// NewStringTable creates a new string table
func NewStringTable() *StringTable {
	st := &StringTable{}
	st.Clear()
	return st
}

// Intern returns the ID for s, adding it or bumping its reference count
func (st *StringTable) Intern(s string) uint32 {
	if id, exists := st.ids[s]; exists {
		st.refCounts[id]++
		return id
	}

	id := st.nextID
	st.ids[s] = id
	st.values[id] = s
	st.refCounts[id] = 1
	st.nextID++
	return id
}

// GetString retrieves a string by its ID
func (st *StringTable) GetString(id uint32) (string, bool) {
	s, exists := st.values[id]
	return s, exists
}

// Contains checks if a string exists in the table and returns its ID
func (st *StringTable) Contains(s string) (uint32, bool) {
	id, exists := st.ids[s]
	return id, exists
}

// RemoveReference releases one use of id. returns true once the string has
// been dropped from the table.
func (st *StringTable) RemoveReference(id uint32) bool {
	s, exists := st.values[id]
	if !exists {
		return false
	}

	st.refCounts[id]--
	if st.refCounts[id] > 0 {
		return false
	}
	delete(st.ids, s)
	delete(st.values, id)
	delete(st.refCounts, id)
	return true
}

// GetReferenceCount returns the reference count for a string ID
func (st *StringTable) GetReferenceCount(id uint32) int {
	return st.refCounts[id]
}

// Count returns the number of unique strings in the table
func (st *StringTable) Count() int {
	return len(st.ids)
}

// Clear removes all strings from the table
func (st *StringTable) Clear() {
	st.ids = make(map[string]uint32)
	st.values = make(map[uint32]string)
	st.refCounts = make(map[uint32]int)
	st.nextID = 1 // 0 is reserved for "no string"
}
