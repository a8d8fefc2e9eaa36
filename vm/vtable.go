package vm

// MethodTable holds the methods a single class or module defines itself.
//
// Inheritance is not handled here: the dispatch engine walks the ancestor
// chain and consults one table per node. Inclusion proxies have no table of
// their own and read through to their module's.
type MethodTable struct {
	methods map[*Symbol]*Method
	names   []*Symbol
}

// NewMethodTable creates an empty method table.
func NewMethodTable() *MethodTable {
	return &MethodTable{
		methods: make(map[*Symbol]*Method),
	}
}

// Lookup returns the entry for name in this table only.
func (mt *MethodTable) Lookup(name *Symbol) *Method {
	return mt.methods[name]
}

// Has reports whether this table has any entry for name, including the
// method-missing marker and undefined entries.
func (mt *MethodTable) Has(name *Symbol) bool {
	_, ok := mt.methods[name]
	return ok
}

// Set adds or replaces the entry for name.
func (mt *MethodTable) Set(name *Symbol, m *Method) {
	mt.methods[name] = m
}

// Record appends name to the list of defined names unless already present.
// Markers and undefined entries are never recorded.
func (mt *MethodTable) Record(name *Symbol) {
	for _, n := range mt.names {
		if n == name {
			return
		}
	}
	mt.names = append(mt.names, name)
}

// Names returns every name ever defined in this table, in definition order.
func (mt *MethodTable) Names() []*Symbol {
	result := make([]*Symbol, len(mt.names))
	copy(result, mt.names)
	return result
}

// Len returns the number of entries.
func (mt *MethodTable) Len() int {
	return len(mt.methods)
}

// Local returns a copy of the table's entries.
func (mt *MethodTable) Local() map[*Symbol]*Method {
	result := make(map[*Symbol]*Method, len(mt.methods))
	for k, m := range mt.methods {
		result[k] = m
	}
	return result
}
