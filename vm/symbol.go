package vm

// ---------------------------------------------------------------------------
// Symbol: interned identifier
// ---------------------------------------------------------------------------

// Symbol is an interned, immutable identifier. Two symbols are the same
// identifier exactly when they are the same pointer.
type Symbol struct {
	header
	id string
}

// ID returns the symbol's text.
func (s *Symbol) ID() string { return s.id }

// String implements fmt.Stringer.
func (s *Symbol) String() string { return s.id }

// ---------------------------------------------------------------------------
// SymbolTable: Interned symbols
// ---------------------------------------------------------------------------

// SymbolTable interns symbol strings to unique handles.
//
// The table is append-only. Like every other table owned by a VM it is not
// synchronised; see server.VMWorker for multi-goroutine access.
type SymbolTable struct {
	byName map[string]*Symbol
	class  *Class
}

// NewSymbolTable creates a new empty symbol table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		byName: make(map[string]*Symbol, 256),
	}
}

// Intern returns the symbol for id, creating it on first use.
func (st *SymbolTable) Intern(id string) *Symbol {
	if sym, ok := st.byName[id]; ok {
		return sym
	}
	sym := &Symbol{header: header{flags: TSymbol, klass: st.class}, id: id}
	st.byName[id] = sym
	return sym
}

// Lookup returns the symbol for id without creating it.
func (st *SymbolTable) Lookup(id string) (*Symbol, bool) {
	sym, ok := st.byName[id]
	return sym, ok
}

// Len returns the number of interned symbols.
func (st *SymbolTable) Len() int {
	return len(st.byName)
}

// All returns every interned symbol in unspecified order. The result is a
// snapshot; later interning does not affect it.
func (st *SymbolTable) All() []*Symbol {
	result := make([]*Symbol, 0, len(st.byName))
	for _, sym := range st.byName {
		result = append(result, sym)
	}
	return result
}

// setClass attaches the Symbol class once bootstrap has created it,
// back-filling symbols interned before that point.
func (st *SymbolTable) setClass(c *Class) {
	st.class = c
	for _, sym := range st.byName {
		if sym.klass == nil {
			sym.klass = c
		}
	}
}
