package vm

// Value is any runtime value that can act as a message receiver.
//
// Every value carries a set of type tag flags and a reference to its
// effective class: the singleton class when one has been created for the
// value, otherwise its ordinary class. Method lookup always starts from the
// effective class.
//
// Only types in this package implement Value. Primitive host values reach
// the runtime already wrapped by Wrap.
type Value interface {
	Flags() TypeTag
	Klass() *Class

	setKlass(c *Class)
}

// TypeTag classifies runtime values. The bit values are part of the
// calling convention shared with generated code and must not change.
type TypeTag uint32

const (
	TClass      TypeTag = 0x0001
	TModule     TypeTag = 0x0002
	TObject     TypeTag = 0x0004
	TBoolean    TypeTag = 0x0008
	TString     TypeTag = 0x0010
	TArray      TypeTag = 0x0020
	TNumber     TypeTag = 0x0040
	TProc       TypeTag = 0x0080
	TSymbol     TypeTag = 0x0100
	THash       TypeTag = 0x0200
	TRange      TypeTag = 0x0400
	TIClass     TypeTag = 0x0800
	FlSingleton TypeTag = 0x1000
)

// Has reports whether all bits of f are set.
func (t TypeTag) Has(f TypeTag) bool {
	return t&f == f
}

var tagNames = [...]struct {
	tag  TypeTag
	name string
}{
	{TClass, "class"},
	{TModule, "module"},
	{TObject, "object"},
	{TBoolean, "boolean"},
	{TString, "string"},
	{TArray, "array"},
	{TNumber, "number"},
	{TProc, "proc"},
	{TSymbol, "symbol"},
	{THash, "hash"},
	{TRange, "range"},
	{TIClass, "iclass"},
	{FlSingleton, "singleton"},
}

func (t TypeTag) String() string {
	s := ""
	for _, tn := range tagNames {
		if t&tn.tag != 0 {
			if s != "" {
				s += "|"
			}
			s += tn.name
		}
	}
	if s == "" {
		return "none"
	}
	return s
}

// header is embedded by every concrete value type.
type header struct {
	flags TypeTag
	klass *Class
}

func (h *header) Flags() TypeTag    { return h.flags }
func (h *header) Klass() *Class     { return h.klass }
func (h *header) setKlass(c *Class) { h.klass = c }
