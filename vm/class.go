package vm

// ---------------------------------------------------------------------------
// Class: classes, modules, singleton classes and inclusion proxies
// ---------------------------------------------------------------------------

// Class is a node in the ancestor chain. The same type represents four
// kinds of node, distinguished by flags:
//
//   - TClass: an instantiable class
//   - TModule: a module (mixin and namespace)
//   - TClass|FlSingleton: a singleton class attached to one value
//   - TIClass: an inclusion proxy standing in for a module in one
//     class's chain
//
// Method lookup follows Superclass from the receiver's effective class,
// so modules, proxies and singletons are all just links in one list.
type Class struct {
	header

	Name       string // base name, "" for anonymous, singleton and proxy nodes
	Superclass *Class // next node in the chain (nil for the root and for modules)
	Owner      *Class // lexical parent namespace

	// Includes lists modules included directly, in inclusion order.
	Includes []*Class

	methods  *MethodTable
	path     string // fully qualified name, set when the class is named
	forwards *Class // proxies: the module this node stands in for
	attached Value  // singleton classes: the value this class belongs to
}

// IsClass returns true for classes, including singleton classes.
func (c *Class) IsClass() bool { return c.flags&TClass != 0 }

// IsModule returns true for modules.
func (c *Class) IsModule() bool { return c.flags&TModule != 0 }

// IsSingleton returns true for singleton classes.
func (c *Class) IsSingleton() bool { return c.flags&FlSingleton != 0 }

// IsProxy returns true for module inclusion proxies.
func (c *Class) IsProxy() bool { return c.flags&TIClass != 0 }

// Methods returns the table consulted for this node during lookup. A proxy
// reads through to its module's table.
func (c *Class) Methods() *MethodTable {
	if c.forwards != nil {
		return c.forwards.methods
	}
	return c.methods
}

// Module returns the module a proxy forwards to, or c itself.
func (c *Class) Module() *Class {
	if c.forwards != nil {
		return c.forwards
	}
	return c
}

// Attached returns the value a singleton class belongs to.
func (c *Class) Attached() Value {
	return c.attached
}

// Real strips singleton and proxy nodes, returning the nearest class a
// user would recognise.
func (c *Class) Real() *Class {
	for k := c; k != nil; k = k.Superclass {
		if !k.IsSingleton() && !k.IsProxy() {
			return k
		}
	}
	return nil
}

// RealSuperclass returns the superclass with proxies skipped.
func (c *Class) RealSuperclass() *Class {
	for k := c.Superclass; k != nil; k = k.Superclass {
		if !k.IsProxy() {
			return k
		}
	}
	return nil
}

// Path returns the fully qualified name ("Outer::Inner"), or "" if the
// class has never been named.
func (c *Class) Path() string {
	return c.path
}

// String implements the Stringer interface.
func (c *Class) String() string {
	switch {
	case c.path != "":
		return c.path
	case c.IsProxy():
		return c.forwards.String()
	case c.IsSingleton():
		if owner, ok := c.attached.(*Class); ok {
			return "#<Class:" + owner.String() + ">"
		}
		return "#<Class:#<" + c.Superclass.Real().String() + ">>"
	case c.IsModule():
		return "#<Module>"
	}
	return "#<Class>"
}

// IsSubclassOf returns true if c is other or has other anywhere in its
// ancestor chain. A module matches if it is included.
func (c *Class) IsSubclassOf(other *Class) bool {
	for k := c; k != nil; k = k.Superclass {
		if k == other || k.forwards == other {
			return true
		}
	}
	return false
}

// Superclasses returns the real superclasses from immediate parent to root.
func (c *Class) Superclasses() []*Class {
	var result []*Class
	for k := c.RealSuperclass(); k != nil; k = k.RealSuperclass() {
		result = append(result, k)
	}
	return result
}

// Depth returns the number of real superclasses (0 for the root class).
func (c *Class) Depth() int {
	return len(c.Superclasses())
}

// Ancestors returns the chain as users see it: proxies are reported as the
// module they stand for, and singleton classes are omitted unless c is one.
func (c *Class) Ancestors() []*Class {
	var result []*Class
	for k := c; k != nil; k = k.Superclass {
		switch {
		case k.IsProxy():
			result = append(result, k.forwards)
		case k.IsSingleton() && k != c:
		default:
			result = append(result, k)
		}
	}
	return result
}

// chainHas reports whether mod already appears in c's chain.
func (c *Class) chainHas(mod *Class) bool {
	for k := c; k != nil; k = k.Superclass {
		if k == mod || k.forwards == mod {
			return true
		}
	}
	return false
}

// setName records the name and fully qualified path the first time a class
// is bound to a constant.
func (c *Class) setName(owner *Class, name string, root *Class) {
	if c.path != "" {
		return
	}
	c.Name = name
	c.Owner = owner
	if owner == nil || owner == root || owner.path == "" {
		c.path = name
		return
	}
	c.path = owner.path + "::" + name
}
