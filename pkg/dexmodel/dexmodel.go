// Package dexmodel defines the minimal class and reference model the
// interdex packer operates over. It stands in for a full bytecode toolkit:
// a Class carries only the identity, hierarchy, and reference data the
// packing algorithm needs, never instructions or a constant pool.
package dexmodel

// Kind identifies which pool a Reference belongs to. The packer charges
// capacity separately per kind, except that string refs count against the
// type-ref limit (spec: ReferenceSet).
type Kind int

const (
	// MethodRef is a reference to a method signature.
	MethodRef Kind = iota
	// FieldRef is a reference to a field signature.
	FieldRef
	// TypeRef is a reference to a type (class or interface).
	TypeRef
	// StringRef is a reference into the string pool. Real bytecode models
	// gather these separately from type refs; this model folds them into
	// the same pool-counting machinery since no concrete string pool
	// exists here, and charges them against their own configured weight.
	StringRef
)

// String renders the Kind for logging and manifest diagnostics.
func (k Kind) String() string {
	switch k {
	case MethodRef:
		return "method"
	case FieldRef:
		return "field"
	case TypeRef:
		return "type"
	case StringRef:
		return "string"
	default:
		return "unknown"
	}
}

// Reference is an opaque, comparable handle to a single referenced member.
// Descriptor is the only field identity depends on; two References with
// the same Kind and Descriptor are the same reference for capacity and
// minimizer purposes, regardless of which Class produced them.
type Reference struct {
	Kind       Kind
	Descriptor string
}

// NoSubgroup marks a Class as not belonging to any interdex subgroup.
const NoSubgroup = -1

// Class is the packer's view of a single compiled class: identity,
// hierarchy, and the references it carries. Classes are created and owned
// exclusively by a Registry so that name equality implies pointer equality.
type Class struct {
	Name             string
	References       []Reference
	IsInterface      bool
	Super            *Class
	Interfaces       []*Class
	Renameable       bool
	PerfSensitive    bool
	InterdexSubgroup int
	Canary           bool

	// Primary marks a class as belonging to the primary (index-0) container.
	// Set by the universe loader, never by the orchestrator.
	Primary bool
}

// IsSubtypeOf reports whether c is a (possibly indirect) subtype of other,
// walking the super-class chain and implemented interfaces. The interface
// graph may contain cycles, so the interface walk tracks visited classes
// and never revisits one.
func (c *Class) IsSubtypeOf(other *Class) bool {
	if c == nil || other == nil {
		return false
	}

	visited := make(map[*Class]struct{})

	for cur := c; cur != nil; cur = cur.Super {
		if _, seen := visited[cur]; seen {
			break
		}

		visited[cur] = struct{}{}

		if cur == other {
			return true
		}

		if interfaceIsSubtypeOf(cur.Interfaces, other, visited) {
			return true
		}
	}

	return false
}

func interfaceIsSubtypeOf(ifaces []*Class, other *Class, visited map[*Class]struct{}) bool {
	for _, iface := range ifaces {
		if iface == nil {
			continue
		}

		if _, seen := visited[iface]; seen {
			continue
		}

		visited[iface] = struct{}{}

		if iface == other {
			return true
		}

		if interfaceIsSubtypeOf(iface.Interfaces, other, visited) {
			return true
		}
	}

	return false
}
