package interdex

import (
	"github.com/interdex-project/interdex/pkg/dexmodel"
)

// Limits holds the structural capacity ceilings for a single container,
// each with reserved headroom the plugin host may claim before a class is
// admitted.
type Limits struct {
	MaxMethodRefs int
	MaxFieldRefs  int
	MaxTypeRefs   int
	MaxClasses    int

	ReservedMethodRefs int
	ReservedFieldRefs  int
	ReservedTypeRefs   int
	ReservedClasses    int
}

// ContainerStructure tracks the currently-open output container: its
// classes in emission order, its accumulated reference sets, and the
// running counters needed to decide whether another class fits.
type ContainerStructure struct {
	limits Limits

	classes   []*dexmodel.Class
	classSet  map[*dexmodel.Class]struct{}
	methods   *ReferenceSet
	fields    *ReferenceSet
	types     *ReferenceSet
	methodsDefined int
	fieldsDefined  int
}

// NewContainerStructure returns an empty container governed by limits.
func NewContainerStructure(limits Limits) *ContainerStructure {
	return &ContainerStructure{
		limits:   limits,
		classSet: make(map[*dexmodel.Class]struct{}),
		methods:  NewReferenceSet(),
		fields:   NewReferenceSet(),
		types:    NewReferenceSet(),
	}
}

// HasClass reports whether cls is already present in the container.
func (c *ContainerStructure) HasClass(cls *dexmodel.Class) bool {
	_, ok := c.classSet[cls]

	return ok
}

// ClassCount returns the number of classes currently held.
func (c *ContainerStructure) ClassCount() int { return len(c.classes) }

// MethodRefCount returns the number of distinct method refs accumulated.
func (c *ContainerStructure) MethodRefCount() int { return c.methods.Cardinality(dexmodel.MethodRef) }

// FieldRefCount returns the number of distinct field refs accumulated.
func (c *ContainerStructure) FieldRefCount() int { return c.fields.Cardinality(dexmodel.FieldRef) }

// TypeRefCount returns the number of distinct type and string pool refs
// accumulated; the two kinds share a single capacity pool.
func (c *ContainerStructure) TypeRefCount() int {
	return c.types.Cardinality(dexmodel.TypeRef) + c.types.Cardinality(dexmodel.StringRef)
}

// SetLimits replaces the reserved-headroom fields, which the plugin host
// may adjust before every admission decision.
func (c *ContainerStructure) SetLimits(limits Limits) {
	c.limits = limits
}

// fits reports whether adding refs (partitioned by kind) would keep every
// invariant in Limits satisfied. Only *new* references count against the
// limit — references already present in the container are free.
func (c *ContainerStructure) fits(methodRefs, fieldRefs, typeRefs []dexmodel.Reference) bool {
	newMethods := c.methods.UnionSizeWith(methodRefs)
	newFields := c.fields.UnionSizeWith(fieldRefs)
	newTypes := c.types.UnionSizeWith(typeRefs)

	totalMethods := c.methods.Cardinality(dexmodel.MethodRef) + sumValues(newMethods)
	totalFields := c.fields.Cardinality(dexmodel.FieldRef) + sumValues(newFields)
	totalTypes := c.types.Cardinality(dexmodel.TypeRef) + c.types.Cardinality(dexmodel.StringRef) + sumValues(newTypes)

	if totalMethods+c.limits.ReservedMethodRefs > c.limits.MaxMethodRefs {
		return false
	}

	if totalFields+c.limits.ReservedFieldRefs > c.limits.MaxFieldRefs {
		return false
	}

	if totalTypes+c.limits.ReservedTypeRefs > c.limits.MaxTypeRefs {
		return false
	}

	if len(c.classes)+1+c.limits.ReservedClasses > c.limits.MaxClasses {
		return false
	}

	return true
}

func sumValues(m map[dexmodel.Kind]int) int {
	total := 0
	for _, v := range m {
		total += v
	}

	return total
}

// AddClassIfFits atomically evaluates the fit predicate and, on success,
// extends the container's state and returns true. On failure the
// container is left unchanged. A class already present is a programmer
// error and is treated as a no-op returning false.
func (c *ContainerStructure) AddClassIfFits(cls *dexmodel.Class, methodRefs, fieldRefs, typeRefs []dexmodel.Reference) bool {
	if c.HasClass(cls) {
		return false
	}

	if !c.fits(methodRefs, fieldRefs, typeRefs) {
		return false
	}

	c.addUnchecked(cls, methodRefs, fieldRefs, typeRefs)

	return true
}

// AddClassUnchecked adds cls without checking capacity. Used for the canary
// and plugin-injected classes added during flush, and for the force-add of
// a class into a container that has just been flushed in EmitClass.
func (c *ContainerStructure) AddClassUnchecked(cls *dexmodel.Class, methodRefs, fieldRefs, typeRefs []dexmodel.Reference) {
	c.addUnchecked(cls, methodRefs, fieldRefs, typeRefs)
}

func (c *ContainerStructure) addUnchecked(cls *dexmodel.Class, methodRefs, fieldRefs, typeRefs []dexmodel.Reference) {
	c.classes = append(c.classes, cls)
	c.classSet[cls] = struct{}{}
	c.methods.InsertMany(methodRefs)
	c.fields.InsertMany(fieldRefs)
	c.types.InsertMany(typeRefs)
}

// GetCurrentClasses returns a read-only view of the classes accumulated so
// far, in emission order.
func (c *ContainerStructure) GetCurrentClasses() []*dexmodel.Class {
	out := make([]*dexmodel.Class, len(c.classes))
	copy(out, c.classes)

	return out
}

// EndContainer returns the ordered classes for the just-finalized
// container and resets internal state for the next one.
func (c *ContainerStructure) EndContainer() []*dexmodel.Class {
	out := c.classes

	c.classes = nil
	c.classSet = make(map[*dexmodel.Class]struct{})
	c.methods = NewReferenceSet()
	c.fields = NewReferenceSet()
	c.types = NewReferenceSet()
	c.methodsDefined = 0
	c.fieldsDefined = 0

	return out
}
