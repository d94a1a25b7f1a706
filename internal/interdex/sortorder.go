package interdex

import (
	"sort"

	"github.com/interdex-project/interdex/pkg/dexmodel"
)

// compressionLess orders two classes for the compression-friendly suffix
// sort applied at flush: canaries first, non-interfaces before interfaces,
// subtypes before their supertypes, otherwise by canonical super-class and
// interface-list ordering. Ties are left equal; the caller must sort
// stably so input order survives as the final tie-breaker.
func compressionLess(a, b *dexmodel.Class) bool {
	if a.Canary != b.Canary {
		return a.Canary
	}

	if a.IsInterface != b.IsInterface {
		return !a.IsInterface
	}

	if a.IsSubtypeOf(b) {
		return true
	}

	if b.IsSubtypeOf(a) {
		return false
	}

	aSuper, bSuper := superName(a), superName(b)
	if aSuper != bSuper {
		return aSuper < bSuper
	}

	aIfaces, bIfaces := interfaceNames(a), interfaceNames(b)
	for i := 0; i < len(aIfaces) && i < len(bIfaces); i++ {
		if aIfaces[i] != bIfaces[i] {
			return aIfaces[i] < bIfaces[i]
		}
	}

	if len(aIfaces) != len(bIfaces) {
		return len(aIfaces) < len(bIfaces)
	}

	return false
}

func superName(c *dexmodel.Class) string {
	if c.Super == nil {
		return ""
	}

	return c.Super.Name
}

func interfaceNames(c *dexmodel.Class) []string {
	names := make([]string, len(c.Interfaces))
	for i, iface := range c.Interfaces {
		names[i] = iface.Name
	}

	sort.Strings(names)

	return names
}

// SortCompressionFriendlySuffix stable-sorts classes[start:] in place using
// the compression-friendly comparator, leaving classes[:start] untouched.
// Callers pass start as the length of the still-perf-sensitive,
// not-plugin-injected prefix that must retain its emission order exactly.
func SortCompressionFriendlySuffix(classes []*dexmodel.Class, start int) {
	if start >= len(classes) {
		return
	}

	suffix := classes[start:]

	sort.SliceStable(suffix, func(i, j int) bool {
		return compressionLess(suffix[i], suffix[j])
	})
}
