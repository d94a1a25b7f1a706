package interdex

import "github.com/interdex-project/interdex/pkg/dexmodel"

// PruneUnreferencedColdstart repeatedly drops renameable coldstart classes
// that no other surviving coldstart class references, until a round drops
// nothing. A class survives a round if it is non-renameable (pinned
// because it may be reached from native code) or some other still-alive
// coldstart class holds a type reference to it; because "still-alive" is
// re-evaluated every round, a cycle of renameable classes that reference
// only each other survives indefinitely once no external referrer of
// either has been dropped, exactly as it does when neither is ever
// dropped in the first place — the fixed point is reached the round no
// class newly falls out of the alive set. It returns the pruned classes
// separately from the surviving (kept) set; callers re-insert pruned
// classes at the tail of the coldstart emission phase as
// non-perf-sensitive.
func PruneUnreferencedColdstart(coldstart []*dexmodel.Class) (pruned, kept []*dexmodel.Class) {
	byName := make(map[string]*dexmodel.Class, len(coldstart))
	for _, cls := range coldstart {
		byName[cls.Name] = cls
	}

	alive := make(map[*dexmodel.Class]struct{}, len(coldstart))
	for _, cls := range coldstart {
		alive[cls] = struct{}{}
	}

	for {
		referenced := make(map[*dexmodel.Class]struct{}, len(alive))

		for cls := range alive {
			for _, ref := range cls.References {
				if ref.Kind != dexmodel.TypeRef {
					continue
				}

				target, ok := byName[ref.Descriptor]
				if !ok || target == cls {
					continue
				}

				if _, stillAlive := alive[target]; !stillAlive {
					continue
				}

				referenced[target] = struct{}{}
			}
		}

		next := make(map[*dexmodel.Class]struct{}, len(alive))

		for cls := range alive {
			if !cls.Renameable {
				next[cls] = struct{}{}

				continue
			}

			if _, ok := referenced[cls]; ok {
				next[cls] = struct{}{}
			}
		}

		if len(next) == len(alive) {
			break
		}

		alive = next
	}

	for _, cls := range coldstart {
		if _, survives := alive[cls]; survives {
			kept = append(kept, cls)
		} else {
			pruned = append(pruned, cls)
		}
	}

	return pruned, kept
}
