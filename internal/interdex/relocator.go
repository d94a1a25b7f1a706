package interdex

import (
	"fmt"

	"github.com/interdex-project/interdex/internal/config"
	"github.com/interdex-project/interdex/pkg/dexmodel"
)

// Relocator extracts synthetic helper classes out of a class whose method
// references would otherwise overflow the per-class relocation budget,
// so the orchestrator can place the helpers independently of the
// original. Extracted helpers are pre-owned by the relocator: the
// minimizer must Ignore them rather than charging their references as
// applied on erase.
type Relocator struct {
	reg     *dexmodel.Registry
	cfg     config.RelocatorConfig
	minted  int
}

// NewRelocator returns a relocator minting helper classes into reg under
// cfg's budget.
func NewRelocator(reg *dexmodel.Registry, cfg config.RelocatorConfig) *Relocator {
	return &Relocator{reg: reg, cfg: cfg}
}

// Eligible reports whether cls is a candidate for relocation: relocation
// is enabled, cls is not a canary, is not pinned against relocation by
// RelocateNonRenameable, and carries more method refs than the per-class
// budget allows to stay in one place.
func (r *Relocator) Eligible(cls *dexmodel.Class, forbidden bool) bool {
	if !r.cfg.Enabled || !r.cfg.AnyMethodKindEnabled() || cls.Canary || forbidden {
		return false
	}

	if !cls.Renameable && !r.cfg.RelocateNonRenameable {
		return false
	}

	return len(methodRefsOf(cls)) > r.cfg.MaxRelocatedMethodsPerClass
}

// Relocate splits cls's method references into helper classes of at most
// MaxRelocatedMethodsPerClass each, minting and interning each helper in
// the registry. It returns the helpers in deterministic creation order;
// cls itself is left untouched (its non-method references stay put).
func (r *Relocator) Relocate(cls *dexmodel.Class) []*dexmodel.Class {
	budget := r.cfg.MaxRelocatedMethodsPerClass
	if budget <= 0 {
		return nil
	}

	methodRefs := methodRefsOf(cls)
	if len(methodRefs) <= budget {
		return nil
	}

	var helpers []*dexmodel.Class

	for start := 0; start < len(methodRefs); start += budget {
		end := start + budget
		if end > len(methodRefs) {
			end = len(methodRefs)
		}

		r.minted++

		name := fmt.Sprintf("Lredex/relocated/%sHelper%d;", sanitizeForName(cls.Name), r.minted)
		helper := r.reg.NewClass(name)
		helper.References = append([]dexmodel.Reference(nil), methodRefs[start:end]...)
		helpers = append(helpers, helper)
	}

	return helpers
}

func methodRefsOf(cls *dexmodel.Class) []dexmodel.Reference {
	var out []dexmodel.Reference

	for _, ref := range cls.References {
		if ref.Kind == dexmodel.MethodRef {
			out = append(out, ref)
		}
	}

	return out
}

func sanitizeForName(name string) string {
	out := make([]byte, 0, len(name))

	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			out = append(out, c)
		}
	}

	return string(out)
}
