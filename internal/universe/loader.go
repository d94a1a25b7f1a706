// Package universe loads the class universe the interdex packer operates
// over. The core packer treats bytecode reading as an external
// collaborator (spec: the real analog is an APK's merged dex input); this
// standalone module's concrete stand-in is a JSON document, one object per
// class, decoded into a dexmodel.Registry.
package universe

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/interdex-project/interdex/pkg/dexmodel"
)

// classRecord is the JSON wire shape of one class in a universe document.
type classRecord struct {
	Name             string            `json:"name"`
	References       []referenceRecord `json:"references"`
	IsInterface      bool              `json:"is_interface"`
	Super            string            `json:"super"`
	Interfaces       []string          `json:"interfaces"`
	Renameable       *bool             `json:"renameable"`
	PerfSensitive    bool              `json:"perf_sensitive"`
	InterdexSubgroup *int              `json:"interdex_subgroup"`
	Canary           bool              `json:"canary"`
	Primary          bool              `json:"primary"`
}

type referenceRecord struct {
	Kind       string `json:"kind"`
	Descriptor string `json:"descriptor"`
}

// Load decodes a JSON array of class records from r into a fresh Registry.
// Two passes are required: the first interns every named class (so
// Super/Interfaces can resolve forward references regardless of document
// order), the second fills in each class's fields. The returned slice
// holds exactly the explicitly-declared classes (not forward-referenced
// supers/interfaces interned along the way) in document order; callers
// that need a deterministic "universe order" — the remainder phase, the
// primary-set's "original order" — use this slice rather than
// Registry.All, which is unordered.
func Load(r io.Reader) (*dexmodel.Registry, []*dexmodel.Class, error) {
	var records []classRecord

	err := json.NewDecoder(r).Decode(&records)
	if err != nil {
		return nil, nil, fmt.Errorf("decode class universe: %w", err)
	}

	reg := dexmodel.NewRegistry()
	ordered := make([]*dexmodel.Class, 0, len(records))

	for _, rec := range records {
		ordered = append(ordered, reg.NewClass(rec.Name))
	}

	for i, rec := range records {
		err := applyRecord(reg, ordered[i], rec)
		if err != nil {
			return nil, nil, err
		}
	}

	return reg, ordered, nil
}

func applyRecord(reg *dexmodel.Registry, cls *dexmodel.Class, rec classRecord) error {
	cls.IsInterface = rec.IsInterface
	cls.PerfSensitive = rec.PerfSensitive
	cls.Canary = rec.Canary
	cls.Primary = rec.Primary

	if rec.Renameable != nil {
		cls.Renameable = *rec.Renameable
	}

	if rec.InterdexSubgroup != nil {
		cls.InterdexSubgroup = *rec.InterdexSubgroup
	}

	if rec.Super != "" {
		cls.Super = reg.NewClass(rec.Super)
	}

	if len(rec.Interfaces) > 0 {
		cls.Interfaces = make([]*dexmodel.Class, 0, len(rec.Interfaces))
		for _, ifaceName := range rec.Interfaces {
			cls.Interfaces = append(cls.Interfaces, reg.NewClass(ifaceName))
		}
	}

	if len(rec.References) > 0 {
		cls.References = make([]dexmodel.Reference, 0, len(rec.References))

		for _, refRec := range rec.References {
			kind, err := parseKind(refRec.Kind)
			if err != nil {
				return fmt.Errorf("class %s: %w", rec.Name, err)
			}

			cls.References = append(cls.References, dexmodel.Reference{Kind: kind, Descriptor: refRec.Descriptor})
		}
	}

	return nil
}

func parseKind(s string) (dexmodel.Kind, error) {
	switch s {
	case "method":
		return dexmodel.MethodRef, nil
	case "field":
		return dexmodel.FieldRef, nil
	case "type":
		return dexmodel.TypeRef, nil
	case "string":
		return dexmodel.StringRef, nil
	default:
		return 0, fmt.Errorf("%w: %q", errUnknownReferenceKind, s)
	}
}
