package interdex

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/interdex-project/interdex/pkg/dexmodel"
)

// DexInfo is the boolean flag bundle carried per container. Flags are set
// by the driver as markers are crossed and snapshotted at flush.
type DexInfo struct {
	Primary        bool
	Coldstart      bool
	Extended       bool
	Scroll         bool
	Background     bool
	BetamapOrdered bool
}

// resetTransient zeros the flags that do not survive a flush, keeping
// Primary and Coldstart — those two are managed entirely by the driver
// across container boundaries.
func (d *DexInfo) resetTransient() {
	d.Scroll = false
	d.Background = false
	d.Extended = false
	d.BetamapOrdered = false
}

// FinalizedContainer is one emitted, immutable container: its classes in
// emission order plus the DexInfo snapshot taken at flush time.
type FinalizedContainer struct {
	Ordinal int
	Classes []*dexmodel.Class
	Info    DexInfo
}

// CanaryName returns the name of this container's canary class, whether or
// not canaries are enabled for the run.
func (fc *FinalizedContainer) CanaryName() string {
	return fmt.Sprintf(dexmodelCanaryFormat, fc.Ordinal)
}

const dexmodelCanaryFormat = "Lsecondary/dex%02d/Canary;"

// ContainerSequence is the ordered list of finalized containers. Index 0 is
// always the primary container.
type ContainerSequence struct {
	Containers []*FinalizedContainer
}

// WriteManifest writes one comma-separated line per container to w, in the
// external interface format: a canary name, an ordinal, and the five
// boolean DexInfo flags as 0/1.
func (cs *ContainerSequence) WriteManifest(w io.Writer) error {
	for _, c := range cs.Containers {
		line := strings.Join([]string{
			c.CanaryName(),
			"ordinal=" + strconv.Itoa(c.Ordinal),
			"coldstart=" + boolFlag(c.Info.Coldstart),
			"extended=" + boolFlag(c.Info.Extended),
			"primary=" + boolFlag(c.Info.Primary),
			"scroll=" + boolFlag(c.Info.Scroll),
			"background=" + boolFlag(c.Info.Background),
		}, ",")

		_, err := fmt.Fprintln(w, line)
		if err != nil {
			return fmt.Errorf("write manifest line: %w", err)
		}
	}

	return nil
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}

	return "0"
}
