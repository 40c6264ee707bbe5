package machines

import (
	"strings"

	"github.com/ace-zkvm/ace/analyzed"
)

// The heuristics below implement spec §4.2's "feature matching" step: a
// machine's shape (not its contents) decides which specialized witness
// generation strategy runs. Real PIL machines mark their shape with
// conventional column names and a periodic latch selector, so detection
// here is name- and pattern-based rather than a full semantic proof --
// the same kind of shape-sniffing the machine_extractor does before
// falling back to the general Vm strategy.

func hasColumnLike(part *Part, substrs ...string) bool {
	for _, col := range part.Columns {
		lower := strings.ToLower(col.Name)
		for _, s := range substrs {
			if strings.Contains(lower, s) {
				return true
			}
		}
	}
	return false
}

func hasBusIdentities(part *Part) bool {
	for _, id := range part.Identities {
		if id.Kind == analyzed.KindBusSend || id.Kind == analyzed.KindBusReceive {
			return true
		}
	}
	return false
}

// isSortedWitnesses matches a memory machine whose rows are sorted by
// address and step/clock and whose only identities enforce row ordering
// (no bus interactions of its own -- it is addressed purely through
// FixedLookup-free bus sends from other machines).
func isSortedWitnesses(part *Part) bool {
	return hasColumnLike(part, "addr") &&
		hasColumnLike(part, "step", "clk", "time") &&
		!hasBusIdentities(part)
}

// isDoubleSortedWitness matches a memory machine split by access width,
// distinguishing 16-bit and 32-bit variants by column naming convention.
func isDoubleSortedWitness(part *Part) (Variant, bool) {
	if !hasColumnLike(part, "addr") {
		return 0, false
	}
	switch {
	case hasColumnLike(part, "mem32", "memory32", "word32"):
		return VariantDoubleSortedWitness32, true
	case hasColumnLike(part, "mem16", "memory16", "half16", "halfword"):
		return VariantDoubleSortedWitness16, true
	}
	return 0, false
}

// isWriteOnceMemory matches a ROM-like machine: addressed by a monotonic
// address column, populated once per address, with no row-to-row
// constraint of its own beyond the lookup that feeds it.
func isWriteOnceMemory(part *Part) bool {
	if hasColumnLike(part, "rom") {
		return true
	}
	return len(part.Identities) == 0 &&
		hasColumnLike(part, "addr") &&
		hasColumnLike(part, "value", "data")
}

// detectBlockLatch looks for a fixed "latch" column -- conventionally
// named islast/latch/last -- whose periodic 0/1 pattern identifies the
// machine's block size and latch row (spec §4.2's BlockMachine detection).
func detectBlockLatch(part *Part) (blockSize, latchRow uint64, ok bool) {
	for _, col := range part.Columns {
		lower := strings.ToLower(col.Name)
		if !strings.Contains(lower, "latch") && !strings.Contains(lower, "islast") && !strings.Contains(lower, "last") {
			continue
		}
		if len(col.FixedValues) == 0 {
			continue
		}
		for i, v := range col.FixedValues {
			if i == 0 {
				continue
			}
			if !v.IsZero() {
				return uint64(i + 1), uint64(i), true
			}
		}
	}
	return 0, 0, false
}
