package analyzed

import (
	"github.com/fxamacker/cbor/v2"
)

// snapshot is the subset of Analyzed that round-trips through CBOR: the
// identity list and public declarations. Symbols/Intermediates carry
// function values and ast.Expression interfaces that are not meaningfully
// serializable (closures capture Go func values nowhere in this tree), so
// the snapshot exists purely to support the two things spec §8 actually
// needs byte-identical comparison of: the condensed identity set (for the
// "condensing an already-condensed program is a no-op" check) and publics
// (for the "extract then re-insert" round trip).
type snapshot struct {
	Identities []*Identity
	Publics    []snapshotPublic
}

type snapshotPublic struct {
	Name   string
	Column string
	Row    int
}

// MarshalIdentitiesCBOR encodes the identity list in canonical CBOR form, a
// stable byte string usable as a cache key component or as the "before"
// half of the idempotence round-trip test (spec §8).
func (a *Analyzed) MarshalIdentitiesCBOR() ([]byte, error) {
	snap := snapshot{Identities: a.Identities}
	for _, p := range a.Publics {
		snap.Publics = append(snap.Publics, snapshotPublic{Name: p.Name, Column: p.Column, Row: p.Row})
	}
	opts := cbor.CanonicalEncOptions()
	enc, err := opts.EncMode()
	if err != nil {
		return nil, err
	}
	return enc.Marshal(snap)
}
