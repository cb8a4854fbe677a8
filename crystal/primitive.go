package crystal

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Primitive ties a primitive cell to its supercell through index maps.
type Primitive struct {
	// Cell is the primitive cell itself, with positions fractional in
	// the primitive lattice.
	*Cell

	// Supercell is the parent cell the index maps refer to.
	Supercell *Cell

	// P2S maps a primitive atom index to its supercell atom index.
	P2S []int
	// S2P maps every supercell atom to its representative supercell
	// atom, an element of P2S.
	S2P []int

	symprec float64

	p2p          []int        // supercell index of a primitive atom -> compact index, -1 elsewhere
	translations [][3]float64 // pure translations of the supercell, fractional
	transPerms   [][]int      // atomic permutation induced by each pure translation

	svecs [][][][3]float64 // smallest vectors, primitive fractional, [satom][patom]
	multi [][]int
}

// NewPrimitive validates the maps, derives the compaction map and the
// pure-translation operations of the supercell with their atomic
// permutations.
func NewPrimitive(pcell, supercell *Cell, p2s, s2p []int, symprec float64) (*Primitive, error) {
	nSuper := supercell.NumAtoms()
	if len(p2s) != pcell.NumAtoms() {
		return nil, fmt.Errorf("p2s length %d does not match primitive atom count %d", len(p2s), pcell.NumAtoms())
	}
	if len(s2p) != nSuper {
		return nil, fmt.Errorf("s2p length %d does not match supercell atom count %d", len(s2p), nSuper)
	}
	for i, s := range p2s {
		if s < 0 || s >= nSuper {
			return nil, fmt.Errorf("p2s[%d]=%d out of range", i, s)
		}
		if s2p[s] != s {
			return nil, fmt.Errorf("map inconsistency: s2p[p2s[%d]]=%d, want %d", i, s2p[s], s)
		}
	}

	p2p := make([]int, nSuper)
	for i := range p2p {
		p2p[i] = -1
	}
	for k, s := range p2s {
		p2p[s] = k
	}
	for j, rep := range s2p {
		if rep < 0 || rep >= nSuper || p2p[rep] < 0 {
			return nil, fmt.Errorf("s2p[%d]=%d is not a primitive representative", j, rep)
		}
	}

	p := &Primitive{
		Cell:      pcell,
		Supercell: supercell,
		P2S:       p2s,
		S2P:       s2p,
		symprec:   symprec,
		p2p:       p2p,
	}
	if err := p.buildTranslations(); err != nil {
		return nil, err
	}
	return p, nil
}

// buildTranslations collects the lattice translations connecting the first
// primitive atom to each of its supercell images, and the atomic
// permutation each of those pure translations induces.
func (p *Primitive) buildTranslations() error {
	rep := p.P2S[0]
	origin := p.Supercell.Positions[rep]
	for j, r := range p.S2P {
		if r != rep {
			continue
		}
		pos := p.Supercell.Positions[j]
		t := [3]float64{pos[0] - origin[0], pos[1] - origin[1], pos[2] - origin[2]}
		perm := make([]int, p.Supercell.NumAtoms())
		for i, pi := range p.Supercell.Positions {
			shifted := [3]float64{pi[0] + t[0], pi[1] + t[1], pi[2] + t[2]}
			target := MatchPosition(p.Supercell, shifted, p.symprec)
			if target < 0 {
				return fmt.Errorf("translation %d does not map atom %d onto the supercell", j, i)
			}
			perm[i] = target
		}
		p.translations = append(p.translations, t)
		p.transPerms = append(p.transPerms, perm)
	}
	if want := p.Supercell.NumAtoms() / p.NumAtoms(); len(p.translations) != want {
		return fmt.Errorf("found %d pure translations, want %d", len(p.translations), want)
	}
	return nil
}

// P2P returns the primitive-to-primitive compaction map: for a supercell
// index s of a primitive atom, P2P()[s] is its compact row index; -1 for
// all other atoms.
func (p *Primitive) P2P() []int {
	return p.p2p
}

// Translations returns the pure supercell translations, fractional in the
// supercell lattice. The identity translation is included.
func (p *Primitive) Translations() [][3]float64 {
	return p.translations
}

// TranslationPermutations returns the atomic permutation induced by each
// pure translation, indexed like Translations.
func (p *Primitive) TranslationPermutations() [][]int {
	return p.transPerms
}

// SmallestVectors returns the minimum-image vectors from every primitive
// atom to every supercell atom, in primitive fractional coordinates,
// together with their multiplicities. Periodic images are supercell
// translations; the search runs in supercell coordinates and the result
// is rebased onto the primitive lattice. The table is built once and
// cached.
func (p *Primitive) SmallestVectors() ([][][][3]float64, [][]int) {
	if p.svecs == nil {
		primAsSuper := make([][3]float64, p.NumAtoms())
		for k, s := range p.P2S {
			primAsSuper[k] = p.Supercell.Positions[s]
		}
		svecs, multi := SmallestVectors(
			p.Supercell.Lattice, p.Supercell.Positions, primAsSuper, p.symprec)

		// x_p = Lp^-1 * Ls * x_s
		var conv mat.Dense
		if err := conv.Solve(p.Lattice, p.Supercell.Lattice); err != nil {
			panic(fmt.Errorf("primitive lattice is singular: %v", err))
		}
		for i := range svecs {
			for j := range svecs[i] {
				for k, v := range svecs[i][j] {
					var w [3]float64
					for a := 0; a < 3; a++ {
						w[a] = conv.At(a, 0)*v[0] + conv.At(a, 1)*v[1] + conv.At(a, 2)*v[2]
					}
					svecs[i][j][k] = w
				}
			}
		}
		p.svecs, p.multi = svecs, multi
	}
	return p.svecs, p.multi
}
