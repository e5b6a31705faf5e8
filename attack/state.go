package attack

import "fmt"

// Phase of a block attack.
type Phase int

const (
	Recovering Phase = iota
	Done
)

func (p Phase) String() string {
	switch p {
	case Recovering:
		return "recovering"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// State is the private working set of one block attack.
//
// Intermediate is filled from the right. While Recovering, the trailing PadLength-1
// bytes are resolved and Working has been rewritten so those bytes decrypt to PadLength.
// Once Done every byte is resolved.
type State struct {
	PadLength    int
	Intermediate Block
	Working      Block
	Phase        Phase
}

func newState(prev Block) *State {
	return &State{
		PadLength:    1,
		Intermediate: make(Block, len(prev)),
		Working:      prev.clone(),
		Phase:        Recovering,
	}
}

// Resolved is the number of known trailing intermediate bytes.
func (s *State) Resolved() int {
	if s.Phase == Done {
		return len(s.Intermediate)
	}
	return s.PadLength - 1
}

func (s *State) clone() State {
	return State{
		PadLength:    s.PadLength,
		Intermediate: s.Intermediate.clone(),
		Working:      s.Working.clone(),
		Phase:        s.Phase,
	}
}

// resolve records that candidate g gave valid padding of length PadLength and prepares
// Working to force the next length.
func (s *State) resolve(g byte) {
	bs := len(s.Working)
	k := s.PadLength
	pos := bs - k

	s.Intermediate[pos] = g ^ byte(k)
	if k == bs {
		s.Working[pos] = g
		s.Phase = Done
		return
	}

	// D ^ x = k+1  =>  x = D ^ (k+1)
	for i := pos; i < bs; i++ {
		s.Working[i] = s.Intermediate[i] ^ byte(k+1)
	}
	s.PadLength++
}

// Snapshot is the persistable progress of one block. The working block is derived from
// it and the real previous block, so it is not stored.
type Snapshot struct {
	Block        int
	Resolved     int
	Intermediate []byte
}

func (s *State) snapshot(index int) Snapshot {
	return Snapshot{
		Block:        index,
		Resolved:     s.Resolved(),
		Intermediate: s.Intermediate.clone(),
	}
}

// restoreState rebuilds a State for a block whose previous block is prev.
func restoreState(prev Block, snap Snapshot) (*State, error) {
	bs := len(prev)
	if len(snap.Intermediate) != bs {
		return nil, fmt.Errorf("%w: snapshot for block %d has %d intermediate bytes, want %d",
			ErrInvalidInput, snap.Block, len(snap.Intermediate), bs)
	}
	if snap.Resolved < 0 || snap.Resolved > bs {
		return nil, fmt.Errorf("%w: snapshot for block %d has %d resolved bytes", ErrInvalidInput, snap.Block, snap.Resolved)
	}

	s := newState(prev)
	copy(s.Intermediate[bs-snap.Resolved:], snap.Intermediate[bs-snap.Resolved:])
	if snap.Resolved == bs {
		s.PadLength = bs
		s.Phase = Done
		return s, nil
	}

	s.PadLength = snap.Resolved + 1
	for i := bs - snap.Resolved; i < bs; i++ {
		s.Working[i] = s.Intermediate[i] ^ byte(s.PadLength)
	}
	return s, nil
}
