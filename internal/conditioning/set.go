package conditioning

import (
	"encoding/json"

	"github.com/samber/lo"
)

// Set is an ordered, immutable list of 1 to 4 validated inputs. Order is the
// order in which the worker applies the conditioning. The zero Set means
// "no conditioning".
type Set struct {
	items []Input
}

// NewSet builds a Set from already-normalized inputs. The count and every
// item are checked again here, so a Set can only hold valid inputs no matter
// which path produced them.
func NewSet(items []Input) (Set, error) {
	if n := len(items); n < MinInputs || n > MaxInputs {
		return Set{}, &CountError{Count: n}
	}
	for i, in := range items {
		if err := checkInput(i, in); err != nil {
			return Set{}, err
		}
	}
	return Set{items: append([]Input(nil), items...)}, nil
}

// Len returns the number of inputs.
func (s Set) Len() int { return len(s.items) }

// IsZero reports whether s carries no conditioning.
func (s Set) IsZero() bool { return len(s.items) == 0 }

// Items returns a copy of the inputs in application order.
func (s Set) Items() []Input { return append([]Input(nil), s.items...) }

// At returns the i-th input.
func (s Set) At(i int) Input { return s.items[i] }

// Types returns the conditioning type of each input, in order.
func (s Set) Types() []Type {
	return lo.Map(s.items, func(in Input, _ int) Type { return in.Type })
}

func (s Set) MarshalJSON() ([]byte, error) {
	if s.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.items)
}

// UnmarshalJSON accepts null or [] as the zero Set; anything else must
// pass NewSet.
func (s *Set) UnmarshalJSON(b []byte) error {
	var items []Input
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	if len(items) == 0 {
		*s = Set{}
		return nil
	}
	set, err := NewSet(items)
	if err != nil {
		return err
	}
	*s = set
	return nil
}
