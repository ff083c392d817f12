package form

import (
	"fmt"

	"facility-form-backend/internal/directory"
)

// Reporter is one row of the reporter list. An empty Key marks a row that
// has not been resolved to an agent.
type Reporter struct {
	Input      string   `json:"input"`
	Key        string   `json:"reporterKey"`
	Properties []string `json:"properties"`
}

// Reporters is the ordered reporter list. After every Rebalance the list is
// non-empty, every row but the last has a key, and the last row is an empty
// placeholder for the next reporter.
type Reporters []Reporter

// NewReporters returns a list holding only the placeholder row.
func NewReporters() Reporters {
	return Reporters{placeholder()}
}

func placeholder() Reporter {
	return Reporter{Properties: []string{}}
}

func (r Reporters) check(i int) error {
	if i < 0 || i >= len(r) {
		return fmt.Errorf("%w: %d (have %d)", ErrReporterIndex, i, len(r))
	}
	return nil
}

// Resolve handles a keystroke in row i: the row's key is cleared and then
// set to the agent whose name or key equals value, if any.
func (r Reporters) Resolve(i int, value string, agents []directory.Agent) error {
	if err := r.check(i); err != nil {
		return err
	}
	r[i].Input = value
	r[i].Key = ""
	if agent, ok := directory.Resolve(agents, value); ok {
		r[i].Key = agent.Key
	}
	return nil
}

// Rebalance runs when row i loses focus. A keyless row that is not last is
// removed; a keyed last row gets a fresh placeholder appended after it.
func (r *Reporters) Rebalance(i int) error {
	list := *r
	if err := list.check(i); err != nil {
		return err
	}

	last := len(list) - 1
	switch {
	case list[i].Key == "" && i != last:
		*r = append(list[:i:i], list[i+1:]...)
	case list[i].Key != "" && i == last:
		*r = append(list, placeholder())
	}
	return nil
}

// SetProperties replaces row i's selection. Duplicates are dropped, keeping
// the first occurrence.
func (r Reporters) SetProperties(i int, selection []string) error {
	if err := r.check(i); err != nil {
		return err
	}

	seen := make(map[string]bool, len(selection))
	props := make([]string, 0, len(selection))
	for _, p := range selection {
		if !IsAuthorizable(p) {
			return fmt.Errorf("%w: %q", ErrUnknownProperty, p)
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		props = append(props, p)
	}
	r[i].Properties = props
	return nil
}

// Resolved returns the rows that carry a key, in order.
func (r Reporters) Resolved() []Reporter {
	var out []Reporter
	for _, rep := range r {
		if rep.Key != "" {
			out = append(out, rep)
		}
	}
	return out
}

// CheckInvariant reports whether the list is in its settled shape.
func (r Reporters) CheckInvariant() error {
	if len(r) == 0 {
		return fmt.Errorf("%w: list is empty", ErrInvariantViolated)
	}
	last := len(r) - 1
	if r[last].Key != "" {
		return fmt.Errorf("%w: last row %d has a key", ErrInvariantViolated, last)
	}
	for i := 0; i < last; i++ {
		if r[i].Key == "" {
			return fmt.Errorf("%w: interior row %d has no key", ErrInvariantViolated, i)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (r Reporters) Clone() Reporters {
	out := make(Reporters, len(r))
	for i, rep := range r {
		out[i] = rep
		out[i].Properties = append([]string{}, rep.Properties...)
	}
	return out
}
