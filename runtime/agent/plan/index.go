package plan

import "fmt"

// Index maps step id to its position in Steps, built once at load time so
// the interpreter can jump in O(1) on goto/if.
type Index map[string]int

// BuildIndex constructs the id→position map. Callers should run Validate
// first; BuildIndex itself only guards against duplicate ids so it never
// panics on malformed input.
func BuildIndex(p *Plan) (Index, error) {
	idx := make(Index, len(p.Steps))
	for i, s := range p.Steps {
		if _, ok := idx[s.ID]; ok {
			return nil, fmt.Errorf("plan: duplicate step id %q", s.ID)
		}
		idx[s.ID] = i
	}
	return idx, nil
}
