package selector

import (
	"github.com/kuitang/hellopet-e2e/internal/errs"
)

// Probe reports whether a single strategy currently matches. A probe error
// counts as a miss for that strategy.
type Probe func(strategy string) (bool, error)

// FirstMatch evaluates strategies in list order and returns the index and
// value of the first one the probe accepts. Unlike Flexible, list order
// decides the winner rather than document order.
func FirstMatch(strategies []string, probe Probe) (int, string, error) {
	for i, s := range strategies {
		ok, err := probe(s)
		if err != nil || !ok {
			continue
		}
		return i, s, nil
	}
	return -1, "", errs.New(errs.NotFound, "no strategy matched: "+Flexible(strategies...))
}
