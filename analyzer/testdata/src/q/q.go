package q

import (
	workflow "context"
	"fmt"
)

type state struct {
	counts map[string]int
}

func wfNestedMapIteration(ctx workflow.Context, s state) error {
	if len(s.counts) > 0 {
		for k := range s.counts { // want "iterating over a map is not deterministic and not allowed in workflows"
			fmt.Println(k)
		}
	}

	return nil
}
