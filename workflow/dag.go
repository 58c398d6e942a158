package workflow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/huffmsa/nuts"
)

// topoOrder validates the dependency graph of def and returns its jobs in
// an order where every job follows the jobs it requires. Ties are broken
// by name so the order is deterministic.
//
// Kahn's algorithm: jobs left over once no zero in-degree job remains
// are on or behind a cycle.
func topoOrder(def *Definition) ([]string, error) {
	if len(def.Jobs) == 0 {
		return nil, fmt.Errorf("workflow %q: no jobs", def.Name)
	}

	inDegree := make(map[string]int, len(def.Jobs))
	for _, j := range def.Jobs {
		if _, dup := inDegree[j.Name]; dup {
			return nil, fmt.Errorf("workflow %q: job %q listed twice: %w", def.Name, j.Name, nuts.ErrDuplicateName)
		}
		inDegree[j.Name] = 0
	}

	// forward[A] = [B, C] means A must complete before B and C.
	forward := make(map[string][]string, len(def.Jobs))
	for _, j := range def.Jobs {
		seen := make(map[string]bool, len(j.Requires))
		for _, dep := range j.Requires {
			if _, ok := inDegree[dep]; !ok {
				return nil, fmt.Errorf("workflow %q: job %q requires undeclared job %q: %w",
					def.Name, j.Name, dep, nuts.ErrUnknownJob)
			}
			if seen[dep] {
				continue
			}
			seen[dep] = true
			forward[dep] = append(forward[dep], j.Name)
			inDegree[j.Name]++
		}
	}

	var queue []string
	for name, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	order := make([]string, 0, len(inDegree))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		successors := forward[node]
		sort.Strings(successors)
		for _, succ := range successors {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				queue = append(queue, succ)
			}
		}
	}

	if len(order) != len(inDegree) {
		var stuck []string
		for name, deg := range inDegree {
			if deg > 0 {
				stuck = append(stuck, name)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("workflow %q: %w involving jobs: %s",
			def.Name, nuts.ErrCyclicDependency, strings.Join(stuck, ", "))
	}
	return order, nil
}
