package importer

import (
	"fmt"
	"sort"
	"strings"
)

// TopoSort orders the nodes of graph so every node comes after the nodes
// it depends on.  graph maps a node to its dependencies; dependencies that
// are not keys of graph are ignored, which lets callers sort a subset of
// a larger graph.  Among nodes that are ready at the same time the
// alphabetically smaller one goes first, so the result is deterministic.
// A cycle is reported as an error naming the nodes left unsorted.
func TopoSort(graph map[string][]string) ([]string, error) {
	indegree := make(map[string]int, len(graph))
	dependents := make(map[string][]string, len(graph))
	for node, deps := range graph {
		if _, ok := indegree[node]; !ok {
			indegree[node] = 0
		}
		for _, dep := range deps {
			if _, ok := graph[dep]; !ok {
				continue
			}
			indegree[node]++
			dependents[dep] = append(dependents[dep], node)
		}
	}

	ready := make([]string, 0, len(graph))
	for node, n := range indegree {
		if n == 0 {
			ready = append(ready, node)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(graph))
	for len(ready) > 0 {
		node := ready[0]
		ready = ready[1:]
		order = append(order, node)
		for _, next := range dependents[node] {
			indegree[next]--
			if indegree[next] == 0 {
				ready = insertSorted(ready, next)
			}
		}
	}

	if len(order) != len(graph) {
		left := make([]string, 0, len(graph)-len(order))
		for node, n := range indegree {
			if n > 0 {
				left = append(left, node)
			}
		}
		sort.Strings(left)
		return nil, fmt.Errorf("dependency cycle among: %s", strings.Join(left, ", "))
	}
	return order, nil
}

func insertSorted(s []string, v string) []string {
	i := sort.SearchStrings(s, v)
	s = append(s, "")
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

// Order returns the given kinds in load order.  Unknown kinds are an error.
func Order(kinds []string) ([]string, error) {
	graph := make(map[string][]string, len(kinds))
	for _, name := range kinds {
		k, ok := Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownKind, name)
		}
		graph[name] = k.DependsOn
	}
	return TopoSort(graph)
}
