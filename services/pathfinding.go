package services

import (
	"container/heap"

	"gridrealm/server/models"
)

type pathNode struct {
	pos   models.Position
	g, f  int
	index int
}

type openSet []*pathNode

func (s openSet) Len() int { return len(s) }
func (s openSet) Less(i, j int) bool {
	if s[i].f == s[j].f {
		return s[i].g > s[j].g
	}
	return s[i].f < s[j].f
}
func (s openSet) Swap(i, j int) {
	s[i], s[j] = s[j], s[i]
	s[i].index = i
	s[j].index = j
}
func (s *openSet) Push(x any) {
	n := x.(*pathNode)
	n.index = len(*s)
	*s = append(*s, n)
}
func (s *openSet) Pop() any {
	old := *s
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*s = old[:len(old)-1]
	return n
}

// FindPath runs A* over the 4-connected board from start to goal with unit
// step costs. passable decides which intermediate cells may be entered; the
// goal is always enterable so a path can end on an occupied cell. The
// returned path starts with start and ends with goal, or is nil when the
// goal cannot be reached.
//
// The heuristic is Chebyshev distance. It never overestimates the
// 4-directional cost, so returned paths are shortest.
func FindPath(gm *GameMap, start, goal models.Position, passable func(models.Position) bool) []models.Position {
	if !gm.IsValidPosition(start) || !gm.IsValidPosition(goal) {
		return nil
	}
	if start == goal {
		return []models.Position{start}
	}

	open := &openSet{}
	nodes := map[models.Position]*pathNode{}
	cameFrom := map[models.Position]models.Position{}
	closed := map[models.Position]bool{}

	startNode := &pathNode{pos: start, g: 0, f: start.DistanceTo(goal)}
	nodes[start] = startNode
	heap.Push(open, startNode)

	for open.Len() > 0 {
		current := heap.Pop(open).(*pathNode)
		if current.pos == goal {
			return reconstructPath(cameFrom, goal)
		}
		closed[current.pos] = true

		for _, next := range current.pos.Neighbors() {
			if closed[next] || !gm.IsValidPosition(next) {
				continue
			}
			if next != goal && passable != nil && !passable(next) {
				continue
			}

			g := current.g + 1
			node, seen := nodes[next]
			if seen && g >= node.g {
				continue
			}
			cameFrom[next] = current.pos
			if !seen {
				node = &pathNode{pos: next}
				nodes[next] = node
				node.g = g
				node.f = g + next.DistanceTo(goal)
				heap.Push(open, node)
				continue
			}
			node.g = g
			node.f = g + next.DistanceTo(goal)
			heap.Fix(open, node.index)
		}
	}
	return nil
}

func reconstructPath(cameFrom map[models.Position]models.Position, goal models.Position) []models.Position {
	path := []models.Position{goal}
	for {
		prev, ok := cameFrom[path[len(path)-1]]
		if !ok {
			break
		}
		path = append(path, prev)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
