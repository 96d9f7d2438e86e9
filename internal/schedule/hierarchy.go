package schedule

import (
	"strconv"

	"github.com/zulandar/foreman/internal/models"
)

// Node is a task's position in the hierarchy.
type Node struct {
	Task     *models.Task
	Parent   *Node
	Children []*Node
	Level    int
}

// Tree is the parent/child view of a task set with O(1) lookup by ID.
type Tree struct {
	Roots []*Node
	index map[string]*Node
}

// BuildHierarchy groups tasks by ParentID. Tasks whose parent is missing are
// promoted to roots, and a parent chain that loops back on itself is broken
// by promoting the task where the loop closes. Each task's Level is set to
// its breadth-first depth. Nodes point into the given slice.
func BuildHierarchy(tasks []models.Task) *Tree {
	tree := &Tree{index: make(map[string]*Node, len(tasks))}
	nodes := make([]*Node, 0, len(tasks))
	for i := range tasks {
		if _, dup := tree.index[tasks[i].ID]; dup {
			continue
		}
		n := &Node{Task: &tasks[i]}
		tree.index[tasks[i].ID] = n
		nodes = append(nodes, n)
	}

	for _, n := range nodes {
		pid := n.Task.ParentID
		if pid == nil || *pid == n.Task.ID {
			tree.Roots = append(tree.Roots, n)
			continue
		}
		parent, ok := tree.index[*pid]
		if !ok {
			tree.Roots = append(tree.Roots, n)
			continue
		}
		n.Parent = parent
		parent.Children = append(parent.Children, n)
	}

	visited := make(map[*Node]bool, len(nodes))
	for _, r := range tree.Roots {
		tree.levelFrom(r, visited)
	}

	// Anything not reached hangs off a parent cycle.
	for _, n := range nodes {
		if visited[n] {
			continue
		}
		r := loopEntry(n)
		r.Parent.Children = removeChild(r.Parent.Children, r)
		r.Parent = nil
		tree.Roots = append(tree.Roots, r)
		tree.levelFrom(r, visited)
	}
	return tree
}

// loopEntry follows parent links from n until a node repeats. The chain of
// an unreached node cannot end at a root, so the repeat lies on the loop.
func loopEntry(n *Node) *Node {
	seen := make(map[*Node]bool)
	for !seen[n] {
		seen[n] = true
		n = n.Parent
	}
	return n
}

// levelFrom assigns levels breadth-first below root using an explicit queue.
func (t *Tree) levelFrom(root *Node, visited map[*Node]bool) {
	root.Level = 0
	root.Task.Level = 0
	visited[root] = true
	queue := []*Node{root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, c := range n.Children {
			if visited[c] {
				continue
			}
			visited[c] = true
			c.Level = n.Level + 1
			c.Task.Level = c.Level
			queue = append(queue, c)
		}
	}
}

func removeChild(children []*Node, target *Node) []*Node {
	out := children[:0]
	for _, c := range children {
		if c != target {
			out = append(out, c)
		}
	}
	return out
}

// Lookup returns the node for a task ID.
func (t *Tree) Lookup(id string) (*Node, bool) {
	n, ok := t.index[id]
	return n, ok
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int {
	return len(t.index)
}

// Flatten returns every node in depth-first pre-order, walking with an
// explicit stack so deep nesting cannot exhaust the goroutine stack.
func (t *Tree) Flatten() []*Node {
	out := make([]*Node, 0, len(t.index))
	stack := make([]*Node, 0, len(t.Roots))
	for i := len(t.Roots) - 1; i >= 0; i-- {
		stack = append(stack, t.Roots[i])
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, n)
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
	return out
}

// AssignWBS numbers every task with a dotted outline code ("1", "1.2", ...).
func (t *Tree) AssignWBS() {
	type frame struct {
		node   *Node
		prefix string
	}
	stack := make([]frame, 0, len(t.Roots))
	for i := len(t.Roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{t.Roots[i], strconv.Itoa(i + 1)})
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		f.node.Task.WBS = f.prefix
		for i := len(f.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{f.node.Children[i], f.prefix + "." + strconv.Itoa(i+1)})
		}
	}
}

// Ancestors returns the IDs above a task, nearest parent first.
func (t *Tree) Ancestors(id string) []string {
	n, ok := t.index[id]
	if !ok {
		return nil
	}
	var out []string
	for p := n.Parent; p != nil; p = p.Parent {
		out = append(out, p.Task.ID)
	}
	return out
}
