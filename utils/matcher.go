package utils

// Matcher finds any of a fixed set of substrings in one pass over the input
// (Aho-Corasick). A nil Matcher matches nothing.
type Matcher struct {
	nodes []matchNode
}

type matchNode struct {
	next  map[byte]int
	fail  int
	depth int
	// out is the length of the longest pattern ending at this node,
	// following fail links; 0 when none does.
	out int
}

// NewMatcher builds a matcher for patterns. Empty patterns are ignored and
// nil is returned when nothing is left to match.
func NewMatcher(patterns []string) *Matcher {
	m := &Matcher{nodes: []matchNode{{next: map[byte]int{}}}}
	n := 0
	for _, p := range patterns {
		if p == "" {
			continue
		}
		n++
		s := 0
		for i := 0; i < len(p); i++ {
			t, ok := m.nodes[s].next[p[i]]
			if !ok {
				t = len(m.nodes)
				m.nodes = append(m.nodes, matchNode{next: map[byte]int{}, depth: m.nodes[s].depth + 1})
				m.nodes[s].next[p[i]] = t
			}
			s = t
		}
		m.nodes[s].out = m.nodes[s].depth
	}
	if n == 0 {
		return nil
	}
	m.link()
	return m
}

// link sets fail links breadth first, so a node's fail target is always
// finished before the node itself.
func (m *Matcher) link() {
	queue := []int{}
	for _, t := range m.nodes[0].next {
		queue = append(queue, t)
	}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for b, v := range m.nodes[u].next {
			queue = append(queue, v)
			f := m.nodes[u].fail
			for f != 0 {
				if _, ok := m.nodes[f].next[b]; ok {
					break
				}
				f = m.nodes[f].fail
			}
			if t, ok := m.nodes[f].next[b]; ok && t != v {
				m.nodes[v].fail = t
			}
			if m.nodes[v].out == 0 {
				m.nodes[v].out = m.nodes[m.nodes[v].fail].out
			}
		}
	}
}

// Index returns the start of the first match to end in s, or -1.
func (m *Matcher) Index(s string) int {
	if m == nil {
		return -1
	}
	state := 0
	for i := 0; i < len(s); i++ {
		b := s[i]
		for state != 0 {
			if _, ok := m.nodes[state].next[b]; ok {
				break
			}
			state = m.nodes[state].fail
		}
		if t, ok := m.nodes[state].next[b]; ok {
			state = t
		}
		if out := m.nodes[state].out; out > 0 {
			return i - out + 1
		}
	}
	return -1
}

func (m *Matcher) Contains(s string) bool {
	return m.Index(s) != -1
}
