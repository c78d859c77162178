// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package cache

// Matcher finds any of a fixed set of signatures in a string using the
// Aho-Corasick automaton, in time linear in the input regardless of how many
// signatures there are.
//
// Matching is ASCII case-insensitive. A Matcher is immutable after
// construction and safe for concurrent use.
//
//	m := cache.NewMatcher([]string{"sqlmap", "nikto", "curl/"})
//	if sig, ok := m.FindFirst(r.UserAgent()); ok {
//	    // blocked by sig
//	}
type Matcher struct {
	root     *acNode
	patterns []string
}

// acNode represents a node in the Aho-Corasick automaton.
type acNode struct {
	children map[byte]*acNode
	failure  *acNode // Failure link for when match fails
	output   []int   // Indices of patterns that end at this node
}

// Match is one signature occurrence.
type Match struct {
	Pattern  string
	Position int // byte offset of the first matched byte
}

// NewMatcher builds an automaton over patterns. Empty patterns are ignored.
func NewMatcher(patterns []string) *Matcher {
	m := &Matcher{root: newACNode()}
	for _, p := range patterns {
		if p == "" {
			continue
		}
		m.insert(len(m.patterns), p)
		m.patterns = append(m.patterns, p)
	}
	m.buildFailureLinks()
	return m
}

func newACNode() *acNode {
	return &acNode{children: make(map[byte]*acNode)}
}

func lowerASCII(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

func (m *Matcher) insert(index int, pattern string) {
	node := m.root
	for i := 0; i < len(pattern); i++ {
		ch := lowerASCII(pattern[i])
		if node.children[ch] == nil {
			node.children[ch] = newACNode()
		}
		node = node.children[ch]
	}
	node.output = append(node.output, index)
}

// buildFailureLinks builds failure links using BFS.
func (m *Matcher) buildFailureLinks() {
	queue := make([]*acNode, 0, len(m.root.children))
	for _, child := range m.root.children {
		child.failure = m.root
		queue = append(queue, child)
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for ch, child := range current.children {
			queue = append(queue, child)

			// Longest proper suffix that is also a trie path
			fail := current.failure
			for fail != nil && fail.children[ch] == nil {
				fail = fail.failure
			}

			if fail == nil {
				child.failure = m.root
			} else {
				child.failure = fail.children[ch]
				child.output = append(child.output, child.failure.output...)
			}
		}
	}
}

// step advances the automaton by one input byte.
func (m *Matcher) step(node *acNode, ch byte) *acNode {
	for node != nil && node.children[ch] == nil {
		node = node.failure
	}
	if node == nil {
		return m.root
	}
	return node.children[ch]
}

// FindFirst returns the signature that completes earliest in text.
func (m *Matcher) FindFirst(text string) (string, bool) {
	if len(m.patterns) == 0 {
		return "", false
	}
	node := m.root
	for i := 0; i < len(text); i++ {
		node = m.step(node, lowerASCII(text[i]))
		if len(node.output) > 0 {
			return m.patterns[node.output[0]], true
		}
	}
	return "", false
}

// FindAll returns every signature occurrence in text.
func (m *Matcher) FindAll(text string) []Match {
	if len(m.patterns) == 0 {
		return nil
	}
	var matches []Match
	node := m.root
	for i := 0; i < len(text); i++ {
		node = m.step(node, lowerASCII(text[i]))
		for _, idx := range node.output {
			p := m.patterns[idx]
			matches = append(matches, Match{Pattern: p, Position: i - len(p) + 1})
		}
	}
	return matches
}

// Contains reports whether any signature occurs in text.
func (m *Matcher) Contains(text string) bool {
	_, ok := m.FindFirst(text)
	return ok
}

// Len returns the number of signatures.
func (m *Matcher) Len() int {
	return len(m.patterns)
}
