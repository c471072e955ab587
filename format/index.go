// Copyright (c) 2024-2026 Multitech Systems, Inc.
// Author: Jason Reiss
// SPDX-License-Identifier: MIT

package format

import (
	"errors"
	"fmt"
	"strings"
)

// Index classifies raw lines to the part whose discriminator they satisfy.
// It is a radix tree over discriminator check runs: a node holds the checks
// its whole subtree shares, children refine the match, and a node with no
// check left for a part is bound to that part. The tree is never modified
// after NewIndex returns, so concurrent Classify calls need no locking.
type Index struct {
	root  *node
	parts int
}

type node struct {
	checks   []Check
	part     *Part
	children []*node
}

// NewIndex builds the classification tree for all parts of s. The first part
// in schema order becomes the root; every later part is inserted below the
// longest run of checks it shares with the tree. Two parts with identical
// discriminators are reported as *FormatError on the later part's line.
func NewIndex(s *Schema) (*Index, error) {
	parts := s.Parts()
	if len(parts) == 0 {
		return nil, errors.New("schema has no parts")
	}
	first := parts[0]
	idx := &Index{root: &node{checks: first.Discriminator, part: first}, parts: 1}
	for _, p := range parts[1:] {
		if err := idx.insert(p); err != nil {
			return nil, err
		}
		idx.parts++
	}
	return idx, nil
}

func (idx *Index) insert(p *Part) error {
	n := idx.root
	rest := p.Discriminator
	for {
		k := commonPrefix(n.checks, rest)
		if k < len(n.checks) {
			n.split(k)
		}
		rest = rest[k:]
		if len(rest) == 0 {
			if n.part != nil {
				return formatErrorf(p.Line, "part %s has the same discriminator as %s", p.ID(), n.part.ID())
			}
			n.part = p
			return nil
		}
		next := n.child(rest[0])
		if next == nil {
			n.children = append(n.children, &node{checks: rest, part: p})
			return nil
		}
		n = next
	}
}

// split keeps the first k checks in n and moves the remainder, together with
// the bound part and children, into a single new child.
func (n *node) split(k int) {
	child := &node{checks: n.checks[k:], part: n.part, children: n.children}
	n.checks = n.checks[:k:k]
	n.part = nil
	n.children = []*node{child}
}

func (n *node) child(c Check) *node {
	for _, ch := range n.children {
		if ch.checks[0] == c {
			return ch
		}
	}
	return nil
}

func (n *node) match(line []byte) bool {
	for _, c := range n.checks {
		if !c.Match(line) {
			return false
		}
	}
	return true
}

func commonPrefix(a, b []Check) int {
	k := 0
	for k < len(a) && k < len(b) && a[k] == b[k] {
		k++
	}
	return k
}

// Classify returns the part line belongs to: the part whose discriminator
// the line satisfies. A satisfied part shadows any ancestor in the tree whose
// discriminator it extends. Classify fails with *MatchError when no part is
// satisfied or when more than one remains.
func (idx *Index) Classify(line []byte) (*Part, error) {
	parts := idx.root.resolve(line, nil)
	switch len(parts) {
	case 1:
		return parts[0], nil
	case 0:
		return nil, newMatchError(line, nil)
	}
	ids := make([]string, len(parts))
	for i, p := range parts {
		ids[i] = p.ID()
	}
	return nil, newMatchError(line, ids)
}

// resolve appends to out the satisfied parts of the subtree at n. The part
// bound to n counts only when nothing below it is satisfied.
func (n *node) resolve(line []byte, out []*Part) []*Part {
	if !n.match(line) {
		return out
	}
	k := len(out)
	for _, c := range n.children {
		out = c.resolve(line, out)
	}
	if len(out) == k && n.part != nil {
		out = append(out, n.part)
	}
	return out
}

// Len returns the number of parts in the index.
func (idx *Index) Len() int { return idx.parts }

// Depth returns the length of the longest root-to-leaf path.
func (idx *Index) Depth() int { return idx.root.depth() }

func (n *node) depth() int {
	d := 0
	for _, c := range n.children {
		if cd := c.depth(); cd > d {
			d = cd
		}
	}
	return d + 1
}

// String renders the tree, one node per line.
func (idx *Index) String() string {
	var b strings.Builder
	idx.root.print(&b, 0)
	return b.String()
}

func (n *node) print(b *strings.Builder, level int) {
	b.WriteString(strings.Repeat("  ", level))
	checks := make([]string, len(n.checks))
	for i, c := range n.checks {
		checks[i] = c.String()
	}
	if len(checks) == 0 {
		b.WriteString("*")
	} else {
		b.WriteString(strings.Join(checks, " "))
	}
	if n.part != nil {
		fmt.Fprintf(b, " -> %s", n.part.ID())
	}
	b.WriteByte('\n')
	for _, c := range n.children {
		c.print(b, level+1)
	}
}
