// Package graph holds the question order of a survey as a singly-linked chain
// of question ids.
//
// Mutations are applied to a Chain that was copied from the persisted
// pointers. Once the staged chain validates, the caller commits the changed
// pointers in one transaction, so readers never observe a half-relinked graph.
package graph

import (
	"errors"
	"fmt"

	"github.com/paulexconde/surveyrun/internal/models"
)

var (
	ErrCycle    = errors.New("question graph has a cycle")
	ErrDangling = errors.New("question graph has a dangling pointer")
	ErrDetached = errors.New("question graph has an unreachable question")
	ErrBadTail  = errors.New("question graph last pointer is not the tail")
	ErrUnknown  = errors.New("question is not part of the graph")
)

// Chain is an arena of question ids keyed by id, plus the head and tail
// pointers of the survey.
type Chain struct {
	First string
	Last  string
	next  map[string]string
}

// New builds a chain from raw pointers. next must contain every member, with
// an empty value for the tail.
func New(first, last string, next map[string]string) *Chain {
	c := &Chain{First: first, Last: last, next: make(map[string]string, len(next))}
	for id, n := range next {
		c.next[id] = n
	}
	return c
}

// FromQuestions builds a chain from a survey and its question rows. The rows
// may come in any order.
func FromQuestions(s *models.Survey, questions []*models.Question) *Chain {
	next := make(map[string]string, len(questions))
	for _, q := range questions {
		next[q.ID] = q.NextID
	}
	return New(s.FirstQuestionID, s.LastQuestionID, next)
}

// Clone returns an independent copy.
func (c *Chain) Clone() *Chain {
	return New(c.First, c.Last, c.next)
}

func (c *Chain) Len() int {
	return len(c.next)
}

func (c *Chain) Contains(id string) bool {
	_, ok := c.next[id]
	return ok
}

// Next returns the successor of id, empty at the end.
func (c *Chain) Next(id string) string {
	return c.next[id]
}

// Prev returns the unique predecessor of id, empty for the head.
func (c *Chain) Prev(id string) string {
	for member, n := range c.next {
		if n == id {
			return member
		}
	}
	return ""
}

// Append links id after the current tail.
func (c *Chain) Append(id string) {
	if c.Contains(id) {
		panic(fmt.Sprintf("graph: %s appended twice", id))
	}
	c.next[id] = ""
	if c.First == "" {
		c.First = id
		c.Last = id
		return
	}
	c.next[c.Last] = id
	c.Last = id
}

// Remove splices id out of the chain.
func (c *Chain) Remove(id string) error {
	if !c.Contains(id) {
		return ErrUnknown
	}
	prev := c.Prev(id)
	after := c.next[id]

	if c.First == id {
		c.First = after
	} else {
		c.next[prev] = after
	}
	if c.Last == id {
		c.Last = prev
	}
	delete(c.next, id)
	return nil
}

// MoveUp swaps id with its predecessor. It reports false when id is already
// the head.
func (c *Chain) MoveUp(id string) (bool, error) {
	if !c.Contains(id) {
		return false, ErrUnknown
	}
	if c.First == id {
		return false, nil
	}
	prev := c.Prev(id)
	prevPrev := c.Prev(prev)
	after := c.next[id]

	if prevPrev != "" {
		c.next[prevPrev] = id
	}
	c.next[prev] = after
	c.next[id] = prev
	if c.First == prev {
		c.First = id
	}
	if c.Last == id {
		c.Last = prev
	}
	return true, nil
}

// MoveDown swaps id with its successor. It reports false when id is already
// the tail.
func (c *Chain) MoveDown(id string) (bool, error) {
	if !c.Contains(id) {
		return false, ErrUnknown
	}
	after := c.next[id]
	if after == "" {
		return false, nil
	}
	prev := c.Prev(id)

	if prev != "" {
		c.next[prev] = after
	}
	c.next[id] = c.next[after]
	c.next[after] = id
	if c.First == id {
		c.First = after
	}
	if c.Last == after {
		c.Last = id
	}
	return true, nil
}

// Validate checks that the chain is a single acyclic path from First to Last
// covering every member.
func (c *Chain) Validate() error {
	if c.First == "" || c.Last == "" {
		if c.First != c.Last {
			return fmt.Errorf("%w: first=%q last=%q", ErrBadTail, c.First, c.Last)
		}
		if len(c.next) != 0 {
			return ErrDetached
		}
		return nil
	}

	seen := make(map[string]bool, len(c.next))
	tail := ""
	for cur := c.First; cur != ""; cur = c.next[cur] {
		if _, ok := c.next[cur]; !ok {
			return fmt.Errorf("%w: %s", ErrDangling, cur)
		}
		if seen[cur] {
			return fmt.Errorf("%w at %s", ErrCycle, cur)
		}
		seen[cur] = true
		tail = cur
	}
	if tail != c.Last {
		return fmt.Errorf("%w: walked to %s, last is %s", ErrBadTail, tail, c.Last)
	}
	if len(seen) != len(c.next) {
		return fmt.Errorf("%w: %d of %d reachable", ErrDetached, len(seen), len(c.next))
	}
	return nil
}

// Order walks the chain from First. A chain that fails validation means the
// graph invariant was broken, which is a programming error.
func (c *Chain) Order() []string {
	if err := c.Validate(); err != nil {
		panic(fmt.Sprintf("graph: %v", err))
	}
	out := make([]string, 0, len(c.next))
	for cur := c.First; cur != ""; cur = c.next[cur] {
		out = append(out, cur)
	}
	return out
}

// Changes lists the members whose next pointer differs from base, and whether
// the head or tail moved. Members that only exist in c are included.
func (c *Chain) Changes(base *Chain) (changed map[string]string, headOrTail bool) {
	changed = make(map[string]string)
	for id, n := range c.next {
		if old, ok := base.next[id]; !ok || old != n {
			changed[id] = n
		}
	}
	return changed, c.First != base.First || c.Last != base.Last
}
