package overlay

import (
	"context"
	"fmt"
	"sync"
)

// MemorySurface is an in-process Surface that keeps the mounted tree in
// memory. It serves hosts without a DOM and lets callers inspect exactly
// what a browser would have received.
type MemorySurface struct {
	mu     sync.Mutex
	root   *Node
	mounts int
}

func NewMemorySurface() *MemorySurface {
	return &MemorySurface{}
}

func (s *MemorySurface) Mount(_ context.Context, root *Node) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.root != nil && s.root.Find(root.ID()) != nil {
		return false, nil
	}
	s.root = root
	s.mounts++
	return true, nil
}

func (s *MemorySurface) ReplaceChildren(_ context.Context, id string, children []*Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.find(id)
	if err != nil {
		return err
	}
	n.Text = ""
	n.Children = children
	return nil
}

func (s *MemorySurface) SetStyle(_ context.Context, id string, style Style) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.find(id)
	if err != nil {
		return err
	}
	n.Style = style
	return nil
}

func (s *MemorySurface) SetText(_ context.Context, id, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.find(id)
	if err != nil {
		return err
	}
	n.Text = text
	n.Children = nil
	return nil
}

// Root returns the mounted tree, or nil.
func (s *MemorySurface) Root() *Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}

// Mounts counts successful mounts.
func (s *MemorySurface) Mounts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mounts
}

func (s *MemorySurface) find(id string) (*Node, error) {
	n := s.root.Find(id)
	if n == nil {
		return nil, fmt.Errorf("element %q not found", id)
	}
	return n, nil
}
