package service

import (
	"io"
	"sync"
)

// Progress prints single-character style progress marks on one line.
type Progress struct {
	mu sync.Mutex
	w  io.Writer
}

func NewProgress(w io.Writer) *Progress {
	return &Progress{w: w}
}

// Mark writes s as is. The empty string is skipped.
func (p *Progress) Mark(s string) {
	if s == "" || p == nil || p.w == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = io.WriteString(p.w, s)
}

// Error marks a failed request with "!".
func (p *Progress) Error(err error) {
	if err != nil {
		p.Mark("!")
	}
}
