package service

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressMarks(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf)

	p.Mark("Error Retrying ")
	p.Mark("")
	p.Error(nil)
	p.Error(errors.New("boom"))
	p.Mark(" RL Wait21s ")

	assert.Equal(t, "Error Retrying ! RL Wait21s ", buf.String())
}

func TestNilProgressIsSilent(t *testing.T) {
	var p *Progress
	assert.NotPanics(t, func() { p.Error(errors.New("boom")) })
}
