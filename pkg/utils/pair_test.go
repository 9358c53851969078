package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPairDecomposeAndString(t *testing.T) {
	p := MakePair("offset", 42)
	first, second := p.Decompose()
	assert.Equal(t, "offset", first)
	assert.Equal(t, 42, second)
	assert.Equal(t, "(offset, 42)", p.String())
}
