package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMakeErrorWrapsAndFormats(t *testing.T) {
	sentinel := errors.New("broken ELF")
	err := MakeError(sentinel, "opening %s", "test.o")

	assert.True(t, errors.Is(err, sentinel))
	assert.Equal(t, "broken ELF: opening test.o", err.Error())
}
