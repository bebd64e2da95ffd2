package pacer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenDispenserGetPut(t *testing.T) {
	td := NewTokenDispenser(2)
	assert.Equal(t, 2, len(td.tokens))
	td.Get()
	assert.Equal(t, 1, len(td.tokens))
	td.Get()
	assert.Equal(t, 0, len(td.tokens))
	td.Put()
	assert.Equal(t, 1, len(td.tokens))
}

func TestTokenDispenserUnlimited(t *testing.T) {
	td := NewTokenDispenser(0)
	assert.Nil(t, td.tokens)
	td.Get()
	td.Put()
}
