package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeLikePattern(t *testing.T) {
	assert.Equal(t, "100!% organic", EscapeLikePattern("100% organic"))
	assert.Equal(t, "pest!_control", EscapeLikePattern("pest_control"))
	assert.Equal(t, "wow!!", EscapeLikePattern("wow!"))
}

func TestContainsAny(t *testing.T) {
	cond, params := ContainsAny([]string{"title", "bad column"}, []string{"Rice", " ", "blast"})
	assert.Equal(t, "(LOWER(title) LIKE ? ESCAPE '!' OR LOWER(title) LIKE ? ESCAPE '!')", cond)
	assert.Equal(t, []interface{}{"%rice%", "%blast%"}, params)

	cond, params = ContainsAny([]string{"title"}, nil)
	assert.Empty(t, cond)
	assert.Nil(t, params)
}

func TestValidateIdentifier(t *testing.T) {
	assert.NoError(t, ValidateIdentifier("summary"))
	assert.Error(t, ValidateIdentifier(""))
	assert.Error(t, ValidateIdentifier("Title"))
	assert.Error(t, ValidateIdentifier("title; drop"))
}
