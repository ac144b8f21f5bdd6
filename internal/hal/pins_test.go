package hal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPinsValid(t *testing.T) {
	assert.NoError(t, DefaultPins.Validate())
}

func TestPinsValidateDuplicate(t *testing.T) {
	p := DefaultPins
	p.Pump = p.Buzzer

	err := p.Validate()
	assert.ErrorContains(t, err, "already used by pump")
}

func TestPinsValidateNegative(t *testing.T) {
	p := DefaultPins
	p.Echo = -1

	err := p.Validate()
	assert.ErrorContains(t, err, "pin echo: negative offset -1")
}
