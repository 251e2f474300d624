// Package assert panics on violated invariants of generated values
package assert

import (
	"fmt"
)

// Length panics unless value has exactly expected bytes; what names the value
func Length(what, value string, expected int) {
	if len(value) != expected {
		panic(fmt.Sprintf("assert.Length %s: expected %d actual %d", what, expected, len(value)))
	}
}
