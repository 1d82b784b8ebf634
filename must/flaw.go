package must

import (
	"errors"
	"fmt"

	"github.com/xeptore/flaw/v8"
)

// BeFlaw panics unless err wraps a *flaw.Flaw.
func BeFlaw(err error) *flaw.Flaw {
	if f := new(flaw.Flaw); errors.As(err, &f) {
		return f
	}
	panic(fmt.Sprintf("expected error to be of type *flaw.Flaw, got error of type %T: %v", err, err))
}

// NotEmpty panics when s is empty. name is used in the panic message.
func NotEmpty(name, s string) string {
	if s == "" {
		panic(name + " must not be empty")
	}
	return s
}
