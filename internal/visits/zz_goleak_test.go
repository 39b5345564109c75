package visits

import (
	"testing"

	"go.uber.org/goleak"
)

// The engine is synchronous, so any goroutine outliving a test points
// at a leaked helper in a fake store or an unfinished context.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
