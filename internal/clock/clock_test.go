package clock

import (
	"testing"
	"time"
)

func TestFuncNow(t *testing.T) {
	t.Parallel()

	want := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var c Clock = Func(func() time.Time { return want })
	if got := c.Now(); !got.Equal(want) {
		t.Fatalf("Now() = %v, want %v", got, want)
	}
}
