package s3

import (
	"testing"
	"time"
)

func TestObjectKeyIsDatePartitioned(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 23, 30, 0, 0, time.FixedZone("EST", -5*3600))
	got := objectKey("recordings", "abc.wav", at)
	if got != "recordings/2026/03/02/abc.wav" {
		t.Fatalf("unexpected key %q", got)
	}
}
