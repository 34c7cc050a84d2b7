package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCodeLister struct {
	codes []string
	err   error
}

func (s *stubCodeLister) ListCodesByPrefix(_ context.Context, _ string) ([]string, error) {
	return s.codes, s.err
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestCodeAllocatorNextStudentCode(t *testing.T) {
	students := &stubCodeLister{codes: []string{"ATZ-2025-001", "ATZ-2025-017", "ATZ-2025-009"}}
	alloc := NewCodeAllocator(students, &stubCodeLister{}, "ATZ", 3, 3, nil)
	alloc.now = fixedClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))

	code := alloc.NextStudentCode(context.Background())
	assert.Equal(t, "ATZ-2025-018", code)
}

func TestCodeAllocatorEmptyScope(t *testing.T) {
	alloc := NewCodeAllocator(&stubCodeLister{}, &stubCodeLister{}, "ATZ", 3, 3, nil)
	alloc.now = fixedClock(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, "ATZ-2025-001", alloc.NextStudentCode(context.Background()))
	assert.Equal(t, "REF-001", alloc.NextReferralCode(context.Background()))
}

func TestCodeAllocatorSequentialAllocations(t *testing.T) {
	students := &stubCodeLister{}
	alloc := NewCodeAllocator(students, &stubCodeLister{}, "ATZ", 3, 3, nil)
	alloc.now = fixedClock(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))

	var prev int
	for i := 0; i < 5; i++ {
		code := alloc.NextStudentCode(context.Background())
		var year, n int
		_, err := fmt.Sscanf(code, "ATZ-%d-%d", &year, &n)
		require.NoError(t, err)
		assert.Equal(t, prev+1, n, "suffixes must be gapless and strictly increasing")
		prev = n
		students.codes = append(students.codes, code)
	}
}

func TestCodeAllocatorTimestampFallback(t *testing.T) {
	students := &stubCodeLister{err: errors.New("connection reset")}
	alloc := NewCodeAllocator(students, &stubCodeLister{}, "ATZ", 3, 3, nil)
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	alloc.now = fixedClock(at)

	code := alloc.NextStudentCode(context.Background())
	assert.Equal(t, fmt.Sprintf("ATZ-2025-%d", at.UnixNano()), code)
}

func TestCodeAllocatorIgnoresMalformedSuffixes(t *testing.T) {
	students := &stubCodeLister{codes: []string{"ATZ-2025-003", "ATZ-2025-legacy", "ATZ-2025-"}}
	alloc := NewCodeAllocator(students, &stubCodeLister{}, "ATZ", 3, 3, nil)
	alloc.now = fixedClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, "ATZ-2025-004", alloc.NextStudentCode(context.Background()))
}
