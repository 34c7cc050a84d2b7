package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

type codeLister interface {
	ListCodesByPrefix(ctx context.Context, prefix string) ([]string, error)
}

// CodeAllocator hands out year-scoped sequential, zero-padded codes by
// scanning existing codes for the highest numeric suffix. Allocation is
// read-then-write with no atomicity guarantee; callers must serialize
// allocate-and-write within a scope (the import pipeline commits rows
// strictly sequentially for this reason).
type CodeAllocator struct {
	studentPrefix string
	studentWidth  int
	referralWidth int
	students      codeLister
	referrals     codeLister
	now           func() time.Time
	logger        *zap.Logger
}

// NewCodeAllocator constructs a CodeAllocator.
func NewCodeAllocator(students, referrals codeLister, studentPrefix string, studentWidth, referralWidth int, logger *zap.Logger) *CodeAllocator {
	if studentPrefix == "" {
		studentPrefix = "ATZ"
	}
	if studentWidth <= 0 {
		studentWidth = 3
	}
	if referralWidth <= 0 {
		referralWidth = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CodeAllocator{
		studentPrefix: studentPrefix,
		studentWidth:  studentWidth,
		referralWidth: referralWidth,
		students:      students,
		referrals:     referrals,
		now:           time.Now,
		logger:        logger,
	}
}

// NextStudentCode allocates the next student code within the current
// calendar year scope, e.g. ATZ-2025-017.
func (a *CodeAllocator) NextStudentCode(ctx context.Context) string {
	prefix := fmt.Sprintf("%s-%d-", a.studentPrefix, a.now().UTC().Year())
	return a.next(ctx, a.students, prefix, a.studentWidth)
}

// NextReferralCode allocates the next referral code, e.g. REF-004.
func (a *CodeAllocator) NextReferralCode(ctx context.Context) string {
	return a.next(ctx, a.referrals, "REF-", a.referralWidth)
}

// next never fails: on a storage error it falls back to a
// timestamp-derived suffix so the row can still be committed.
func (a *CodeAllocator) next(ctx context.Context, lister codeLister, prefix string, width int) string {
	codes, err := lister.ListCodesByPrefix(ctx, prefix)
	if err != nil {
		a.logger.Warn("code allocation failed, using timestamp suffix", zap.String("prefix", prefix), zap.Error(err))
		return fmt.Sprintf("%s%d", prefix, a.now().UTC().UnixNano())
	}

	max := 0
	for _, code := range codes {
		if !strings.HasPrefix(code, prefix) {
			continue
		}
		if n, err := strconv.Atoi(code[len(prefix):]); err == nil && n > max {
			max = n
		}
	}

	return fmt.Sprintf("%s%0*d", prefix, width, max+1)
}
