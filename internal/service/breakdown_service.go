package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atz-edu/enroll-api/internal/models"
	appErrors "github.com/atz-edu/enroll-api/pkg/errors"
)

type breakdownStudentStore interface {
	ListForBreakdown(ctx context.Context, status models.StudentStatus, studentID string) ([]models.StudentDetail, error)
}

type breakdownLedgerStore interface {
	ListLedgerEntries(ctx context.Context, filter models.LedgerFilter) ([]models.PaymentLedgerEntry, error)
}

type breakdownRecorder interface {
	ObserveBreakdown(duration time.Duration, cacheHit bool)
}

type breakdownCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

const breakdownCachePrefix = "breakdown:"

// BreakdownService computes the per-student payment breakdown: ledger
// entries partitioned into stage columns with an outstanding balance
// per student. It is a pure read path; results are cached briefly and
// invalidated on any write that touches students or payments.
type BreakdownService struct {
	students breakdownStudentStore
	ledger   breakdownLedgerStore
	cache    breakdownCache
	cacheTTL time.Duration
	metrics  breakdownRecorder
	logger   *zap.Logger
}

// SetMetrics attaches an optional metrics recorder.
func (s *BreakdownService) SetMetrics(m breakdownRecorder) {
	s.metrics = m
}

// NewBreakdownService constructs a BreakdownService. cache may be nil.
func NewBreakdownService(students breakdownStudentStore, ledger breakdownLedgerStore, cache breakdownCache, cacheTTL time.Duration, logger *zap.Logger) *BreakdownService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BreakdownService{students: students, ledger: ledger, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// Compute builds the breakdown for the filter. Totals are recomputed
// over the filtered set on every call.
func (s *BreakdownService) Compute(ctx context.Context, filter models.BreakdownFilter) (*models.Breakdown, error) {
	if filter.Month != 0 && (filter.Month < 1 || filter.Month > 12) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "month must be between 1 and 12")
	}

	start := time.Now()
	key := cacheKey(filter)
	if s.cache != nil {
		var cached models.Breakdown
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			if s.metrics != nil {
				s.metrics.ObserveBreakdown(time.Since(start), true)
			}
			return &cached, nil
		}
	}

	from, to := dateWindow(filter)
	students, err := s.students.ListForBreakdown(ctx, filter.Status, filter.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, "BREAKDOWN_FAILED", 500, "failed to load students")
	}
	entries, err := s.ledger.ListLedgerEntries(ctx, models.LedgerFilter{From: from, To: to})
	if err != nil {
		return nil, appErrors.Wrap(err, "BREAKDOWN_FAILED", 500, "failed to load ledger")
	}

	byStudent := make(map[string][]models.PaymentLedgerEntry)
	for _, e := range entries {
		byStudent[e.StudentID] = append(byStudent[e.StudentID], e)
	}

	rows := make([]models.StudentBreakdownRow, 0, len(students))
	for _, student := range students {
		row := aggregateStudent(student, byStudent[student.ID])
		if filter.Stage != "" && !hasStage(byStudent[student.ID], filter.Stage) {
			continue
		}
		rows = append(rows, row)
	}

	sortRows(rows, filter.SortBy, filter.SortOrder)
	for i := range rows {
		rows[i].Seq = i + 1
	}

	result := &models.Breakdown{
		Rows:        rows,
		Totals:      computeTotals(rows),
		GeneratedAt: time.Now().UTC(),
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, result, s.cacheTTL); err != nil {
			s.logger.Warn("breakdown cache write failed", zap.Error(err))
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveBreakdown(time.Since(start), false)
	}
	return result, nil
}

// Invalidate drops every cached breakdown. Called after imports and
// payment writes.
func (s *BreakdownService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, breakdownCachePrefix+"*"); err != nil {
		s.logger.Warn("breakdown cache invalidation failed", zap.Error(err))
	}
}

// aggregateStudent partitions a student's entries into the fixed stage
// columns. The first entry per fixed stage fills its column; everything
// else, including Third and repeat payments, lands in Other.
func aggregateStudent(student models.StudentDetail, entries []models.PaymentLedgerEntry) models.StudentBreakdownRow {
	row := models.StudentBreakdownRow{
		StudentID:      student.ID,
		StudentCode:    student.Code,
		FullName:       student.FullName,
		Status:         student.Status,
		TotalCourseFee: student.TotalCourseFee,
	}
	if student.CourseTitle != nil {
		row.CourseTitle = *student.CourseTitle
	}

	var paid float64
	var otherDates []string
	for _, e := range entries {
		paid += e.Amount
		if row.LastPaymentAt == nil || e.PaymentDate.After(*row.LastPaymentAt) {
			d := e.PaymentDate
			row.LastPaymentAt = &d
		}

		cell := stageCellFor(&row, e.Stage)
		if cell != nil && cell.Date == nil && cell.Amount == 0 {
			d := e.PaymentDate
			*cell = models.StageCell{Amount: e.Amount, Mode: e.PaymentMode, Date: &d}
			continue
		}
		row.Other.Amount += e.Amount
		otherDates = append(otherDates, e.PaymentDate.Format("02/01/2006"))
	}

	row.Other.Dates = strings.Join(otherDates, ", ")
	row.Paid = paid
	row.Balance = student.TotalCourseFee - paid
	return row
}

// stageCellFor maps a ledger stage onto its fixed column, or nil when
// the entry belongs in Other.
func stageCellFor(row *models.StudentBreakdownRow, stage models.PaymentStage) *models.StageCell {
	parsed, _ := models.ParsePaymentStage(string(stage))
	switch parsed {
	case models.PaymentStageAdvance:
		return &row.Advance
	case models.PaymentStageSecond:
		return &row.Second
	case models.PaymentStageFinal:
		return &row.Final
	default:
		return nil
	}
}

// stageColumn maps a raw stage label onto the column it is displayed
// under. Anything outside the fixed columns lands in Other.
func stageColumn(raw string) models.PaymentStage {
	switch s, _ := models.ParsePaymentStage(raw); s {
	case models.PaymentStageAdvance, models.PaymentStageSecond, models.PaymentStageFinal:
		return s
	default:
		return models.PaymentStageOther
	}
}

func hasStage(entries []models.PaymentLedgerEntry, stage string) bool {
	want := stageColumn(stage)
	for _, e := range entries {
		if stageColumn(string(e.Stage)) == want {
			return true
		}
	}
	return false
}

func sortRows(rows []models.StudentBreakdownRow, by models.BreakdownSort, order string) {
	desc := strings.EqualFold(order, "desc")
	sort.SliceStable(rows, func(i, j int) bool {
		var less bool
		switch by {
		case models.BreakdownSortStatus:
			less = rows[i].Status < rows[j].Status
		default:
			// rows without payments sort last regardless of direction
			switch {
			case rows[i].LastPaymentAt == nil:
				return false
			case rows[j].LastPaymentAt == nil:
				return true
			default:
				less = rows[i].LastPaymentAt.Before(*rows[j].LastPaymentAt)
			}
		}
		if desc {
			return !less
		}
		return less
	})
}

func computeTotals(rows []models.StudentBreakdownRow) models.BreakdownTotals {
	totals := models.BreakdownTotals{Students: len(rows)}
	for _, r := range rows {
		totals.CourseFees += r.TotalCourseFee
		totals.AdvanceTotal += r.Advance.Amount
		totals.SecondTotal += r.Second.Amount
		totals.FinalTotal += r.Final.Amount
		totals.OtherTotal += r.Other.Amount
		totals.PaidTotal += r.Paid
		totals.BalanceTotal += r.Balance
	}
	return totals
}

// dateWindow resolves the filter's date constraints into a single
// range. Month/year take precedence over an explicit range.
func dateWindow(filter models.BreakdownFilter) (*time.Time, *time.Time) {
	if filter.Year != 0 {
		month := time.Month(1)
		months := 12
		if filter.Month != 0 {
			month = time.Month(filter.Month)
			months = 1
		}
		from := time.Date(filter.Year, month, 1, 0, 0, 0, 0, time.UTC)
		to := from.AddDate(0, months, 0).Add(-time.Nanosecond)
		return &from, &to
	}
	return filter.From, filter.To
}

func cacheKey(filter models.BreakdownFilter) string {
	fmtTime := func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("2006-01-02")
	}
	return fmt.Sprintf("%s%s|%s|%d-%d|%s|%s|%s|%s|%s",
		breakdownCachePrefix,
		fmtTime(filter.From), fmtTime(filter.To),
		filter.Year, filter.Month,
		filter.Stage, filter.Status, filter.StudentID,
		filter.SortBy, filter.SortOrder)
}
