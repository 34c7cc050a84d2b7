package service

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atz-edu/enroll-api/internal/models"
	appErrors "github.com/atz-edu/enroll-api/pkg/errors"
	"github.com/atz-edu/enroll-api/pkg/spreadsheet"
)

// fieldColumns maps editable row field names onto template columns.
var fieldColumns = map[string]string{
	"full_name":        spreadsheet.ColFullName,
	"email":            spreadsheet.ColEmail,
	"phone":            spreadsheet.ColPhone,
	"country":          spreadsheet.ColCountry,
	"passport_id":      spreadsheet.ColPassportID,
	"address":          spreadsheet.ColAddress,
	"course_title":     spreadsheet.ColCourse,
	"batch_id":         spreadsheet.ColBatch,
	"join_date":        spreadsheet.ColJoinDate,
	"class_start_date": spreadsheet.ColClassStartDate,
	"status":           spreadsheet.ColStatus,
	"total_course_fee": spreadsheet.ColTotalFee,
	"referred_by":      spreadsheet.ColReferredBy,
	"referral_amount":  spreadsheet.ColReferralAmount,
	"advance_amount":   spreadsheet.ColAdvanceAmount,
	"advance_mode":     spreadsheet.ColAdvanceMode,
	"advance_date":     spreadsheet.ColAdvanceDate,
	"second_amount":    spreadsheet.ColSecondAmount,
	"second_mode":      spreadsheet.ColSecondMode,
	"second_date":      spreadsheet.ColSecondDate,
	"third_amount":     spreadsheet.ColThirdAmount,
	"third_mode":       spreadsheet.ColThirdMode,
	"third_date":       spreadsheet.ColThirdDate,
	"final_amount":     spreadsheet.ColFinalAmount,
	"final_mode":       spreadsheet.ColFinalMode,
	"final_date":       spreadsheet.ColFinalDate,
}

// StagedRow pairs a parsed row with its current validation state.
type StagedRow struct {
	Row    models.EnrollmentRow `json:"row"`
	Errors []models.FieldError  `json:"errors,omitempty"`
}

// stagingSession holds one uploaded batch under operator review. Single
// editor, in memory only; a lost session just means re-uploading the file.
type stagingSession struct {
	id         string
	rows       []StagedRow
	normalizer *Normalizer
	createdAt  time.Time
}

// SessionView is the operator-facing snapshot of a staging session.
type SessionView struct {
	ID        string           `json:"id"`
	Rows      []StagedRow      `json:"rows"`
	Readiness models.Readiness `json:"readiness"`
	CreatedAt time.Time        `json:"created_at"`
}

// StagingService keeps active staging sessions keyed by ID.
type StagingService struct {
	mu       sync.Mutex
	sessions map[string]*stagingSession
	ttl      time.Duration
	logger   *zap.Logger
}

// NewStagingService constructs a StagingService.
func NewStagingService(ttl time.Duration, logger *zap.Logger) *StagingService {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StagingService{sessions: make(map[string]*stagingSession), ttl: ttl, logger: logger}
}

// Create normalizes the raw rows and opens a new session over them.
func (s *StagingService) Create(raws []models.RawRow, normalizer *Normalizer) *SessionView {
	rows := make([]StagedRow, 0, len(raws))
	for i, raw := range raws {
		row, errs := normalizer.Normalize(raw, i+1)
		rows = append(rows, StagedRow{Row: row, Errors: errs})
	}

	session := &stagingSession{
		id:         uuid.NewString(),
		rows:       rows,
		normalizer: normalizer,
		createdAt:  time.Now().UTC(),
	}

	s.mu.Lock()
	s.purgeExpiredLocked()
	s.sessions[session.id] = session
	s.mu.Unlock()

	s.logger.Info("staging session created", zap.String("session_id", session.id), zap.Int("rows", len(rows)))
	return s.view(session)
}

// Get returns the current snapshot of a session.
func (s *StagingService) Get(id string) (*SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.lookupLocked(id)
	if err != nil {
		return nil, err
	}
	return s.view(session), nil
}

// Edit sets one field on one row and re-validates that row. The edit is
// applied to the raw cell so revalidation runs the same path as parsing.
func (s *StagingService) Edit(id string, rowIndex int, field, value string) ([]models.FieldError, error) {
	column, ok := fieldColumns[strings.ToLower(strings.TrimSpace(field))]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown field "+field)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.lookupLocked(id)
	if err != nil {
		return nil, err
	}
	if rowIndex < 0 || rowIndex >= len(session.rows) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "row index out of range")
	}

	raw := session.rows[rowIndex].Row.Raw
	if raw == nil {
		raw = models.RawRow{}
	}
	raw[column] = value

	row, errs := session.normalizer.Normalize(raw, rowIndex+1)
	session.rows[rowIndex] = StagedRow{Row: row, Errors: errs}
	return errs, nil
}

// Readiness reports aggregate validation state for a session.
func (s *StagingService) Readiness(id string) (models.Readiness, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.lookupLocked(id)
	if err != nil {
		return models.Readiness{}, err
	}
	return readiness(session.rows), nil
}

// Rows returns the current typed rows of a session for committing. The
// session stays open until Close so a failed commit can be retried.
func (s *StagingService) Rows(id string) ([]models.EnrollmentRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.lookupLocked(id)
	if err != nil {
		return nil, err
	}
	rows := make([]models.EnrollmentRow, len(session.rows))
	for i, staged := range session.rows {
		rows[i] = staged.Row
	}
	return rows, nil
}

// Close discards a session after a successful commit.
func (s *StagingService) Close(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

func (s *StagingService) lookupLocked(id string) (*stagingSession, error) {
	s.purgeExpiredLocked()
	session, ok := s.sessions[id]
	if !ok {
		return nil, appErrors.ErrSessionNotFound
	}
	return session, nil
}

func (s *StagingService) purgeExpiredLocked() {
	cutoff := time.Now().UTC().Add(-s.ttl)
	for id, session := range s.sessions {
		if session.createdAt.Before(cutoff) {
			delete(s.sessions, id)
		}
	}
}

func (s *StagingService) view(session *stagingSession) *SessionView {
	rows := make([]StagedRow, len(session.rows))
	copy(rows, session.rows)
	return &SessionView{
		ID:        session.id,
		Rows:      rows,
		Readiness: readiness(session.rows),
		CreatedAt: session.createdAt,
	}
}

func readiness(rows []StagedRow) models.Readiness {
	r := models.Readiness{Total: len(rows)}
	for _, staged := range rows {
		if len(staged.Errors) > 0 {
			r.ErrorCount++
		} else {
			r.ReadyCount++
		}
	}
	return r
}
