package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/traininjapan/booking-api/internal/models"
	appErrors "github.com/traininjapan/booking-api/pkg/errors"
	"github.com/traininjapan/booking-api/pkg/export"
)

const defaultExportMaxRows = 5000

type sessionLister interface {
	ListByCourse(ctx context.Context, filter models.SessionFilter) ([]models.CourseSession, error)
}

type sessionBookingLister interface {
	ListBySession(ctx context.Context, sessionID string) ([]models.Booking, error)
}

// ExportResult is a rendered roster ready to be streamed.
type ExportResult struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders a course's session roster as CSV or PDF.
type ExportService struct {
	courses  courseFinder
	sessions sessionLister
	bookings sessionBookingLister
	maxRows  int
	logger   *zap.Logger
	now      func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(courses courseFinder, sessions sessionLister, bookings sessionBookingLister, maxRows int, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRows <= 0 {
		maxRows = defaultExportMaxRows
	}
	return &ExportService{
		courses:  courses,
		sessions: sessions,
		bookings: bookings,
		maxRows:  maxRows,
		logger:   logger,
		now:      time.Now,
	}
}

var rosterHeaders = []string{"Date", "Start", "End", "Status", "Enrolled", "Capacity", "Booking", "Student", "Email", "Booking Status"}

// SessionRoster lists every session of a course with the students holding a seat in it. Sessions
// without bookings still get one row.
func (s *ExportService) SessionRoster(ctx context.Context, courseID string, format export.Format, actor *models.JWTClaims) (*ExportResult, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	renderer, err := export.NewRenderer(format)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	course, err := s.courses.FindByID(ctx, nil, courseID)
	if err != nil {
		return nil, mapCourseLoadError(err)
	}
	if err := requireSchoolOwner(actor, course.SchoolID, "courses"); err != nil {
		return nil, err
	}
	sessions, err := s.sessions.ListByCourse(ctx, models.SessionFilter{CourseID: courseID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}

	rows := make([]map[string]string, 0, len(sessions))
	for _, session := range sessions {
		base := map[string]string{
			"Date":     session.Date,
			"Start":    session.StartTime,
			"End":      session.EndTime,
			"Status":   string(session.Status),
			"Enrolled": strconv.Itoa(session.CurrentEnrollment),
			"Capacity": strconv.Itoa(session.MaxCapacity),
		}
		bookings, err := s.bookings.ListBySession(ctx, session.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list session bookings")
		}
		if len(bookings) == 0 {
			rows = append(rows, base)
		}
		for _, b := range bookings {
			row := make(map[string]string, len(rosterHeaders))
			for k, v := range base {
				row[k] = v
			}
			row["Booking"] = b.ID
			row["Student"] = b.StudentName
			row["Email"] = b.StudentEmail
			row["Booking Status"] = string(b.Status)
			rows = append(rows, row)
		}
		if len(rows) > s.maxRows {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("roster exceeds the export limit of %d rows", s.maxRows))
		}
	}

	payload, err := renderer.Render(export.Dataset{
		Title:   course.Title + " - session roster",
		Headers: rosterHeaders,
		Rows:    rows,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}
	s.logger.Info("session roster exported",
		zap.String("course_id", courseID),
		zap.String("format", renderer.Extension()),
		zap.Int("rows", len(rows)))
	return &ExportResult{
		Filename:    rosterFilename(course, s.now(), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Payload:     payload,
	}, nil
}

func rosterFilename(course *models.Course, at time.Time, ext string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, course.Title)
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = course.ID
	}
	return fmt.Sprintf("roster-%s-%s.%s", slug, at.UTC().Format("20060102"), ext)
}
