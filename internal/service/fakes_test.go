package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/traininjapan/booking-api/internal/models"
)

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

func noLock(ctx context.Context, exec sqlx.ExtContext, key string) error { return nil }

func studentActor(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleStudent, Email: id + "@example.com"}
}

func schoolActor(schoolID string) *models.JWTClaims {
	return &models.JWTClaims{UserID: "owner-" + schoolID, Role: models.RoleSchool, SchoolID: schoolID, Email: "owner@" + schoolID + ".jp"}
}

func adminActor() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin, Email: "admin@example.com"}
}

type fakeCourseRepo struct {
	mu      sync.Mutex
	courses map[string]models.Course
	status  map[string]models.CourseStatus
	deleted []string
	created []models.Course
	updated []models.Course
}

func newFakeCourseRepo(courses ...models.Course) *fakeCourseRepo {
	repo := &fakeCourseRepo{courses: map[string]models.Course{}, status: map[string]models.CourseStatus{}}
	for _, c := range courses {
		repo.courses[c.ID] = c
	}
	return repo
}

func (f *fakeCourseRepo) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Course
	for _, c := range f.courses {
		if filter.SchoolID != "" && c.SchoolID != filter.SchoolID {
			continue
		}
		if !c.Status.Bookable() {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (f *fakeCourseRepo) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (f *fakeCourseRepo) CountBySchool(ctx context.Context, exec sqlx.ExtContext, schoolID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.courses {
		if c.SchoolID == schoolID {
			n++
		}
	}
	return n, nil
}

func (f *fakeCourseRepo) Create(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if course.ID == "" {
		course.ID = fmt.Sprintf("course-%d", len(f.courses)+1)
	}
	f.courses[course.ID] = *course
	f.created = append(f.created, *course)
	return nil
}

func (f *fakeCourseRepo) Update(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.courses[course.ID]; !ok {
		return sql.ErrNoRows
	}
	f.courses[course.ID] = *course
	f.updated = append(f.updated, *course)
	return nil
}

func (f *fakeCourseRepo) UpdateStatus(ctx context.Context, id string, status models.CourseStatus, instructorConfirmed bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.courses[id]
	if !ok {
		return sql.ErrNoRows
	}
	c.Status = status
	c.InstructorConfirmed = instructorConfirmed
	f.courses[id] = c
	f.status[id] = status
	return nil
}

func (f *fakeCourseRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.courses[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.courses, id)
	f.deleted = append(f.deleted, id)
	return nil
}

// ListOverlapping mirrors the repository query: same location, capacity-holding status and
// inclusive date overlap.
func (f *fakeCourseRepo) ListOverlapping(ctx context.Context, exec sqlx.ExtContext, locationID, startDate, endDate, excludeID string) ([]models.CapacityOverlap, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	holding := map[models.CourseStatus]bool{}
	for _, s := range models.CapacityHoldingStatuses {
		holding[s] = true
	}
	var out []models.CapacityOverlap
	for _, c := range f.courses {
		if c.LocationID != locationID || c.ID == excludeID || !holding[c.Status] {
			continue
		}
		if c.StartDate <= endDate && c.EndDate >= startDate {
			out = append(out, models.CapacityOverlap{CourseID: c.ID, Title: c.Title, StartDate: c.StartDate, EndDate: c.EndDate, Capacity: c.Capacity})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate < out[j].StartDate })
	return out, nil
}

type fakeLocationRepo struct {
	locations map[string]models.Location
	created   []models.Location
}

func newFakeLocationRepo(locations ...models.Location) *fakeLocationRepo {
	repo := &fakeLocationRepo{locations: map[string]models.Location{}}
	for _, l := range locations {
		repo.locations[l.ID] = l
	}
	return repo
}

func (f *fakeLocationRepo) List(ctx context.Context, schoolID string) ([]models.Location, error) {
	var out []models.Location
	for _, l := range f.locations {
		if schoolID == "" || l.SchoolID == schoolID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeLocationRepo) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Location, error) {
	l, ok := f.locations[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &l, nil
}

func (f *fakeLocationRepo) Create(ctx context.Context, location *models.Location) error {
	if location.ID == "" {
		location.ID = fmt.Sprintf("loc-%d", len(f.locations)+1)
	}
	f.locations[location.ID] = *location
	f.created = append(f.created, *location)
	return nil
}

func (f *fakeLocationRepo) Update(ctx context.Context, location *models.Location) error {
	if _, ok := f.locations[location.ID]; !ok {
		return sql.ErrNoRows
	}
	f.locations[location.ID] = *location
	return nil
}

func (f *fakeLocationRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.locations[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.locations, id)
	return nil
}

type fakeInstructorRepo struct {
	instructors map[string]models.Instructor
}

func newFakeInstructorRepo(instructors ...models.Instructor) *fakeInstructorRepo {
	repo := &fakeInstructorRepo{instructors: map[string]models.Instructor{}}
	for _, i := range instructors {
		repo.instructors[i.ID] = i
	}
	return repo
}

func (f *fakeInstructorRepo) List(ctx context.Context, schoolID string) ([]models.Instructor, error) {
	var out []models.Instructor
	for _, i := range f.instructors {
		if schoolID == "" || i.SchoolID == schoolID {
			out = append(out, i)
		}
	}
	return out, nil
}

func (f *fakeInstructorRepo) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Instructor, error) {
	i, ok := f.instructors[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &i, nil
}

func (f *fakeInstructorRepo) Create(ctx context.Context, instructor *models.Instructor) error {
	if instructor.ID == "" {
		instructor.ID = fmt.Sprintf("ins-%d", len(f.instructors)+1)
	}
	f.instructors[instructor.ID] = *instructor
	return nil
}

func (f *fakeInstructorRepo) Update(ctx context.Context, instructor *models.Instructor) error {
	if _, ok := f.instructors[instructor.ID]; !ok {
		return sql.ErrNoRows
	}
	f.instructors[instructor.ID] = *instructor
	return nil
}

func (f *fakeInstructorRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.instructors[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.instructors, id)
	return nil
}

type fakeScheduleRepo struct {
	schedules map[string]models.CourseSchedule
}

func newFakeScheduleRepo() *fakeScheduleRepo {
	return &fakeScheduleRepo{schedules: map[string]models.CourseSchedule{}}
}

func (f *fakeScheduleRepo) Create(ctx context.Context, exec sqlx.ExtContext, schedule *models.CourseSchedule) error {
	if schedule.ID == "" {
		schedule.ID = fmt.Sprintf("sched-%d", len(f.schedules)+1)
	}
	f.schedules[schedule.ID] = *schedule
	return nil
}

func (f *fakeScheduleRepo) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.CourseSchedule, error) {
	s, ok := f.schedules[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (f *fakeScheduleRepo) ListByCourse(ctx context.Context, courseID string) ([]models.CourseSchedule, error) {
	var out []models.CourseSchedule
	for _, s := range f.schedules {
		if s.CourseID == courseID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeScheduleRepo) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if _, ok := f.schedules[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.schedules, id)
	return nil
}

// fakeSessionRepo keeps sessions in memory. AdjustEnrollment applies the same bounded update as
// the SQL statement under a mutex.
type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]models.CourseSession
	seq      int
}

func newFakeSessionRepo(sessions ...models.CourseSession) *fakeSessionRepo {
	repo := &fakeSessionRepo{sessions: map[string]models.CourseSession{}}
	for _, s := range sessions {
		repo.sessions[s.ID] = s
	}
	return repo
}

func (f *fakeSessionRepo) get(id string) models.CourseSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[id]
}

func (f *fakeSessionRepo) CreateBatch(ctx context.Context, exec sqlx.ExtContext, sessions []models.CourseSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range sessions {
		f.seq++
		sessions[i].ID = fmt.Sprintf("sess-%d", f.seq)
		f.sessions[sessions[i].ID] = sessions[i]
	}
	return nil
}

func (f *fakeSessionRepo) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.CourseSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (f *fakeSessionRepo) FindByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]models.CourseSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CourseSession
	for _, id := range ids {
		if s, ok := f.sessions[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSessionRepo) ListByCourse(ctx context.Context, filter models.SessionFilter) ([]models.CourseSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CourseSession
	for _, s := range f.sessions {
		if s.CourseID != filter.CourseID {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (f *fakeSessionRepo) listScheduled(match func(models.CourseSession) bool, startDate, endDate string) []models.CourseSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CourseSession
	for _, s := range f.sessions {
		if s.Status == models.SessionStatusScheduled && match(s) && s.Date >= startDate && s.Date <= endDate {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func (f *fakeSessionRepo) ListScheduledAtLocation(ctx context.Context, exec sqlx.ExtContext, locationID, startDate, endDate string) ([]models.CourseSession, error) {
	return f.listScheduled(func(s models.CourseSession) bool { return s.LocationID == locationID }, startDate, endDate), nil
}

func (f *fakeSessionRepo) ListScheduledForInstructor(ctx context.Context, exec sqlx.ExtContext, instructorID, startDate, endDate string) ([]models.CourseSession, error) {
	return f.listScheduled(func(s models.CourseSession) bool { return s.InstructorID == instructorID }, startDate, endDate), nil
}

func (f *fakeSessionRepo) Update(ctx context.Context, id string, status *models.SessionStatus, maxCapacity *int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return sql.ErrNoRows
	}
	if maxCapacity != nil && *maxCapacity < s.CurrentEnrollment {
		return sql.ErrNoRows
	}
	if status != nil {
		s.Status = *status
	}
	if maxCapacity != nil {
		s.MaxCapacity = *maxCapacity
	}
	f.sessions[id] = s
	return nil
}

func (f *fakeSessionRepo) AdjustEnrollment(ctx context.Context, exec sqlx.ExtContext, id string, delta int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return false, nil
	}
	next := s.CurrentEnrollment + delta
	if next < 0 || next > s.MaxCapacity {
		return false, nil
	}
	s.CurrentEnrollment = next
	f.sessions[id] = s
	return true, nil
}

func (f *fakeSessionRepo) DeleteBySchedule(ctx context.Context, exec sqlx.ExtContext, scheduleID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, s := range f.sessions {
		if s.ScheduleID == scheduleID {
			delete(f.sessions, id)
			n++
		}
	}
	return n, nil
}

type fakeBookingRepo struct {
	mu       sync.Mutex
	bookings map[string]models.Booking
	seq      int
}

func newFakeBookingRepo(bookings ...models.Booking) *fakeBookingRepo {
	repo := &fakeBookingRepo{bookings: map[string]models.Booking{}}
	for _, b := range bookings {
		repo.bookings[b.ID] = b
	}
	return repo
}

func (f *fakeBookingRepo) Create(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	if booking.ID == "" {
		booking.ID = fmt.Sprintf("booking-%d", f.seq)
	}
	booking.BookingDate = time.Date(2026, 1, 1, 0, 0, f.seq, 0, time.UTC)
	f.bookings[booking.ID] = *booking
	return nil
}

func (f *fakeBookingRepo) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &b, nil
}

func (f *fakeBookingRepo) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Booking, error) {
	return f.FindByID(ctx, exec, id)
}

func (f *fakeBookingRepo) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.BookingStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return sql.ErrNoRows
	}
	b.Status = status
	f.bookings[id] = b
	return nil
}

func (f *fakeBookingRepo) ListByUser(ctx context.Context, userID string) ([]models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Booking
	for _, b := range f.bookings {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBookingRepo) ListBySchool(ctx context.Context, schoolID string) ([]models.Booking, error) {
	return nil, nil
}

func (f *fakeBookingRepo) ListBySession(ctx context.Context, sessionID string) ([]models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Booking
	for _, b := range f.bookings {
		if b.Status == models.BookingStatusCancelled {
			continue
		}
		for _, id := range b.SessionIDs {
			if id == sessionID {
				out = append(out, b)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeBookingRepo) CountActiveByCourse(ctx context.Context, exec sqlx.ExtContext, courseID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.bookings {
		if b.CourseID == courseID && (b.Status == models.BookingStatusPending || b.Status == models.BookingStatusConfirmed) {
			n++
		}
	}
	return n, nil
}

// fakeWaitlistRepo keeps a per-course counter that only grows, like courses.waitlist_seq.
type fakeWaitlistRepo struct {
	mu        sync.Mutex
	entries   map[string]models.WaitlistEntry
	counters  map[string]int
	seq       int
	collide   int
	collideFn func() error
}

func newFakeWaitlistRepo(entries ...models.WaitlistEntry) *fakeWaitlistRepo {
	repo := &fakeWaitlistRepo{entries: map[string]models.WaitlistEntry{}, counters: map[string]int{}}
	for _, e := range entries {
		repo.entries[e.ID] = e
		if e.Position > repo.counters[e.CourseID] {
			repo.counters[e.CourseID] = e.Position
		}
	}
	return repo
}

func (f *fakeWaitlistRepo) Insert(ctx context.Context, entry *models.WaitlistEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.collide > 0 {
		f.collide--
		return f.collideFn()
	}
	f.counters[entry.CourseID]++
	f.seq++
	entry.ID = fmt.Sprintf("wl-%d", f.seq)
	entry.Position = f.counters[entry.CourseID]
	f.entries[entry.ID] = *entry
	return nil
}

func (f *fakeWaitlistRepo) sorted(courseID string) []models.WaitlistEntry {
	var out []models.WaitlistEntry
	for _, e := range f.entries {
		if e.CourseID == courseID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func (f *fakeWaitlistRepo) ListByCourse(ctx context.Context, courseID string) ([]models.WaitlistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sorted(courseID), nil
}

func (f *fakeWaitlistRepo) DeleteOwned(ctx context.Context, id, studentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok || e.StudentID != studentID {
		return sql.ErrNoRows
	}
	delete(f.entries, id)
	return nil
}

func (f *fakeWaitlistRepo) NextCandidate(ctx context.Context, exec sqlx.ExtContext, courseID string) (*models.WaitlistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.sorted(courseID) {
		if !e.Notified && !e.OfferExpired {
			return &e, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeWaitlistRepo) MarkNotified(ctx context.Context, exec sqlx.ExtContext, id string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok {
		return sql.ErrNoRows
	}
	e.Notified = true
	e.OfferExpiresAt = &expiresAt
	f.entries[id] = e
	return nil
}

func (f *fakeWaitlistRepo) ListExpiredOffers(ctx context.Context, now time.Time) ([]models.WaitlistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.WaitlistEntry
	for _, e := range f.entries {
		if e.Notified && !e.OfferExpired && e.OfferExpiresAt != nil && e.OfferExpiresAt.Before(now) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (f *fakeWaitlistRepo) MarkExpired(ctx context.Context, exec sqlx.ExtContext, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok || e.OfferExpired {
		return false, nil
	}
	e.OfferExpired = true
	f.entries[id] = e
	return true, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	offers []models.WaitlistOffer
	err    error
}

func (n *recordingNotifier) NotifyWaitlistOffer(ctx context.Context, offer models.WaitlistOffer) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.offers = append(n.offers, offer)
	return n.err
}

type recordingPromoter struct {
	courses []string
	err     error
}

func (p *recordingPromoter) PromoteNext(ctx context.Context, courseID string) (*models.WaitlistEntry, error) {
	p.courses = append(p.courses, courseID)
	return nil, p.err
}
