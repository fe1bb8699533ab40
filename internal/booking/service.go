package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/rhenando/maxsmile/internal/clinic"
	"github.com/rhenando/maxsmile/internal/metrics"
)

var (
	// ErrClosedDay carries the patient-facing closed-day message.
	ErrClosedDay = errors.New("we're closed on Tuesdays, please pick another date")
	// ErrCapacityFull is returned once a branch-day holds the daily
	// limit of active reservations.
	ErrCapacityFull = errors.New("this date is fully booked, please pick another date")
	ErrInvalidStatus = errors.New("invalid status")
	ErrNotFound      = errors.New("appointment not found")
)

// ValidationError reports the first failing field of a booking request,
// in the order the booking form presents them.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

type Service struct {
	repo     Repository
	dir      *clinic.Directory
	limit    int
	location *time.Location
	log      *slog.Logger
}

func NewService(repo Repository, dir *clinic.Directory, dailyLimit int, location *time.Location, log *slog.Logger) *Service {
	if dailyLimit <= 0 {
		dailyLimit = clinic.DefaultDailyLimit
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:     repo,
		dir:      dir,
		limit:    dailyLimit,
		location: location,
		log:      log,
	}
}

func (s *Service) DailyLimit() int {
	return s.limit
}

// Availability reports the booking snapshot for one branch-day. Closed
// days short-circuit without touching the store.
func (s *Service) Availability(ctx context.Context, branch, date string) (Availability, error) {
	branch = strings.TrimSpace(branch)
	date = strings.TrimSpace(date)
	if branch == "" || !s.dir.IsBranch(branch) {
		return Availability{}, &ValidationError{Field: "branch_slug", Message: "unknown branch"}
	}
	parsed, err := clinic.ParseDate(date)
	if err != nil {
		return Availability{}, &ValidationError{Field: "appointment_date", Message: "invalid appointment_date"}
	}

	snapshot := Availability{
		BranchSlug: branch,
		Date:       date,
		Limit:      int64(s.limit),
	}

	if clinic.IsClosedDay(parsed) {
		snapshot.IsOffDay = true
		snapshot.IsFull = true
		return snapshot, nil
	}

	count, err := s.repo.CountActive(ctx, branch, date)
	if err != nil {
		return Availability{}, err
	}
	snapshot.Count = count
	snapshot.Remaining = int64(s.limit) - count
	if snapshot.Remaining < 0 {
		snapshot.Remaining = 0
	}
	snapshot.IsFull = count >= int64(s.limit)
	return snapshot, nil
}

// Reserve handles a public booking. Validation order mirrors the
// booking form: branch, date, closed day, name, mobile, service,
// consent; capacity is taken last, in a single conditional write.
func (s *Service) Reserve(ctx context.Context, req CreateRequest) (Appointment, error) {
	branch := strings.TrimSpace(req.BranchSlug)
	if branch == "" {
		return Appointment{}, &ValidationError{Field: "branch_slug", Message: "missing branch_slug"}
	}
	if !s.dir.IsBranch(branch) {
		return Appointment{}, &ValidationError{Field: "branch_slug", Message: "unknown branch"}
	}

	date := strings.TrimSpace(req.AppointmentDate)
	if date == "" {
		return Appointment{}, &ValidationError{Field: "appointment_date", Message: "missing appointment_date"}
	}
	parsed, err := clinic.ParseDate(date)
	if err != nil {
		return Appointment{}, &ValidationError{Field: "appointment_date", Message: "invalid appointment_date"}
	}
	if clinic.IsClosedDay(parsed) {
		metrics.IncClosedDayRejection(branch)
		return Appointment{}, ErrClosedDay
	}

	// Lengths are counted in runes; a one-character multibyte name is
	// still one character.
	fullName := strings.TrimSpace(req.FullName)
	if utf8.RuneCountInString(fullName) < 2 {
		return Appointment{}, &ValidationError{Field: "full_name", Message: "missing full_name"}
	}
	mobile := strings.TrimSpace(req.Mobile)
	if utf8.RuneCountInString(mobile) < 8 {
		return Appointment{}, &ValidationError{Field: "mobile", Message: "invalid mobile"}
	}

	service := strings.TrimSpace(req.Service)
	if service == "" {
		return Appointment{}, &ValidationError{Field: "service", Message: "missing service"}
	}
	if !s.dir.IsService(service) {
		return Appointment{}, &ValidationError{Field: "service", Message: "unknown service"}
	}

	if !req.PrivacyAgreed.Bool() {
		return Appointment{}, &ValidationError{Field: "privacy_agreed", Message: "privacy consent is required"}
	}

	appt := Appointment{
		BranchSlug:      branch,
		Service:         service,
		AppointmentDate: date,
		FullName:        fullName,
		Mobile:          mobile,
		Status:          StatusReserved,
		PrivacyAgreed:   true,
	}

	created, err := s.commit(ctx, appt)
	if err != nil {
		return Appointment{}, err
	}
	metrics.IncReservation(branch)
	return created, nil
}

// AdminCreate records a walk-in. The branch always comes from the admin
// scope; the status is admin-chosen and defaults to confirmed.
func (s *Service) AdminCreate(ctx context.Context, branch string, req AdminCreateRequest) (Appointment, error) {
	date := strings.TrimSpace(req.AppointmentDate)
	if date == "" {
		return Appointment{}, &ValidationError{Field: "appointment_date", Message: "missing appointment_date"}
	}
	parsed, err := clinic.ParseDate(date)
	if err != nil {
		return Appointment{}, &ValidationError{Field: "appointment_date", Message: "invalid appointment_date"}
	}
	if clinic.IsClosedDay(parsed) {
		metrics.IncClosedDayRejection(branch)
		return Appointment{}, ErrClosedDay
	}

	fullName := strings.TrimSpace(req.FullName)
	if utf8.RuneCountInString(fullName) < 2 {
		return Appointment{}, &ValidationError{Field: "full_name", Message: "missing full_name"}
	}
	mobile := strings.TrimSpace(req.Mobile)
	if utf8.RuneCountInString(mobile) < 8 {
		return Appointment{}, &ValidationError{Field: "mobile", Message: "invalid mobile"}
	}
	service := strings.TrimSpace(req.Service)
	if service == "" || !s.dir.IsService(service) {
		return Appointment{}, &ValidationError{Field: "service", Message: "unknown service"}
	}

	status := strings.ToLower(strings.TrimSpace(req.Status))
	if status == "" {
		status = StatusConfirmed
	}
	if !IsValidStatus(status) {
		return Appointment{}, ErrInvalidStatus
	}

	appt := Appointment{
		BranchSlug:      branch,
		Service:         service,
		AppointmentDate: date,
		FullName:        fullName,
		Mobile:          mobile,
		Status:          status,
		PrivacyAgreed:   req.PrivacyAgreed.Bool(),
	}

	return s.commit(ctx, appt)
}

// commit takes capacity for active statuses, then inserts. A reference
// collision (unique index) is regenerated; any other insert failure
// releases the slot that was just taken.
func (s *Service) commit(ctx context.Context, appt Appointment) (Appointment, error) {
	active := IsActiveStatus(appt.Status)
	if active {
		if err := s.repo.ReserveSlot(ctx, appt.BranchSlug, appt.AppointmentDate, s.limit); err != nil {
			if errors.Is(err, ErrDayFull) {
				metrics.IncCapacityRejection(appt.BranchSlug)
				return Appointment{}, ErrCapacityFull
			}
			return Appointment{}, err
		}
	}

	now := time.Now().In(s.location)
	appt.ID = primitive.NewObjectID().Hex()
	appt.CreatedAt = now

	var err error
	for attempt := 0; attempt < 3; attempt++ {
		appt.Reference = NewReference(now)
		err = s.repo.Insert(ctx, appt)
		if err == nil {
			return appt, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			break
		}
	}

	if active {
		s.releaseSlot(ctx, appt.BranchSlug, appt.AppointmentDate)
	}
	return Appointment{}, err
}

// releaseSlot returns a unit of branch-day capacity. A failed release
// leaves the counter too high, so it is always logged even when the
// surrounding request succeeds.
func (s *Service) releaseSlot(ctx context.Context, branch, date string) {
	if err := s.repo.ReleaseSlot(ctx, branch, date); err != nil {
		s.log.Error("slot release failed",
			slog.String("branch", branch),
			slog.String("date", date),
			slog.String("error", err.Error()),
		)
	}
}

// UpdateStatus replaces the status with no transition restrictions.
// Moves across the active boundary adjust the branch-day counter, and
// re-activating on a full day is rejected.
func (s *Service) UpdateStatus(ctx context.Context, branch, id, status string) (Appointment, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !IsValidStatus(status) {
		return Appointment{}, ErrInvalidStatus
	}

	appt, err := s.getScoped(ctx, branch, id)
	if err != nil {
		return Appointment{}, err
	}

	wasActive := IsActiveStatus(appt.Status)
	nowActive := IsActiveStatus(status)

	if nowActive && !wasActive {
		if err := s.repo.ReserveSlot(ctx, appt.BranchSlug, appt.AppointmentDate, s.limit); err != nil {
			if errors.Is(err, ErrDayFull) {
				metrics.IncCapacityRejection(appt.BranchSlug)
				return Appointment{}, ErrCapacityFull
			}
			return Appointment{}, err
		}
	}

	if err := s.repo.UpdateStatus(ctx, appt.ID, status); err != nil {
		if nowActive && !wasActive {
			s.releaseSlot(ctx, appt.BranchSlug, appt.AppointmentDate)
		}
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Appointment{}, ErrNotFound
		}
		return Appointment{}, err
	}

	if wasActive && !nowActive {
		s.releaseSlot(ctx, appt.BranchSlug, appt.AppointmentDate)
	}

	appt.Status = status
	return appt, nil
}

// Delete permanently removes the appointment. There is no soft delete.
func (s *Service) Delete(ctx context.Context, branch, id string) (Appointment, error) {
	appt, err := s.getScoped(ctx, branch, id)
	if err != nil {
		return Appointment{}, err
	}

	if err := s.repo.Delete(ctx, appt.ID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Appointment{}, ErrNotFound
		}
		return Appointment{}, err
	}

	if IsActiveStatus(appt.Status) {
		s.releaseSlot(ctx, appt.BranchSlug, appt.AppointmentDate)
	}
	return appt, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int64) ([]Appointment, int64, error) {
	filter.Status = strings.ToLower(strings.TrimSpace(filter.Status))
	if filter.Status != "" && !IsValidStatus(filter.Status) {
		return nil, 0, ErrInvalidStatus
	}
	filter.Query = strings.TrimSpace(filter.Query)

	items, err := s.repo.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// getScoped fetches by id and hides appointments of other branches
// behind ErrNotFound.
func (s *Service) getScoped(ctx context.Context, branch, id string) (Appointment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Appointment{}, ErrNotFound
	}
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Appointment{}, ErrNotFound
		}
		return Appointment{}, err
	}
	if appt.BranchSlug != branch {
		return Appointment{}, ErrNotFound
	}
	return appt, nil
}
