package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhenando/maxsmile/internal/clinic"
)

const (
	// 2025-11-18 is a Tuesday, 2025-11-20 a Thursday.
	closedDate = "2025-11-18"
	openDate   = "2025-11-20"
)

func newTestService(repo Repository) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, clinic.Default(), clinic.DefaultDailyLimit, time.UTC, logger)
}

func validRequest() CreateRequest {
	return CreateRequest{
		BranchSlug:      "manila-main",
		Service:         "tooth_extraction_bunot",
		AppointmentDate: openDate,
		FullName:        "Juan dela Cruz",
		Mobile:          "+63 917 123 4567",
		PrivacyAgreed:   TruthyBool(true),
	}
}

func TestReserveSuccess(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo)

	appt, err := svc.Reserve(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, StatusReserved, appt.Status)
	assert.Equal(t, "manila-main", appt.BranchSlug)
	assert.Regexp(t, regexp.MustCompile(`^MS-\d{8}-[A-Z0-9]{6}$`), appt.Reference)
	assert.True(t, appt.PrivacyAgreed)
	assert.Equal(t, 1, repo.counterValue("manila-main", openDate))
}

func TestReserveClosedDay(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo)

	req := validRequest()
	req.AppointmentDate = closedDate

	_, err := svc.Reserve(context.Background(), req)
	require.ErrorIs(t, err, ErrClosedDay)

	// Rejected before any write.
	assert.Empty(t, repo.items)
	assert.Equal(t, 0, repo.counterValue("manila-main", closedDate))
}

func TestReserveCapacityLimit(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	for i := 0; i < clinic.DefaultDailyLimit; i++ {
		req := validRequest()
		req.FullName = fmt.Sprintf("Patient %02d", i)
		_, err := svc.Reserve(ctx, req)
		require.NoError(t, err, "booking %d should fit", i)
	}

	_, err := svc.Reserve(ctx, validRequest())
	require.ErrorIs(t, err, ErrCapacityFull)

	// Other branches and other days are unaffected.
	otherBranch := validRequest()
	otherBranch.BranchSlug = "pateros"
	_, err = svc.Reserve(ctx, otherBranch)
	assert.NoError(t, err)

	otherDay := validRequest()
	otherDay.AppointmentDate = "2025-11-21"
	_, err = svc.Reserve(ctx, otherDay)
	assert.NoError(t, err)
}

func TestReserveValidationOrder(t *testing.T) {
	svc := newTestService(newMemoryRepository())
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*CreateRequest)
		field  string
	}{
		{"missing branch", func(r *CreateRequest) { r.BranchSlug = " " }, "branch_slug"},
		{"unknown branch", func(r *CreateRequest) { r.BranchSlug = "cebu" }, "branch_slug"},
		{"missing date", func(r *CreateRequest) { r.AppointmentDate = "" }, "appointment_date"},
		{"malformed date", func(r *CreateRequest) { r.AppointmentDate = "20/11/2025" }, "appointment_date"},
		{"impossible date", func(r *CreateRequest) { r.AppointmentDate = "2024-02-31" }, "appointment_date"},
		{"short name", func(r *CreateRequest) { r.FullName = "J" }, "full_name"},
		{"one-rune multibyte name", func(r *CreateRequest) { r.FullName = "ñ" }, "full_name"},
		{"short mobile", func(r *CreateRequest) { r.Mobile = "1234" }, "mobile"},
		{"short multibyte mobile", func(r *CreateRequest) { r.Mobile = "１２３４" }, "mobile"},
		{"unknown service", func(r *CreateRequest) { r.Service = "Haircut" }, "service"},
		{"no consent", func(r *CreateRequest) { r.PrivacyAgreed = TruthyBool(false) }, "privacy_agreed"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)

			_, err := svc.Reserve(ctx, req)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
		})
	}

	// The branch error wins even when every other field is also bad.
	req := CreateRequest{}
	_, err := svc.Reserve(ctx, req)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "branch_slug", ve.Field)
}

func TestReserveRetriesReferenceCollision(t *testing.T) {
	repo := &collidingInsertRepo{memoryRepository: newMemoryRepository(), dupFailures: 2}
	svc := newTestService(repo)

	appt, err := svc.Reserve(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, 3, repo.insertCalls)
	assert.Regexp(t, `^MS-\d{8}-[A-Z0-9]{6}$`, appt.Reference)
	// The slot taken up front is kept by the eventual insert.
	assert.Equal(t, 1, repo.counterValue("manila-main", openDate))
}

func TestReserveGivesUpAfterThreeCollisions(t *testing.T) {
	repo := &collidingInsertRepo{memoryRepository: newMemoryRepository(), dupFailures: 5}
	svc := newTestService(repo)

	_, err := svc.Reserve(context.Background(), validRequest())
	require.Error(t, err)

	assert.Equal(t, 3, repo.insertCalls)
	assert.Equal(t, 0, repo.counterValue("manila-main", openDate))
	assert.Empty(t, repo.items)
}

func TestReserveReleasesSlotOnInsertFailure(t *testing.T) {
	repo := &collidingInsertRepo{
		memoryRepository: newMemoryRepository(),
		insertErr:        errors.New("write failed"),
	}
	svc := newTestService(repo)

	_, err := svc.Reserve(context.Background(), validRequest())
	require.Error(t, err)

	assert.Equal(t, 1, repo.insertCalls)
	assert.Equal(t, 0, repo.counterValue("manila-main", openDate))
}

func TestFailedSlotReleaseIsLoggedNotFatal(t *testing.T) {
	repo := &failingReleaseRepo{memoryRepository: newMemoryRepository()}
	var logBuf bytes.Buffer
	svc := NewService(repo, clinic.Default(), clinic.DefaultDailyLimit, time.UTC,
		slog.New(slog.NewTextHandler(&logBuf, nil)))
	ctx := context.Background()

	appt, err := svc.Reserve(ctx, validRequest())
	require.NoError(t, err)

	// Cancelling still succeeds even though the counter could not be
	// decremented, and the failure leaves a trace in the log.
	updated, err := svc.UpdateStatus(ctx, "manila-main", appt.ID, StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, updated.Status)
	assert.Equal(t, 1, repo.releaseCalls)
	assert.Contains(t, logBuf.String(), "slot release failed")
}

func TestAdminCreateCountsRunes(t *testing.T) {
	svc := newTestService(newMemoryRepository())

	_, err := svc.AdminCreate(context.Background(), "pateros", AdminCreateRequest{
		Service:         "oral_prophylaxis_cleaning",
		AppointmentDate: openDate,
		FullName:        "ñ",
		Mobile:          "09171234567",
	})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "full_name", ve.Field)
}

func TestTruthyBoolEncodings(t *testing.T) {
	for _, raw := range []string{`true`, `"true"`, `1`, `"1"`} {
		var b TruthyBool
		require.NoError(t, json.Unmarshal([]byte(raw), &b))
		assert.True(t, b.Bool(), "encoding %s", raw)
	}
	for _, raw := range []string{`false`, `"false"`, `0`, `"yes"`, `null`} {
		var b TruthyBool
		require.NoError(t, json.Unmarshal([]byte(raw), &b))
		assert.False(t, b.Bool(), "encoding %s", raw)
	}
}

func TestAvailabilitySnapshot(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		req := validRequest()
		req.FullName = fmt.Sprintf("Patient %d", i)
		_, err := svc.Reserve(ctx, req)
		require.NoError(t, err)
	}

	snap, err := svc.Availability(ctx, "manila-main", openDate)
	require.NoError(t, err)
	assert.Equal(t, int64(3), snap.Count)
	assert.Equal(t, int64(clinic.DefaultDailyLimit), snap.Limit)
	assert.Equal(t, int64(clinic.DefaultDailyLimit-3), snap.Remaining)
	assert.False(t, snap.IsFull)
	assert.False(t, snap.IsOffDay)
}

func TestAvailabilityClosedDay(t *testing.T) {
	svc := newTestService(newMemoryRepository())

	snap, err := svc.Availability(context.Background(), "manila-main", closedDate)
	require.NoError(t, err)
	assert.True(t, snap.IsOffDay)
	assert.True(t, snap.IsFull)
	assert.Equal(t, int64(0), snap.Count)
}

func TestAvailabilityUnknownBranch(t *testing.T) {
	svc := newTestService(newMemoryRepository())

	_, err := svc.Availability(context.Background(), "makati", openDate)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "branch_slug", ve.Field)
}

func TestAdminCreateDefaultsToConfirmed(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo)

	appt, err := svc.AdminCreate(context.Background(), "pateros", AdminCreateRequest{
		Service:         "oral_prophylaxis_cleaning",
		AppointmentDate: openDate,
		FullName:        "Walk In",
		Mobile:          "09171234567",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, appt.Status)
	assert.Equal(t, "pateros", appt.BranchSlug)
	assert.Equal(t, 1, repo.counterValue("pateros", openDate))
}

func TestAdminCreateInactiveStatusSkipsCounter(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo)

	appt, err := svc.AdminCreate(context.Background(), "pateros", AdminCreateRequest{
		Service:         "oral_prophylaxis_cleaning",
		AppointmentDate: openDate,
		FullName:        "Walk In",
		Mobile:          "09171234567",
		Status:          StatusCompleted,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, appt.Status)
	assert.Equal(t, 0, repo.counterValue("pateros", openDate))
}

func TestAdminCreateHonorsClosedDayAndCapacity(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.AdminCreate(ctx, "pateros", AdminCreateRequest{
		Service:         "oral_prophylaxis_cleaning",
		AppointmentDate: closedDate,
		FullName:        "Walk In",
		Mobile:          "09171234567",
	})
	require.ErrorIs(t, err, ErrClosedDay)

	repo.counters["pateros|"+openDate] = clinic.DefaultDailyLimit
	_, err = svc.AdminCreate(ctx, "pateros", AdminCreateRequest{
		Service:         "oral_prophylaxis_cleaning",
		AppointmentDate: openDate,
		FullName:        "Walk In",
		Mobile:          "09171234567",
	})
	require.ErrorIs(t, err, ErrCapacityFull)
}

func TestUpdateStatusAdjustsCounter(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	appt, err := svc.Reserve(ctx, validRequest())
	require.NoError(t, err)
	require.Equal(t, 1, repo.counterValue("manila-main", openDate))

	// Active to active keeps the slot.
	appt, err = svc.UpdateStatus(ctx, "manila-main", appt.ID, StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.counterValue("manila-main", openDate))

	// Leaving the active set releases it.
	appt, err = svc.UpdateStatus(ctx, "manila-main", appt.ID, StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, 0, repo.counterValue("manila-main", openDate))

	// Re-entering takes it again.
	_, err = svc.UpdateStatus(ctx, "manila-main", appt.ID, StatusReserved)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.counterValue("manila-main", openDate))
}

func TestUpdateStatusAnyTransitionAllowed(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	appt, err := svc.Reserve(ctx, validRequest())
	require.NoError(t, err)

	// Status moves are not a state machine: completed can go back to
	// reserved.
	appt, err = svc.UpdateStatus(ctx, "manila-main", appt.ID, StatusCompleted)
	require.NoError(t, err)
	appt, err = svc.UpdateStatus(ctx, "manila-main", appt.ID, StatusReserved)
	require.NoError(t, err)
	assert.Equal(t, StatusReserved, appt.Status)
}

func TestUpdateStatusReactivationOnFullDay(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	appt, err := svc.Reserve(ctx, validRequest())
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, "manila-main", appt.ID, StatusCancelled)
	require.NoError(t, err)

	repo.counters["manila-main|"+openDate] = clinic.DefaultDailyLimit
	_, err = svc.UpdateStatus(ctx, "manila-main", appt.ID, StatusConfirmed)
	require.ErrorIs(t, err, ErrCapacityFull)

	got, err := repo.GetByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	svc := newTestService(newMemoryRepository())
	_, err := svc.UpdateStatus(context.Background(), "manila-main", "some-id", "archived")
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestBranchScoping(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	appt, err := svc.Reserve(ctx, validRequest())
	require.NoError(t, err)

	// A pateros admin cannot see or touch a manila-main appointment.
	_, err = svc.UpdateStatus(ctx, "pateros", appt.ID, StatusConfirmed)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Delete(ctx, "pateros", appt.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Delete(ctx, "manila-main", appt.ID)
	assert.NoError(t, err)
}

func TestDeleteReleasesSlot(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	appt, err := svc.Reserve(ctx, validRequest())
	require.NoError(t, err)
	require.Equal(t, 1, repo.counterValue("manila-main", openDate))

	_, err = svc.Delete(ctx, "manila-main", appt.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, repo.counterValue("manila-main", openDate))

	_, err = repo.GetByID(ctx, appt.ID)
	assert.Error(t, err)
}

func TestDeleteInactiveKeepsCounter(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	appt, err := svc.Reserve(ctx, validRequest())
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, "manila-main", appt.ID, StatusNoShow)
	require.NoError(t, err)
	require.Equal(t, 0, repo.counterValue("manila-main", openDate))

	_, err = svc.Delete(ctx, "manila-main", appt.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, repo.counterValue("manila-main", openDate))
}

func TestListFilters(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	names := []string{"Alice Reyes", "Bob Santos", "Carla Reyes"}
	for _, name := range names {
		req := validRequest()
		req.FullName = name
		_, err := svc.Reserve(ctx, req)
		require.NoError(t, err)
	}

	items, total, err := svc.List(ctx, ListFilter{Branch: "manila-main", Query: "reyes"}, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, items, 2)

	items, total, err = svc.List(ctx, ListFilter{Branch: "pateros"}, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, items)

	_, _, err = svc.List(ctx, ListFilter{Branch: "manila-main", Status: "archived"}, 20, 0)
	assert.True(t, errors.Is(err, ErrInvalidStatus))
}
