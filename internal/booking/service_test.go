package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/naminath/opd-booking/internal/config"
	redisclient "github.com/naminath/opd-booking/internal/redis"
)

// serialLocker serializes critical sections in-process, standing in for the
// Redis slot lock.
type serialLocker struct {
	mu sync.Mutex
}

func (l *serialLocker) WithSlotLock(ctx context.Context, date, timeSlot string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(ctx)
}

// noopLocker runs the critical section without any serialization, leaving the
// repository's uniqueness rule as the only protection.
type noopLocker struct{}

func (noopLocker) WithSlotLock(ctx context.Context, date, timeSlot string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func testConfig() config.Config {
	return config.Config{
		StoreTimeout: 5 * time.Second,
		LockTTL:      5 * time.Second,
	}
}

func newTestService(t *testing.T) (*Service, *MemoryRepository) {
	t.Helper()
	repo := NewMemoryRepository()
	return NewService(repo, &serialLocker{}, testConfig()), repo
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func validInput() CreateAppointmentInput {
	return CreateAppointmentInput{
		Name:     "Asha Verma",
		Phone:    "9876543210",
		Date:     "2024-06-01",
		TimeSlot: "10:00",
	}
}

func mustCreate(t *testing.T, svc *Service, in CreateAppointmentInput) *AppointmentDetail {
	t.Helper()
	detail, err := svc.CreateAppointment(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}
	return detail
}

func fillSlot(t *testing.T, svc *Service, date, timeSlot string) []*AppointmentDetail {
	t.Helper()
	var created []*AppointmentDetail
	for i := 0; i < RoomCount; i++ {
		in := validInput()
		in.Date = date
		in.TimeSlot = timeSlot
		created = append(created, mustCreate(t, svc, in))
	}
	return created
}

func TestCheckCapacityComplement(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	in := validInput()
	in.Room = intPtr(2)
	mustCreate(t, svc, in)
	in.Room = intPtr(4)
	mustCreate(t, svc, in)

	avail, err := svc.CheckCapacity(ctx, in.Date, in.TimeSlot)
	if err != nil {
		t.Fatalf("CheckCapacity: %v", err)
	}

	if avail.BookedCount != 2 {
		t.Errorf("BookedCount = %d, want 2", avail.BookedCount)
	}
	want := []int{1, 3, 5}
	if len(avail.AvailableRooms) != len(want) {
		t.Fatalf("AvailableRooms = %v, want %v", avail.AvailableRooms, want)
	}
	for i, room := range want {
		if avail.AvailableRooms[i] != room {
			t.Errorf("AvailableRooms = %v, want %v", avail.AvailableRooms, want)
			break
		}
	}
}

func TestCheckCapacityRejectsBadInput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CheckCapacity(ctx, "not-a-date", "10:00"); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("bad date: got %v, want ErrInvalidDate", err)
	}
	if _, err := svc.CheckCapacity(ctx, "2024-06-01", "10:15"); !errors.Is(err, ErrInvalidTimeSlot) {
		t.Errorf("off-grid time: got %v, want ErrInvalidTimeSlot", err)
	}
}

func TestCreateAssignsLowestFreeRoom(t *testing.T) {
	svc, _ := newTestService(t)

	first := mustCreate(t, svc, validInput())
	if first.Room != 1 {
		t.Errorf("first booking room = %d, want 1", first.Room)
	}

	in := validInput()
	in.Room = intPtr(3)
	mustCreate(t, svc, in)

	third := mustCreate(t, svc, validInput())
	if third.Room != 2 {
		t.Errorf("third booking room = %d, want 2 (lowest free)", third.Room)
	}
}

func TestCreateChosenRoomTaken(t *testing.T) {
	svc, _ := newTestService(t)

	in := validInput()
	in.Room = intPtr(2)
	mustCreate(t, svc, in)

	_, err := svc.CreateAppointment(context.Background(), in)
	if !errors.Is(err, ErrRoomTaken) {
		t.Fatalf("got %v, want ErrRoomTaken", err)
	}
}

func TestCreateMissingPhoneWritesNothing(t *testing.T) {
	svc, repo := newTestService(t)

	in := validInput()
	in.Phone = ""

	_, err := svc.CreateAppointment(context.Background(), in)
	if !errors.Is(err, ErrMissingField) {
		t.Fatalf("got %v, want ErrMissingField", err)
	}

	all, _ := repo.ListAppointments(context.Background())
	if len(all) != 0 {
		t.Errorf("store has %d appointments after rejected create, want 0", len(all))
	}
	if len(repo.Events()) != 0 {
		t.Errorf("store has %d events after rejected create, want 0", len(repo.Events()))
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*CreateAppointmentInput)
		want   error
	}{
		{"missing name", func(in *CreateAppointmentInput) { in.Name = "" }, ErrMissingField},
		{"missing date", func(in *CreateAppointmentInput) { in.Date = "" }, ErrMissingField},
		{"missing time", func(in *CreateAppointmentInput) { in.TimeSlot = "" }, ErrMissingField},
		{"bad date", func(in *CreateAppointmentInput) { in.Date = "June 1st" }, ErrInvalidDate},
		{"off-grid time", func(in *CreateAppointmentInput) { in.TimeSlot = "16:30" }, ErrInvalidTimeSlot},
		{"room out of range", func(in *CreateAppointmentInput) { in.Room = intPtr(6) }, ErrInvalidRoom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			if _, err := svc.CreateAppointment(ctx, in); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSlotFullBoundary(t *testing.T) {
	svc, repo := newTestService(t)

	fillSlot(t, svc, "2024-06-01", "10:00")

	_, err := svc.CreateAppointment(context.Background(), validInput())
	if !errors.Is(err, ErrSlotFull) {
		t.Fatalf("6th create: got %v, want ErrSlotFull", err)
	}

	rooms, _ := repo.BookedRooms(context.Background(), "2024-06-01", "10:00")
	if len(rooms) != RoomCount {
		t.Errorf("booked count = %d after rejected create, want %d", len(rooms), RoomCount)
	}
}

func TestEmptyCaseFormRejected(t *testing.T) {
	svc, repo := newTestService(t)

	in := validInput()
	in.FillCaseForm = true
	in.CaseForm = &CaseFormPayload{}

	_, err := svc.CreateAppointment(context.Background(), in)
	if !errors.Is(err, ErrEmptyCaseForm) {
		t.Fatalf("got %v, want ErrEmptyCaseForm", err)
	}

	in.CaseForm = nil
	if _, err := svc.CreateAppointment(context.Background(), in); !errors.Is(err, ErrEmptyCaseForm) {
		t.Fatalf("nil payload: got %v, want ErrEmptyCaseForm", err)
	}

	all, _ := repo.ListAppointments(context.Background())
	if len(all) != 0 {
		t.Errorf("store has %d appointments, want 0", len(all))
	}
}

func TestCaseFormRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)

	payload := CaseFormPayload{
		CurrentHeight:   "132cm",
		CurrentWeight:   "29kg",
		ChiefComplaint:  "recurring ear infections",
		RecurringIssues: []string{"earaches", "tonsillitis"},
		FamilyHistory: []FamilyMember{
			{Relation: "mother", AgeAlive: "41", Ailments: "asthma"},
		},
	}

	in := validInput()
	in.FillCaseForm = true
	in.CaseForm = &payload

	created := mustCreate(t, svc, in)
	if created.CaseFormID == nil {
		t.Fatal("created appointment has no case form link")
	}
	if created.CaseForm == nil {
		t.Fatal("created appointment response is not populated with its form")
	}

	fetched, err := svc.GetAppointment(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetAppointment: %v", err)
	}
	if fetched.CaseForm == nil {
		t.Fatal("fetched appointment has no resolved case form")
	}

	got := fetched.CaseForm.Payload
	if got.ChiefComplaint != payload.ChiefComplaint ||
		got.CurrentHeight != payload.CurrentHeight ||
		len(got.RecurringIssues) != 2 ||
		len(got.FamilyHistory) != 1 ||
		got.FamilyHistory[0].Relation != "mother" {
		t.Errorf("round-tripped payload differs: %+v", got)
	}
	if fetched.CaseForm.AppointmentID != created.ID {
		t.Errorf("form back-reference = %s, want %s", fetched.CaseForm.AppointmentID, created.ID)
	}
}

func TestCancellationFreesCapacity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created := fillSlot(t, svc, "2024-06-01", "10:00")

	if _, err := svc.UpdateStatus(ctx, created[2].ID, StatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	avail, err := svc.CheckCapacity(ctx, "2024-06-01", "10:00")
	if err != nil {
		t.Fatalf("CheckCapacity: %v", err)
	}
	if avail.BookedCount != RoomCount-1 {
		t.Errorf("BookedCount = %d, want %d", avail.BookedCount, RoomCount-1)
	}
	if len(avail.AvailableRooms) != 1 || avail.AvailableRooms[0] != created[2].Room {
		t.Errorf("AvailableRooms = %v, want [%d]", avail.AvailableRooms, created[2].Room)
	}

	// The freed room is bookable again.
	rebooked := mustCreate(t, svc, validInput())
	if rebooked.Room != created[2].Room {
		t.Errorf("rebooked room = %d, want %d", rebooked.Room, created[2].Room)
	}
}

func TestUpdateStatusIdempotentNoOp(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created := mustCreate(t, svc, validInput())

	same, err := svc.UpdateStatus(ctx, created.ID, StatusPending)
	if err != nil {
		t.Fatalf("idempotent update errored: %v", err)
	}
	if same.Status != StatusPending {
		t.Errorf("status = %q, want pending", same.Status)
	}
	if !same.UpdatedAt.Equal(created.UpdatedAt) {
		t.Errorf("no-op update touched UpdatedAt: %v -> %v", created.UpdatedAt, same.UpdatedAt)
	}
	if same.Name != created.Name || same.Room != created.Room || same.TimeSlot != created.TimeSlot {
		t.Error("no-op update changed other fields")
	}
}

func TestUpdateStatusTransitions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created := mustCreate(t, svc, validInput())

	confirmed, err := svc.UpdateStatus(ctx, created.ID, StatusConfirmed)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != StatusConfirmed {
		t.Errorf("status = %q, want confirmed", confirmed.Status)
	}

	cancelled, err := svc.UpdateStatus(ctx, created.ID, StatusCancelled)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("status = %q, want cancelled", cancelled.Status)
	}

	// Permissive model: re-activation is allowed while the room is free.
	reactivated, err := svc.UpdateStatus(ctx, created.ID, StatusConfirmed)
	if err != nil {
		t.Fatalf("re-activate: %v", err)
	}
	if reactivated.Status != StatusConfirmed {
		t.Errorf("status = %q, want confirmed", reactivated.Status)
	}
}

func TestUpdateStatusErrors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created := mustCreate(t, svc, validInput())

	if _, err := svc.UpdateStatus(ctx, created.ID, "archived"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("bad status: got %v, want ErrInvalidStatus", err)
	}
	if _, err := svc.UpdateStatus(ctx, uuid.New(), StatusConfirmed); !errors.Is(err, ErrAppointmentNotFound) {
		t.Errorf("unknown id: got %v, want ErrAppointmentNotFound", err)
	}
}

func TestGetAppointmentNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GetAppointment(context.Background(), uuid.New())
	if !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("got %v, want ErrAppointmentNotFound", err)
	}
}

func TestListAppointmentsNewestFirst(t *testing.T) {
	svc, _ := newTestService(t)

	a := mustCreate(t, svc, validInput())
	in := validInput()
	in.TimeSlot = "11:00"
	b := mustCreate(t, svc, in)

	all, err := svc.ListAppointments(context.Background())
	if err != nil {
		t.Fatalf("ListAppointments: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d appointments, want 2", len(all))
	}
	if all[0].ID != b.ID || all[1].ID != a.ID {
		t.Error("appointments not ordered newest first")
	}
}

func TestListByDateExcludesCancelled(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a := mustCreate(t, svc, validInput())
	mustCreate(t, svc, validInput())

	if _, err := svc.UpdateStatus(ctx, a.ID, StatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	list, err := svc.ListByDate(ctx, "2024-06-01")
	if err != nil {
		t.Fatalf("ListByDate: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("got %d appointments, want 1", len(list))
	}
	if list[0].ID == a.ID {
		t.Error("cancelled appointment should not be listed")
	}
}

func TestFindAlternativesScenario(t *testing.T) {
	svc, _ := newTestService(t)

	// 10:00 full, 10:30 full, 09:30 has 2/5 booked.
	fillSlot(t, svc, "2024-06-01", "10:00")
	fillSlot(t, svc, "2024-06-01", "10:30")
	for i := 0; i < 2; i++ {
		in := validInput()
		in.TimeSlot = "09:30"
		mustCreate(t, svc, in)
	}

	alts, err := svc.FindAlternatives(context.Background(), "2024-06-01", "10:00")
	if err != nil {
		t.Fatalf("FindAlternatives: %v", err)
	}

	if len(alts) == 0 {
		t.Fatal("expected at least one alternative")
	}
	if len(alts) > MaxAlternatives {
		t.Fatalf("got %d alternatives, cap is %d", len(alts), MaxAlternatives)
	}

	if alts[0].TimeSlot != "09:30" {
		t.Errorf("nearest alternative = %q, want 09:30", alts[0].TimeSlot)
	}
	if got := len(alts[0].AvailableRooms); got != 3 {
		t.Errorf("09:30 available rooms = %d, want 3", got)
	}

	for _, a := range alts {
		if a.TimeSlot == "10:00" {
			t.Error("alternatives must not include the requested slot")
		}
		if a.TimeSlot == "10:30" {
			t.Error("alternatives must not include a full slot")
		}
		if len(a.AvailableRooms) == 0 {
			t.Errorf("alternative %s has zero availability", a.TimeSlot)
		}
		if a.Date != "2024-06-01" {
			t.Errorf("alternative crossed the date boundary: %s", a.Date)
		}
	}
}

func TestFindAlternativesAtDayEdge(t *testing.T) {
	svc, _ := newTestService(t)

	alts, err := svc.FindAlternatives(context.Background(), "2024-06-01", "09:00")
	if err != nil {
		t.Fatalf("FindAlternatives: %v", err)
	}

	for _, a := range alts {
		if SlotIndex(a.TimeSlot) < 0 {
			t.Errorf("alternative %q is off the grid", a.TimeSlot)
		}
		if a.TimeSlot == "09:00" {
			t.Error("alternatives must not include the requested slot")
		}
	}
	if len(alts) != MaxAlternatives {
		t.Errorf("empty calendar should still yield %d later slots, got %d", MaxAlternatives, len(alts))
	}
}

func TestFindAlternativesOrderedByProximity(t *testing.T) {
	svc, _ := newTestService(t)

	alts, err := svc.FindAlternatives(context.Background(), "2024-06-01", "12:00")
	if err != nil {
		t.Fatalf("FindAlternatives: %v", err)
	}
	if len(alts) != MaxAlternatives {
		t.Fatalf("got %d alternatives, want %d", len(alts), MaxAlternatives)
	}

	// Nearest first, earlier before later at equal distance.
	want := []string{"11:30", "12:30", "11:00"}
	for i, slot := range want {
		if alts[i].TimeSlot != slot {
			t.Errorf("alts[%d] = %q, want %q", i, alts[i].TimeSlot, slot)
		}
	}
}

func TestConcurrentCreatesRespectCapacity(t *testing.T) {
	const attempts = RoomCount + 10

	for name, locker := range map[string]redisclient.Locker{
		"serialized lock": &serialLocker{},
		"no lock":         noopLocker{},
	} {
		t.Run(name, func(t *testing.T) {
			repo := NewMemoryRepository()
			svc := NewService(repo, locker, testConfig())

			var wg sync.WaitGroup
			var successes int64
			var mu sync.Mutex

			for i := 0; i < attempts; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := svc.CreateAppointment(context.Background(), validInput())
					if err == nil {
						mu.Lock()
						successes++
						mu.Unlock()
						return
					}
					if !errors.Is(err, ErrSlotFull) && !errors.Is(err, ErrRoomTaken) {
						t.Errorf("unexpected error: %v", err)
					}
				}()
			}
			wg.Wait()

			if successes > RoomCount {
				t.Fatalf("%d bookings succeeded for one slot, capacity is %d", successes, RoomCount)
			}

			rooms, _ := repo.BookedRooms(context.Background(), "2024-06-01", "10:00")
			if len(rooms) > RoomCount {
				t.Fatalf("store holds %d active bookings, capacity is %d", len(rooms), RoomCount)
			}
		})
	}
}

func TestRecordUpcomingRemindersOncePerAppointment(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	now := time.Now()
	tomorrow := now.Add(24 * time.Hour).Format("2006-01-02")

	in := validInput()
	in.Date = tomorrow
	created := mustCreate(t, svc, in)

	// A confirmed appointment for the same day gets no reminder.
	other := validInput()
	other.Date = tomorrow
	other.TimeSlot = "11:00"
	confirmed := mustCreate(t, svc, other)
	if _, err := svc.UpdateStatus(ctx, confirmed.ID, StatusConfirmed); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if err := svc.RecordUpcomingReminders(ctx, now); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := svc.RecordUpcomingReminders(ctx, now); err != nil {
		t.Fatalf("second run: %v", err)
	}

	reminders := 0
	for _, ev := range repo.Events() {
		if ev.EventType == EventReminderLogged {
			reminders++
			if ev.AppointmentID == nil || *ev.AppointmentID != created.ID {
				t.Errorf("reminder logged for wrong appointment")
			}
		}
	}
	if reminders != 1 {
		t.Errorf("got %d reminder events after two runs, want 1", reminders)
	}
}

func TestCreateLogsCreationEvent(t *testing.T) {
	svc, repo := newTestService(t)

	in := validInput()
	in.Email = strPtr("asha@example.com")
	created := mustCreate(t, svc, in)

	events := repo.Events()
	if len(events) != 1 || events[0].EventType != EventAppointmentCreated {
		t.Fatalf("events = %+v, want one %s", events, EventAppointmentCreated)
	}

	payload, err := DecodeEventPayload(events[0])
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["room"] != float64(created.Room) {
		t.Errorf("event room = %v, want %d", payload["room"], created.Room)
	}
}
