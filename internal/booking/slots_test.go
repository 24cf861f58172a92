package booking

import "testing"

func TestTimeSlotsGrid(t *testing.T) {
	slots := TimeSlots()

	if len(slots) != 14 {
		t.Fatalf("expected 14 slots between 09:00 and 16:00, got %d", len(slots))
	}
	if slots[0] != "09:00" {
		t.Errorf("first slot = %q, want 09:00", slots[0])
	}
	if slots[len(slots)-1] != "15:30" {
		t.Errorf("last slot = %q, want 15:30", slots[len(slots)-1])
	}

	for i := 1; i < len(slots); i++ {
		if slots[i] <= slots[i-1] {
			t.Errorf("slots out of order: %q before %q", slots[i-1], slots[i])
		}
	}
}

func TestTimeSlotsReturnsCopy(t *testing.T) {
	a := TimeSlots()
	a[0] = "mutated"
	if TimeSlots()[0] != "09:00" {
		t.Fatal("TimeSlots must not expose internal state")
	}
}

func TestSlotIndex(t *testing.T) {
	tests := []struct {
		slot string
		want int
	}{
		{"09:00", 0},
		{"09:30", 1},
		{"10:00", 2},
		{"15:30", 13},
		{"16:00", -1},
		{"08:30", -1},
		{"9:00", -1},
		{"", -1},
	}
	for _, tt := range tests {
		if got := SlotIndex(tt.slot); got != tt.want {
			t.Errorf("SlotIndex(%q) = %d, want %d", tt.slot, got, tt.want)
		}
	}
}

func TestValidDate(t *testing.T) {
	valid := []string{"2024-06-01", "2025-12-31"}
	for _, d := range valid {
		if !ValidDate(d) {
			t.Errorf("ValidDate(%q) = false, want true", d)
		}
	}

	invalid := []string{"", "2024-13-01", "01-06-2024", "2024/06/01", "tomorrow"}
	for _, d := range invalid {
		if ValidDate(d) {
			t.Errorf("ValidDate(%q) = true, want false", d)
		}
	}
}

func TestValidRoom(t *testing.T) {
	for room := 1; room <= RoomCount; room++ {
		if !ValidRoom(room) {
			t.Errorf("ValidRoom(%d) = false, want true", room)
		}
	}
	for _, room := range []int{0, -1, RoomCount + 1} {
		if ValidRoom(room) {
			t.Errorf("ValidRoom(%d) = true, want false", room)
		}
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusConfirmed, StatusCancelled} {
		if !ValidStatus(s) {
			t.Errorf("ValidStatus(%q) = false, want true", s)
		}
	}
	if ValidStatus("expired") {
		t.Error("ValidStatus(expired) = true, want false")
	}
	if ValidStatus("") {
		t.Error("ValidStatus(\"\") = true, want false")
	}
}

func TestCaseFormPayloadIsEmpty(t *testing.T) {
	if !(CaseFormPayload{}).IsEmpty() {
		t.Error("zero payload should be empty")
	}

	filled := CaseFormPayload{ChiefComplaint: "persistent cough"}
	if filled.IsEmpty() {
		t.Error("payload with a complaint should not be empty")
	}

	listOnly := CaseFormPayload{RecurringIssues: []string{"headaches"}}
	if listOnly.IsEmpty() {
		t.Error("payload with a multi-select answer should not be empty")
	}
}
