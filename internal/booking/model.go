package booking

import (
	"reflect"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// ValidStatus reports whether s is one of the three known statuses.
// Transitions between them are deliberately unrestricted: the admin
// dashboard may re-activate a cancelled booking.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

type Appointment struct {
	ID              uuid.UUID
	Name            string
	Phone           string
	Email           *string
	Date            string // YYYY-MM-DD
	TimeSlot        string // HH:MM, from the slot grid
	Room            int    // 1..RoomCount
	CaseDescription *string
	CaseFormID      *uuid.UUID
	Status          Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CaseForm is the optional long-form patient history linked 1:1 to an
// appointment. The payload is stored as a single jsonb document; the
// allocation logic never looks inside it.
type CaseForm struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	Payload       CaseFormPayload
	CreatedAt     time.Time
}

type FamilyMember struct {
	Relation   string `json:"relation,omitempty"`
	AgeAlive   string `json:"ageAlive,omitempty"`
	AgePassing string `json:"agePassing,omitempty"`
	Ailments   string `json:"ailments,omitempty"`
}

// CaseFormPayload carries the intake questionnaire. Every field is optional;
// a payload with nothing filled in is rejected at booking time.
type CaseFormPayload struct {
	// Basic information
	CurrentHeight  string `json:"currentHeight,omitempty"`
	CurrentWeight  string `json:"currentWeight,omitempty"`
	ChiefComplaint string `json:"chiefComplaint,omitempty"`

	// Birth history
	MaternalHealth    []string `json:"maternalHealth,omitempty"`
	MaternalIssues    string   `json:"maternalIssues,omitempty"`
	CSections         string   `json:"cSections,omitempty"`
	BirthType         string   `json:"birthType,omitempty"`
	BirthWeight       string   `json:"birthWeight,omitempty"`
	BreastFed         string   `json:"breastFed,omitempty"`
	BreastFedDuration string   `json:"breastFedDuration,omitempty"`

	// Development milestones
	TeethAge         string `json:"teethAge,omitempty"`
	CrawlAge         string `json:"crawlAge,omitempty"`
	WalkAge          string `json:"walkAge,omitempty"`
	TalkAge          string `json:"talkAge,omitempty"`
	MilestonesNormal string `json:"milestonesNormal,omitempty"`

	// Illness history
	ChickenPox      string `json:"chickenPox,omitempty"`
	Mumps           string `json:"mumps,omitempty"`
	Measles         string `json:"measles,omitempty"`
	Pneumonia       string `json:"pneumonia,omitempty"`
	WhoopingCough   string `json:"whoopingCough,omitempty"`
	Typhoid         string `json:"typhoid,omitempty"`
	Dengue          string `json:"dengue,omitempty"`
	Malaria         string `json:"malaria,omitempty"`
	AccidentInjury  string `json:"accidentInjury,omitempty"`
	AnimalBite      string `json:"animalBite,omitempty"`
	SurgicalHistory string `json:"surgicalHistory,omitempty"`
	OtherIllnesses  string `json:"otherIllnesses,omitempty"`

	RecurringIssues []string `json:"recurringIssues,omitempty"`

	// Vaccinations
	VaccinationReactions     string `json:"vaccinationReactions,omitempty"`
	HealthDeclineVaccination string `json:"healthDeclineVaccination,omitempty"`
	AllergyDesensitization   string `json:"allergyDesensitization,omitempty"`

	FamilyHistory []FamilyMember `json:"familyHistory,omitempty"`

	// Life events and personality
	SignificantEvents string   `json:"significantEvents,omitempty"`
	ChildhoodNature   string   `json:"childhoodNature,omitempty"`
	AngerReaction     []string `json:"angerReaction,omitempty"`
	PersonalityTrait  string   `json:"personalityTrait,omitempty"`
	Hobbies           string   `json:"hobbies,omitempty"`
	StressFactor      string   `json:"stressFactor,omitempty"`

	// Symptoms
	PainSymptoms     []string `json:"painSymptoms,omitempty"`
	SymptomBetter    string   `json:"symptomBetter,omitempty"`
	SymptomWorse     string   `json:"symptomWorse,omitempty"`
	SymptomTimeOfDay string   `json:"symptomTimeOfDay,omitempty"`
	SymptomLocation  string   `json:"symptomLocation,omitempty"`
	DailySymptoms    string   `json:"dailySymptoms,omitempty"`
}

// IsEmpty reports whether nothing in the questionnaire was filled in.
func (p CaseFormPayload) IsEmpty() bool {
	return reflect.DeepEqual(p, CaseFormPayload{})
}

// SlotAvailability is the capacity checker's answer for one slot.
type SlotAvailability struct {
	Date           string
	TimeSlot       string
	BookedCount    int
	AvailableRooms []int
}

// AppointmentDetail is an appointment with its case form resolved.
type AppointmentDetail struct {
	Appointment
	CaseForm *CaseForm
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
