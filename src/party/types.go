// Package party implements the party coordination engine: raids, raid trains
// and meetups, and the Manager that owns, persists and cleans them up.
package party

import (
	"fmt"
	"time"
)

// Type discriminates the party variants in persisted records.
type Type string

const (
	TypeRaid      Type = "RAID"
	TypeRaidTrain Type = "RAID_TRAIN"
	TypeMeetup    Type = "MEETUP"
)

// Status is a member's participation state within a party.
type Status int

const (
	StatusNotInterested Status = iota
	StatusInterested
	StatusComing
	StatusPresent
	StatusCompletePending
	StatusComplete
)

var statusNames = [...]string{
	"NOT_INTERESTED",
	"INTERESTED",
	"COMING",
	"PRESENT",
	"COMPLETE_PENDING",
	"COMPLETE",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	return s >= StatusNotInterested && s <= StatusComplete
}

// counted reports whether attendees in this status count toward the party size.
func (s Status) counted() bool {
	return s != StatusComplete && s != StatusCompletePending
}

// MaxGroups is the number of groups a party may be split into.
const MaxGroups = 5

// MaxAdditionalAttendees caps the guests one member can bring.
const MaxAdditionalAttendees = 99

// ProtectedFromDeletion is the deletion time sentinel that disables automatic deletion.
const ProtectedFromDeletion int64 = -1

// Attendee is a member's participation record.
type Attendee struct {
	Number int    `json:"number" validate:"min=1"`
	Status Status `json:"status" validate:"gte=0,lte=5"`
	Group  string `json:"group" validate:"required"`
}

// Group is a sub-division of a party's attendees.
type Group struct {
	ID        string     `json:"id" validate:"required,len=1,uppercase"`
	Label     string     `json:"label,omitempty"`
	StartTime *time.Time `json:"startTime,omitempty"`
}

func (g Group) clone() Group {
	if g.StartTime != nil {
		t := *g.StartTime
		g.StartTime = &t
	}
	return g
}

// Pokemon is an opaque boss descriptor returned by the search collaborator.
type Pokemon struct {
	Name      string `json:"name" validate:"required"`
	Tier      int    `json:"tier,omitempty" validate:"gte=0"`
	Exclusive bool   `json:"exclusive,omitempty"`
}

// Moveset is a boss's known moves.
type Moveset struct {
	Quick  string `json:"quick,omitempty"`
	Charge string `json:"charge,omitempty"`
}

// Member references a chat member by id, with a cached display name.
type Member struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name,omitempty"`
}

// Gym is an opaque location reference returned by the gym collaborator.
type Gym struct {
	ID   string
	Name string
}
