// Package model holds client-side mirrors of the reservation backend resources.
package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Building is identified by its name only.
type Building string

// UnmarshalJSON accepts a bare string or an object carrying the name.
func (b *Building) UnmarshalJSON(data []byte) error {
	res := gjson.ParseBytes(data)
	switch {
	case res.Type == gjson.String:
		*b = Building(res.String())
	case res.IsObject():
		name := res.Get("edificio")
		if !name.Exists() {
			name = res.Get("nombre_edificio")
		}
		if !name.Exists() {
			name = res.Get("nombre")
		}
		*b = Building(name.String())
	default:
		return fmt.Errorf("unexpected building payload: %s", string(data))
	}
	return nil
}

// Room types known to the backend.
const (
	RoomTypeFree     = "libre"
	RoomTypeGraduate = "posgrado"
	RoomTypeFaculty  = "docente"
)

// RoomTypes lists the selectable room types.
var RoomTypes = []string{RoomTypeFree, RoomTypeGraduate, RoomTypeFaculty}

// Room is keyed by (Building, Name).
type Room struct {
	Building string `json:"edificio"`
	Name     string `json:"nombre_sala"`
	Capacity int    `json:"capacidad"`
	Type     string `json:"tipo_sala"`
}

// Key returns the composite identifier used by actions.
func (r Room) Key() string {
	return r.Building + "/" + r.Name
}

// Slot is a fixed daily time window.
type Slot struct {
	ID    int    `json:"id_turno"`
	Start string `json:"hora_inicio"`
	End   string `json:"hora_fin"`
}

// Label renders HH:MM-HH:MM.
func (s Slot) Label() string {
	return shortTime(s.Start) + "-" + shortTime(s.End)
}

func shortTime(t string) string {
	if len(t) >= 5 {
		return t[:5]
	}
	return t
}

// Participant is keyed by the normalised national ID.
type Participant struct {
	CI        string `json:"ci"`
	FirstName string `json:"nombre"`
	LastName  string `json:"apellido"`
	Email     string `json:"email"`
	Type      string `json:"tipo_participante"`
}

// FullName joins first and last name.
func (p Participant) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Participant types known to the backend.
var ParticipantTypes = []string{"estudiante", "posgrado", "docente", "administrativo"}

// ReservationState is the lifecycle state of a reservation.
type ReservationState string

const (
	StateActive    ReservationState = "activa"
	StateCancelled ReservationState = "cancelada"
	StateNoShow    ReservationState = "sin_asistencia"
	StateFinished  ReservationState = "finalizada"
)

// ReservationStates is the closed set of states accepted by the backend.
var ReservationStates = []ReservationState{StateActive, StateCancelled, StateNoShow, StateFinished}

// Valid reports whether s is one of the enumerated states.
func (s ReservationState) Valid() bool {
	for _, st := range ReservationStates {
		if s == st {
			return true
		}
	}
	return false
}

// CoerceState maps anything outside the enumerated set to StateActive.
func CoerceState(raw string) ReservationState {
	s := ReservationState(strings.TrimSpace(raw))
	if s.Valid() {
		return s
	}
	return StateActive
}

// Reservation books a Room+Slot+Date for a set of participants.
type Reservation struct {
	ID           int64            `json:"id_reserva"`
	Building     string           `json:"edificio"`
	Room         string           `json:"nombre_sala"`
	Date         string           `json:"fecha"`
	SlotID       int              `json:"id_turno"`
	State        ReservationState `json:"estado"`
	Participants []string         `json:"participantes,omitempty"`
}

// Sanction is keyed by (CI, Start).
type Sanction struct {
	CI    string `json:"ci_participante"`
	Start string `json:"fecha_inicio"`
	End   string `json:"fecha_fin"`
}

// Key returns the composite identifier used by actions.
func (s Sanction) Key() string {
	return s.CI + "/" + s.Start
}

// sanctionCIPaths is the lookup order for the sanctioned participant's ID.
// Responses seen so far disagree on the field name.
var sanctionCIPaths = []string{"ci_sancionado", "ci_participante", "ci", "sancionado.ci"}

// UnmarshalJSON resolves the participant ID through every known field name.
func (s *Sanction) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid sanction payload")
	}
	res := gjson.ParseBytes(data)
	s.CI = ""
	for _, path := range sanctionCIPaths {
		if v := res.Get(path); v.Exists() && v.String() != "" {
			s.CI = v.String()
			break
		}
	}
	s.Start = res.Get("fecha_inicio").String()
	s.End = res.Get("fecha_fin").String()
	return nil
}

// SlotAvailability is one row of the availability query.
type SlotAvailability struct {
	SlotID           int    `json:"id_turno"`
	Start            string `json:"hora_inicio"`
	End              string `json:"hora_fin"`
	Reserved         bool   `json:"reservado"`
	ReservationState string `json:"estado_reserva,omitempty"`
}

// Label renders HH:MM-HH:MM.
func (s SlotAvailability) Label() string {
	return shortTime(s.Start) + "-" + shortTime(s.End)
}

// AttendanceResult is returned after registering attendance.
type AttendanceResult struct {
	Reservation      Reservation `json:"reserva"`
	CreatedSanctions []Sanction  `json:"sanciones_creadas"`
}

// FlagKind discriminates the raw shapes an admin flag can take on the wire.
type FlagKind int

const (
	FlagAbsent FlagKind = iota
	FlagBool
	FlagNumber
	FlagString
	FlagOther
)

// Flag keeps a raw admin indicator exactly as the backend sent it.
type Flag struct {
	Kind   FlagKind
	Bool   bool
	Number float64
	String string
}

// BoolFlag builds an explicit boolean flag.
func BoolFlag(v bool) Flag {
	return Flag{Kind: FlagBool, Bool: v}
}

// UnmarshalJSON records the wire shape of the flag.
func (f *Flag) UnmarshalJSON(data []byte) error {
	res := gjson.ParseBytes(data)
	switch res.Type {
	case gjson.Null:
		*f = Flag{}
	case gjson.True, gjson.False:
		*f = Flag{Kind: FlagBool, Bool: res.Bool()}
	case gjson.Number:
		*f = Flag{Kind: FlagNumber, Number: res.Float()}
	case gjson.String:
		*f = Flag{Kind: FlagString, String: res.String()}
	default:
		*f = Flag{Kind: FlagOther}
	}
	return nil
}

// MarshalJSON writes the flag back in its original shape.
func (f Flag) MarshalJSON() ([]byte, error) {
	switch f.Kind {
	case FlagBool:
		return json.Marshal(f.Bool)
	case FlagNumber:
		return json.Marshal(f.Number)
	case FlagString:
		return json.Marshal(f.String)
	default:
		return []byte("null"), nil
	}
}

// Truthy is true for boolean true, numeric 1 and the string "1".
func (f Flag) Truthy() bool {
	switch f.Kind {
	case FlagBool:
		return f.Bool
	case FlagNumber:
		return f.Number == 1
	case FlagString:
		return strings.TrimSpace(f.String) == "1"
	default:
		return false
	}
}

// User is the participant record returned by /auth/login plus raw admin signals.
type User struct {
	Participant
	EsAdmin Flag `json:"es_admin"`
	IsAdmin Flag `json:"is_admin"`
}
