package validate

import (
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"salas/internal/model"
	"salas/internal/view"
)

func roomTypeValues() []interface{} {
	out := make([]interface{}, 0, len(model.RoomTypes))
	for _, t := range model.RoomTypes {
		out = append(out, t)
	}
	return out
}

func stateValues() []interface{} {
	out := make([]interface{}, 0, len(model.ReservationStates))
	for _, s := range model.ReservationStates {
		out = append(out, string(s))
	}
	return out
}

func positiveRule(label string) validation.Rule {
	return validation.By(func(value interface{}) error {
		s, _ := value.(string)
		if s == "" {
			return nil
		}
		_, err := PositiveInt(label, s)
		return err
	})
}

// RoomForm is the room create/update input.
type RoomForm struct {
	Building string `json:"edificio"`
	Name     string `json:"nombre_sala"`
	Capacity string `json:"capacidad"`
	Type     string `json:"tipo_sala"`
}

// RoomFormFrom reads a RoomForm from raw values.
func RoomFormFrom(v view.Values) RoomForm {
	return RoomForm{Building: v.Get("edificio"), Name: v.Get("nombre_sala"), Capacity: v.Get("capacidad"), Type: v.Get("tipo_sala")}
}

// Validate checks the room fields.
func (f *RoomForm) Validate() error {
	return validation.ValidateStruct(f,
		validation.Field(&f.Building, validation.Required.Error("Edificio requerido")),
		validation.Field(&f.Name, validation.Required.Error("Nombre de sala requerido")),
		validation.Field(&f.Capacity, validation.Required.Error("Capacidad requerida"), positiveRule("Capacidad")),
		validation.Field(&f.Type, validation.Required.Error("Tipo de sala requerido"),
			validation.In(roomTypeValues()...).Error("Tipo de sala inválido")),
	)
}

// Room validates and converts the form.
func (f RoomForm) Room() (model.Room, error) {
	if err := f.Validate(); err != nil {
		return model.Room{}, err
	}
	capacity, _ := strconv.Atoi(f.Capacity)
	return model.Room{Building: f.Building, Name: f.Name, Capacity: capacity, Type: f.Type}, nil
}

// SlotForm is the slot create/update input.
type SlotForm struct {
	ID    string `json:"id_turno"`
	Start string `json:"hora_inicio"`
	End   string `json:"hora_fin"`
}

// SlotFormFrom reads a SlotForm from raw values.
func SlotFormFrom(v view.Values) SlotForm {
	return SlotForm{ID: v.Get("id_turno"), Start: v.Get("hora_inicio"), End: v.Get("hora_fin")}
}

// Slot validates and converts the form. Start must precede End.
func (f SlotForm) Slot() (model.Slot, error) {
	err := validation.ValidateStruct(&f,
		validation.Field(&f.ID, validation.Required.Error("Id de turno requerido"), positiveRule("Id de turno")),
	)
	if err != nil {
		return model.Slot{}, err
	}
	start, err := Time("Hora de inicio", f.Start)
	if err != nil {
		return model.Slot{}, err
	}
	end, err := Time("Hora de fin", f.End)
	if err != nil {
		return model.Slot{}, err
	}
	if end <= start {
		return model.Slot{}, &Error{Field: "hora_fin", Message: "La hora de fin debe ser posterior a la de inicio"}
	}
	id, _ := strconv.Atoi(f.ID)
	return model.Slot{ID: id, Start: start, End: end}, nil
}

// ParticipantForm is the participant create/update input.
type ParticipantForm struct {
	CI        string `json:"ci"`
	FirstName string `json:"nombre"`
	LastName  string `json:"apellido"`
	Email     string `json:"email"`
	Type      string `json:"tipo_participante"`
}

// ParticipantFormFrom reads a ParticipantForm from raw values.
func ParticipantFormFrom(v view.Values) ParticipantForm {
	return ParticipantForm{
		CI:        v.Get("ci"),
		FirstName: v.Get("nombre"),
		LastName:  v.Get("apellido"),
		Email:     v.Get("email"),
		Type:      v.Get("tipo_participante"),
	}
}

// Validate checks the participant fields.
func (f *ParticipantForm) Validate() error {
	return validation.ValidateStruct(f,
		validation.Field(&f.CI, validation.Required.Error(msgBadCI), ciRule),
		validation.Field(&f.FirstName, nameRule("Nombre")),
		validation.Field(&f.LastName, nameRule("Apellido")),
		validation.Field(&f.Email, validation.Required.Error("Email inválido"), is.Email.Error("Email inválido")),
		validation.Field(&f.Type, validation.Required.Error("Tipo de participante requerido")),
	)
}

// Participant validates and converts the form.
func (f ParticipantForm) Participant() (model.Participant, error) {
	if err := f.Validate(); err != nil {
		return model.Participant{}, err
	}
	ci, _ := NationalID(f.CI)
	first, _ := Name("Nombre", f.FirstName)
	last, _ := Name("Apellido", f.LastName)
	email, _ := Email(f.Email)
	return model.Participant{CI: ci, FirstName: first, LastName: last, Email: email, Type: f.Type}, nil
}

// ReservationForm is the reservation create input.
type ReservationForm struct {
	Building     string `json:"edificio"`
	Room         string `json:"nombre_sala"`
	Date         string `json:"fecha"`
	SlotID       string `json:"id_turno"`
	Participants string `json:"participantes"`
	State        string `json:"estado"`
}

// ReservationFormFrom reads a ReservationForm from raw values.
func ReservationFormFrom(v view.Values) ReservationForm {
	return ReservationForm{
		Building:     v.Get("edificio"),
		Room:         v.Get("nombre_sala"),
		Date:         v.Get("fecha"),
		SlotID:       v.Get("id_turno"),
		Participants: v.Get("participantes"),
		State:        v.Get("estado"),
	}
}

// Reservation validates and converts the form. State falls back to activa.
func (f ReservationForm) Reservation() (model.Reservation, error) {
	err := validation.ValidateStruct(&f,
		validation.Field(&f.Building, validation.Required.Error("Edificio requerido")),
		validation.Field(&f.Room, validation.Required.Error("Sala requerida")),
		validation.Field(&f.Date, validation.Required.Error("Fecha requerida"), dateRule("Fecha")),
		validation.Field(&f.SlotID, validation.Required.Error("Turno requerido"), positiveRule("Turno")),
	)
	if err != nil {
		return model.Reservation{}, err
	}
	ids, err := IDList(f.Participants)
	if err != nil {
		return model.Reservation{}, err
	}
	if len(ids) == 0 {
		return model.Reservation{}, &Error{Field: "participantes", Message: "Indique al menos un participante"}
	}
	slotID, _ := strconv.Atoi(f.SlotID)
	return model.Reservation{
		Building:     f.Building,
		Room:         f.Room,
		Date:         f.Date,
		SlotID:       slotID,
		State:        model.CoerceState(f.State),
		Participants: ids,
	}, nil
}

// StateForm is the reservation state change input.
type StateForm struct {
	State string `json:"estado"`
}

// Validate restricts the state to the enumerated set.
func (f *StateForm) Validate() error {
	return validation.ValidateStruct(f,
		validation.Field(&f.State, validation.Required.Error("Estado requerido"),
			validation.In(stateValues()...).Error("Estado inválido")),
	)
}

// SanctionForm is the sanction create/update input.
type SanctionForm struct {
	CI    string `json:"ci_participante"`
	Start string `json:"fecha_inicio"`
	End   string `json:"fecha_fin"`
}

// SanctionFormFrom reads a SanctionForm from raw values.
func SanctionFormFrom(v view.Values) SanctionForm {
	return SanctionForm{CI: v.Get("ci_participante"), Start: v.Get("fecha_inicio"), End: v.Get("fecha_fin")}
}

// Sanction validates and converts the form. End may not precede Start.
func (f SanctionForm) Sanction() (model.Sanction, error) {
	err := validation.ValidateStruct(&f,
		validation.Field(&f.CI, validation.Required.Error(msgBadCI), ciRule),
		validation.Field(&f.Start, validation.Required.Error("Fecha de inicio requerida"), dateRule("Fecha de inicio")),
		validation.Field(&f.End, validation.Required.Error("Fecha de fin requerida"), dateRule("Fecha de fin")),
	)
	if err != nil {
		return model.Sanction{}, err
	}
	if f.End < f.Start {
		return model.Sanction{}, &Error{Field: "fecha_fin", Message: "La fecha de fin no puede ser anterior a la de inicio"}
	}
	ci, _ := NationalID(f.CI)
	return model.Sanction{CI: ci, Start: f.Start, End: f.End}, nil
}

// AttendanceForm is the attendance registration input.
type AttendanceForm struct {
	Present  string
	Sanction string
}

// AttendanceFormFrom reads an AttendanceForm from raw values.
func AttendanceFormFrom(v view.Values) AttendanceForm {
	return AttendanceForm{Present: v.Get("presentes"), Sanction: v.Get("sancionar_ausentes")}
}

// Parse returns the validated present list and the sanction flag.
// An empty list is allowed and means nobody attended.
func (f AttendanceForm) Parse() ([]string, bool, error) {
	ids, err := IDList(f.Present)
	if err != nil {
		return nil, false, err
	}
	return ids, ParseBool(f.Sanction), nil
}

// ParseBool accepts the usual yes/true spellings.
func ParseBool(raw string) bool {
	switch raw {
	case "1", "true", "si", "sí", "Sí", "Si", "yes", "on":
		return true
	default:
		return false
	}
}

// ReportQuery is the date range (and optional limit) of a report.
type ReportQuery struct {
	From  string `json:"desde"`
	To    string `json:"hasta"`
	Limit string `json:"limit"`
}

// ReportQueryFrom reads a ReportQuery from raw values.
func ReportQueryFrom(v view.Values) ReportQuery {
	return ReportQuery{From: v.Get("desde"), To: v.Get("hasta"), Limit: v.Get("limit")}
}

// Validate checks the range and limit.
func (q *ReportQuery) Validate() error {
	err := validation.ValidateStruct(q,
		validation.Field(&q.From, validation.Required.Error("Fecha desde requerida"), dateRule("Fecha desde")),
		validation.Field(&q.To, validation.Required.Error("Fecha hasta requerida"), dateRule("Fecha hasta")),
		validation.Field(&q.Limit, positiveRule("Límite")),
	)
	if err != nil {
		return err
	}
	if q.To < q.From {
		return &Error{Field: "hasta", Message: "El rango de fechas es inválido"}
	}
	return nil
}
