// Package view defines the toolkit-independent view-model produced by controllers:
// tables with badges and actions, forms, combos and the status/notification sinks.
package view

import "strings"

// StatusKind classifies a status message.
type StatusKind int

const (
	StatusInfo StatusKind = iota
	StatusOK
	StatusError
)

// Status is a target whose displayed text is overwritten by each call.
type Status interface {
	SetStatus(kind StatusKind, text string)
}

// StatusFunc adapts a function to Status.
type StatusFunc func(kind StatusKind, text string)

// SetStatus implements Status.
func (f StatusFunc) SetStatus(kind StatusKind, text string) { f(kind, text) }

// Notifier shows transient, non-blocking messages.
type Notifier interface {
	Notify(text string)
}

// Confirmer asks the user to confirm an action; when accepted the action is
// dispatched again with Confirmed set.
type Confirmer interface {
	AskConfirm(prompt string, action Action)
}

// FormPresenter shows a form for the user to fill.
type FormPresenter interface {
	ShowForm(form Form)
}

// FileSender delivers a generated file.
type FileSender interface {
	SendFile(name string, data []byte)
}

// View is every sink a controller drives.
type View interface {
	Status
	Notifier
	Confirmer
	Navigator
	FormPresenter
	FileSender
}

// Tab names a panel of the application shell.
type Tab string

const (
	TabRooms        Tab = "salas"
	TabParticipants Tab = "participantes"
	TabSlots        Tab = "turnos"
	TabReservations Tab = "reservas"
	TabAvailability Tab = "disponibilidad"
	TabSanctions    Tab = "sanciones"
	TabReports      Tab = "reportes"
)

// Navigator switches the active tab.
type Navigator interface {
	SwitchTab(tab Tab)
}

// ActionKind identifies what a row button does.
type ActionKind string

const (
	ActionEdit       ActionKind = "edit"
	ActionDelete     ActionKind = "delete"
	ActionReserve    ActionKind = "reserve"
	ActionState      ActionKind = "state"
	ActionAttendance ActionKind = "attendance"
	ActionExport     ActionKind = "export"
	ActionNew        ActionKind = "new"
	ActionFilter     ActionKind = "filter"
)

// Action is a button attached to a row.
type Action struct {
	Tab       Tab
	Kind      ActionKind
	Key       string
	Value     string
	Label     string
	Confirmed bool
}

// WithConfirmed returns a copy marked as confirmed.
func (a Action) WithConfirmed() Action {
	a.Confirmed = true
	return a
}

// Badge is a computed label for an enumerated field.
type Badge struct {
	Text string
	Kind string
}

// Row is one rendered record.
type Row struct {
	Key     string
	Cells   []string
	Badge   *Badge
	Actions []Action
	Notice  string
}

// ReadOnlyNotice replaces action buttons for sessions without privilege.
const ReadOnlyNotice = "Solo lectura"

// EmptyText is shown for a table without rows.
const EmptyText = "Sin datos"

// Table is a rendered list. Actions apply to the table as a whole.
type Table struct {
	Title   string
	Columns []string
	Rows    []Row
	Actions []Action
	Notice  string
}

// Empty reports whether there is nothing to show.
func (t Table) Empty() bool {
	return len(t.Rows) == 0
}

// Option is one entry of a selection widget.
type Option struct {
	Value string
	Label string
}

// AllOption is the pseudo-option used by filter widgets.
var AllOption = Option{Value: "", Label: "Todos"}

// Combo is a selection widget state.
type Combo struct {
	Options []Option
	Value   string
}

// Populate replaces the options, optionally prefixed by AllOption. The current
// value is kept when still offered, otherwise the first option is selected.
func (c *Combo) Populate(opts []Option, withAll bool) {
	c.Options = make([]Option, 0, len(opts)+1)
	if withAll {
		c.Options = append(c.Options, AllOption)
	}
	c.Options = append(c.Options, opts...)
	if c.Has(c.Value) {
		return
	}
	c.Value = ""
	if len(c.Options) > 0 {
		c.Value = c.Options[0].Value
	}
}

// Clear drops every option and the selection.
func (c *Combo) Clear() {
	c.Options = nil
	c.Value = ""
}

// Has reports whether value is one of the options.
func (c *Combo) Has(value string) bool {
	for _, o := range c.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}

// Select sets the value if offered.
func (c *Combo) Select(value string) bool {
	if !c.Has(value) {
		return false
	}
	c.Value = value
	return true
}

// FieldKind tells the adapter how to collect a field.
type FieldKind int

const (
	FieldText FieldKind = iota
	FieldSelect
	FieldBool
)

// Field describes one form input.
type Field struct {
	Key       string
	Label     string
	Kind      FieldKind
	Options   []Option
	DependsOn string
	Optional  bool
	Hint      string
}

// Values holds raw form input keyed by field.
type Values map[string]string

// Get returns the trimmed value of key.
func (v Values) Get(key string) string {
	return strings.TrimSpace(v[key])
}

// Clone copies the values.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Form is a rendered input form with any prefilled values.
type Form struct {
	Tab     Tab
	ID      string
	Title   string
	Fields  []Field
	Values  Values
	Editing bool
}

// Field returns the field with key, if any.
func (f Form) Field(key string) (Field, bool) {
	for _, fl := range f.Fields {
		if fl.Key == key {
			return fl, true
		}
	}
	return Field{}, false
}
