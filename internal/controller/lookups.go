package controller

import (
	"context"
	"sort"
	"strconv"

	"salas/internal/api"
	"salas/internal/view"
)

// Lookups holds the reference combos shared by the forms and filters.
// Combos change only when one of the Load methods runs.
type Lookups struct {
	api    *api.Client
	status view.Status

	Buildings      view.Combo
	BuildingFilter view.Combo
	Slots          view.Combo
	Rooms          view.Combo

	roomsBuilding string
	slotLabels    map[int]string
}

// NewLookups creates empty combos.
func NewLookups(client *api.Client, status view.Status) *Lookups {
	return &Lookups{api: client, status: status, slotLabels: map[int]string{}}
}

// LoadBuildings refreshes the building combos.
func (l *Lookups) LoadBuildings(ctx context.Context) error {
	buildings, err := l.api.Buildings(ctx, l.status)
	if err != nil {
		return reported(err)
	}
	names := make([]string, 0, len(buildings))
	for _, b := range buildings {
		if b != "" {
			names = append(names, string(b))
		}
	}
	sort.Strings(names)
	opts := stringOptions(names)
	l.Buildings.Populate(opts, false)
	l.BuildingFilter.Populate(opts, true)
	return nil
}

// LoadSlots refreshes the slot combo and the label index.
func (l *Lookups) LoadSlots(ctx context.Context) error {
	slots, err := l.api.Slots(ctx, l.status)
	if err != nil {
		return reported(err)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].ID < slots[j].ID })
	opts := make([]view.Option, 0, len(slots))
	labels := make(map[int]string, len(slots))
	for _, s := range slots {
		labels[s.ID] = s.Label()
		opts = append(opts, view.Option{Value: strconv.Itoa(s.ID), Label: s.Label()})
	}
	l.slotLabels = labels
	l.Slots.Populate(opts, false)
	return nil
}

// LoadRooms fills the room combo with the rooms of building. An empty building
// clears the combo without calling the backend.
func (l *Lookups) LoadRooms(ctx context.Context, building string) error {
	if building == "" {
		l.Rooms.Clear()
		l.roomsBuilding = ""
		return nil
	}
	rooms, err := l.api.Rooms(ctx, building, l.status)
	if err != nil {
		l.Rooms.Clear()
		l.roomsBuilding = ""
		return reported(err)
	}
	opts := make([]view.Option, 0, len(rooms))
	for _, r := range rooms {
		if r.Building != "" && r.Building != building {
			continue
		}
		opts = append(opts, view.Option{Value: r.Name, Label: r.Name})
	}
	if building != l.roomsBuilding {
		l.Rooms.Value = ""
	}
	l.Rooms.Populate(opts, false)
	l.roomsBuilding = building
	return nil
}

// RoomsBuilding is the building the room combo was last loaded for.
func (l *Lookups) RoomsBuilding() string {
	return l.roomsBuilding
}

// SlotLabel renders a slot id as HH:MM-HH:MM when known.
func (l *Lookups) SlotLabel(id int) string {
	if label, ok := l.slotLabels[id]; ok {
		return label
	}
	return strconv.Itoa(id)
}

// Reload refreshes buildings, then slots, then the rooms of the selected building.
func (l *Lookups) Reload(ctx context.Context) error {
	if err := l.LoadBuildings(ctx); err != nil {
		return err
	}
	if err := l.LoadSlots(ctx); err != nil {
		return err
	}
	building := l.roomsBuilding
	if building == "" {
		building = l.Buildings.Value
	}
	return l.LoadRooms(ctx, building)
}
