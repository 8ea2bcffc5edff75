package models

import "strings"

// RoomKind classifies rooms for type compatibility.
type RoomKind string

const (
	RoomAmphi    RoomKind = "Amphi"
	RoomStandard RoomKind = "Standard"
	RoomSTP      RoomKind = "STP"
)

// ParseRoomKind accepts loose spellings used by imported catalogs.
func ParseRoomKind(raw string) RoomKind {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "AMPHI", "AMPHITHEATRE", "AMPHITHÉÂTRE":
		return RoomAmphi
	case "STP", "TP", "LAB":
		return RoomSTP
	default:
		return RoomStandard
	}
}

// Room describes one entry of the room catalog.
type Room struct {
	Kind     RoomKind `json:"type"`
	Capacity int      `json:"capacity"`
}

// RoomCatalog maps room names to their description.
type RoomCatalog map[string]Room

// Lookup finds a room by name ignoring case and surrounding spaces.
func (c RoomCatalog) Lookup(name string) (string, Room, bool) {
	if room, ok := c[name]; ok {
		return name, room, true
	}
	needle := NormalizeName(name)
	if needle == "" {
		return "", Room{}, false
	}
	for key, room := range c {
		if NormalizeName(key) == needle {
			return key, room, true
		}
	}
	return "", Room{}, false
}

// IsSTPRoom reports whether a TP may be hosted: name prefix "STP" or catalog kind STP.
func (c RoomCatalog) IsSTPRoom(name string) bool {
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(name)), "STP") {
		return true
	}
	_, room, ok := c.Lookup(name)
	return ok && room.Kind == RoomSTP
}

// Compatible reports type compatibility. known is false when the room is not cataloged.
func (c RoomCatalog) Compatible(t SessionType, name string) (compatible bool, known bool) {
	if t == SessionTP {
		if c.IsSTPRoom(name) {
			return true, true
		}
		_, _, ok := c.Lookup(name)
		return false, ok
	}
	_, room, ok := c.Lookup(name)
	if !ok {
		return false, false
	}
	return KindAccepts(room.Kind, t), true
}

// KindAccepts encodes Cours ↔ Amphi∪Standard, TD ↔ Standard, TP ↔ STP.
func KindAccepts(kind RoomKind, t SessionType) bool {
	switch t {
	case SessionCours:
		return kind == RoomAmphi || kind == RoomStandard
	case SessionTD:
		return kind == RoomStandard
	case SessionTP:
		return kind == RoomSTP
	}
	return false
}

// Names returns the catalog room names.
func (c RoomCatalog) Names() []string {
	out := make([]string, 0, len(c))
	for name := range c {
		out = append(out, name)
	}
	return out
}
