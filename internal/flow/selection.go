// package flow implements the paginated playlist selection state machine
// driven by inline-keyboard callbacks.
//
// A session is ephemeral: it exists for one button-driven dialogue and its
// terminal transition (an item press) ends it. Callback payloads use the
// form "action:target" for selections and "action:next|back:offset" for
// pagination, so a session can be reconstructed from any payload without
// server-side state. Stale pagination edits racing on the same message are
// accepted as last-write-wins.
package flow

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rafacovez/notify/internal/shared"
)

// Action tags what a terminal selection means.
type Action int

const (
	ActionAdd Action = iota
	ActionRemove
)

func (a Action) String() string {
	switch a {
	case ActionAdd:
		return "add_playlist"
	case ActionRemove:
		return "remove_playlist"
	default:
		return ""
	}
}

// ParseAction maps a callback action tag back to an Action.
func ParseAction(s string) (Action, bool) {
	switch s {
	case "add_playlist":
		return ActionAdd, true
	case "remove_playlist":
		return ActionRemove, true
	default:
		return 0, false
	}
}

// CallbackKind distinguishes the two non-terminal payload shapes.
type CallbackKind int

const (
	KindSelect CallbackKind = iota // terminal: an item was pressed
	KindPage                       // pagination: re-render at a new offset
)

// Callback is a parsed button payload.
type Callback struct {
	Action     Action
	Kind       CallbackKind
	PlaylistID string // set for KindSelect
	Offset     int    // set for KindPage, already bounded below at 0
}

// ParseCallback parses a raw callback payload. Malformed payloads return
// [shared.ErrInvalidInput].
func ParseCallback(data string) (Callback, error) {
	parts := strings.Split(data, ":")
	if len(parts) < 2 {
		return Callback{}, fmt.Errorf("%w: callback %q", shared.ErrInvalidInput, data)
	}

	action, ok := ParseAction(parts[0])
	if !ok {
		return Callback{}, fmt.Errorf("%w: unknown action %q", shared.ErrInvalidInput, parts[0])
	}

	if parts[1] == "next" || parts[1] == "back" {
		if len(parts) < 3 {
			return Callback{}, fmt.Errorf("%w: callback %q", shared.ErrInvalidInput, data)
		}
		offset, err := strconv.Atoi(parts[2])
		if err != nil {
			return Callback{}, fmt.Errorf("%w: offset %q", shared.ErrInvalidInput, parts[2])
		}
		if offset < 0 {
			offset = 0
		}
		return Callback{Action: action, Kind: KindPage, Offset: offset}, nil
	}

	return Callback{Action: action, Kind: KindSelect, PlaylistID: parts[1]}, nil
}

// Item is one selectable playlist.
type Item struct {
	ID   string
	Name string
}

// Button is one inline-keyboard button: a label and the callback payload it
// emits when pressed.
type Button struct {
	Label string
	Data  string
}

// Session is the Listing state of one selection dialogue.
type Session struct {
	Action   Action
	Offset   int
	PageSize int
}

// NewSession starts a selection dialogue at offset 0.
func NewSession(action Action, pageSize int) Session {
	if pageSize <= 0 {
		pageSize = 4
	}
	return Session{Action: action, PageSize: pageSize}
}

// FetchLimit is how many items to request for the current page: one more
// than the page size, so an overflowing fetch proves another page exists.
func (s Session) FetchLimit() int {
	return s.PageSize + 1
}

// Page renders the keyboard for items fetched with [Session.FetchLimit].
// Item buttons are laid out two per row; a final navigation row carries
// "back" when the offset is positive and "next" when the probe item is
// present.
func (s Session) Page(items []Item) [][]Button {
	hasMore := len(items) > s.PageSize
	if hasMore {
		items = items[:s.PageSize]
	}

	var rows [][]Button
	for i := 0; i < len(items); i += 2 {
		row := []Button{itemButton(s.Action, items[i])}
		if i+1 < len(items) {
			row = append(row, itemButton(s.Action, items[i+1]))
		}
		rows = append(rows, row)
	}

	var nav []Button
	if s.Offset > 0 {
		back := s.Offset - s.PageSize
		if back < 0 {
			back = 0
		}
		nav = append(nav, Button{
			Label: "⬅️ Back",
			Data:  fmt.Sprintf("%s:back:%d", s.Action, back),
		})
	}
	if hasMore {
		nav = append(nav, Button{
			Label: "➡️ Next",
			Data:  fmt.Sprintf("%s:next:%d", s.Action, s.Offset+s.PageSize),
		})
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}

	return rows
}

func itemButton(action Action, item Item) Button {
	return Button{
		Label: item.Name,
		Data:  fmt.Sprintf("%s:%s", action, item.ID),
	}
}
