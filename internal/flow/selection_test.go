package flow

import (
	"errors"
	"fmt"
	"testing"

	"github.com/rafacovez/notify/internal/shared"
)

func TestParseCallback(t *testing.T) {
	t.Run("selection payload", func(t *testing.T) {
		cb, err := ParseCallback("add_playlist:37i9dQZF1DXcBWIGoYBM5M")
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		if cb.Kind != KindSelect || cb.Action != ActionAdd || cb.PlaylistID != "37i9dQZF1DXcBWIGoYBM5M" {
			t.Errorf("unexpected callback: %+v", cb)
		}
	})

	t.Run("pagination payload", func(t *testing.T) {
		cb, err := ParseCallback("remove_playlist:next:8")
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		if cb.Kind != KindPage || cb.Action != ActionRemove || cb.Offset != 8 {
			t.Errorf("unexpected callback: %+v", cb)
		}
	})

	t.Run("negative offset clamps to zero", func(t *testing.T) {
		cb, err := ParseCallback("add_playlist:back:-4")
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		if cb.Offset != 0 {
			t.Errorf("expected offset 0, got %d", cb.Offset)
		}
	})

	t.Run("malformed payloads", func(t *testing.T) {
		for _, data := range []string{"", "add_playlist", "unknown_action:p1", "add_playlist:next", "add_playlist:next:NaN"} {
			_, err := ParseCallback(data)
			if !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("ParseCallback(%q): expected ErrInvalidInput, got %v", data, err)
			}
		}
	})
}

func testItems(n int) []Item {
	items := make([]Item, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, Item{ID: fmt.Sprintf("p%d", i), Name: fmt.Sprintf("Playlist %d", i)})
	}
	return items
}

func navLabels(rows [][]Button) []string {
	if len(rows) == 0 {
		return nil
	}
	last := rows[len(rows)-1]
	labels := make([]string, 0, len(last))
	for _, btn := range last {
		labels = append(labels, btn.Label)
	}
	return labels
}

func TestSessionPage(t *testing.T) {
	t.Run("first page of five items", func(t *testing.T) {
		s := NewSession(ActionAdd, 4)

		// Five items fetched with limit 5: four shown plus the overflow probe.
		rows := s.Page(testItems(5))

		// Two item rows of two, then the nav row.
		if len(rows) != 3 {
			t.Fatalf("expected 3 rows, got %d", len(rows))
		}
		labels := navLabels(rows)
		if len(labels) != 1 || labels[0] != "➡️ Next" {
			t.Errorf("expected only a next button, got %v", labels)
		}
		if data := rows[2][0].Data; data != "add_playlist:next:4" {
			t.Errorf("unexpected next payload %q", data)
		}
	})

	t.Run("second page shows back only", func(t *testing.T) {
		s := Session{Action: ActionAdd, Offset: 4, PageSize: 4}

		// The second fetch returned one item: no overflow, so no next.
		rows := s.Page(testItems(5)[4:])

		labels := navLabels(rows)
		if len(labels) != 1 || labels[0] != "⬅️ Back" {
			t.Errorf("expected only a back button, got %v", labels)
		}
		if data := rows[len(rows)-1][0].Data; data != "add_playlist:back:0" {
			t.Errorf("unexpected back payload %q", data)
		}
	})

	t.Run("middle page shows both", func(t *testing.T) {
		s := Session{Action: ActionRemove, Offset: 4, PageSize: 4}

		rows := s.Page(testItems(5))

		labels := navLabels(rows)
		if len(labels) != 2 {
			t.Fatalf("expected back and next, got %v", labels)
		}
	})

	t.Run("single page has no nav row", func(t *testing.T) {
		s := NewSession(ActionAdd, 4)

		rows := s.Page(testItems(3))

		// Two item rows, no nav.
		if len(rows) != 2 {
			t.Fatalf("expected 2 rows, got %d", len(rows))
		}
		for _, row := range rows {
			for _, btn := range row {
				if btn.Label == "➡️ Next" || btn.Label == "⬅️ Back" {
					t.Errorf("unexpected nav button %q", btn.Label)
				}
			}
		}
	})

	t.Run("item buttons carry selection payloads", func(t *testing.T) {
		s := NewSession(ActionRemove, 4)

		rows := s.Page(testItems(1))

		if len(rows) != 1 || len(rows[0]) != 1 {
			t.Fatalf("unexpected layout: %+v", rows)
		}
		if data := rows[0][0].Data; data != "remove_playlist:p0" {
			t.Errorf("unexpected payload %q", data)
		}
	})
}
