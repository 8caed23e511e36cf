// Package layout holds the tab and panel selection state of the snippet
// viewer and renders it.
package layout

import (
	"fmt"
	"sync"

	"github.com/web-padawan/demosnippet/internal/highlight"
)

// Role marks what part a click target plays in the layout.
type Role int

const (
	RoleNone Role = iota
	RoleTab
	RolePanel
)

// String returns the data-role attribute value for the role.
func (r Role) String() string {
	switch r {
	case RoleTab:
		return "tab"
	case RolePanel:
		return "code"
	default:
		return ""
	}
}

// ParseRole maps a data-role attribute value to a Role.
func ParseRole(s string) Role {
	switch s {
	case "tab":
		return RoleTab
	case "code":
		return RolePanel
	default:
		return RoleNone
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown roles decode
// to RoleNone.
func (r *Role) UnmarshalText(text []byte) error {
	*r = ParseRole(string(text))
	return nil
}

// Target is one element on a click's propagation path.
type Target struct {
	Role Role   `json:"role"`
	Key  string `json:"key,omitempty"`
}

// ClickEvent is a click inside the tab strip. Path lists the targets from the
// element that was clicked outwards.
type ClickEvent struct {
	Path []Target `json:"path"`
}

// Tab is a clickable label.
type Tab struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Selected bool   `json:"selected"`
}

// Panel is the highlighted code shown for a tab.
type Panel struct {
	Key      string `json:"key"`
	HTML     string `json:"html"`
	Selected bool   `json:"selected"`
}

// Selector tracks which tab and panel are selected. It is safe for
// concurrent use.
type Selector struct {
	mu     sync.RWMutex
	tabs   []Tab
	panels []Panel
}

// NewSelector creates a selector over tabs and panels. Tabs and panels are
// matched by key, not by position.
func NewSelector(tabs []Tab, panels []Panel) *Selector {
	s := &Selector{
		tabs:   append([]Tab(nil), tabs...),
		panels: append([]Panel(nil), panels...),
	}
	return s
}

// FromSnippets creates a selector with one tab and one panel per snippet.
func FromSnippets(snippets []highlight.Snippet) *Selector {
	tabs := make([]Tab, len(snippets))
	panels := make([]Panel, len(snippets))
	for i, sn := range snippets {
		tabs[i] = Tab{Key: sn.Key, Label: sn.Label, Selected: sn.Selected}
		panels[i] = Panel{Key: sn.Key, HTML: sn.HTML, Selected: sn.Selected}
	}
	return NewSelector(tabs, panels)
}

// HandleClick selects the first tab on the event path. It returns the key of
// that tab, or false when the path has no tab and nothing changed.
func (s *Selector) HandleClick(ev ClickEvent) (string, bool) {
	for _, target := range ev.Path {
		if target.Role != RoleTab {
			continue
		}
		if s.Select(target.Key) {
			return target.Key, true
		}
		return "", false
	}
	return "", false
}

// Select clears the current selection and selects the tab with the given key
// along with its panel, if it has one. It reports whether such a tab exists;
// an unknown key leaves the selection untouched.
func (s *Selector) Select(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	tab := -1
	for i := range s.tabs {
		if s.tabs[i].Key == key {
			tab = i
			break
		}
	}
	if tab < 0 {
		return false
	}

	for i := range s.tabs {
		s.tabs[i].Selected = false
	}
	for i := range s.panels {
		s.panels[i].Selected = false
	}

	s.tabs[tab].Selected = true
	for i := range s.panels {
		if s.panels[i].Key == key {
			s.panels[i].Selected = true
			break
		}
	}
	return true
}

// Selected returns the key of the selected tab.
func (s *Selector) Selected() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.tabs {
		if t.Selected {
			return t.Key, true
		}
	}
	return "", false
}

// SelectedIndex returns the position of the selected tab or -1.
func (s *Selector) SelectedIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i, t := range s.tabs {
		if t.Selected {
			return i
		}
	}
	return -1
}

// SelectedPanel returns the key of the selected panel.
func (s *Selector) SelectedPanel() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.panels {
		if p.Selected {
			return p.Key, true
		}
	}
	return "", false
}

// Snapshot returns copies of the current tabs and panels.
func (s *Selector) Snapshot() ([]Tab, []Panel) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]Tab(nil), s.tabs...), append([]Panel(nil), s.panels...)
}

func (s *Selector) String() string {
	key, _ := s.Selected()
	return fmt.Sprintf("Selector{tabs: %d, selected: %q}", len(s.tabs), key)
}
