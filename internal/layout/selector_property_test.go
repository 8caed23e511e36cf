//go:build property

package layout

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/web-padawan/demosnippet/internal/highlight"
)

func snippetsOf(n int) []highlight.Snippet {
	snippets := make([]highlight.Snippet, n)
	for i := range snippets {
		snippets[i] = highlight.Snippet{
			Key:      fmt.Sprintf("link-%d", i),
			Label:    "js",
			HTML:     fmt.Sprintf("<span>%d</span>", i),
			Selected: i == 0,
		}
	}
	return snippets
}

// onlySelected reports whether exactly the pair with key is selected.
func onlySelected(s *Selector, key string) bool {
	tabs, panels := s.Snapshot()
	for _, tab := range tabs {
		if tab.Selected != (tab.Key == key) {
			return false
		}
	}
	for _, panel := range panels {
		if panel.Selected != (panel.Key == key) {
			return false
		}
	}
	return true
}

func TestSelectorProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("a new selector has the first pair selected", prop.ForAll(
		func(n int) bool {
			return onlySelected(FromSnippets(snippetsOf(n)), "link-0")
		},
		gen.IntRange(1, 20),
	))

	properties.Property("clicks select exactly the clicked pair", prop.ForAll(
		func(n int, clicks []int) bool {
			s := FromSnippets(snippetsOf(n))
			for _, c := range clicks {
				key := fmt.Sprintf("link-%d", c%n)
				got, ok := s.HandleClick(ClickEvent{Path: []Target{
					{Role: RoleNone},
					{Role: RoleTab, Key: key},
				}})
				if !ok || got != key || !onlySelected(s, key) {
					return false
				}
				// Clicking the selected tab again changes nothing.
				if _, ok := s.HandleClick(ClickEvent{Path: []Target{{Role: RoleTab, Key: key}}}); !ok || !onlySelected(s, key) {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 12),
		gen.SliceOf(gen.IntRange(0, 100)),
	))

	properties.Property("paths without a tab leave the selection alone", prop.ForAll(
		func(n int, k int) bool {
			s := FromSnippets(snippetsOf(n))
			key := fmt.Sprintf("link-%d", k%n)
			s.Select(key)
			_, ok := s.HandleClick(ClickEvent{Path: []Target{{Role: RolePanel, Key: "link-0"}, {Role: RoleNone}}})
			return !ok && onlySelected(s, key)
		},
		gen.IntRange(1, 12),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}
