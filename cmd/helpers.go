package cmd

import (
	"fmt"
	"strings"

	"github.com/marcus/branger/internal/models"
)

// findItem resolves an argument to an item: exact id match first, then a
// unique case-insensitive name prefix.
func findItem(items []models.ListItem, arg string) (models.ListItem, error) {
	for _, it := range items {
		if it.ID == arg {
			return it, nil
		}
	}

	var matches []models.ListItem
	lower := strings.ToLower(arg)
	for _, it := range items {
		if strings.HasPrefix(strings.ToLower(it.Name), lower) {
			matches = append(matches, it)
		}
	}
	switch len(matches) {
	case 0:
		return models.ListItem{}, fmt.Errorf("no item matching %q", arg)
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, it := range matches {
			names[i] = it.Name
		}
		return models.ListItem{}, fmt.Errorf("%q is ambiguous: %s", arg, strings.Join(names, ", "))
	}
}

// loadItems refreshes from the server when reachable so item resolution
// works against current data, falling back to the local snapshot.
func loadItems(a *app) []models.ListItem {
	a.probeOnce()
	if a.Engine.Online() {
		a.Engine.Refresh()
	}
	return a.Engine.Items()
}
