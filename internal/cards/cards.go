package cards

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/patpanic/patpanic-backend/internal"
)

// Theme is one deck file on disk: a category of cards sharing a color.
type Theme struct {
	Category string          `json:"category"`
	Color    string          `json:"color"`
	Cards    []internal.Card `json:"themes"`
}

// Repository holds every theme loaded at startup, keyed by file name without
// the .json extension. It is read-only after Load, so lookups need no lock.
type Repository struct {
	themes map[string]Theme
	all    []internal.Card
}

// Load reads every .json theme file in dir. Files that fail to parse abort
// the load; a half-read deck is worse than no deck.
func Load(dir string) (*Repository, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading themes dir %s: %w", dir, err)
	}

	repo := &Repository{themes: make(map[string]Theme)}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading theme file %s: %w", path, err)
		}
		var theme Theme
		if err := json.Unmarshal(content, &theme); err != nil {
			return nil, fmt.Errorf("parsing theme file %s: %w", path, err)
		}
		key := strings.TrimSuffix(entry.Name(), ".json")
		repo.themes[key] = theme
		repo.all = append(repo.all, theme.Cards...)
	}
	if len(repo.all) == 0 {
		return nil, fmt.Errorf("no cards found in %s", dir)
	}
	log.Printf("[Load] loaded %d themes, %d cards from %s", len(repo.themes), len(repo.all), dir)
	return repo, nil
}

// AllCards returns every card across every theme.
func (r *Repository) AllCards() []internal.Card {
	return r.all
}

// CardsForTheme returns the cards of one theme, nil for an unknown name.
func (r *Repository) CardsForTheme(name string) []internal.Card {
	return r.themes[name].Cards
}

// AllThemeNames returns the loaded theme names, sorted for stable output.
func (r *Repository) AllThemeNames() []string {
	names := make([]string, 0, len(r.themes))
	for name := range r.themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ThemeCapacity reports how many cards a theme can still contribute to the
// elimination round.
func (r *Repository) ThemeCapacity(name string) int {
	count := 0
	for _, c := range r.themes[name].Cards {
		if !c.ExcludedFrom(3) {
			count++
		}
	}
	return count
}
