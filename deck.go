package main

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed cards/deck.yaml
var defaultDeck []byte

type deckFile struct {
	Cards []Card `yaml:"cards"`
}

// loadDeck reads the card catalog from path, or the built-in deck when path
// is empty. JSON files parse too, being valid YAML.
func loadDeck(path string) ([]Card, error) {
	data := defaultDeck
	source := "built-in deck"

	if path != "" {
		var err error

		data, err = os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		source = path
	}

	cards, err := parseDeck(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	return cards, nil
}

func parseDeck(data []byte) ([]Card, error) {
	var f deckFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	if len(f.Cards) == 0 {
		return nil, fmt.Errorf("%w: deck has no cards", ErrInvalidCard)
	}

	seen := make(map[string]struct{}, len(f.Cards))
	for i := range f.Cards {
		c := &f.Cards[i]
		c.Term = strings.TrimSpace(c.Term)
		c.Definition = strings.TrimSpace(c.Definition)

		if err := c.validate(); err != nil {
			return nil, fmt.Errorf("card %d: %w", i+1, err)
		}
		if _, dup := seen[c.Term]; dup {
			return nil, fmt.Errorf("card %d: %w: %q", i+1, ErrDuplicateTerm, c.Term)
		}
		seen[c.Term] = struct{}{}
	}

	return f.Cards, nil
}
