package drinks

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrNotFound    = errors.New("drink not found")
	ErrTitleExists = errors.New("a drink with this title already exists")
	ErrInvalid     = errors.New("invalid drink")
)

// Ingredient is one layer of a drink. Parts is relative to the other layers.
type Ingredient struct {
	Name  string `json:"name" yaml:"name"`
	Color string `json:"color" yaml:"color"`
	Parts int    `json:"parts" yaml:"parts"`
}

type Drink struct {
	ID     int          `json:"id" yaml:"-"`
	Title  string       `json:"title" yaml:"title"`
	Recipe []Ingredient `json:"recipe" yaml:"recipe"`
}

// ShortIngredient is the public view of an ingredient: what it looks like,
// not what it is.
type ShortIngredient struct {
	Color string `json:"color"`
	Parts int    `json:"parts"`
}

type ShortDrink struct {
	ID     int               `json:"id"`
	Title  string            `json:"title"`
	Recipe []ShortIngredient `json:"recipe"`
}

func (d Drink) Short() ShortDrink {
	recipe := make([]ShortIngredient, 0, len(d.Recipe))
	for _, i := range d.Recipe {
		recipe = append(recipe, ShortIngredient{Color: i.Color, Parts: i.Parts})
	}
	return ShortDrink{ID: d.ID, Title: d.Title, Recipe: recipe}
}

// Long is the detailed view, including ingredient names.
func (d Drink) Long() Drink {
	recipe := make([]Ingredient, len(d.Recipe))
	copy(recipe, d.Recipe)
	return Drink{ID: d.ID, Title: d.Title, Recipe: recipe}
}

// Validate checks the invariants every stored drink satisfies.
func (d Drink) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return errors.Wrap(ErrInvalid, "title is empty")
	}
	if len(d.Recipe) == 0 {
		return errors.Wrap(ErrInvalid, "recipe has no ingredients")
	}
	for i, ing := range d.Recipe {
		if strings.TrimSpace(ing.Name) == "" {
			return errors.Wrapf(ErrInvalid, "ingredient %d has no name", i)
		}
		if ing.Parts <= 0 {
			return errors.Wrapf(ErrInvalid, "ingredient %d must have a positive number of parts", i)
		}
	}
	return nil
}

// Recipe accepts either a single ingredient object or a list of them, as
// sent by the frontend.
type Recipe []Ingredient

func (r *Recipe) UnmarshalJSON(b []byte) error {
	var one Ingredient
	if len(b) > 0 && b[0] == '{' {
		if err := json.Unmarshal(b, &one); err != nil {
			return err
		}
		*r = Recipe{one}
		return nil
	}
	var many []Ingredient
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*r = many
	return nil
}
