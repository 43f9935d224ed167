package drinks

import (
	"bytes"
	"io"
	"io/ioutil"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v3"
)

// seedFile is the schema of the menu seed file:
//
//	drinks:
//	  - title: water
//	    recipe:
//	      - name: water
//	        color: blue
//	        parts: 1
type seedFile struct {
	Drinks []Drink `yaml:"drinks"`
}

// DefaultSeed is used when the store is reset without a seed file.
var DefaultSeed = []Drink{
	{
		Title:  "water",
		Recipe: []Ingredient{{Name: "water", Color: "blue", Parts: 1}},
	},
}

func parseSeed(raw []byte) ([]Drink, error) {
	var f seedFile
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	err := decoder.Decode(&f)
	// io.EOF is returned for an empty file
	if err == io.EOF {
		return []Drink{}, nil
	}
	if err != nil {
		return nil, err
	}
	titles := map[string]struct{}{}
	for i, d := range f.Drinks {
		if err := d.Validate(); err != nil {
			return nil, errors.Wrapf(err, "seed drink %d", i)
		}
		if _, dup := titles[d.Title]; dup {
			return nil, errors.Wrapf(ErrTitleExists, "seed drink %d %q", i, d.Title)
		}
		titles[d.Title] = struct{}{}
	}
	return f.Drinks, nil
}

// LoadSeed reads the drinks listed in the YAML file at path.
func LoadSeed(path string) ([]Drink, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error loading seed file %q", path)
	}
	drinks, err := parseSeed(b)
	if err != nil {
		return nil, errors.Wrapf(err, "errors while parsing seed file %q", path)
	}
	return drinks, nil
}
