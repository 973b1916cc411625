// Package curriculum provides lookup of the 30 fixed memorization units.
package curriculum

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/p-n-ai/halaqah/internal/platform/apperr"
)

//go:embed units.yaml
var defaultUnits []byte

// Index holds the ordered curriculum units. It is read-only after construction.
type Index struct {
	units [UnitCount]Unit
}

// Default returns the index built from the embedded unit table.
func Default() *Index {
	idx, err := parse(defaultUnits)
	if err != nil {
		panic(fmt.Sprintf("embedded curriculum is invalid: %v", err))
	}
	return idx
}

// Load builds an index from a YAML override file. An empty path yields the
// embedded default table.
func Load(path string) (*Index, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading curriculum: %w", err)
	}

	idx, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading curriculum %s: %w", path, err)
	}

	slog.Info("curriculum loaded", "path", path, "units", UnitCount)
	return idx, nil
}

func parse(data []byte) (*Index, error) {
	var f unitFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing units: %w", err)
	}
	if len(f.Units) != UnitCount {
		return nil, fmt.Errorf("expected %d units, got %d", UnitCount, len(f.Units))
	}

	idx := &Index{}
	seen := make(map[int]bool, UnitCount)
	for _, u := range f.Units {
		if u.Number < 1 || u.Number > UnitCount {
			return nil, fmt.Errorf("unit number %d out of range", u.Number)
		}
		if seen[u.Number] {
			return nil, fmt.Errorf("duplicate unit number %d", u.Number)
		}
		if u.Name == "" {
			return nil, fmt.Errorf("unit %d has no name", u.Number)
		}
		seen[u.Number] = true
		idx.units[u.Number-1] = u
	}
	return idx, nil
}

// Get returns the unit with the given number.
func (x *Index) Get(number int) (Unit, bool) {
	if !Valid(number) {
		return Unit{}, false
	}
	return x.units[number-1], true
}

// All returns every unit in curriculum order.
func (x *Index) All() []Unit {
	out := make([]Unit, UnitCount)
	copy(out, x.units[:])
	return out
}

// Valid reports whether number names a curriculum unit.
func Valid(number int) bool {
	return number >= 1 && number <= UnitCount
}

// ValidateSelection checks a primary unit and its review units: all must exist,
// reviews must be distinct and must not repeat the primary unit.
func ValidateSelection(primary int, reviews []int) error {
	if !Valid(primary) {
		return apperr.InvalidInput("unknown unit %d", primary)
	}
	seen := map[int]bool{primary: true}
	for _, r := range reviews {
		if !Valid(r) {
			return apperr.InvalidInput("unknown review unit %d", r)
		}
		if seen[r] {
			return apperr.InvalidInput("review unit %d repeated", r)
		}
		seen[r] = true
	}
	return nil
}
