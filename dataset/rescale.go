package dataset

import "fmt"

// RescaleCoords multiplies the named coordinates in place and replaces their
// unit label, e.g. metres to microns for plotting. Names may be raw or
// canonical. With no names given, every coordinate is rescaled.
func (d *Dataset) RescaleCoords(multiplier float64, unitLabel string, coordNames ...string) error {
	targets := coordNames
	if len(targets) == 0 {
		targets = d.CoordNames()
	}

	for _, name := range targets {
		coord, ok := d.Coords[name]
		if !ok {
			coord, ok = d.Coords[Flatten(name)]
		}
		if !ok {
			return fmt.Errorf("%w: coordinate %q (canonical %q)", ErrNotFound, name, Flatten(name))
		}

		values, err := coord.Values()
		if err != nil {
			return fmt.Errorf("rescaling %q: %w", name, err)
		}
		for i := range values {
			values[i] *= multiplier
		}
		coord.Attrs["units"] = unitLabel
	}
	return nil
}
