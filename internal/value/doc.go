// Package value is the typed value model shared by every node in a graph.
//
// All bus values are cty.Value instances drawn from a small closed set of
// kinds: strings, numbers, tables and functions. Tables and functions are
// carried as cty capsule types so that they travel through the same
// conversion and validation paths as primitive values.
//
// The package also owns the cell codec: Parse turns the raw text a user types
// into a spreadsheet cell into a RowValue holding a display form, a canonical
// editable form and the typed underlying value used for computation. Format
// goes the other way, so that re-parsing a formatted underlying value always
// reproduces it.
package value
