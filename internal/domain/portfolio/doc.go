// Package portfolio holds the records a property manager maintains: utility
// providers, properties keyed by business-partner number, tenants and the
// utility accounts linking them.
//
// Providers and properties are canonical entities. Free-text vendor strings
// from spreadsheets collapse to one Provider per canonical name, and repeated
// rows for the same BP number collapse to one Property.
package portfolio
