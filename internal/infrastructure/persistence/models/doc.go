// Package models maps the sale, document and stock aggregates to their tables.
// Domain types stay free of GORM tags; each model converts with ToDomain and a
// <Model>FromDomain constructor. Quantity columns are decimal(18,5).
package models
