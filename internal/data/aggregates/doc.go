// Package aggregates owns transaction boundaries and storage error classification for
// progress writes. Table-level repos live in internal/data/repos.
package aggregates
