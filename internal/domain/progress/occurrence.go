package progress

import (
	"fmt"

	"github.com/google/uuid"
)

// Occurrence is one placement of a content package within a course. Exactly one of the
// prerequisite, module-content, or post-requisite ids applies, selected by Kind.
type Occurrence struct {
	Kind OccurrenceKind `json:"occurrence_kind"`
	ID   uuid.UUID      `json:"occurrence_id"`
}

func (o Occurrence) Validate() error {
	if !o.Kind.Valid() {
		return fmt.Errorf("invalid occurrence kind %q", o.Kind)
	}
	if o.ID == uuid.Nil {
		return fmt.Errorf("missing occurrence id")
	}
	return nil
}

func (o Occurrence) String() string { return string(o.Kind) + ":" + o.ID.String() }

func (o Occurrence) PrerequisiteID() *uuid.UUID  { return o.idIf(OccurrencePrerequisite) }
func (o Occurrence) ModuleContentID() *uuid.UUID { return o.idIf(OccurrenceModule) }
func (o Occurrence) PostRequisiteID() *uuid.UUID { return o.idIf(OccurrencePostRequisite) }

func (o Occurrence) idIf(k OccurrenceKind) *uuid.UUID {
	if o.Kind != k || o.ID == uuid.Nil {
		return nil
	}
	id := o.ID
	return &id
}

// StructureItem is a read-only view of a content occurrence as listed by the course structure.
type StructureItem struct {
	ClientID         uuid.UUID   `json:"client_id"`
	CourseID         uuid.UUID   `json:"course_id"`
	Occurrence       Occurrence  `json:"occurrence"`
	ModuleID         *uuid.UUID  `json:"module_id,omitempty"`
	ContentKind      ContentKind `json:"content_kind"`
	ContentPackageID uuid.UUID   `json:"content_package_id"`
	Title            string      `json:"title,omitempty"`
	Position         int         `json:"position"`
	ModulePosition   int         `json:"module_position,omitempty"`
}

// SharesPackageWith reports whether two items place the same content package.
func (it StructureItem) SharesPackageWith(other StructureItem) bool {
	return it.ContentPackageID == other.ContentPackageID && it.ContentKind == other.ContentKind
}

// FindItem returns the item at occurrence o, if present.
func FindItem(items []StructureItem, o Occurrence) (StructureItem, bool) {
	for _, it := range items {
		if it.Occurrence == o {
			return it, true
		}
	}
	return StructureItem{}, false
}

// SiblingOccurrences returns every other occurrence of source's content package in items.
func SiblingOccurrences(items []StructureItem, source StructureItem) []StructureItem {
	var out []StructureItem
	for _, it := range items {
		if it.Occurrence == source.Occurrence {
			continue
		}
		if it.SharesPackageWith(source) {
			out = append(out, it)
		}
	}
	return out
}
