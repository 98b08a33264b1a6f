package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	CaseID         ID
	RequestID      ID
	DatasetVersion ID
)

// String conversions for domain IDs
func (id CaseID) String() string         { return ID(id).String() }
func (id RequestID) String() string      { return ID(id).String() }
func (id DatasetVersion) String() string { return ID(id).String() }

// ParseCaseID parses a string into CaseID
func ParseCaseID(s string) (CaseID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("case ID cannot be empty")
	}
	return CaseID(s), nil
}

// ParseDatasetVersion parses a string into DatasetVersion
func ParseDatasetVersion(s string) (DatasetVersion, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("dataset version cannot be empty")
	}
	return DatasetVersion(s), nil
}

// NewDatasetVersion creates a fresh dataset version identifier
func NewDatasetVersion() DatasetVersion {
	return DatasetVersion(NewID())
}
