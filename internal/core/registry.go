package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/lending/internal/config"
)

// ErrUnknownSegment is returned when a segment key is not registered.
var ErrUnknownSegment = errors.New("unknown segment")

// Segment is one CIC submission segment and the objects that move it from
// staging into the target tables.
type Segment struct {
	Key        string `json:"key"`
	Label      string `json:"label"`
	Table      string `json:"table"`
	MigrateSQL string `json:"migrate_sql"`
	Proc       string `json:"procedure"`
}

// SegmentRegistry is an ordered, read-only set of segments.
type SegmentRegistry struct {
	order []string
	byKey map[string]Segment
}

// NewSegmentRegistry builds the seven segments from the business constants,
// in the order their counts are reported.
func NewSegmentRegistry(c *config.Constants) *SegmentRegistry {
	return newSegmentRegistry([]Segment{
		{Key: "borrower", Label: c.BorrowerLabel, Table: c.BorrowerTable, MigrateSQL: c.BorrowerMigrateSQL, Proc: c.BorrowerProc},
		{Key: "address", Label: c.AddressLabel, Table: c.AddressTable, MigrateSQL: c.AddressMigrateSQL, Proc: c.AddressProc},
		{Key: "creditfacility", Label: c.CreditFacilityLabel, Table: c.CreditFacilityTable, MigrateSQL: c.CreditFacilityMigrateSQL, Proc: c.CreditFacilityProc},
		{Key: "dishonour", Label: c.DishonourLabel, Table: c.DishonourTable, MigrateSQL: c.DishonourMigrateSQL, Proc: c.DishonourProc},
		{Key: "guarantor", Label: c.GuarantorLabel, Table: c.GuarantorTable, MigrateSQL: c.GuarantorMigrateSQL, Proc: c.GuarantorProc},
		{Key: "relationship", Label: c.RelationshipLabel, Table: c.RelationshipTable, MigrateSQL: c.RelationshipMigrateSQL, Proc: c.RelationshipProc},
		{Key: "security", Label: c.SecurityLabel, Table: c.SecurityTable, MigrateSQL: c.SecurityMigrateSQL, Proc: c.SecurityProc},
	})
}

// newSegmentRegistry panics on a duplicate key.
func newSegmentRegistry(segments []Segment) *SegmentRegistry {
	r := &SegmentRegistry{
		order: make([]string, 0, len(segments)),
		byKey: make(map[string]Segment, len(segments)),
	}
	for _, s := range segments {
		if _, exists := r.byKey[s.Key]; exists {
			panic(fmt.Sprintf("segment already registered: %s", s.Key))
		}
		r.order = append(r.order, s.Key)
		r.byKey[s.Key] = s
	}
	return r
}

// Get returns the segment for key, matched case-insensitively.
func (r *SegmentRegistry) Get(key string) (Segment, error) {
	s, ok := r.byKey[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return Segment{}, fmt.Errorf("%w: %q", ErrUnknownSegment, key)
	}
	return s, nil
}

// All returns every segment in registration order.
func (r *SegmentRegistry) All() []Segment {
	result := make([]Segment, 0, len(r.order))
	for _, k := range r.order {
		result = append(result, r.byKey[k])
	}
	return result
}

// Keys returns the segment keys in registration order.
func (r *SegmentRegistry) Keys() []string {
	return append([]string(nil), r.order...)
}

// Count returns the number of registered segments.
func (r *SegmentRegistry) Count() int {
	return len(r.order)
}
