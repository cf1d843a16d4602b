package storage

import (
	"fmt"
	"time"
)

type RecordKind string

const (
	RecordKindMeteringPoint   RecordKind = "METERING_POINT"
	RecordKindConnectionPoint RecordKind = "CONNECTION_POINT"
)

// RecordKinds lists every valid RecordKind.
var RecordKinds = []RecordKind{RecordKindMeteringPoint, RecordKindConnectionPoint}

// ParseRecordKind returns the RecordKind named by s.
func ParseRecordKind(s string) (RecordKind, error) {
	for _, k := range RecordKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown record kind %q", s)
}

type AttributeKind string

const (
	AttributeKindConsumptionType       AttributeKind = "CONSUMPTION_TYPE"
	AttributeKindChargingPoint         AttributeKind = "CHARGING_POINT"
	AttributeKindConnectionPointStatus AttributeKind = "CONNECTION_POINT_STATUS"
)

// AttributeKinds lists every valid AttributeKind in declaration order.
var AttributeKinds = []AttributeKind{
	AttributeKindConsumptionType,
	AttributeKindChargingPoint,
	AttributeKindConnectionPointStatus,
}

// ParseAttributeKind returns the AttributeKind named by s.
func ParseAttributeKind(s string) (AttributeKind, error) {
	for _, k := range AttributeKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown attribute kind %q", s)
}

// Address is owned by exactly one Record and is stored inline with it.
type Address struct {
	StreetAddress string
	City          string
	PostalCode    string
	CountryCode   string
}

// Attribute is a typed key-value annotation owned by a Record.
type Attribute struct {
	Code  string
	Kind  AttributeKind
	Value string
}

type Record struct {
	ID          string
	Kind        RecordKind
	CountryCode string
	Address     Address
	Attributes  []Attribute
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.Attributes != nil {
		c.Attributes = make([]Attribute, len(r.Attributes))
		copy(c.Attributes, r.Attributes)
	}
	return &c
}

type attributeKey struct {
	code string
	kind AttributeKind
}

// ValidateAttributes returns an error wrapping ErrDuplicateAttribute if two attributes share
// the same code and kind.
func ValidateAttributes(attributes []Attribute) error {
	seen := make(map[attributeKey]struct{}, len(attributes))
	for _, a := range attributes {
		key := attributeKey{code: a.Code, kind: a.Kind}
		if _, ok := seen[key]; ok {
			return DuplicateAttributeError(a.Code, a.Kind)
		}
		seen[key] = struct{}{}
	}
	return nil
}
