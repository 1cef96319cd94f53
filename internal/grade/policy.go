// Package grade holds the grading engine: the closed set of instance keys,
// the progression policy deciding which instance may be written next, and the
// write service that validates and applies grade mutations.
package grade

import (
	"strings"

	"schooladmin/internal/shared"
)

// InstanceKey addresses one of the seven grade slots of a ledger.
type InstanceKey string

const (
	FirstTermPartial      InstanceKey = "firstTerm.partial"
	FirstTermFinal        InstanceKey = "firstTerm.final"
	SecondTermPartial     InstanceKey = "secondTerm.partial"
	SecondTermFinal       InstanceKey = "secondTerm.final"
	RecuperatoryFirstTerm InstanceKey = "recuperatoryFirstTerm"
	December              InstanceKey = "december"
	February              InstanceKey = "february"
)

// CanonicalOrder is the fixed, global fill order across instances. It is not
// configurable and does not follow period insertion order in the calendar.
var CanonicalOrder = []InstanceKey{
	FirstTermPartial,
	FirstTermFinal,
	SecondTermPartial,
	SecondTermFinal,
	RecuperatoryFirstTerm,
	December,
	February,
}

// PromotionThreshold is the direct-pass mark on both term finals.
const PromotionThreshold = 7.0

// ParseInstanceKey validates a raw key against the closed set. Dynamic
// dotted-path lookups never happen past this boundary.
func ParseInstanceKey(raw string) (InstanceKey, error) {
	key := InstanceKey(raw)
	for _, k := range CanonicalOrder {
		if k == key {
			return key, nil
		}
	}
	return "", shared.Validationf("unknown grade instance: %q", raw)
}

// Split resolves the period key and, for term instances, the evaluation type.
// Untyped instances (recuperatoryFirstTerm, december, february) return an
// empty evaluation type.
func (k InstanceKey) Split() (periodKey, evaluationType string) {
	if i := strings.IndexByte(string(k), '.'); i >= 0 {
		return string(k)[:i], string(k)[i+1:]
	}
	return string(k), ""
}

// Slot returns the ledger slot addressed by key.
func Slot(l *shared.GradeLedger, key InstanceKey) *shared.GradeSlot {
	switch key {
	case FirstTermPartial:
		return &l.FirstTerm.Partial
	case FirstTermFinal:
		return &l.FirstTerm.Final
	case SecondTermPartial:
		return &l.SecondTerm.Partial
	case SecondTermFinal:
		return &l.SecondTerm.Final
	case RecuperatoryFirstTerm:
		return &l.RecuperatoryFirstTerm
	case December:
		return &l.December
	case February:
		return &l.February
	}
	return nil
}

// AllowedInstances computes which single instance may receive a first write.
//
// Direct promotion: both term finals at or above the threshold means no
// further instance may ever be written through the normal path. Otherwise the
// first unfilled instance in canonical order is the only writable one; a full
// ledger allows nothing. Corrections to already-loaded slots are gated by the
// write service, not here.
func AllowedInstances(grades *shared.GradeLedger) []InstanceKey {
	firstFinal := grades.FirstTerm.Final.Value
	secondFinal := grades.SecondTerm.Final.Value

	if firstFinal != nil && secondFinal != nil &&
		*firstFinal >= PromotionThreshold && *secondFinal >= PromotionThreshold {
		return nil
	}

	for _, key := range CanonicalOrder {
		if Slot(grades, key).Value == nil {
			return []InstanceKey{key}
		}
	}

	return nil
}

func instanceAllowed(allowed []InstanceKey, key InstanceKey) bool {
	for _, k := range allowed {
		if k == key {
			return true
		}
	}
	return false
}
