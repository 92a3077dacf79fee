package city

import (
	"fmt"
	"strings"
)

// Kind tags a building. The set is closed; economics are selected by kind.
type Kind string

const (
	KindResidential   Kind = "RESIDENTIAL"
	KindCommercial    Kind = "COMMERCIAL"
	KindIndustrial    Kind = "INDUSTRIAL"
	KindPoliceStation Kind = "POLICE_STATION"
	KindFireStation   Kind = "FIRE_STATION"
	KindSchool        Kind = "SCHOOL"
	KindHospital      Kind = "HOSPITAL"
)

var Kinds = []Kind{
	KindResidential,
	KindCommercial,
	KindIndustrial,
	KindPoliceStation,
	KindFireStation,
	KindSchool,
	KindHospital,
}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// IsService reports whether the kind provides a city service rather than an economy.
func (k Kind) IsService() bool {
	switch k {
	case KindPoliceStation, KindFireStation, KindSchool, KindHospital:
		return true
	}
	return false
}

func (k Kind) String() string { return string(k) }
