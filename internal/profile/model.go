// Package profile manages the user's personal health profile: a single
// local-first record that syncs opportunistically to the cloud.
package profile

import (
	"strings"
	"time"
)

// Unit systems for height and weight
const (
	UnitsMetric   = "metric"
	UnitsImperial = "imperial"
)

// Profile is the singleton health profile for the current user. All
// fields are optional; an onboarding user starts with a zero value.
type Profile struct {
	BloodType         string    `json:"bloodType,omitempty"`
	Height            *float64  `json:"height,omitempty"`
	Weight            *float64  `json:"weight,omitempty"`
	Units             string    `json:"units,omitempty"`
	Allergies         []string  `json:"allergies,omitempty"`
	Conditions        []string  `json:"conditions,omitempty"`
	Medications       string    `json:"medications,omitempty"`
	EmergencyContacts []string  `json:"emergencyContacts,omitempty"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// IsEmpty reports whether the profile has never been filled in
func (p *Profile) IsEmpty() bool {
	return p.BloodType == "" &&
		p.Height == nil &&
		p.Weight == nil &&
		len(p.Allergies) == 0 &&
		len(p.Conditions) == 0 &&
		p.Medications == "" &&
		len(p.EmergencyContacts) == 0
}

// ContactPhone extracts the trailing phone segment from an emergency
// contact entry in "Name: Phone" format. Entries without a separator
// are treated as a bare phone number.
func ContactPhone(contact string) string {
	if contact == "" {
		return ""
	}
	if i := strings.Index(contact, ":"); i >= 0 {
		return strings.TrimSpace(contact[i+1:])
	}
	return strings.TrimSpace(contact)
}

// CleanPhone strips a phone string down to the characters usable in a
// dialer link: digits, plus and dash.
func CleanPhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if (r >= '0' && r <= '9') || r == '+' || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
