// FILE: lixenwraith/linelog/privacy.go
package linelog

import (
	"strings"
)

// FieldClass is the coarse kind of an input field
type FieldClass string

const (
	ClassText     FieldClass = "text"
	ClassDatetime FieldClass = "datetime"
	ClassNumber   FieldClass = "number"
	ClassPhone    FieldClass = "phone"
)

// FieldVariation refines a FieldClass
type FieldVariation string

const (
	VariationNone             FieldVariation = "none"
	VariationEmailAddress     FieldVariation = "email-address"
	VariationEmailSubject     FieldVariation = "email-subject"
	VariationFilter           FieldVariation = "filter"
	VariationPassword         FieldVariation = "password"
	VariationPersonName       FieldVariation = "person-name"
	VariationPostalAddress    FieldVariation = "postal-address"
	VariationURI              FieldVariation = "uri"
	VariationVisiblePassword  FieldVariation = "visible-password"
	VariationWebEmailAddress  FieldVariation = "web-email-address"
	VariationWebPassword      FieldVariation = "web-password"
	VariationShortMessage     FieldVariation = "short-message"
	VariationLongMessage      FieldVariation = "long-message"
	VariationWebEditText      FieldVariation = "web-edit-text"
	VariationPhonetic         FieldVariation = "phonetic"
	VariationAutoCompleteText FieldVariation = "auto-complete"
)

// FieldClassification describes the focused field reported by the host
type FieldClassification struct {
	Class     FieldClass     `json:"class"`
	Variation FieldVariation `json:"variation"`
}

// String renders the classification as "class/variation"
func (fc FieldClassification) String() string {
	v := fc.Variation
	if v == "" {
		v = VariationNone
	}
	return string(fc.Class) + "/" + string(v)
}

var privateClasses = map[FieldClass]struct{}{
	ClassDatetime: {},
	ClassNumber:   {},
	ClassPhone:    {},
}

var privateVariations = map[FieldVariation]struct{}{
	VariationEmailAddress:    {},
	VariationEmailSubject:    {},
	VariationFilter:          {},
	VariationPassword:        {},
	VariationPersonName:      {},
	VariationPostalAddress:   {},
	VariationURI:             {},
	VariationVisiblePassword: {},
	VariationWebEmailAddress: {},
	VariationWebPassword:     {},
}

// ClassifyPrivacy reports whether a field likely holds sensitive data.
// Unknown classes and variations are not private.
func ClassifyPrivacy(fc FieldClassification) bool {
	if _, ok := privateClasses[fc.Class]; ok {
		return true
	}
	_, ok := privateVariations[fc.Variation]
	return ok
}

// ParseFieldClassification parses "class" or "class/variation", e.g. "text/password".
// A missing variation is VariationNone.
func ParseFieldClassification(s string) (FieldClassification, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return FieldClassification{}, fmtErrorf("empty field classification")
	}

	class, variation, found := strings.Cut(s, "/")
	class = strings.TrimSpace(class)
	variation = strings.TrimSpace(variation)
	if class == "" {
		return FieldClassification{}, fmtErrorf("field classification '%s' has no class", s)
	}
	if !found || variation == "" {
		variation = string(VariationNone)
	}

	return FieldClassification{
		Class:     FieldClass(class),
		Variation: FieldVariation(variation),
	}, nil
}
