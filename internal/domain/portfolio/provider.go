package portfolio

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/propbill/backend/internal/domain/shared"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ProviderType classifies a utility provider
type ProviderType string

const (
	ProviderTypeMunicipality ProviderType = "municipality"
	ProviderTypeEskom        ProviderType = "eskom"
	ProviderTypePrivate      ProviderType = "private"
)

// IsValid checks if the provider type is valid
func (t ProviderType) IsValid() bool {
	switch t {
	case ProviderTypeMunicipality, ProviderTypeEskom, ProviderTypePrivate:
		return true
	}
	return false
}

// vendorRefSeparator splits "<Name> - <account-ref>" vendor strings
const vendorRefSeparator = " - "

// privateProviderPhrases mark managing bodies rather than public utilities
var privateProviderPhrases = []string{
	"body corporate",
	"body corp",
	"sectional title",
	"strata",
	"homeowners association",
	"home owners association",
}

// Provider is a utility provider or vendor
type Provider struct {
	shared.BaseEntity
	Name string
	Type ProviderType
}

// NewProvider creates a provider from an already canonical name
func NewProvider(name string, providerType ProviderType) (*Provider, error) {
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewDomainError("INVALID_PROVIDER_NAME", "Provider name cannot be empty")
	}
	if !providerType.IsValid() {
		return nil, shared.NewDomainError("INVALID_PROVIDER_TYPE", fmt.Sprintf("Invalid provider type: %s", providerType))
	}
	return &Provider{
		BaseEntity: shared.NewBaseEntity(),
		Name:       name,
		Type:       providerType,
	}, nil
}

// CanonicalProviderName extracts the provider name from a raw vendor string.
// "CITY OF JOBURG - 403437971 (766698)" yields "City Of Joburg". A single
// letter elided before an apostrophe starts a new word, so "O'BRIEN" yields
// "O'Brien" while "JOE'S" yields "Joe's". An empty vendor string yields "".
func CanonicalProviderName(vendorRaw string) string {
	name := vendorRaw
	if idx := strings.Index(name, vendorRefSeparator); idx >= 0 {
		name = name[:idx]
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	// cases.Caser is stateful, so one per call
	runes := []rune(cases.Title(language.English).String(name))
	for i := 2; i < len(runes); i++ {
		if isApostrophe(runes[i-1]) && unicode.IsLetter(runes[i-2]) &&
			(i == 2 || !unicode.IsLetter(runes[i-3])) {
			runes[i] = unicode.ToUpper(runes[i])
		}
	}
	return string(runes)
}

func isApostrophe(r rune) bool {
	return r == '\'' || r == '’'
}

// InferProviderType classifies a canonical provider name
func InferProviderType(name string) ProviderType {
	lower := strings.ToLower(name)
	if strings.Contains(lower, "eskom") {
		return ProviderTypeEskom
	}
	for _, phrase := range privateProviderPhrases {
		if strings.Contains(lower, phrase) {
			return ProviderTypePrivate
		}
	}
	for _, word := range strings.FieldsFunc(lower, isWordBreak) {
		if word == "hoa" {
			return ProviderTypePrivate
		}
	}
	return ProviderTypeMunicipality
}

func isWordBreak(r rune) bool {
	return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
}
