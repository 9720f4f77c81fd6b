// Package normalize builds the candidate set of string representations for
// one raw dialed number, so rule matching is formatting-agnostic.
package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
	"go.uber.org/zap"

	"call-screener/internal/config"
)

var (
	symbolRe = regexp.MustCompile(`[^0-9+]`)
	digitRe  = regexp.MustCompile(`[^0-9]`)
)

// Normalizer derives candidate representations of raw numbers against a
// fixed default region.
type Normalizer struct {
	region        string
	countryPrefix string
	logger        *zap.Logger
}

// NewNormalizer creates a normalizer for the configured default region.
func NewNormalizer(cfg *config.Config, logger *zap.Logger) *Normalizer {
	region := cfg.Screening.DefaultRegion

	prefix := ""
	if code := phonenumbers.GetCountryCodeForRegion(region); code != 0 {
		prefix = fmt.Sprintf("+%d", code)
	}

	return &Normalizer{
		region:        region,
		countryPrefix: prefix,
		logger:        logger,
	}
}

// Candidates returns the deduplicated, ordered candidate set for raw: the
// raw input, the symbol-stripped form, and, when the number parses against
// the default region, the national format, the national format without
// separators, the international format, and E.164. A parse failure never
// aborts normalization; it only omits the library-derived variants. The
// result is always non-empty and always contains raw itself.
func (n *Normalizer) Candidates(raw string) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(s string) {
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	add(raw)
	stripped := symbolRe.ReplaceAllString(raw, "")
	add(stripped)

	num, err := phonenumbers.Parse(raw, n.region)
	if err == nil {
		national := phonenumbers.Format(num, phonenumbers.NATIONAL)
		add(national)
		add(digitRe.ReplaceAllString(national, ""))
		add(phonenumbers.Format(num, phonenumbers.INTERNATIONAL))
		add(phonenumbers.Format(num, phonenumbers.E164))
	} else {
		if raw != "" {
			n.logger.Debug("number did not parse, using stripped form only",
				zap.String("number", raw),
				zap.Error(err))
		}
		// Cheap local fallback: rewrite the default region's country
		// prefix to the national trunk "0".
		if n.countryPrefix != "" && strings.HasPrefix(stripped, n.countryPrefix) {
			add("0" + stripped[len(n.countryPrefix):])
		}
	}

	return out
}

// Representative picks the single candidate used for reputation lookups:
// the first international-looking ("+"-prefixed) candidate, else the first.
func Representative(candidates []string) string {
	for _, c := range candidates {
		if strings.HasPrefix(c, "+") {
			return c
		}
	}
	if len(candidates) > 0 {
		return candidates[0]
	}
	return ""
}
