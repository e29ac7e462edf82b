// Package tier derives an event's pricing tier and the watermark policy
// that follows from it. Both functions are pure and total.
package tier

import (
	"strings"

	"github.com/dmitrijs2005/eventsnap/internal/server/models"
)

// PackageType is the pricing tier of an event.
type PackageType string

const (
	Freebie PackageType = "freebie"
	Basic   PackageType = "basic"
	Premium PackageType = "premium"
)

// Policy says whether media must be rewritten before leaving the system.
type Policy string

const (
	PolicyRequired Policy = "required"
	PolicyOff      Policy = "optional-off"
)

// PackageFor resolves the tier of an event. Precedence, highest first:
//
//  1. freebie flag, or a payment type of "free"/"freebie"
//  2. any premium feature: payment type "premium", feed enabled, password protection
//  3. basic
func PackageFor(e models.Event) PackageType {
	payment := strings.ToLower(strings.TrimSpace(e.PaymentType))

	if e.IsFreebie || payment == "free" || payment == "freebie" {
		return Freebie
	}
	if payment == "premium" || e.FeedEnabled || e.PasswordProtected {
		return Premium
	}
	return Basic
}

// PolicyFor maps a tier and the event's watermark_enabled override to a
// policy. Freebie and basic are always watermarked; premium only on request.
func PolicyFor(pkg PackageType, watermarkEnabled bool) Policy {
	switch pkg {
	case Premium:
		if watermarkEnabled {
			return PolicyRequired
		}
		return PolicyOff
	default:
		return PolicyRequired
	}
}

// Mandatory reports whether the tier imposes watermarking regardless of the
// event owner's choice. When it does, media that cannot be rewritten must
// not leave the system at all.
func Mandatory(pkg PackageType) bool {
	return pkg != Premium
}

// Rule bundles the tier and policy resolved for one event.
type Rule struct {
	Package PackageType
	Policy  Policy
}

// RuleFor resolves the full rule for an event.
func RuleFor(e models.Event) Rule {
	pkg := PackageFor(e)
	return Rule{Package: pkg, Policy: PolicyFor(pkg, e.WatermarkEnabled)}
}

// Watermark reports whether media must be rewritten under this rule.
func (r Rule) Watermark() bool {
	return r.Policy == PolicyRequired
}

// AllowOriginalFallback reports whether media the engine cannot rewrite may
// be delivered unmodified.
func (r Rule) AllowOriginalFallback() bool {
	return !r.Watermark() || !Mandatory(r.Package)
}
