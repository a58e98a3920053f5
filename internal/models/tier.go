package models

import (
	"fmt"
	"strings"
)

// Tier is the subscription level used to resolve quota limits
type Tier string

const (
	TierFree  Tier = "free"
	TierLight Tier = "light"
	TierPro   Tier = "pro"
)

// Tiers lists every known tier in upgrade order
var Tiers = []Tier{TierFree, TierLight, TierPro}

// ParseTier normalizes a tier name. Unknown names are rejected.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Tiers {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: unknown tier %q", ErrBadRequest, s)
}

// ResourceKind identifies one of the independently metered monthly counters
type ResourceKind string

const (
	ResourcePaidSearch   ResourceKind = "paid_search"
	ResourcePublicFinder ResourceKind = "public_finder"
	ResourceGeneration   ResourceKind = "generation"
)

// ResourceKinds lists every metered resource
var ResourceKinds = []ResourceKind{ResourcePaidSearch, ResourcePublicFinder, ResourceGeneration}

// Unlimited marks a limit (or remaining figure) with no cap
const Unlimited = -1
