package churn

import (
	"fmt"

	"github.com/Veraticus/customer-lifecycle/internal/common"
)

// Kind selects the classifier implementation.
type Kind string

// Supported model kinds.
const (
	KindLogistic Kind = "logistic"
	KindBoosted  Kind = "boosted"
	KindAuto     Kind = "auto"
)

// ParseKind normalizes a user-supplied model kind string.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "logistic":
		return KindLogistic, nil
	case "boosted", "gradient-boosted-tree", "xgboost":
		return KindBoosted, nil
	case "auto", "":
		return KindAuto, nil
	default:
		return "", fmt.Errorf("%w: unknown model kind %q", common.ErrInvalidConfig, s)
	}
}

// Capabilities records which optional backends are usable in this
// environment. It is probed once at startup; every consuming call
// branches on the probed value rather than discovering failures at
// use sites, so fallback behavior is deterministic per environment.
type Capabilities struct {
	// BoostedTrees reports whether the gradient-boosted-tree backend
	// is available for "auto" resolution.
	BoostedTrees bool
	// Explainer reports whether the feature-attribution explainer is
	// available.
	Explainer bool
}

// DetectCapabilities probes the optional backends. Both are compiled
// into this binary, so detection succeeds unless a capability has
// been disabled through configuration.
func DetectCapabilities() Capabilities {
	return Capabilities{
		BoostedTrees: true,
		Explainer:    true,
	}
}

// resolve maps "auto" to the preferred available backend. The
// fallback to logistic regression is logged, not silent.
func (k Kind) resolve(caps Capabilities) Kind {
	if k != KindAuto {
		return k
	}
	if caps.BoostedTrees {
		return KindBoosted
	}
	common.LogWarn("boosted-tree backend unavailable, falling back to logistic regression", nil)
	return KindLogistic
}
