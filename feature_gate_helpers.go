package session

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-featuregate/gate/guard"
)

const (
	gateKeyPremiumContent = "lessons.premium_content"
	gateKeyInteractions   = "lessons.interactions"
	gateKeyReports        = "lessons.reports"
)

func normalizeFeatureGateError(err error) error {
	if err == nil {
		return nil
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return err
	}

	return errors.Wrap(err, errors.CategoryAuthz, "Feature gate check failed").
		WithCode(errors.CodeForbidden)
}

func requireFeatureGate(ctx context.Context, featureGate gate.FeatureGate, key string, disabledErr error) error {
	return guard.Require(ctx, featureGate, key,
		guard.WithDisabledError(disabledErr),
		guard.WithErrorMapper(normalizeFeatureGateError),
	)
}

// RequirePremiumContent gates premium lesson content behind both the session
// entitlement and an optional feature flag.
func RequirePremiumContent(ctx context.Context, featureGate gate.FeatureGate, policy *Policy, s Session) error {
	if !policy.IsPremium(s) {
		return ErrPremiumRequired
	}
	if featureGate == nil {
		return nil
	}
	return requireFeatureGate(ctx, featureGate, gateKeyPremiumContent, ErrPremiumRequired)
}
