package dispatch

import (
	"log/slog"

	"github.com/emesal/ratatoskr/pkg/rerr"
	"github.com/emesal/ratatoskr/pkg/types"
)

// UnsupportedChecker reports whether a (provider, model, parameter) triple
// has been marked runtime-unsupported by the Parameter Discovery Cache. The
// Provider Registry passes its PDC handle to satisfy this during dispatch.
type UnsupportedChecker interface {
	IsKnownUnsupported(provider, model string, param types.ParameterName) bool
}

// noUnsupportedChecker is used when no PDC is wired: nothing is
// runtime-unsupported beyond what the source itself declares.
type noUnsupportedChecker struct{}

func (noUnsupportedChecker) IsKnownUnsupported(provider, model string, param types.ParameterName) bool {
	return false
}

// ValidateParameters implements §4.5: given the request's set-parameters R
// and a source's declared supported set S (empty S ⇒ validation is skipped
// entirely), compute U = R \ S and apply policy. The PDC, if non-nil,
// additionally removes from S any parameter it has recorded as
// runtime-unsupported for this (provider, model).
//
// Returns a non-nil *rerr.Error only under policy Error; under Warn it logs
// one warning per unsupported parameter and returns nil.
func ValidateParameters(requested []types.ParameterName, supported []types.ParameterName, policy types.ParameterValidationPolicy, pdc UnsupportedChecker, provider, model string) error {
	if len(supported) == 0 {
		return nil
	}
	if pdc == nil {
		pdc = noUnsupportedChecker{}
	}

	supportedSet := make(map[types.ParameterName]struct{}, len(supported))
	for _, p := range supported {
		if pdc.IsKnownUnsupported(provider, model, p) {
			continue
		}
		supportedSet[p] = struct{}{}
	}

	var unsupported []types.ParameterName
	for _, p := range requested {
		if _, ok := supportedSet[p]; !ok {
			unsupported = append(unsupported, p)
		}
	}
	if len(unsupported) == 0 {
		return nil
	}

	switch policy {
	case types.PolicyIgnore:
		return nil
	case types.PolicyWarn:
		for _, p := range unsupported {
			slog.Warn("parameter not supported by provider", "provider", provider, "model", model, "param", p.String())
		}
		return nil
	case types.PolicyError:
		return &rerr.Error{
			Kind:     rerr.UnsupportedParameter,
			Param:    unsupported[0].String(),
			Model:    model,
			Provider: provider,
			Op:       "validate_parameters",
		}
	default:
		return nil
	}
}
