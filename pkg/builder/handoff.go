package builder

import (
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/mindburn-labs/reactorcore/pkg/reactor"
)

// SupportedFormatVersion is the range of Builder→Runtime handoff formats
// this runtime accepts. Bumped on a breaking change to the
// flat-table layout or graph map shapes.
const SupportedFormatVersion = "^1.0.0"

// Handoff is what a builder hands the runtime to start a scheduler: the
// assembled Environment plus a FormatVersion the runtime checks against
// SupportedFormatVersion before trusting the graph at all, the same
// "validate before the loop starts" posture applied to graph structure,
// extended to the wire format itself.
type Handoff struct {
	FormatVersion string
	Env           *reactor.Environment
}

// NewHandoff wraps env with the current format version.
func NewHandoff(env *reactor.Environment) *Handoff {
	return &Handoff{FormatVersion: "1.0.0", Env: env}
}

// Validate checks FormatVersion against SupportedFormatVersion and, if it
// matches, runs the environment's own structural validation.
func (h *Handoff) Validate() error {
	constraint, err := semver.NewConstraint(SupportedFormatVersion)
	if err != nil {
		return fmt.Errorf("builder: invalid supported-format constraint %q: %w", SupportedFormatVersion, err)
	}
	version, err := semver.NewVersion(h.FormatVersion)
	if err != nil {
		return &reactor.Error{
			Code:           reactor.ErrCodeFormatVersion,
			Classification: reactor.ErrClassGraphValidation,
			Detail:         fmt.Sprintf("handoff format_version %q is not valid semver", h.FormatVersion),
			Cause:          err,
		}
	}
	if !constraint.Check(version) {
		return &reactor.Error{
			Code:           reactor.ErrCodeFormatVersion,
			Classification: reactor.ErrClassGraphValidation,
			Detail:         fmt.Sprintf("handoff format_version %s does not satisfy %s", version, SupportedFormatVersion),
		}
	}
	return h.Env.Validate()
}
