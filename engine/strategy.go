package engine

import (
	"github.com/pkg/errors"

	"github.com/openseek/openseek/server/profile"
)

// OperatingMode selects the loop termination predicate and message-window
// cap. It is chosen once per turn, never per iteration.
type OperatingMode string

const (
	// ModeStandard loops until the model stops with a non-empty answer.
	ModeStandard OperatingMode = "standard"
	// ModeToolCallOnly serves function-call-only models: the loop runs until
	// any tool output or answer text appears.
	ModeToolCallOnly OperatingMode = "tool-call-only"
	// ModeSingleShot serves minimal-context providers: exactly one iteration.
	ModeSingleShot OperatingMode = "single-shot"
)

// WindowCap is the maximum number of messages sent per model call.
func (m OperatingMode) WindowCap() int {
	switch m {
	case ModeToolCallOnly:
		return 5
	case ModeSingleShot:
		return 1
	default:
		return 10
	}
}

// TransformKind selects the provider-specific message reshaping applied at a
// call site.
type TransformKind string

const (
	TransformIdentity          TransformKind = "identity"
	TransformSplitTrailingText TransformKind = "split-trailing-text"
	TransformCollapseToAnswer  TransformKind = "collapse-to-answer"
)

// Strategy is the provider behavior value object: it carries every
// provider-specific decision so components stay free of provider
// conditionals. Built once per turn from configuration.
type Strategy struct {
	Mode OperatingMode
	// Transform selection is independent per call site.
	LoopTransform      TransformKind
	FinalizerTransform TransformKind
	RelatedTransform   TransformKind
	// MaxRounds is a hard iteration ceiling regardless of mode.
	MaxRounds int
}

// StrategyFromConfig validates and converts profile configuration.
func StrategyFromConfig(cfg profile.StrategyConfig) (Strategy, error) {
	s := Strategy{
		Mode:               OperatingMode(cfg.Mode),
		LoopTransform:      TransformKind(cfg.LoopTransform),
		FinalizerTransform: TransformKind(cfg.FinalizerTransform),
		RelatedTransform:   TransformKind(cfg.RelatedTransform),
		MaxRounds:          cfg.MaxRounds,
	}
	switch s.Mode {
	case ModeStandard, ModeToolCallOnly, ModeSingleShot:
	default:
		return Strategy{}, errors.Errorf("unknown operating mode %q", cfg.Mode)
	}
	for _, k := range []*TransformKind{&s.LoopTransform, &s.FinalizerTransform, &s.RelatedTransform} {
		switch *k {
		case "":
			*k = TransformIdentity
		case TransformIdentity, TransformSplitTrailingText, TransformCollapseToAnswer:
		default:
			return Strategy{}, errors.Errorf("unknown transform %q", *k)
		}
	}
	if s.MaxRounds <= 0 {
		s.MaxRounds = 6
	}
	return s, nil
}
