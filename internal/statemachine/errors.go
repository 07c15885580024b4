package statemachine

import apperrors "github.com/pipeworks/shopfloor-orchestrator/internal/errors"

func errNoSuchAction(machine, action string) error {
	return apperrors.Newf(apperrors.ErrorTypeValidation, "%s: unknown action %q", machine, action)
}

func errNoTransitionFromState(machine, action string, from State) error {
	return apperrors.Newf(apperrors.ErrorTypeValidation, "%s: action %q not valid from state %q", machine, action, from)
}
