package notification

import (
	"fmt"

	"localnotify/internal/common"
)

// Sentinel errors for errors.Is comparisons. Returned errors carry a more
// specific message but match these by code.
var (
	ErrInvalidID             = common.NewValidationError(common.CodeInvalidID, "invalid notification id")
	ErrInvalidBadge          = common.NewValidationError(common.CodeInvalidBadge, "invalid badge")
	ErrInvalidTrigger        = common.NewValidationError(common.CodeInvalidTrigger, "invalid trigger")
	ErrInvalidCategory       = common.NewValidationError(common.CodeInvalidCategory, "invalid action category")
	ErrUnknownActionCategory = common.NewValidationError(common.CodeUnknownActionCategory, "unknown action category")
	ErrReservedCategory      = common.NewValidationError(common.CodeReservedActionCategory, "reserved action category")
	ErrIDMismatch            = common.NewValidationError(common.CodeIDMismatch, "notification id mismatch")
	ErrNotFound              = common.NewNotFoundError("notification", "")
	ErrPermissionDenied      = common.NewPermissionError("notification permission denied")
)

func invalidID(format string, args ...any) error {
	return common.NewValidationError(common.CodeInvalidID, fmt.Sprintf(format, args...))
}

func invalidBadge(format string, args ...any) error {
	return common.NewValidationError(common.CodeInvalidBadge, fmt.Sprintf(format, args...))
}

func invalidTrigger(format string, args ...any) error {
	return common.NewValidationError(common.CodeInvalidTrigger, fmt.Sprintf(format, args...))
}

func invalidCategory(format string, args ...any) error {
	return common.NewValidationError(common.CodeInvalidCategory, fmt.Sprintf(format, args...))
}

func notFound(id ID) error {
	return common.NewNotFoundError("notification", id.String())
}

func hostError(op string, err error) error {
	return common.NewHostError(op, err)
}
