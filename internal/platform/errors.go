package platform

import (
	"errors"
	"fmt"
	"strings"

	"clinic-portal/internal/rpc"
)

// ErrNoPatient means the logged-in user has no Patient record. Views that
// need a patient cannot render without one.
var ErrNoPatient = errors.New("no patient record for the logged-in user")

const (
	noPatientMessage = "Could not find Patient record for the logged-in user. Please contact support."
	genericMessage   = "Something went wrong while contacting the clinic. Please try again."
)

// ValidationError is a form that failed the portal's own checks. Nothing
// was sent to the platform.
type ValidationError struct {
	Fields  []string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s (%s)", e.Message, strings.Join(e.Fields, ", "))
}

// ShapeError is a platform response that doesn't match its contract.
type ShapeError struct {
	Procedure string
	Reason    string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("unexpected %s response: %s", e.Procedure, e.Reason)
}

func shapef(proc, format string, args ...any) *ShapeError {
	return &ShapeError{Procedure: proc, Reason: fmt.Sprintf(format, args...)}
}

// UserMessage is the text shown to the user for err. fallback is used for
// remote failures that carry no message of their own.
func UserMessage(err error, fallback string) string {
	if fallback == "" {
		fallback = genericMessage
	}
	var ve *ValidationError
	var re *rpc.RemoteError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return ve.Message
	case errors.Is(err, ErrNoPatient):
		return noPatientMessage
	case errors.As(err, &re) && re.Message != "":
		return re.Message
	}
	return fallback
}
