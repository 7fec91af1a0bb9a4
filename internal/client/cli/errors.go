package cli

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/dmitrijs2005/sirchcoins/internal/client/account"
	"github.com/dmitrijs2005/sirchcoins/internal/client/client"
	"github.com/dmitrijs2005/sirchcoins/internal/client/services"
	"github.com/dmitrijs2005/sirchcoins/internal/client/transfer"
	"github.com/dmitrijs2005/sirchcoins/internal/common"
	"github.com/dmitrijs2005/sirchcoins/internal/validation"
)

const genericFailure = "Something went wrong. Please try again later."

const errorScreen = `
========================================
  Something went wrong.
  Nothing was changed on your side; please try again later.
  You are back at the main menu.
========================================`

var (
	errPasswordMismatch  = errors.New("passwords do not match")
	errInvalidNumber     = errors.New("please enter a positive whole number")
	errNoPendingPayment  = errors.New("no pending payment; run 'buy <coins>' first")
	errProfileNotLoaded  = errors.New("profile is not available yet")
	errUsage             = errors.New("wrong arguments; type 'help' for usage")
	errConfirmationTyped = errors.New("account not deleted: confirmation did not match")
)

// userMessage turns err into what the user is shown. Expected errors keep
// their text; anything else becomes a generic notice.
func userMessage(err error) string {
	var verr validation.Errors
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.Is(err, client.ErrInvalidCredentials):
		return "Invalid email or password."
	case errors.Is(err, common.ErrTokenExpired):
		return "Your session expired. Please log in again."
	case errors.Is(err, common.ErrNotSignedIn):
		return "Please log in first."
	case errors.Is(err, account.ErrNoProfile):
		return "Your profile is not loaded yet. Try again in a moment."
	case errors.Is(err, client.ErrPaymentNotVerified):
		return "The payment has not been completed yet."
	case errors.Is(err, client.ErrUnavailable):
		return "The service is unavailable. Please try again later."
	case errors.Is(err, transfer.ErrTransferFailed):
		return transfer.FailureNotice
	}
	if target := expectedSentinel(err); target != nil {
		return capitalize(target.Error()) + "."
	}
	return genericFailure
}

// isExpected reports input and state errors the user can fix.
func isExpected(err error) bool {
	var verr validation.Errors
	return errors.As(err, &verr) || expectedSentinel(err) != nil
}

// expectedSentinel returns the known error err wraps, without the context
// added on the way up.
func expectedSentinel(err error) error {
	for _, target := range []error{
		services.ErrPasswordTooShort,
		services.ErrBelowMinimumPurchase,
		common.ErrNotSignedIn,
		transfer.ErrInvalidAmount,
		transfer.ErrInsufficientBalance,
		transfer.ErrSelfTransfer,
		transfer.ErrNoRecipient,
		transfer.ErrBalanceUnavailable,
		transfer.ErrSubmissionInProgress,
		errPasswordMismatch,
		errInvalidNumber,
		errNoPendingPayment,
		errProfileNotLoaded,
		errUsage,
		errConfirmationTyped,
	} {
		if errors.Is(err, target) {
			return target
		}
	}
	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// critical runs a flow whose unexpected failure must not leave the user in
// a half-finished state. Panics and unexpected errors are logged and replaced
// by the error screen; expected errors are returned for inline display.
func (a *App) critical(ctx context.Context, name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error(ctx, "critical flow panicked", "flow", name, "panic", r)
			printlnFn(errorScreen)
			err = nil
		}
	}()

	if ferr := fn(); ferr != nil {
		if isExpected(ferr) || errors.Is(ferr, client.ErrInvalidCredentials) || errors.Is(ferr, io.EOF) {
			return ferr
		}
		a.logger.Error(ctx, "critical flow failed", "flow", name, "error", ferr)
		printlnFn(errorScreen)
	}
	return nil
}
