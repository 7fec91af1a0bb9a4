package cli

import (
	"bytes"
	"context"
	"os"

	"github.com/dmitrijs2005/sirchcoins/internal/client/models"
	"github.com/dmitrijs2005/sirchcoins/internal/common"
)

// getSimpleText, getPassword and getConfirmation are indirections used to
// facilitate testing. They point to interactive input helpers and can be
// swapped in tests.
var (
	getSimpleText   = GetSimpleText
	getPassword     = GetPassword
	getConfirmation = GetConfirmation
)

// Register prompts for the sign-up form and creates the account.
//
// When the backend requires e-mail confirmation no session is issued and the
// user is asked to confirm and log in. Password buffers are wiped before
// returning.
func (a *App) Register(ctx context.Context, _ []string) error {
	var form models.SignUpForm
	var err error

	if form.Email, err = getSimpleText(a.reader, "Enter email", os.Stdout); err != nil {
		return err
	}
	if form.FullName, err = getSimpleText(a.reader, "Enter full name", os.Stdout); err != nil {
		return err
	}
	if form.UserHandle, err = getSimpleText(a.reader, "Choose a handle (letters, digits, '-' and '_')", os.Stdout); err != nil {
		return err
	}

	password, confirm, err := a.readNewPassword()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)
	defer common.WipeByteArray(confirm)
	form.Password, form.ConfirmPassword = string(password), string(confirm)

	if form.IsEmailPrivate, err = getConfirmation(a.reader, "Hide your e-mail from other users?", os.Stdout); err != nil {
		return err
	}
	if form.IsNamePrivate, err = getConfirmation(a.reader, "Hide your full name from other users?", os.Stdout); err != nil {
		return err
	}

	s, err := a.authService.SignUp(ctx, form)
	if err != nil {
		return err
	}
	if s == nil {
		printlnFn("Account created. Check your e-mail to confirm it, then log in.")
		return nil
	}
	printlnFn("Account created. Welcome to Sirch Coins!")
	return nil
}

// Login prompts for credentials and signs in. The password is wiped before
// returning.
func (a *App) Login(ctx context.Context, _ []string) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(a.reader, "Enter password", os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	s, err := a.authService.SignIn(ctx, email, password)
	if err != nil {
		return err
	}
	printlnFn("Signed in as", s.Email)
	return nil
}

// Logout ends the session. Local state is cleared even when the backend
// cannot be reached.
func (a *App) Logout(ctx context.Context, _ []string) error {
	if err := a.authService.SignOut(ctx); err != nil {
		return err
	}
	a.pendingIntent = ""
	printlnFn("Signed out.")
	return nil
}

// Forgot runs password recovery: it requests a code, verifies it and sets a
// new password on the recovery session.
func (a *App) Forgot(ctx context.Context, _ []string) error {
	email, err := getSimpleText(a.reader, "Enter the email of your account", os.Stdout)
	if err != nil {
		return err
	}
	if err := a.authService.RecoverPassword(ctx, email); err != nil {
		return err
	}
	printlnFn("If the account exists, a recovery code was sent to", common.NormalizeEmail(email))

	code, err := getSimpleText(a.reader, "Enter the recovery code", os.Stdout)
	if err != nil {
		return err
	}
	if _, err := a.authService.VerifyRecovery(ctx, email, code); err != nil {
		return err
	}

	return a.critical(ctx, "password-recovery", func() error {
		return a.setPassword(ctx)
	})
}

// ChangePassword sets a new password for the signed-in user.
func (a *App) ChangePassword(ctx context.Context, _ []string) error {
	return a.critical(ctx, "change-password", func() error {
		return a.setPassword(ctx)
	})
}

func (a *App) setPassword(ctx context.Context) error {
	password, confirm, err := a.readNewPassword()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)
	defer common.WipeByteArray(confirm)

	if !bytes.Equal(password, confirm) {
		return errPasswordMismatch
	}
	if err := a.authService.UpdatePassword(ctx, password); err != nil {
		return err
	}
	printlnFn("Password updated.")
	return nil
}

// readNewPassword asks for a password twice. The caller wipes both buffers.
func (a *App) readNewPassword() ([]byte, []byte, error) {
	password, err := getPassword(a.reader, "Enter new password", os.Stdout)
	if err != nil {
		return nil, nil, err
	}
	confirm, err := getPassword(a.reader, "Repeat new password", os.Stdout)
	if err != nil {
		common.WipeByteArray(password)
		return nil, nil, err
	}
	return password, confirm, nil
}

// DeleteAccount removes the account after the user types DELETE.
func (a *App) DeleteAccount(ctx context.Context, _ []string) error {
	return a.critical(ctx, "delete-account", func() error {
		printlnFn("This permanently deletes your account and forfeits your coins.")
		answer, err := getSimpleText(a.reader, "Type DELETE to confirm", os.Stdout)
		if err != nil {
			return err
		}
		if answer != "DELETE" {
			return errConfirmationTyped
		}
		if err := a.profileService.DeleteAccount(ctx); err != nil {
			return err
		}
		a.pendingIntent = ""
		printlnFn("Your account has been deleted.")
		return nil
	})
}
