package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/sirchcoins/internal/client/models"
	"github.com/dmitrijs2005/sirchcoins/internal/common"
)

// Profile prints the resolved profile of the signed-in user.
func (a *App) Profile(_ context.Context, _ []string) error {
	st := a.account.Snapshot()
	if st.Profile == nil {
		if st.AuthError != nil {
			return errProfileNotLoaded
		}
		printlnFn("Loading your profile...")
		return nil
	}

	p := st.Profile
	printlnFn("Name:   ", p.FullName, privacyMark(p.IsNamePrivate))
	printlnFn("Handle: ", "@"+p.UserHandle)
	printlnFn("Email:  ", st.UserEmail, privacyMark(p.IsEmailPrivate))
	if !p.CreatedAt.IsZero() {
		printlnFn("Member since", p.CreatedAt.Format("2006-01-02"))
	}
	if st.Balance != nil {
		printlnFn("Balance:", st.Balance.String(), common.CoinUnit)
	}
	return nil
}

func privacyMark(private bool) string {
	if private {
		return "(private)"
	}
	return "(public)"
}

// Privacy toggles one privacy flag: privacy email|name on|off.
func (a *App) Privacy(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	st := a.account.Snapshot()
	if st.Profile == nil {
		return errProfileNotLoaded
	}

	var on bool
	switch strings.ToLower(args[1]) {
	case "on", "private":
		on = true
	case "off", "public":
		on = false
	default:
		return errUsage
	}

	settings := models.PrivacySettings{
		IsEmailPrivate: st.Profile.IsEmailPrivate,
		IsNamePrivate:  st.Profile.IsNamePrivate,
	}
	switch strings.ToLower(args[0]) {
	case "email":
		settings.IsEmailPrivate = on
	case "name":
		settings.IsNamePrivate = on
	default:
		return errUsage
	}

	p, err := a.profileService.UpdatePrivacy(ctx, settings)
	if err != nil {
		return err
	}
	printlnFn("Privacy updated: email", privacyMark(p.IsEmailPrivate), "name", privacyMark(p.IsNamePrivate))
	return nil
}

// Balance re-reads the balance from the backend.
func (a *App) Balance(ctx context.Context, _ []string) error {
	b, err := a.account.RefreshUserBalance(ctx)
	if err != nil {
		return err
	}
	printlnFn("Balance:", b.String(), common.CoinUnit)
	return nil
}

// History prints the latest transactions, newest first.
func (a *App) History(ctx context.Context, args []string) error {
	limit := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return errInvalidNumber
		}
		limit = n
	}

	txs, err := a.historyService.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if len(txs) == 0 {
		printlnFn("No transactions yet.")
		return nil
	}

	me := a.account.Snapshot().UserID
	for _, tx := range txs {
		printlnFn(formatTransaction(tx, me))
	}
	return nil
}

func formatTransaction(tx models.Transaction, me string) string {
	var b strings.Builder
	b.WriteString(tx.CreatedAt.Local().Format("2006-01-02 15:04"))

	switch {
	case tx.Kind == models.KindPurchase:
		fmt.Fprintf(&b, "  +%s %s  purchase", tx.Amount, common.CoinUnit)
	case tx.Direction(me) == "in":
		fmt.Fprintf(&b, "  +%s %s  from @%s", tx.Amount, common.CoinUnit, tx.SenderHandle)
	default:
		fmt.Fprintf(&b, "  -%s %s  to @%s", tx.Amount, common.CoinUnit, tx.RecipientHandle)
	}
	if tx.Memo != "" {
		fmt.Fprintf(&b, "  %q", tx.Memo)
	}
	return b.String()
}

// Invite sends an invitation e-mail: invite <email>.
func (a *App) Invite(ctx context.Context, args []string) error {
	var email string
	if len(args) > 0 {
		email = args[0]
	} else {
		var err error
		if email, err = getSimpleText(a.reader, "Email to invite", os.Stdout); err != nil {
			return err
		}
	}

	if err := a.profileService.Invite(ctx, email); err != nil {
		return err
	}
	printlnFn("Invitation sent to", common.NormalizeEmail(email))
	return nil
}
