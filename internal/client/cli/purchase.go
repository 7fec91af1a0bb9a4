package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/dmitrijs2005/sirchcoins/internal/client/models"
	"github.com/dmitrijs2005/sirchcoins/internal/common"
)

// Quote shows the purchase quote; "quote refresh" bypasses the cache.
func (a *App) Quote(ctx context.Context, args []string) error {
	var q *models.Quote
	var err error
	if len(args) > 0 && args[0] == "refresh" {
		q, err = a.purchaseService.RefreshQuote(ctx)
	} else {
		q, err = a.purchaseService.Quote(ctx)
	}
	if err != nil {
		return err
	}
	printlnFn(formatQuote(q))
	return nil
}

func formatQuote(q *models.Quote) string {
	s := fmt.Sprintf("1 coin = %s %s, minimum purchase %d %s",
		q.PricePerCoin.StringFixed(2), q.Currency, q.MinimumPurchase, common.CoinUnit)
	if !q.LastUpdated.IsZero() {
		s += fmt.Sprintf(" (updated %s)", q.LastUpdated.Local().Format("2006-01-02 15:04"))
	}
	return s
}

// Buy starts a purchase of buy <coins> and remembers the payment intent for
// confirm-payment.
func (a *App) Buy(ctx context.Context, args []string) error {
	raw := ""
	if len(args) > 0 {
		raw = args[0]
	} else {
		var err error
		if raw, err = getSimpleText(a.reader, "How many coins?", os.Stdout); err != nil {
			return err
		}
	}
	coins, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || coins <= 0 {
		return errInvalidNumber
	}

	q, err := a.purchaseService.Quote(ctx)
	if err != nil {
		return err
	}
	ok, err := getConfirmation(a.reader,
		fmt.Sprintf("Buy %d %s for %s %s?", coins, common.CoinUnit, q.Total(coins).StringFixed(2), q.Currency), os.Stdout)
	if err != nil {
		return err
	}
	if !ok {
		printlnFn("Cancelled.")
		return nil
	}

	pi, err := a.purchaseService.StartPurchase(ctx, coins)
	if err != nil {
		return err
	}
	a.pendingIntent = pi.ID
	printlnFn("Payment started:", pi.ID)
	printlnFn(fmt.Sprintf("Total %s %s. Complete the payment with client secret %s,", pi.Amount.StringFixed(2), pi.Currency, pi.ClientSecret))
	printlnFn("then run 'confirm-payment' (or 'cancel-payment' to abandon it).")
	return nil
}

// ConfirmPayment validates a completed payment and credits the coins.
func (a *App) ConfirmPayment(ctx context.Context, args []string) error {
	id := a.intentArg(args)
	if id == "" {
		return errNoPendingPayment
	}

	v, err := a.purchaseService.ConfirmPayment(ctx, id)
	if err != nil {
		return err
	}
	if id == a.pendingIntent {
		a.pendingIntent = ""
	}
	printlnFn(fmt.Sprintf("Payment confirmed: %d %s credited.", v.CoinsCredited, common.CoinUnit))
	if b := a.account.Snapshot().Balance; b != nil {
		printlnFn("Balance:", b.String(), common.CoinUnit)
	}
	return nil
}

// CancelPayment abandons a pending payment.
func (a *App) CancelPayment(ctx context.Context, args []string) error {
	id := a.intentArg(args)
	if id == "" {
		return errNoPendingPayment
	}
	if err := a.purchaseService.CancelPayment(ctx, id); err != nil {
		return err
	}
	if id == a.pendingIntent {
		a.pendingIntent = ""
	}
	printlnFn("Payment cancelled.")
	return nil
}

func (a *App) intentArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return a.pendingIntent
}
