package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/sirchcoins/internal/client/models"
	"github.com/dmitrijs2005/sirchcoins/internal/client/transfer"
	"github.com/dmitrijs2005/sirchcoins/internal/common"
)

var errCancelled = errors.New("cancelled")

// Send walks the user through one transfer: recipient search, amount, memo,
// confirmation and a single submission. "send <query>" starts with a search.
func (a *App) Send(ctx context.Context, args []string) error {
	f := a.newFlow()
	defer f.Close()

	if a.account.Snapshot().Balance == nil {
		if _, err := a.account.RefreshUserBalance(ctx); err != nil {
			a.logger.Warn(ctx, "balance refresh before transfer failed", "error", err)
		}
	}

	err := a.sendSteps(ctx, f, strings.Join(args, " "))
	if errors.Is(err, errCancelled) {
		printlnFn("Cancelled.")
		return nil
	}
	return err
}

func (a *App) sendSteps(ctx context.Context, f *transfer.Flow, query string) error {
	if err := a.pickRecipient(ctx, f, query); err != nil {
		return err
	}
	if err := a.enterAmount(f); err != nil {
		return err
	}
	if err := a.enterMemo(f); err != nil {
		return err
	}

	conf, err := f.Submit()
	if err != nil {
		return err
	}
	printlnFn("To:              ", conf.Recipient.String())
	printlnFn("Amount:          ", conf.Amount.String(), common.CoinUnit)
	if conf.Memo != "" {
		printlnFn("Memo:            ", conf.Memo)
	}
	printlnFn("Balance after:   ", conf.EstimatedBalance.String(), common.CoinUnit)

	ok, err := getConfirmation(a.reader, "Send now?", os.Stdout)
	if err != nil {
		return err
	}
	if !ok {
		f.CancelConfirmation()
		return errCancelled
	}

	printlnFn("Sending...")
	_, err = f.Confirm(ctx)
	if v := f.View(); v.Notice != "" {
		printlnFn(v.Notice)
		if errors.Is(err, transfer.ErrTransferFailed) {
			return nil
		}
	}
	return err
}

// pickRecipient searches until exactly one recipient is selected.
func (a *App) pickRecipient(ctx context.Context, f *transfer.Flow, query string) error {
	for {
		if query == "" {
			var err error
			query, err = getSimpleText(a.reader, "Search recipient by name, email or handle (empty to cancel)", os.Stdout)
			if err != nil {
				return err
			}
			if query == "" {
				return errCancelled
			}
		}

		if err := f.SetSearchText(query); err != nil {
			return err
		}
		query = ""
		printlnFn("Searching...")
		if err := f.AwaitSearch(ctx); err != nil {
			return err
		}

		v := f.View()
		if v.Recipient != nil {
			printlnFn("Recipient:", v.Recipient.String())
			return nil
		}
		if v.Stage != transfer.StageMultipleMatch {
			if v.Notice != "" {
				printlnFn(v.Notice)
			}
			continue
		}

		for i, c := range v.Candidates {
			printlnFn(fmt.Sprintf("  %d) %s", i+1, c.String()))
		}
		picked, err := a.pickCandidate(f, v.Candidates)
		if err != nil {
			return err
		}
		if picked {
			return nil
		}
	}
}

// pickCandidate asks for a list number until a valid one is given. An empty
// answer returns false to search again.
func (a *App) pickCandidate(f *transfer.Flow, candidates []models.RecipientCandidate) (bool, error) {
	for {
		pick, err := getSimpleText(a.reader, "Pick a number (empty to search again)", os.Stdout)
		if err != nil {
			return false, err
		}
		if pick == "" {
			return false, nil
		}
		n, err := strconv.Atoi(pick)
		if err != nil || n < 1 || n > len(candidates) {
			printlnFn("No such entry.")
			continue
		}
		if err := f.SelectRecipient(candidates[n-1].UserID); err != nil {
			return false, err
		}
		printlnFn("Recipient:", candidates[n-1].String())
		return true, nil
	}
}

// enterAmount re-prompts until the amount passes the local checks.
func (a *App) enterAmount(f *transfer.Flow) error {
	prompt := "Amount"
	if b := a.account.Snapshot().Balance; b != nil {
		prompt = fmt.Sprintf("Amount (available %s %s, empty to cancel)", b.String(), common.CoinUnit)
	}
	for {
		raw, err := getSimpleText(a.reader, prompt, os.Stdout)
		if err != nil {
			return err
		}
		if raw == "" {
			return errCancelled
		}
		err = f.SetAmount(raw)
		if err == nil {
			return nil
		}
		if !isExpected(err) {
			return err
		}
		printlnFn(userMessage(err))
	}
}

func (a *App) enterMemo(f *transfer.Flow) error {
	for {
		memo, err := getSimpleText(a.reader, fmt.Sprintf("Memo (optional, up to %d characters)", transfer.MaxMemoLength), os.Stdout)
		if err != nil {
			return err
		}
		err = f.SetMemo(memo)
		if err == nil {
			return nil
		}
		if !isExpected(err) {
			return err
		}
		printlnFn(userMessage(err))
	}
}
