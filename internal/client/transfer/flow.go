// Package transfer drives a peer-to-peer coin transfer: debounced recipient
// search, advisory validation against the cached balance, a confirmation
// step and a single submission.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmitrijs2005/sirchcoins/internal/client/account"
	"github.com/dmitrijs2005/sirchcoins/internal/client/models"
	"github.com/dmitrijs2005/sirchcoins/internal/common"
	"github.com/dmitrijs2005/sirchcoins/internal/logging"
	"github.com/dmitrijs2005/sirchcoins/internal/timex"
	"github.com/dmitrijs2005/sirchcoins/internal/validation"
)

// DefaultDebounce is the quiet period before a recipient lookup is sent.
const DefaultDebounce = time.Second

// MaxMemoLength bounds the optional memo.
const MaxMemoLength = 200

// FailureNotice is all the user learns about a failed submission.
const FailureNotice = "Transfer failed. Please try again later."

const (
	searchFailedNotice = "Search failed. Please try again later."
	noMatchNotice      = "No users match that search. Use 'invite <email>' to invite them."
)

var (
	ErrInvalidAmount           = errors.New("amount must be a positive number")
	ErrInsufficientBalance     = errors.New("amount exceeds your balance")
	ErrSelfTransfer            = errors.New("you cannot send coins to yourself")
	ErrNoRecipient             = errors.New("select a recipient first")
	ErrBalanceUnavailable      = errors.New("balance is not available yet")
	ErrSubmissionInProgress    = errors.New("a transfer is already being submitted")
	ErrNotAwaitingConfirmation = errors.New("nothing to confirm")
	ErrUnknownCandidate        = errors.New("no such candidate")
	ErrTransferFailed          = errors.New("transfer failed")
	ErrClosed                  = errors.New("transfer flow closed")
)

// Account is the read side of the account state plus its one mutator.
type Account interface {
	Snapshot() account.State
	RefreshUserBalance(ctx context.Context) (decimal.Decimal, error)
}

// Backend holds the two remote operations of a transfer.
type Backend interface {
	LookupRecipients(ctx context.Context, searchText string) ([]models.RecipientCandidate, error)
	SubmitTransfer(ctx context.Context, req models.TransferRequest) (*models.TransferResult, error)
}

type Stage int

const (
	StageIdle Stage = iota
	StageSearching
	StageNoMatch
	StageMultipleMatch
	StageRecipientSelected
	StageAmountEntered
	StageAwaitingConfirmation
	StageSubmitting
	StageSuccess
	StageFailed
)

var stageNames = [...]string{
	"idle", "searching", "no-match", "multiple-match", "recipient-selected",
	"amount-entered", "awaiting-confirmation", "submitting", "success", "failed",
}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

type NoticeKind int

const (
	NoticeNone NoticeKind = iota
	NoticeInfo
	NoticeSuccess
	NoticeError
)

// Confirmation is what the user approves before anything is sent.
type Confirmation struct {
	Recipient        models.RecipientCandidate
	Amount           decimal.Decimal
	Memo             string
	CurrentBalance   decimal.Decimal
	EstimatedBalance decimal.Decimal
}

// View is a copy of the flow state for rendering.
type View struct {
	Stage        Stage
	SearchText   string
	Searching    bool
	Candidates   []models.RecipientCandidate
	Recipient    *models.RecipientCandidate
	Amount       string
	AmountError  error
	Memo         string
	Confirmation *Confirmation
	Notice       string
	NoticeKind   NoticeKind
}

// CanSubmit reports whether Submit may succeed from this view.
func (v View) CanSubmit() bool {
	return v.Stage == StageAmountEntered && v.AmountError == nil
}

type Option func(*Flow)

// WithDebounce sets the quiet period of the recipient search.
func WithDebounce(d time.Duration) Option {
	return func(f *Flow) {
		if d > 0 {
			f.debounce = d
		}
	}
}

type Flow struct {
	account   Account
	backend   Backend
	logger    logging.Logger
	validator *validation.Validator
	debounce  time.Duration
	debouncer *timex.Debouncer
	newKey    func() string

	// lookups run on this context; Close cancels it
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	closed     bool
	searchGen  uint64
	settled    chan struct{}
	stage      Stage
	searchText string
	candidates []models.RecipientCandidate
	recipient  *models.RecipientCandidate
	amountRaw  string
	amount     decimal.Decimal
	amountErr  error
	memo       string
	confirm    *Confirmation
	notice     string
	noticeKind NoticeKind
}

func NewFlow(acc Account, backend Backend, logger logging.Logger, opts ...Option) *Flow {
	ctx, cancel := context.WithCancel(context.Background())
	f := &Flow{
		account:   acc,
		backend:   backend,
		logger:    logger.With("component", "transfer"),
		validator: validation.Default,
		debounce:  DefaultDebounce,
		newKey:    uuid.NewString,
		ctx:       ctx,
		cancel:    cancel,
		settled:   closedChan(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.debouncer = timex.NewDebouncer(f.debounce)
	return f
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func isClosed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func (f *Flow) busyLocked() {
	if isClosed(f.settled) {
		f.settled = make(chan struct{})
	}
}

func (f *Flow) settleLocked() {
	if !isClosed(f.settled) {
		close(f.settled)
	}
}

func (f *Flow) guardLocked() error {
	if f.closed {
		return ErrClosed
	}
	if f.stage == StageSubmitting {
		return ErrSubmissionInProgress
	}
	return nil
}

func (f *Flow) setNoticeLocked(kind NoticeKind, msg string) {
	f.noticeKind = kind
	f.notice = msg
}

// stopSearchLocked cancels the pending lookup and makes any in-flight
// result stale.
func (f *Flow) stopSearchLocked() {
	f.debouncer.Cancel()
	f.searchGen++
	f.candidates = nil
	f.settleLocked()
}

// formStageLocked is the stage implied by the recipient and amount.
func (f *Flow) formStageLocked() Stage {
	switch {
	case f.recipient == nil:
		return StageIdle
	case f.amountRaw != "" && f.amountErr == nil:
		return StageAmountEntered
	default:
		return StageRecipientSelected
	}
}

// SetSearchText updates the search field. A selected recipient is dropped
// first. Non-empty text schedules a lookup after the quiet period; empty text
// cancels the pending one.
func (f *Flow) SetSearchText(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.guardLocked(); err != nil {
		return err
	}

	f.searchText = text
	f.recipient = nil
	f.confirm = nil
	f.setNoticeLocked(NoticeNone, "")
	f.stopSearchLocked()

	query := strings.TrimSpace(text)
	if query == "" {
		f.stage = StageIdle
		return nil
	}

	gen := f.searchGen
	f.stage = StageSearching
	f.busyLocked()
	f.debouncer.Trigger(func() { f.lookup(gen, query) })
	return nil
}

func (f *Flow) lookup(gen uint64, query string) {
	f.mu.Lock()
	if f.closed || gen != f.searchGen {
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()

	found, err := f.backend.LookupRecipients(f.ctx, query)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || gen != f.searchGen {
		f.logger.Debug(f.ctx, "dropping superseded lookup result", "query", query)
		return
	}
	defer f.settleLocked()

	if err != nil {
		f.logger.Error(f.ctx, "recipient lookup failed", "error", err)
		f.stage = StageIdle
		f.setNoticeLocked(NoticeError, searchFailedNotice)
		return
	}

	switch len(found) {
	case 0:
		f.stage = StageNoMatch
		f.setNoticeLocked(NoticeInfo, noMatchNotice)
	case 1:
		c := found[0]
		f.recipient = &c
		f.searchText = ""
		f.revalidateAmountLocked()
		f.stage = f.formStageLocked()
	default:
		f.candidates = append([]models.RecipientCandidate(nil), found...)
		f.stage = StageMultipleMatch
	}
}

// AwaitSearch blocks until no lookup is pending or running.
func (f *Flow) AwaitSearch(ctx context.Context) error {
	f.mu.Lock()
	ch := f.settled
	f.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SelectRecipient picks one of the presented candidates and clears the
// search text.
func (f *Flow) SelectRecipient(userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.guardLocked(); err != nil {
		return err
	}

	var picked *models.RecipientCandidate
	for i := range f.candidates {
		if f.candidates[i].UserID == userID {
			c := f.candidates[i]
			picked = &c
			break
		}
	}
	if picked == nil {
		return fmt.Errorf("%w: %s", ErrUnknownCandidate, userID)
	}

	f.stopSearchLocked()
	f.recipient = picked
	f.searchText = ""
	f.confirm = nil
	f.setNoticeLocked(NoticeNone, "")
	f.revalidateAmountLocked()
	f.stage = f.formStageLocked()
	return nil
}

// ClearRecipient drops the selection and any pending search.
func (f *Flow) ClearRecipient() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.guardLocked(); err != nil {
		return err
	}
	f.stopSearchLocked()
	f.recipient = nil
	f.confirm = nil
	f.stage = StageIdle
	return nil
}

// SetAmount records the raw amount and returns the advisory validation
// result. An empty amount clears the field.
func (f *Flow) SetAmount(raw string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.guardLocked(); err != nil {
		return err
	}
	f.amountRaw = strings.TrimSpace(raw)
	f.confirm = nil
	f.revalidateAmountLocked()
	if f.recipient != nil {
		f.stage = f.formStageLocked()
	}
	return f.amountErr
}

func (f *Flow) revalidateAmountLocked() {
	if f.amountRaw == "" {
		f.amount = decimal.Zero
		f.amountErr = nil
		return
	}
	f.amount, f.amountErr = f.checkAmount(f.amountRaw, f.account.Snapshot().Balance)
}

// checkAmount parses raw and holds it against the cached balance. The
// backend re-checks everything.
func (f *Flow) checkAmount(raw string, balance *decimal.Decimal) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	if balance == nil {
		return amount, ErrBalanceUnavailable
	}
	if amount.GreaterThan(*balance) {
		return amount, ErrInsufficientBalance
	}
	return amount, nil
}

func (f *Flow) SetMemo(memo string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.guardLocked(); err != nil {
		return err
	}
	memo = strings.TrimSpace(memo)
	if err := f.validator.Var("memo", memo, fmt.Sprintf("max=%d", MaxMemoLength)); err != nil {
		return err
	}
	f.memo = memo
	if f.stage == StageAwaitingConfirmation {
		f.confirm = nil
		f.stage = f.formStageLocked()
	}
	return nil
}

// Submit validates the form against the cached state and opens the
// confirmation step. Nothing is sent.
func (f *Flow) Submit() (*Confirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.guardLocked(); err != nil {
		return nil, err
	}
	if f.recipient == nil {
		return nil, ErrNoRecipient
	}

	st := f.account.Snapshot()
	if st.UserID == "" {
		return nil, common.ErrNotSignedIn
	}
	if f.recipient.UserID == st.UserID {
		return nil, ErrSelfTransfer
	}

	amount, err := f.checkAmount(f.amountRaw, st.Balance)
	f.amount, f.amountErr = amount, err
	if err != nil {
		f.stage = f.formStageLocked()
		return nil, err
	}

	f.confirm = &Confirmation{
		Recipient:        *f.recipient,
		Amount:           amount,
		Memo:             f.memo,
		CurrentBalance:   *st.Balance,
		EstimatedBalance: st.Balance.Sub(amount),
	}
	f.stage = StageAwaitingConfirmation
	c := *f.confirm
	return &c, nil
}

// CancelConfirmation returns to the filled-in form.
func (f *Flow) CancelConfirmation() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.stage != StageAwaitingConfirmation {
		return
	}
	f.confirm = nil
	f.stage = f.formStageLocked()
}

// Confirm re-reads the balance, re-checks the transfer and submits it
// exactly once. The submission is not cancelled with ctx once sent.
func (f *Flow) Confirm(ctx context.Context) (*models.TransferResult, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrClosed
	}
	if f.stage == StageSubmitting {
		f.mu.Unlock()
		return nil, ErrSubmissionInProgress
	}
	if f.stage != StageAwaitingConfirmation || f.confirm == nil {
		f.mu.Unlock()
		return nil, ErrNotAwaitingConfirmation
	}
	conf := *f.confirm
	f.stage = StageSubmitting
	f.setNoticeLocked(NoticeNone, "")
	f.mu.Unlock()

	fresh, err := f.account.RefreshUserBalance(ctx)
	if err != nil {
		f.logger.Error(ctx, "balance re-check failed", "error", err)
		f.fail()
		return nil, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}

	sender := f.account.Snapshot().UserID
	if sender == "" {
		f.backToForm(nil)
		return nil, common.ErrNotSignedIn
	}
	if conf.Recipient.UserID == sender {
		f.backToForm(nil)
		return nil, ErrSelfTransfer
	}
	if conf.Amount.GreaterThan(fresh) {
		f.backToForm(ErrInsufficientBalance)
		return nil, ErrInsufficientBalance
	}

	req := models.TransferRequest{
		SenderID:       sender,
		RecipientID:    conf.Recipient.UserID,
		Amount:         conf.Amount,
		Memo:           conf.Memo,
		IdempotencyKey: f.newKey(),
	}
	res, err := f.backend.SubmitTransfer(context.WithoutCancel(ctx), req)
	if err == nil && !res.Success {
		err = errors.New(res.Message)
	}
	if err != nil {
		f.logger.Error(ctx, "transfer failed", "recipient_id", req.RecipientID, "amount", req.Amount, "error", err)
		f.fail()
		return nil, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}

	f.logger.Info(ctx, "transfer completed", "transaction_id", res.TransactionID, "recipient_id", req.RecipientID, "amount", req.Amount)

	f.mu.Lock()
	f.resetFormLocked()
	f.stage = StageSuccess
	f.setNoticeLocked(NoticeSuccess, fmt.Sprintf("Sent %s %s to %s.", conf.Amount, common.CoinUnit, conf.Recipient))
	f.mu.Unlock()

	if _, err := f.account.RefreshUserBalance(ctx); err != nil {
		f.logger.Warn(ctx, "balance refresh after transfer failed", "error", err)
	}
	return res, nil
}

func (f *Flow) fail() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirm = nil
	f.stage = StageFailed
	f.setNoticeLocked(NoticeError, FailureNotice)
}

// backToForm leaves the submission without sending anything.
func (f *Flow) backToForm(amountErr error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirm = nil
	if amountErr != nil {
		f.amountErr = amountErr
	}
	f.stage = f.formStageLocked()
}

func (f *Flow) resetFormLocked() {
	f.stopSearchLocked()
	f.searchText = ""
	f.candidates = nil
	f.recipient = nil
	f.amountRaw = ""
	f.amount = decimal.Zero
	f.amountErr = nil
	f.memo = ""
	f.confirm = nil
}

// Reset clears the form and the notice.
func (f *Flow) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.guardLocked(); err != nil {
		return err
	}
	f.resetFormLocked()
	f.stage = StageIdle
	f.setNoticeLocked(NoticeNone, "")
	return nil
}

func (f *Flow) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()

	v := View{
		Stage:       f.stage,
		SearchText:  f.searchText,
		Searching:   !isClosed(f.settled),
		Amount:      f.amountRaw,
		AmountError: f.amountErr,
		Memo:        f.memo,
		Notice:      f.notice,
		NoticeKind:  f.noticeKind,
	}
	if len(f.candidates) > 0 {
		v.Candidates = append([]models.RecipientCandidate(nil), f.candidates...)
	}
	if f.recipient != nil {
		r := *f.recipient
		v.Recipient = &r
	}
	if f.confirm != nil {
		c := *f.confirm
		v.Confirmation = &c
	}
	return v
}

// Close cancels the pending search and drops any lookup still running.
// It is safe to call more than once.
func (f *Flow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	f.debouncer.Stop()
	f.cancel()
	f.searchGen++
	f.settleLocked()
}
