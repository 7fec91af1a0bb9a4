package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/sirchcoins/internal/client/account"
	"github.com/dmitrijs2005/sirchcoins/internal/client/client"
	"github.com/dmitrijs2005/sirchcoins/internal/client/config"
	"github.com/dmitrijs2005/sirchcoins/internal/client/quote"
	"github.com/dmitrijs2005/sirchcoins/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/sirchcoins/internal/client/services"
	"github.com/dmitrijs2005/sirchcoins/internal/client/transfer"
	"github.com/dmitrijs2005/sirchcoins/internal/logging"

	_ "modernc.org/sqlite"
)

// accountState is the part of the synchronizer the screens use.
type accountState interface {
	Run(ctx context.Context) error
	Ready() <-chan struct{}
	Snapshot() account.State
	RefreshUserBalance(ctx context.Context) (decimal.Decimal, error)
}

type App struct {
	config          *config.Config
	logger          logging.Logger
	closers         []func() error
	authService     services.AuthService
	purchaseService services.PurchaseService
	historyService  services.HistoryService
	profileService  services.ProfileService
	account         accountState
	newFlow         func() *transfer.Flow
	reader          *bufio.Reader
	pendingIntent   string
}

// NewApp wires local storage, the backend client, the services and the
// account synchronizer.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if err := os.MkdirAll(filepath.Dir(c.StoragePath), 0o700); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	db, err := metadata.Open(ctx, c.StoragePath)
	if err != nil {
		logger.Error(ctx, "error initializing local storage", "path", c.StoragePath, "error", err)
		return nil, err
	}

	api, err := client.NewHTTPClient(c.BackendURL, c.AnonKey,
		client.WithTimeout(c.RequestTimeout),
		client.WithRateLimit(c.FunctionCallRate, c.FunctionCallBurst),
		client.WithLogger(logger.With("component", "http")),
	)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	app := assemble(c, logger, db, api)
	app.closers = []func() error{api.Close, db.Close}
	return app, nil
}

func assemble(c *config.Config, logger logging.Logger, db *sql.DB, api *client.HTTPClient) *App {
	as := services.NewAuthService(api, db, logger)
	api.SetTokenSource(as)

	sessionStore := metadata.NewMemoryRepository()
	syncer := account.New(as, api, logger, metadata.NewSQLiteRepository(db), sessionStore)
	quotes := quote.NewCache(api, c.QuoteProvider, quote.WithTTL(c.QuoteTTL), quote.WithLogger(logger))

	return &App{
		config:          c,
		logger:          logger,
		authService:     as,
		purchaseService: services.NewPurchaseService(api, as, quotes, syncer, logger),
		historyService:  services.NewHistoryService(api, as),
		profileService:  services.NewProfileService(api, as, logger),
		account:         syncer,
		newFlow: func() *transfer.Flow {
			return transfer.NewFlow(syncer, api, logger, transfer.WithDebounce(c.SearchDebounce))
		},
		reader: bufio.NewReader(os.Stdin),
	}
}

var errQuit = errors.New("quit")

// Run starts the synchronizer, restores the previous session once it listens,
// then runs the REPL until the user exits or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.account.Run(gctx)
	})

	replDone := make(chan struct{})
	go func() {
		defer close(replDone)
		// Restore announces INITIAL_SESSION; the synchronizer must be listening.
		select {
		case <-a.account.Ready():
		case <-gctx.Done():
			return
		}
		if _, err := a.authService.Restore(gctx); err != nil {
			a.logger.Warn(gctx, "session restore failed", "error", err)
			printlnFn("Could not restore your session. Please log in.")
		}
		a.Root(gctx)
	}()

	g.Go(func() error {
		select {
		case <-replDone:
			return errQuit
		case <-gctx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errQuit) {
		return err
	}
	return nil
}

func (a *App) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn(context.Background(), "close failed", "error", err)
		}
	}
}

// Root runs the REPL on stdin.
func (a *App) Root(ctx context.Context) {
	printlnFn("Welcome to Sirch Coins. Type 'help' for commands.")
	runREPL(ctx, a, a.status, a.reader)
}

func (a *App) isLoggedIn() bool {
	return a.account.Snapshot().SignedIn()
}

// status renders the prompt prefix.
func (a *App) status() string {
	st := a.account.Snapshot()
	if !st.SignedIn() {
		return "guest"
	}
	who := st.UserEmail
	if st.Profile != nil {
		who = "@" + st.Profile.UserHandle
	}
	if st.Balance == nil {
		return who + " | balance ..."
	}
	return fmt.Sprintf("%s | %s coins", who, st.Balance.String())
}
