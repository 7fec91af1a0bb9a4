package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool

	Register(ctx context.Context, args []string) error
	Login(ctx context.Context, args []string) error
	Logout(ctx context.Context, args []string) error
	Forgot(ctx context.Context, args []string) error
	ChangePassword(ctx context.Context, args []string) error
	DeleteAccount(ctx context.Context, args []string) error

	Profile(ctx context.Context, args []string) error
	Privacy(ctx context.Context, args []string) error
	Balance(ctx context.Context, args []string) error
	History(ctx context.Context, args []string) error
	Invite(ctx context.Context, args []string) error

	Send(ctx context.Context, args []string) error

	Quote(ctx context.Context, args []string) error
	Buy(ctx context.Context, args []string) error
	ConfirmPayment(ctx context.Context, args []string) error
	CancelPayment(ctx context.Context, args []string) error
}

// command is one REPL verb. auth commands need a session; guest commands
// make no sense with one.
type command struct {
	name    string
	aliases []string
	help    string
	auth    bool
	guest   bool
	run     func(a execIface, ctx context.Context, args []string) error
}

var commands = []command{
	{name: "register", guest: true, help: "create an account", run: execIface.Register},
	{name: "login", guest: true, help: "sign in", run: execIface.Login},
	{name: "forgot", guest: true, help: "reset a forgotten password", run: execIface.Forgot},
	{name: "quote", help: "show the coin price (quote refresh to re-fetch)", run: execIface.Quote},
	{name: "profile", help: "show your profile", auth: true, run: execIface.Profile},
	{name: "privacy", help: "privacy email|name on|off", auth: true, run: execIface.Privacy},
	{name: "balance", aliases: []string{"b"}, help: "refresh and show your balance", auth: true, run: execIface.Balance},
	{name: "send", help: "send coins to another user", auth: true, run: execIface.Send},
	{name: "buy", help: "buy <coins>", auth: true, run: execIface.Buy},
	{name: "confirm-payment", help: "confirm-payment [payment intent id]", auth: true, run: execIface.ConfirmPayment},
	{name: "cancel-payment", help: "cancel-payment [payment intent id]", auth: true, run: execIface.CancelPayment},
	{name: "history", aliases: []string{"h"}, help: "history [limit]", auth: true, run: execIface.History},
	{name: "invite", help: "invite <email>", auth: true, run: execIface.Invite},
	{name: "passwd", help: "change your password", auth: true, run: execIface.ChangePassword},
	{name: "delete-account", help: "delete your account", auth: true, run: execIface.DeleteAccount},
	{name: "logout", help: "sign out", auth: true, run: execIface.Logout},
}

func lookupCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
		for _, al := range c.aliases {
			if al == name {
				return c, true
			}
		}
	}
	return command{}, false
}

func helpText(loggedIn bool) string {
	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, c := range commands {
		if (c.auth && !loggedIn) || (c.guest && loggedIn) {
			continue
		}
		fmt.Fprintf(&b, "  %-16s %s\n", c.name, c.help)
	}
	b.WriteString("  exit | quit       leave the program")
	return b.String()
}

// runREPL starts a simple read–eval–print loop for the wallet CLI.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches to methods on 'a'. Commands marked auth are refused for guests,
// guest commands are refused for signed-in users.
// Handler errors are turned into a short message for the user; the loop keeps
// running. It exits on EOF, on "exit"/"quit" or when ctx is done.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("sirch> %s > ", statusFn()))

		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		name, args := parts[0], parts[1:]

		switch name {
		case "help":
			printlnFn(helpText(a.isLoggedIn()))
			continue
		case "exit", "quit":
			printlnFn("Bye!")
			return
		}

		cmd, ok := lookupCommand(name)
		if !ok {
			printlnFn("Unknown command:", name)
			continue
		}
		if cmd.auth && !a.isLoggedIn() {
			printlnFn("Please log in first.")
			continue
		}
		if cmd.guest && a.isLoggedIn() {
			printlnFn("You are already logged in. Use 'logout' first.")
			continue
		}
		if err := cmd.run(a, ctx, args); err != nil {
			printlnFn(userMessage(err))
		}
	}
}
