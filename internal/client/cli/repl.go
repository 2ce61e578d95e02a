package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for REPL output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to. App satisfies it;
// tests provide a stub.
type execIface interface {
	isLoggedIn() bool
	Signup(ctx context.Context, args []string) error
	Verify(ctx context.Context, args []string) error
	Resend(ctx context.Context) error
	Reset(ctx context.Context) error
	ChangePassword(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Can(ctx context.Context, args []string) error
	Profile(ctx context.Context, args []string) error
	Link(ctx context.Context, args []string) error
	Logout(ctx context.Context) error
}

// runREPL reads commands line by line from reader and dispatches them to a
// until EOF, "exit" or "quit".
//
//	Signed out: signup [-modal], verify [code], resend, reset, link <url>
//	Signed in:  whoami, can <tag>, profile [name|phone|country <value>],
//	            changepw, verify [code], resend, logout
//
// Command errors are reported by the handlers themselves.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("sf%s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: whoami, can <tag>, profile, changepw, verify, resend, logout, exit")
			} else {
				printlnFn("Available commands: signup, verify, resend, reset, link <url>, exit")
			}

		case "signup":
			_ = a.Signup(ctx, args)

		case "verify":
			_ = a.Verify(ctx, args)

		case "resend":
			_ = a.Resend(ctx)

		case "reset":
			_ = a.Reset(ctx)

		case "changepw":
			_ = a.ChangePassword(ctx)

		case "whoami":
			_ = a.WhoAmI(ctx)

		case "can":
			if len(args) != 1 {
				printlnFn("Usage: can <permission>")
				continue
			}
			_ = a.Can(ctx, args)

		case "profile":
			_ = a.Profile(ctx, args)

		case "link":
			if len(args) != 1 {
				printlnFn("Usage: link <redirect-url>")
				continue
			}
			_ = a.Link(ctx, args)

		case "logout":
			_ = a.Logout(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
