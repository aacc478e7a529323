package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Profile(ctx context.Context) error
	Cart(ctx context.Context) error
	CartSync(ctx context.Context) error
	CartRepair(ctx context.Context) error
	Storage(ctx context.Context, args []string) error
	Country(ctx context.Context, args []string) error
}

// runREPL reads commands from reader until EOF, "exit" or "quit", or until
// ctx is done.
//
// Commands:
//
//	Always:
//	  - help                          show available commands
//	  - whoami                        show the current session
//	  - cart                          show cart id and item count
//	  - cart-sync                     refresh the item count
//	  - cart-repair                   fix an unusable cart id
//	  - storage [info|check|cleanup|clear]
//	  - country <lat> <lon>           tax country for a location
//	  - exit | quit
//
//	Logged out:
//	  - register, login
//
//	Logged in:
//	  - profile, logout
//
// Handler errors are reported by the handlers themselves; the loop keeps going.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("edu %s> ", statusFn()))

		line, err := readLine(reader)
		if err != nil {
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
				printlnFn("Available commands: whoami, profile, cart, cart-sync, cart-repair, storage, country, logout, exit")
			} else {
				printlnFn("Available commands: register, login, whoami, cart, cart-sync, cart-repair, storage, country, exit")
			}

		case "register":
			_ = a.Register(ctx)

		case "login":
			_ = a.Login(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "whoami":
			_ = a.WhoAmI(ctx)

		case "profile":
			_ = a.Profile(ctx)

		case "cart":
			_ = a.Cart(ctx)

		case "cart-sync":
			_ = a.CartSync(ctx)

		case "cart-repair":
			_ = a.CartRepair(ctx)

		case "storage":
			_ = a.Storage(ctx, args)

		case "country":
			_ = a.Country(ctx, args)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
