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
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Token(ctx context.Context, args []string) error
	Send(ctx context.Context, args []string) error
	Fetch(ctx context.Context, args []string) error
	History(ctx context.Context, args []string) error
	Sweep(ctx context.Context) error
	Clear(ctx context.Context, args []string) error
}

// runREPL starts a simple read-eval-print loop for the vaultchat CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// Commands:
//
//	Not logged in:
//	  - help                               — show available commands
//	  - login                              — derive the master key and start a session
//	  - exit | quit                        — leave the program
//
//	Logged in:
//	  - token <jwt>                        — install the API bearer token
//	  - send <file> <recipient>...         — encrypt and stage a file for recipients
//	  - fetch <record.json> [msg att]      — decrypt an attachment record
//	  - history <conversation> [limit]     — show cached messages, newest first
//	  - sweep                              — evict old decrypted files
//	  - clear [conversation]               — wipe cached messages
//	  - logout                             — end the session and wipe keys
//	  - exit | quit                        — leave the program
//
// Any errors returned by command handlers are printed here; handlers stay
// free of REPL I/O concerns.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("vc> %s ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]
		args := parts[1:]

		var err error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: token, send, fetch, history, sweep, clear, logout, exit")
			} else {
				printlnFn("Available commands: login, exit")
			}

		case "login":
			err = a.Login(ctx)

		case "logout":
			err = a.Logout(ctx)

		case "token":
			err = a.Token(ctx, args)

		case "send":
			if len(args) < 2 {
				printlnFn("Usage: send <file> <recipient>...")
				continue
			}
			err = a.Send(ctx, args)

		case "fetch":
			if len(args) == 0 {
				printlnFn("Usage: fetch <record.json> [messageID attachmentID]")
				continue
			}
			err = a.Fetch(ctx, args)

		case "history":
			if len(args) == 0 {
				printlnFn("Usage: history <conversation> [limit]")
				continue
			}
			err = a.History(ctx, args)

		case "sweep":
			err = a.Sweep(ctx)

		case "clear":
			err = a.Clear(ctx, args)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err.Error())
		}
	}
}
