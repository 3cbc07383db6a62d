package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to. *App implements
// it; tests provide a stub.
type execIface interface {
	Scan(ctx context.Context, args []string) error
	Lookup(ctx context.Context, args []string) error
	Search(ctx context.Context, args []string) error
	Pending(ctx context.Context) error
	Stuck(ctx context.Context) error
	Show(ctx context.Context, args []string) error
	Sync(ctx context.Context) error
	Resync(ctx context.Context) error
	Status(ctx context.Context) error
	Purge(ctx context.Context) error
}

const helpText = "Available commands: scan <food-key>, lookup <food-key>, search <text>, " +
	"pending, stuck, show <id>, sync, resync, status, purge, exit"

// runREPL reads commands from scanner until EOF, "exit"/"quit" or ctx is
// done. Handler errors are printed and the loop goes on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("gutscan %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			printlnFn(helpText)
		case "scan":
			err = a.Scan(ctx, args)
		case "lookup":
			err = a.Lookup(ctx, args)
		case "search":
			err = a.Search(ctx, args)
		case "pending":
			err = a.Pending(ctx)
		case "stuck":
			err = a.Stuck(ctx)
		case "show":
			err = a.Show(ctx, args)
		case "sync":
			err = a.Sync(ctx)
		case "resync":
			err = a.Resync(ctx)
		case "status":
			err = a.Status(ctx)
		case "purge":
			err = a.Purge(ctx)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}
		if err != nil {
			printlnFn("Error:", err)
		}
	}
}
