// cmd/masstreedb/main.go
//
// masstreedb - interactive shell over pkg/mtstore.
//
// Usage:
//
//	masstreedb [-maxkeylen N]
//
// There is no on-disk file: the store is in-memory only for the
// lifetime of the process (spec.md §1, "on-disk durability" is a
// Non-goal).  Use .help for available commands.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"masstree/pkg/masstree"
	"masstree/pkg/mtstore"
)

func main() {
	maxKeyLen := flag.Int("maxkeylen", 0, "maximum accepted key length (0 = default)")
	flag.Parse()

	var opts []masstree.Option
	if *maxKeyLen > 0 {
		opts = append(opts, masstree.WithMaxKeyLen(*maxKeyLen))
	}

	store := mtstore.Open(opts...)
	defer store.Close()

	fmt.Printf("masstreedb  instance %s\n", store.ID())
	fmt.Println(`Enter ".help" for usage hints.`)

	runShell(store, os.Stdin, os.Stdout, os.Stderr)
}

func runShell(store *mtstore.Store, in *os.File, out, errOut *os.File) {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "masstree> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ".") {
			if handleDotCommand(line, store, out) {
				return
			}
			continue
		}

		if err := executeLine(line, store, out); err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
		}
	}
}

// executeLine parses and runs one of "put <key> <value>" or
// "get <key>".
func executeLine(line string, store *mtstore.Store, out *os.File) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch strings.ToLower(fields[0]) {
	case "put":
		if len(fields) < 3 {
			return fmt.Errorf("usage: put <key> <value>")
		}
		key, value := fields[1], strings.Join(fields[2:], " ")
		existed, err := store.Put([]byte(key), []byte(value))
		if err != nil {
			return err
		}
		if existed {
			fmt.Fprintln(out, "exists (value unchanged)")
		} else {
			fmt.Fprintln(out, "inserted")
		}
	case "get":
		if len(fields) != 2 {
			return fmt.Errorf("usage: get <key>")
		}
		val, ok := store.Get([]byte(fields[1]))
		if !ok {
			fmt.Fprintln(out, "(not found)")
			return nil
		}
		fmt.Fprintln(out, string(val))
	default:
		return fmt.Errorf("unrecognized command %q (try .help)", fields[0])
	}
	return nil
}

// handleDotCommand processes a "." command, returning true if the
// shell should exit.
func handleDotCommand(cmd string, store *mtstore.Store, out *os.File) bool {
	switch strings.TrimSpace(cmd) {
	case ".exit", ".quit":
		return true
	case ".stats":
		s := store.Stats()
		fmt.Fprintf(out, "instance %s  puts=%d gets=%d hits=%d\n", s.ID, s.Puts, s.Gets, s.Hits)
	case ".help":
		fmt.Fprintln(out, "Available commands:")
		fmt.Fprintln(out, "  put <key> <value>   insert a key (an existing key keeps its value)")
		fmt.Fprintln(out, "  get <key>            look up a key")
		fmt.Fprintln(out, "  .stats               show instance statistics")
		fmt.Fprintln(out, "  .exit                quit")
	default:
		fmt.Fprintf(out, "unrecognized command %q\n", cmd)
	}
	return false
}
