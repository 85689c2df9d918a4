package app

import (
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/lflog/lflog/pkg/output"
)

// RunREPL reads SQL statements interactively and renders each result to w
// until the user exits with .exit, .quit, or EOF.
func (a *App) RunREPL(w io.Writer, format output.Format) error {
	rl, err := readline.New("lflog> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Fprintln(w, "lflog interactive mode. Type SQL queries, '.exit' to quit.")
	fmt.Fprintln(w)

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			fmt.Fprintln(w, "Bye!")
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch line {
		case ".exit", ".quit", "exit", "quit":
			return nil
		}
		if strings.HasPrefix(line, ".") {
			fmt.Fprintf(w, "Unknown command: %s\n", line)
			fmt.Fprintln(w, "Commands: .exit, .quit")
			continue
		}

		schema, iter, ctx, err := a.Query(line)
		if err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
			continue
		}
		if err := output.Render(w, format, ctx, schema, iter); err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
		}
		fmt.Fprintln(w)
	}
}
