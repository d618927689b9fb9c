// Package repl implements the read-eval-print loop the server binaries use
// to drive the database.
package repl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/uuid"
)

type ReplCommand func(payload string, replConfig *REPLConfig) (output string, err error)

const (
	// Trigger for the help meta-command that prints out all help strings
	TriggerHelpMetacommand = ".help"

	// String that should be prepended to any error before being sent to the output writer
	ErrorPrependStr = "ERROR: "
)

var (
	// Error for combining REPLs that share a trigger
	ErrOverlappingCommands = errors.New("found overlapping commands")

	// Error for when a sent trigger is not associated with any known commands
	ErrCommandNotFound = errors.New("command not found")
)

// REPL struct.
type REPL struct {
	commands map[string]ReplCommand
	help     map[string]string
}

// REPL Config struct.
type REPLConfig struct {
	clientId uuid.UUID
}

// Get address.
func (replConfig *REPLConfig) GetAddr() uuid.UUID {
	return replConfig.clientId
}

// Construct an empty REPL.
func NewRepl() *REPL {
	return &REPL{
		commands: make(map[string]ReplCommand),
		help:     make(map[string]string),
	}
}

// Combines a slice of REPLs, erroring if any triggers overlap.
// If no REPLs are given, returns a new empty REPL.
func CombineRepls(repls []*REPL) (*REPL, error) {
	newRepl := NewRepl()
	for _, r := range repls {
		for trigger, action := range r.commands {
			if _, exists := newRepl.commands[trigger]; exists {
				return nil, ErrOverlappingCommands
			}
			newRepl.AddCommand(trigger, action, r.help[trigger])
		}
	}
	return newRepl, nil
}

// Get commands.
func (r *REPL) GetCommands() map[string]ReplCommand {
	return r.commands
}

// Get help.
func (r *REPL) GetHelp() map[string]string {
	return r.help
}

// Add a command, along with its help string, to the set of commands.
// An existing command with the same trigger is overwritten.
func (r *REPL) AddCommand(trigger string, action ReplCommand, help string) {
	if trigger == TriggerHelpMetacommand {
		return
	}
	r.commands[trigger] = action
	r.help[trigger] = help
}

// Return all REPL commands' help strings as one string
func (r *REPL) HelpString() string {
	var sb strings.Builder
	for k, v := range r.help {
		sb.WriteString(fmt.Sprintf("%s: %s\n", k, v))
	}
	return sb.String()
}

// eval dispatches one input line and writes its result or error to output.
func (r *REPL) eval(payload string, replConfig *REPLConfig, output io.Writer) {
	fields := strings.Fields(payload)
	if len(fields) == 0 {
		return
	}
	trigger := fields[0]
	if trigger == TriggerHelpMetacommand {
		io.WriteString(output, r.HelpString())
		return
	}
	command, exists := r.commands[trigger]
	if !exists {
		fmt.Fprintf(output, "%s%s\n", ErrorPrependStr, ErrCommandNotFound)
		return
	}
	result, err := command(payload, replConfig)
	if err != nil {
		fmt.Fprintf(output, "%s%s\n", ErrorPrependStr, err)
		return
	}
	if len(result) != 0 && !strings.HasSuffix(result, "\n") {
		result += "\n"
	}
	io.WriteString(output, result)
}

// Run writes the welcome string and runs the REPL loop over the given
// reader, defaulting to stdin/stdout. When reading from an interactive
// stdin, input goes through readline for line editing and history.
func (r *REPL) Run(clientId uuid.UUID, prompt string, input io.Reader, output io.Writer) {
	if output == nil {
		output = os.Stdout
	}
	replConfig := &REPLConfig{clientId: clientId}
	fmt.Fprintln(output, "Welcome to the rexdb REPL! Please type '.help' to see the list of available commands.")

	if input == nil {
		if rl, err := readline.New(prompt); err == nil {
			defer rl.Close()
			for {
				line, err := rl.Readline()
				if err != nil {
					break
				}
				r.eval(line, replConfig, output)
			}
			io.WriteString(output, "\n")
			return
		}
		input = os.Stdin
	}

	scanner := bufio.NewScanner(input)
	io.WriteString(output, prompt)
	for scanner.Scan() {
		r.eval(scanner.Text(), replConfig, output)
		io.WriteString(output, prompt)
	}
	io.WriteString(output, "\n")
}

// RunChan runs the REPL loop over a channel of input lines, echoing each
// line to stdout before evaluating it.
func (r *REPL) RunChan(c chan string, clientId uuid.UUID, prompt string) {
	writer := os.Stdout
	replConfig := &REPLConfig{clientId: clientId}
	io.WriteString(writer, prompt)
	for payload := range c {
		io.WriteString(writer, payload+"\n")
		r.eval(payload, replConfig, writer)
		io.WriteString(writer, prompt)
	}
}
