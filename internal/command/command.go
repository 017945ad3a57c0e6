// Package command provides the structured view over a parsed resp.Array
// that the router dispatches on: a lower-cased command name plus its
// argument list, with small extractors for common arities.
package command

import (
	"fmt"
	"strings"

	"rkv/internal/resp"
)

// Command is derived from an Operation::Array whose first element is a
// Bulk command name and whose remaining elements are Bulk arguments.
type Command struct {
	Name string
	Args []string
}

// writeCommands is the closed set of commands that mutate the
// keyspace and must be forwarded to replicas after they succeed.
var writeCommands = map[string]bool{
	"set":    true,
	"expire": true,
	"del":    true,
}

// FromOperation builds a Command from op, which must be a resp.Array
// whose first element is a Bulk and whose remaining elements are all
// Bulk. Any other shape is a protocol error.
func FromOperation(op resp.Operation) (Command, error) {
	name, rest, err := resp.OnlyArray(op)
	if err != nil {
		return Command{}, err
	}

	args := make([]string, len(rest))
	for i, item := range rest {
		arg, err := resp.OnlyBulk(item)
		if err != nil {
			return Command{}, fmt.Errorf("command: argument %d: %w", i, err)
		}
		args[i] = arg
	}

	return Command{Name: strings.ToLower(name), Args: args}, nil
}

// IsWrite reports whether this command mutates the keyspace.
func (c Command) IsWrite() bool {
	return writeCommands[c.Name]
}

// Arg returns the single expected argument.
func (c Command) Arg() (string, error) {
	if len(c.Args) < 1 {
		return "", fmt.Errorf("command: %s: wrong number of arguments", c.Name)
	}
	return c.Args[0], nil
}

// Args2 returns the first two expected arguments.
func (c Command) Args2() (string, string, error) {
	if len(c.Args) < 2 {
		return "", "", fmt.Errorf("command: %s: wrong number of arguments", c.Name)
	}
	return c.Args[0], c.Args[1], nil
}

// After returns the arguments after the first n, e.g. the optional
// `EX n` / `PX n` trailer of a SET command.
func (c Command) After(n int) []string {
	if n >= len(c.Args) {
		return nil
	}
	return c.Args[n:]
}
