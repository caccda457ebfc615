// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

// Command is one node of the command tree. A node with Subcommands
// dispatches on its first positional argument; a leaf parses its flags
// and calls Run.
type Command struct {
	Name    string
	Summary string

	// Description replaces Summary at the top of the command's own
	// help.
	Description string

	// Usage replaces the synthesized usage line.
	Usage string

	Examples []Example

	// Flags registers the command's flags. It runs against a fresh
	// set on every Execute and every help rendering, so it must
	// only bind and never read.
	Flags func(flagSet *pflag.FlagSet)

	Subcommands []*Command

	// Run receives the positional arguments left after flags.
	Run func(args []string) error

	// Output receives help text; the nearest ancestor's is used when
	// nil, and stderr at the root.
	Output io.Writer

	parent *Command
}

// Example is one entry in the EXAMPLES section of help.
type Example struct {
	Description string
	Command     string
}

// Execute runs the command for args, which exclude the program name.
func (c *Command) Execute(args []string) error {
	if len(args) > 0 && isHelpFlag(args[0]) {
		c.PrintHelp(c.output())
		return nil
	}

	if len(c.Subcommands) > 0 {
		if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
			return c.dispatch(args[0], args[1:])
		}
		if c.Run == nil {
			c.PrintHelp(c.output())
			if len(args) == 0 {
				return errors.New("subcommand required")
			}
			return fmt.Errorf("subcommand required (got flag %q)", args[0])
		}
	}
	if c.Run == nil {
		c.PrintHelp(c.output())
		return fmt.Errorf("no action defined for %q", c.fullName())
	}

	positional, err := c.parse(args)
	if errors.Is(err, pflag.ErrHelp) {
		c.PrintHelp(c.output())
		return nil
	}
	if err != nil {
		return err
	}
	return c.Run(positional)
}

func (c *Command) dispatch(name string, rest []string) error {
	for _, sub := range c.Subcommands {
		if sub.Name == name {
			sub.parent = c
			return sub.Execute(rest)
		}
	}

	names := make([]string, 0, len(c.Subcommands))
	for _, sub := range c.Subcommands {
		names = append(names, sub.Name)
	}
	hint := ""
	if suggestion := closest(name, names); suggestion != "" {
		hint = fmt.Sprintf(" (did you mean %q?)", suggestion)
	}
	return fmt.Errorf("unknown command %q%s\n\nRun '%s --help' for usage.", name, hint, c.fullName())
}

// parse binds the command's flags and returns what remains.
func (c *Command) parse(args []string) ([]string, error) {
	flagSet := c.flagSet()
	err := flagSet.Parse(args)
	if err == nil {
		return flagSet.Args(), nil
	}
	if errors.Is(err, pflag.ErrHelp) {
		return nil, err
	}
	hint := ""
	if strings.Contains(err.Error(), "unknown") {
		if suggestion := suggestFlag(args, flagSet); suggestion != "" {
			hint = fmt.Sprintf(" (did you mean %s?)", suggestion)
		}
	}
	return nil, fmt.Errorf("%v%s\n\nRun '%s --help' for usage.", err, hint, c.fullName())
}

func (c *Command) flagSet() *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(c.fullName(), pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	if c.Flags != nil {
		c.Flags(flagSet)
	}
	return flagSet
}

// PrintHelp writes the command's help to w.
func (c *Command) PrintHelp(w io.Writer) {
	var sections []string
	if text := c.overview(); text != "" {
		sections = append(sections, text)
	}
	sections = append(sections, "USAGE\n  "+c.usageLine())
	if text := c.commandList(); text != "" {
		sections = append(sections, "COMMANDS\n"+text)
	}
	if text := c.flagList(); text != "" {
		sections = append(sections, "FLAGS\n"+text)
	}
	if text := c.exampleList(); text != "" {
		sections = append(sections, "EXAMPLES\n"+text)
	}
	if len(c.Subcommands) > 0 {
		sections = append(sections, fmt.Sprintf("Run '%s <command> --help' for more information on a command.", c.fullName()))
	}
	fmt.Fprintln(w, strings.Join(sections, "\n\n"))
}

func (c *Command) overview() string {
	if c.Description != "" {
		return strings.TrimSpace(c.Description)
	}
	return c.Summary
}

func (c *Command) usageLine() string {
	switch {
	case c.Usage != "":
		return c.Usage
	case len(c.Subcommands) > 0:
		return c.fullName() + " <command> [flags]"
	default:
		return c.fullName() + " [flags]"
	}
}

func (c *Command) commandList() string {
	if len(c.Subcommands) == 0 {
		return ""
	}
	var builder strings.Builder
	table := tabwriter.NewWriter(&builder, 0, 0, 3, ' ', 0)
	for _, sub := range c.Subcommands {
		fmt.Fprintf(table, "  %s\t%s\n", sub.Name, sub.Summary)
	}
	table.Flush()
	return strings.TrimRight(builder.String(), "\n")
}

func (c *Command) flagList() string {
	if c.Flags == nil {
		return ""
	}
	return strings.TrimRight(c.flagSet().FlagUsages(), "\n")
}

func (c *Command) exampleList() string {
	var lines []string
	for _, example := range c.Examples {
		if example.Description != "" {
			lines = append(lines, "  # "+example.Description)
		}
		lines = append(lines, "  "+example.Command)
	}
	return strings.Join(lines, "\n")
}

func (c *Command) output() io.Writer {
	for command := c; command != nil; command = command.parent {
		if command.Output != nil {
			return command.Output
		}
	}
	return os.Stderr
}

// fullName is the command path, e.g. "scenesync export".
func (c *Command) fullName() string {
	if c.parent == nil {
		return c.Name
	}
	return c.parent.fullName() + " " + c.Name
}

func isHelpFlag(arg string) bool {
	switch arg {
	case "-h", "--help", "help":
		return true
	}
	return false
}
