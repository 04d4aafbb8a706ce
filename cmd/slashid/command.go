package main

import (
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
)

// Command is one CLI verb, e.g. "webhooks list".
type Command struct {
	Name        string
	Description string
	Usage       string
	Examples    []string
	Run         func(args []string) error
}

// NewFlagSet returns a flag set whose -h prints the command's usage.
func (c *Command) NewFlagSet(w io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(c.Name, flag.ContinueOnError)
	fs.SetOutput(w)
	fs.Usage = func() {
		c.PrintUsage(w)
		fmt.Fprintln(w, "\nFLAGS:")
		fs.PrintDefaults()
	}
	return fs
}

func (c *Command) PrintUsage(w io.Writer) {
	fmt.Fprintf(w, "%s\n\n", c.Description)
	fmt.Fprintf(w, "USAGE:\n    %s\n", c.Usage)
	if len(c.Examples) > 0 {
		fmt.Fprintf(w, "\nEXAMPLES:\n")
		for _, example := range c.Examples {
			fmt.Fprintf(w, "    %s\n", example)
		}
	}
}

// CommandRegistry dispatches "<group> <verb>" pairs.
type CommandRegistry struct {
	out      io.Writer
	commands map[string]*Command
}

func NewCommandRegistry(out io.Writer) *CommandRegistry {
	return &CommandRegistry{out: out, commands: map[string]*Command{}}
}

func (r *CommandRegistry) Register(cmd *Command) {
	r.commands[cmd.Name] = cmd
}

// Execute runs the command named by the first one or two args.
func (r *CommandRegistry) Execute(args []string) error {
	if len(args) < 1 {
		r.PrintHelp()
		return fmt.Errorf("no command specified")
	}
	switch args[0] {
	case "help", "-h", "--help":
		r.PrintHelp()
		return nil
	}
	if len(args) >= 2 {
		if cmd, ok := r.commands[args[0]+" "+args[1]]; ok {
			return cmd.Run(args[2:])
		}
	}
	if cmd, ok := r.commands[args[0]]; ok {
		return cmd.Run(args[1:])
	}
	r.PrintHelp()
	return fmt.Errorf("unknown command: %s", strings.Join(args[:min(2, len(args))], " "))
}

func (r *CommandRegistry) PrintHelp() {
	w := r.out
	fmt.Fprintln(w, "slashid - manage a SlashID organization")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "    slashid <command> [arguments]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "COMMANDS:")

	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(tw, "    %s\t%s\n", name, r.commands[name].Description)
	}
	_ = tw.Flush()

	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Credentials come from SLASHID_ORG_ID, SLASHID_API_KEY and SLASHID_ENVIRONMENT.")
	fmt.Fprintln(w, "Run 'slashid <command> -h' for more information on a command.")
}
