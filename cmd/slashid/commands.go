package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	jmes "github.com/jmespath/go-jmespath"
	"go.uber.org/zap"

	"slashid/internal/manifest"
	"slashid/pkg/migration"
	"slashid/pkg/persons"
	"slashid/pkg/slashid"
	"slashid/pkg/tokens"
)

type cli struct {
	out     io.Writer
	log     *zap.SugaredLogger
	connect func() (*slashid.SDK, error)
}

func (c *cli) register(r *CommandRegistry) {
	for _, cmd := range []*Command{
		c.webhooksList(), c.webhooksSync(), c.webhooksDelete(), c.webhooksTriggers(),
		c.tokenValidate(), c.tokenSub(),
		c.personsGet(), c.personsMigrate(),
	} {
		r.Register(cmd)
	}
}

func (c *cli) webhooksList() *Command {
	cmd := &Command{
		Name:        "webhooks list",
		Description: "List the organization's webhooks",
		Usage:       "slashid webhooks list [-json] [-query EXPR]",
		Examples:    []string{"slashid webhooks list", "slashid webhooks list -query '[].target_url'"},
	}
	cmd.Run = func(args []string) error {
		fs := cmd.NewFlagSet(c.out)
		asJSON := fs.Bool("json", false, "print JSON instead of a table")
		query := fs.String("query", "", "JMESPath expression applied to the JSON output")
		if err := fs.Parse(args); err != nil {
			return err
		}
		sdk, err := c.connect()
		if err != nil {
			return err
		}
		defs, err := sdk.Webhooks().FindAll(context.Background())
		if err != nil {
			return err
		}
		if *asJSON || *query != "" {
			return c.printJSON(defs, *query)
		}
		tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tTARGET URL")
		for _, d := range defs {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", d.ID, d.Name, d.TargetURL)
		}
		return tw.Flush()
	}
	return cmd
}

func (c *cli) webhooksSync() *Command {
	cmd := &Command{
		Name:        "webhooks sync",
		Description: "Register the webhooks of a manifest and reconcile their triggers",
		Usage:       "slashid webhooks sync -f FILE [-prune]",
		Examples:    []string{"slashid webhooks sync -f webhooks.yaml"},
	}
	cmd.Run = func(args []string) error {
		fs := cmd.NewFlagSet(c.out)
		file := fs.String("f", "webhooks.yaml", "manifest file (YAML or JSON)")
		prune := fs.Bool("prune", false, "delete webhooks not listed in the manifest")
		if err := fs.Parse(args); err != nil {
			return err
		}
		m, err := manifest.Load(*file)
		if err != nil {
			return err
		}
		m.Prune = m.Prune || *prune
		sdk, err := c.connect()
		if err != nil {
			return err
		}
		rep, err := manifest.Apply(context.Background(), sdk.Webhooks(), m, c.log)
		for _, d := range rep.Registered {
			fmt.Fprintf(c.out, "registered %s %s\n", d.ID, d.TargetURL)
		}
		for _, d := range rep.Deleted {
			fmt.Fprintf(c.out, "deleted    %s %s\n", d.ID, d.TargetURL)
		}
		return err
	}
	return cmd
}

func (c *cli) webhooksDelete() *Command {
	cmd := &Command{
		Name:        "webhooks delete",
		Description: "Delete a webhook by id or target URL",
		Usage:       "slashid webhooks delete (-id ID | -url URL)",
		Examples:    []string{"slashid webhooks delete -url https://example.com/slashid/webhook"},
	}
	cmd.Run = func(args []string) error {
		fs := cmd.NewFlagSet(c.out)
		id := fs.String("id", "", "webhook id")
		target := fs.String("url", "", "webhook target URL")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if (*id == "") == (*target == "") {
			return errors.New("exactly one of -id or -url is required")
		}
		sdk, err := c.connect()
		if err != nil {
			return err
		}
		if *id != "" {
			err = sdk.Webhooks().DeleteByID(context.Background(), *id)
		} else {
			err = sdk.Webhooks().DeleteByURL(context.Background(), *target)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, "deleted")
		return nil
	}
	return cmd
}

func (c *cli) webhooksTriggers() *Command {
	cmd := &Command{
		Name:        "webhooks triggers",
		Description: "Show or replace the triggers of a webhook",
		Usage:       "slashid webhooks triggers -id ID [-set NAME,NAME...]",
		Examples: []string{
			"slashid webhooks triggers -id 065e3dc5-c5b2-7e3f-b100-61fda8732b07",
			"slashid webhooks triggers -id 065e3dc5-c5b2-7e3f-b100-61fda8732b07 -set PersonCreated_v1,token_minted",
		},
	}
	cmd.Run = func(args []string) error {
		fs := cmd.NewFlagSet(c.out)
		id := fs.String("id", "", "webhook id")
		set := fs.String("set", "", "comma-separated trigger names to keep")
		clearAll := fs.Bool("clear", false, "remove every trigger")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *id == "" {
			return errors.New("-id is required")
		}
		sdk, err := c.connect()
		if err != nil {
			return err
		}
		ctx := context.Background()
		if *set != "" || *clearAll {
			if err := sdk.Webhooks().SetTriggers(ctx, *id, splitList(*set)); err != nil {
				return err
			}
		}
		names, err := sdk.Webhooks().GetTriggers(ctx, *id)
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Fprintln(c.out, n)
		}
		return nil
	}
	return cmd
}

func (c *cli) tokenValidate() *Command {
	cmd := &Command{
		Name:        "token validate",
		Description: "Ask SlashID whether a token is valid",
		Usage:       "slashid token validate TOKEN",
	}
	cmd.Run = func(args []string) error {
		fs := cmd.NewFlagSet(c.out)
		if err := fs.Parse(args); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			return errors.New("expected exactly one token")
		}
		sdk, err := c.connect()
		if err != nil {
			return err
		}
		ok, err := sdk.Tokens().Validate(context.Background(), fs.Arg(0))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(c.out, "invalid")
			return errors.New("token is not valid")
		}
		fmt.Fprintln(c.out, "valid")
		return nil
	}
	return cmd
}

func (c *cli) tokenSub() *Command {
	cmd := &Command{
		Name:        "token sub",
		Description: "Print the person id (sub claim) of a token without verifying it",
		Usage:       "slashid token sub TOKEN",
	}
	cmd.Run = func(args []string) error {
		fs := cmd.NewFlagSet(c.out)
		if err := fs.Parse(args); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			return errors.New("expected exactly one token")
		}
		sub, err := tokens.Subject(fs.Arg(0))
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, sub)
		return nil
	}
	return cmd
}

// personView is the printable form of a person.
type personView struct {
	ID             string             `json:"person_id"`
	Active         bool               `json:"active"`
	Region         string             `json:"region"`
	EmailAddresses []string           `json:"email_addresses"`
	PhoneNumbers   []string           `json:"phone_numbers"`
	Groups         []string           `json:"groups"`
	Attributes     persons.Attributes `json:"attributes"`
}

func (c *cli) personsGet() *Command {
	cmd := &Command{
		Name:        "persons get",
		Description: "Fetch a person with handles, groups and attributes",
		Usage:       "slashid persons get [-query EXPR] PERSON_ID",
		Examples:    []string{"slashid persons get -query 'attributes.end_user_read_write' 064b7b27-..."},
	}
	cmd.Run = func(args []string) error {
		fs := cmd.NewFlagSet(c.out)
		query := fs.String("query", "", "JMESPath expression applied to the output")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			return errors.New("expected exactly one person id")
		}
		sdk, err := c.connect()
		if err != nil {
			return err
		}
		p, err := sdk.Persons().Get(context.Background(), fs.Arg(0))
		if err != nil {
			return err
		}
		return c.printJSON(personView{
			ID:             p.ID(),
			Active:         p.IsActive(),
			Region:         p.Region(),
			EmailAddresses: p.EmailAddresses(),
			PhoneNumbers:   p.PhoneNumbers(),
			Groups:         p.Groups(),
			Attributes:     p.AllAttributes(),
		}, *query)
	}
	return cmd
}

func (c *cli) personsMigrate() *Command {
	cmd := &Command{
		Name:        "persons migrate",
		Description: "Bulk-import persons from a JSON array of API person objects",
		Usage:       "slashid persons migrate -f FILE [-dry-run] [-failed FILE]",
		Examples: []string{
			"slashid persons migrate -f persons.json -dry-run > persons.csv",
			"slashid persons migrate -f persons.json -failed failed.csv",
		},
	}
	cmd.Run = func(args []string) error {
		fs := cmd.NewFlagSet(c.out)
		file := fs.String("f", "", "JSON file with an array of persons")
		dryRun := fs.Bool("dry-run", false, "print the import CSV instead of uploading it")
		failed := fs.String("failed", "", "write rows SlashID rejected to this file")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *file == "" {
			return errors.New("-f is required")
		}
		records, err := loadPersons(*file)
		if err != nil {
			return err
		}
		if *dryRun {
			csv, err := migration.BuildCSV(records)
			if err != nil {
				return err
			}
			_, err = c.out.Write(csv)
			return err
		}
		sdk, err := c.connect()
		if err != nil {
			return err
		}
		res, err := sdk.Migration().Migrate(context.Background(), records)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "imported %d, failed %d\n", res.SuccessfulImports, res.FailedImports)
		if *failed != "" && res.FailedCSV != "" {
			if err := os.WriteFile(*failed, []byte(res.FailedCSV), 0o644); err != nil {
				return fmt.Errorf("writing failed rows: %w", err)
			}
		}
		return nil
	}
	return cmd
}

func loadPersons(path string) ([]persons.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading persons: %w", err)
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("parsing persons %s: %w", path, err)
	}
	records := make([]persons.Record, 0, len(raws))
	for i, raw := range raws {
		p, err := persons.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("person %d: %w", i, err)
		}
		records = append(records, p)
	}
	return records, nil
}

// printJSON writes v indented, optionally filtered by a JMESPath expression.
func (c *cli) printJSON(v any, query string) error {
	if query != "" {
		// Round-trip so the expression sees plain maps and slices.
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
		if v, err = jmes.Search(query, doc); err != nil {
			return fmt.Errorf("query %q: %w", query, err)
		}
	}
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
