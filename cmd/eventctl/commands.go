package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"event-scheduler/client"
	"event-scheduler/domain"
)

const (
	endpointKey    = "GRAPHQL_ENDPOINT"
	defaultTimeout = 30 * time.Second
)

type cli struct {
	conf   *viper.Viper
	out    io.Writer
	client *client.Client
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{conf: viper.New(), out: out}
	c.conf.SetDefault(endpointKey, "http://localhost:4000/graphql")
	c.conf.AutomaticEnv()

	root := &cobra.Command{
		Use:           "eventctl",
		Short:         "List, create, edit and delete scheduled events",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := outputFormat(c.conf.GetString("output")); err != nil {
				return err
			}
			c.client = client.New(c.conf.GetString(endpointKey))
			return nil
		},
	}
	root.PersistentFlags().String("endpoint", "", "GraphQL endpoint (env GRAPHQL_ENDPOINT)")
	root.PersistentFlags().StringP("output", "o", "yaml", "Output format, one of [yaml, json]")
	_ = c.conf.BindPFlag(endpointKey, root.PersistentFlags().Lookup("endpoint"))
	_ = c.conf.BindPFlag("output", root.PersistentFlags().Lookup("output"))

	root.AddCommand(
		c.listCmd(),
		c.getCmd(),
		c.rangeCmd(),
		c.addCmd(),
		c.editCmd(),
		c.deleteCmd(),
		c.opsCmd(),
	)
	return root
}

func (c *cli) print(v any) error {
	format, _ := outputFormat(c.conf.GetString("output"))
	return render(c.out, format, v)
}

func (c *cli) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List upcoming events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
			defer cancel()
			events, err := c.client.Events(ctx)
			if err != nil {
				return err
			}
			return c.print(events)
		},
	}
}

func (c *cli) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
			defer cancel()
			ev, err := c.client.Event(ctx, args[0])
			if err != nil {
				return err
			}
			if ev == nil {
				return fmt.Errorf("event %s not found", args[0])
			}
			return c.print(ev)
		},
	}
}

func (c *cli) rangeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "range <start> <end>",
		Short: "List events starting between two dates",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := domain.ParseTime(args[0])
			if err != nil {
				return fmt.Errorf("start: %w", err)
			}
			end, err := domain.ParseTime(args[1])
			if err != nil {
				return fmt.Errorf("end: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
			defer cancel()
			events, err := c.client.EventsByDateRange(ctx, start, end)
			if err != nil {
				return err
			}
			return c.print(events)
		},
	}
}

func addFormFlags(fs *flag.FlagSet) {
	fs.String("title", "", "Event title")
	fs.String("description", "", "Event description")
	fs.String("start", "", "Start time, e.g. 2024-01-01T09:00")
	fs.String("end", "", "End time, e.g. 2024-01-01T09:15")
	fs.String("location", "", "Event location")
	fs.Bool("recurring", false, "Whether the event recurs")
	fs.String("rule", "", "Recurrence rule, one of [daily, weekly, monthly]")
}

// applyFormFlags copies the flags the user set onto f, leaving the rest as
// loaded.
func applyFormFlags(fs *flag.FlagSet, f *client.Form) error {
	var err error
	fs.Visit(func(fl *flag.Flag) {
		if err != nil {
			return
		}
		v := fl.Value.String()
		switch fl.Name {
		case "title":
			f.Title = v
		case "description":
			f.Description = v
		case "location":
			f.Location = v
		case "rule":
			f.RecurrenceRule = strings.ToLower(v)
		case "recurring":
			f.IsRecurring = v == "true"
		case "start":
			f.StartTime, err = domain.ParseTime(v)
		case "end":
			f.EndTime, err = domain.ParseTime(v)
		}
		if err != nil {
			err = fmt.Errorf("--%s: %w", fl.Name, err)
		}
	})
	return err
}

func (c *cli) addCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := client.NewForm(nil, time.Now())
			if err := applyFormFlags(cmd.Flags(), &f); err != nil {
				return err
			}
			if err := f.Validate(); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
			defer cancel()
			created, err := c.client.AddEvent(ctx, f)
			if err != nil {
				return fmt.Errorf("failed to add event: %w", err)
			}
			if created == nil {
				return fmt.Errorf("failed to add event: empty response")
			}
			ev, err := c.client.Event(ctx, created.ID)
			if err != nil {
				return err
			}
			return c.print(ev)
		},
	}
	addFormFlags(cmd.Flags())
	return cmd
}

func (c *cli) editCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of an event; nothing is sent when no field differs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
			defer cancel()
			original, err := c.client.Event(ctx, args[0])
			if err != nil {
				return err
			}
			if original == nil {
				return fmt.Errorf("event %s not found", args[0])
			}
			f := client.NewForm(original, time.Now())
			if err := applyFormFlags(cmd.Flags(), &f); err != nil {
				return err
			}
			if err := f.Validate(); err != nil {
				return err
			}
			updated, sent, err := c.client.SubmitEdit(ctx, *original, f)
			if err != nil {
				return fmt.Errorf("failed to update event: %w", err)
			}
			if !sent {
				fmt.Fprintln(cmd.ErrOrStderr(), "no changes")
			}
			return c.print(updated)
		},
	}
	addFormFlags(cmd.Flags())
	return cmd
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
			defer cancel()
			existed, err := c.client.DeleteEvent(ctx, args[0])
			if err != nil {
				return fmt.Errorf("error deleting event: %w", err)
			}
			if !existed {
				return fmt.Errorf("event %s not found", args[0])
			}
			fmt.Fprintf(c.out, "deleted %s\n", args[0])
			return nil
		},
	}
}

func (c *cli) opsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ops",
		Short: "Validate and print the operations this client sends",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := outputFormat(c.conf.GetString("output"))
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.ValidateOperations(client.Operations...); err != nil {
				return err
			}
			for _, op := range client.Operations {
				fmt.Fprintf(c.out, "# %s\n%s\n\n", op.Name, op.Document)
			}
			return nil
		},
	}
}
