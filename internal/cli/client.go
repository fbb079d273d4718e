package cli

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"tenant-quiz-service/internal/app"
	"tenant-quiz-service/internal/domain"
	"github.com/spf13/cobra"
)

// clientOutput is what the client subcommands print. Credentials appear only right
// after they were generated.
type clientOutput struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Active       bool      `json:"active"`
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toClientOutput(c domain.Client) clientOutput {
	return clientOutput{
		ID:        c.ID,
		Name:      c.Name,
		Active:    c.Active,
		ClientID:  c.ClientID,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func newClientCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Manage API clients (tenants)",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Register a client and print its credentials",
		Args:  cobra.ExactArgs(1),
		RunE: withClients(e, func(ctx context.Context, s *app.ClientService, w io.Writer, args []string) error {
			client, creds, err := s.Create(ctx, args[0])
			if err != nil {
				return err
			}
			out := toClientOutput(client)
			out.ClientSecret = creds.ClientSecret
			return printJSON(w, out)
		}),
	})

	var page, limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List clients, newest first",
		Args:  cobra.NoArgs,
		RunE: withClients(e, func(ctx context.Context, s *app.ClientService, w io.Writer, args []string) error {
			result, err := s.List(ctx, domain.PageRequest{Page: page, Limit: limit})
			if err != nil {
				return err
			}
			mapped := domain.MapPage(result, toClientOutput)
			return printJSON(w, map[string]any{
				"clients":    mapped.Items,
				"pagination": mapped.Pagination,
			})
		}),
	}
	list.Flags().IntVar(&page, "page", 1, "page number")
	list.Flags().IntVar(&limit, "limit", 10, "page size")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Show a client",
		Args:  cobra.ExactArgs(1),
		RunE: withClients(e, func(ctx context.Context, s *app.ClientService, w io.Writer, args []string) error {
			client, err := s.Get(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(w, toClientOutput(client))
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename a client",
		Args:  cobra.ExactArgs(2),
		RunE: withClients(e, func(ctx context.Context, s *app.ClientService, w io.Writer, args []string) error {
			client, err := s.Rename(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(w, toClientOutput(client))
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "activate <id>",
		Short: "Allow a client to obtain tokens again",
		Args:  cobra.ExactArgs(1),
		RunE: withClients(e, func(ctx context.Context, s *app.ClientService, w io.Writer, args []string) error {
			client, err := s.Activate(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(w, toClientOutput(client))
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "deactivate <id>",
		Short: "Reject tokens and token requests from a client",
		Args:  cobra.ExactArgs(1),
		RunE: withClients(e, func(ctx context.Context, s *app.ClientService, w io.Writer, args []string) error {
			client, err := s.Deactivate(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(w, toClientOutput(client))
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rotate <id>",
		Short: "Issue new credentials; the old ones stop working",
		Args:  cobra.ExactArgs(1),
		RunE: withClients(e, func(ctx context.Context, s *app.ClientService, w io.Writer, args []string) error {
			creds, err := s.RegenerateCredentials(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(w, creds)
		}),
	})

	return cmd
}

type clientFunc func(ctx context.Context, s *app.ClientService, w io.Writer, args []string) error

// withClients opens the configured stores for a client subcommand. Clients only
// persist in Postgres, so an in-memory setup is refused.
func withClients(e *env, fn clientFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if e.cfg.Postgres.URL == "" {
			return errors.New("postgres url not configured")
		}
		ctx := cmd.Context()
		d, err := openDeps(ctx, e.cfg, e.logger)
		if err != nil {
			return err
		}
		defer d.Close()

		err = fn(ctx, newServices(e.cfg, d).clients, cmd.OutOrStdout(), args)
		if err != nil && domain.KindOf(err) != domain.KindInternal {
			return errors.New(domain.MessageOf(err))
		}
		return err
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
