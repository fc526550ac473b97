package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/miradorstack/mirador-vizchat/internal/api"
	"github.com/miradorstack/mirador-vizchat/internal/client"
	"github.com/miradorstack/mirador-vizchat/internal/models"
	"github.com/miradorstack/mirador-vizchat/internal/render"
)

type askOptions struct {
	server        string
	grpcAddr      string
	visualization string
	timeout       time.Duration
}

func askCmd() *cobra.Command {
	opts := askOptions{}
	cmd := &cobra.Command{
		Use:   "ask <prompt>",
		Short: "Send one prompt to a running vizchat server and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := models.QueryRequest{
				Prompt:        strings.Join(args, " "),
				Visualization: opts.visualization,
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			term := render.NewTerminal()
			resp, err := ask(ctx, opts, req)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), term.Error(err.Error()))
				return errAsked
			}
			out, err := term.Response(resp)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), term.Error(err.Error()))
				return errAsked
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			if resp.SQL != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "\nSQL: %s\n", resp.SQL)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.server, "server", "http://127.0.0.1:8000", "Base URL of the vizchat HTTP API")
	cmd.Flags().StringVar(&opts.grpcAddr, "grpc", "", "Use the gRPC QueryService at this address instead of HTTP")
	cmd.Flags().StringVar(&opts.visualization, "visualization", "", "Preferred visualization: table, graph or pie")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 3*time.Minute, "Request timeout")
	return cmd
}

// errAsked signals a failure that was already printed.
var errAsked = errors.New("query failed")

// ask collapses every failure into one user-facing error.
func ask(ctx context.Context, opts askOptions, req models.QueryRequest) (*models.QueryResponse, error) {
	if opts.grpcAddr == "" {
		return client.New(opts.server, opts.timeout).Query(ctx, req)
	}

	conn, err := grpc.NewClient(opts.grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", opts.grpcAddr, err)
	}
	defer conn.Close()

	resp, err := api.InvokeQuery(ctx, conn, req)
	if err != nil {
		return nil, fmt.Errorf("%s", status.Convert(err).Message())
	}
	if !resp.Success {
		return nil, fmt.Errorf("%s", resp.FailureMessage())
	}
	return resp, nil
}
