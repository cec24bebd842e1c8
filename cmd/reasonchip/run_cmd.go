package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reasonchip/reasonchip/internal/client"
	"github.com/reasonchip/reasonchip/internal/packet"
)

type runOptions struct {
	brokerAddr string
	vars       []string
	cookie     string
	ssl        sslFlags
}

func newRunCmd(root *rootFlags) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <pipeline>",
		Short: "Run a pipeline remotely through a broker, emitting the JSON result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyConfigDefault(cmd, root, "broker", "client", "broker", &opts.brokerAddr); err != nil {
				return err
			}
			return runRemote(cmd.Context(), root, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.brokerAddr, "broker", "", "broker client-facing address to dial (or [client].broker in --config)")
	cmd.Flags().StringArrayVar(&opts.vars, "var", nil, "key=value pipeline input variable, repeatable")
	cmd.Flags().StringVar(&opts.cookie, "cookie", "", "RUN cookie (default: generated)")
	opts.ssl.register(cmd)

	return cmd
}

func runRemote(ctx context.Context, root *rootFlags, opts *runOptions, pipelineName string) error {
	if opts.brokerAddr == "" {
		return invalidArgs("run requires --broker (or [client].broker in --config)")
	}
	variables, err := parseVars(opts.vars)
	if err != nil {
		return err
	}

	ctx, cancel := withSignalCancel(ctx)
	defer cancel()

	log := root.logContext().Logger("run")

	conn, _, err := dialBroker(ctx, opts.brokerAddr, &opts.ssl)
	if err != nil {
		return err
	}
	defer conn.Close()

	mux := client.New(conn)
	mux.SetWarnLogger(func(msg string) { log.Warn(ctx, msg) })

	result, err := mux.RunPipeline(ctx, pipelineName, variables, opts.cookie)
	if err != nil {
		return err
	}

	return emitResult(result)
}

func parseVars(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, raw := range pairs {
		k, v, ok := strings.Cut(raw, "=")
		if !ok || k == "" {
			return nil, invalidArgs("invalid --var value %q, want key=value", raw)
		}
		out[k] = v
	}
	return out, nil
}

func emitResult(result client.RunResult) error {
	enc := json.NewEncoder(os.Stdout)
	if err := enc.Encode(map[string]any{
		"rc":     result.RC,
		"result": result.Result,
		"error":  result.Error,
	}); err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	if result.RC != packet.RCOk {
		return remoteFailure("remote run failed: rc=%s error=%s", result.RC, result.Error)
	}
	return nil
}
