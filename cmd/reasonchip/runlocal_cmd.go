package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reasonchip/reasonchip/internal/chipreg"
	"github.com/reasonchip/reasonchip/internal/chips"
	"github.com/reasonchip/reasonchip/internal/engine"
)

type runLocalOptions struct {
	vars        []string
	collections collectionFlags
}

func newRunLocalCmd(root *rootFlags) *cobra.Command {
	opts := &runLocalOptions{}

	cmd := &cobra.Command{
		Use:   "run-local <pipeline>",
		Short: "Run a pipeline in-process, without a broker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocal(cmd.Context(), root, opts, args[0])
		},
	}

	cmd.Flags().StringArrayVar(&opts.vars, "var", nil, "key=value pipeline input variable, repeatable")
	cmd.Flags().Var(&opts.collections, "collection", "name=path pipeline collection root, repeatable")

	return cmd
}

func runLocal(ctx context.Context, root *rootFlags, opts *runLocalOptions, pipelineName string) error {
	if len(opts.collections) == 0 {
		return invalidArgs("run-local requires at least one --collection name=path")
	}
	variables, err := parseVars(opts.vars)
	if err != nil {
		return err
	}

	ctx, cancel := withSignalCancel(ctx)
	defer cancel()

	log := root.logContext().Logger("run-local")

	reg := chipreg.New()
	if err := reg.Discover(chips.BuiltinProviders()...); err != nil {
		return err
	}

	eng := engine.New(engine.Options{Registry: reg, Log: log})
	sources, err := opts.collections.sources()
	if err != nil {
		return err
	}
	if err := eng.Load(sources...); err != nil {
		return err
	}

	result, err := eng.Run(ctx, pipelineName, variables)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	if err := enc.Encode(map[string]any{"result": result}); err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	return nil
}
