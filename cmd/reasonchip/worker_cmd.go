package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/reasonchip/reasonchip/internal/chipreg"
	"github.com/reasonchip/reasonchip/internal/chips"
	"github.com/reasonchip/reasonchip/internal/engine"
	"github.com/reasonchip/reasonchip/internal/transport"
	"github.com/reasonchip/reasonchip/internal/transport/tcp"
	"github.com/reasonchip/reasonchip/internal/worker"
)

type workerOptions struct {
	brokerAddr  string
	capacity    int
	collections collectionFlags
	ssl         sslFlags
}

func newWorkerCmd(root *rootFlags) *cobra.Command {
	opts := &workerOptions{}

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run a worker executing RUN packets against a local Engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyConfigDefault(cmd, root, "broker", "worker", "broker", &opts.brokerAddr); err != nil {
				return err
			}
			return runWorker(cmd.Context(), root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.brokerAddr, "broker", "", "broker worker-facing address to dial (or [worker].broker in --config)")
	cmd.Flags().IntVar(&opts.capacity, "workers", 1, "number of concurrent pipeline runs this worker accepts")
	cmd.Flags().Var(&opts.collections, "collection", "name=path pipeline collection root, repeatable")
	opts.ssl.register(cmd)

	return cmd
}

func runWorker(ctx context.Context, root *rootFlags, opts *workerOptions) error {
	if opts.brokerAddr == "" {
		return invalidArgs("worker requires --broker (or [worker].broker in --config)")
	}
	if len(opts.collections) == 0 {
		return invalidArgs("worker requires at least one --collection name=path")
	}

	ctx, cancel := withSignalCancel(ctx)
	defer cancel()

	log := root.logContext().Logger("worker")

	conn, _, err := dialBroker(ctx, opts.brokerAddr, &opts.ssl)
	if err != nil {
		return err
	}
	defer conn.Close()

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

	tm := worker.New(worker.Options{Transport: conn, Engine: eng, Log: log, Capacity: opts.capacity})
	if err := tm.Start(ctx); err != nil {
		return err
	}

	log.Info(ctx, "worker registered", "broker", opts.brokerAddr, "capacity", opts.capacity)
	<-ctx.Done()
	log.Info(ctx, "worker shutting down")
	return nil
}

func dialBroker(ctx context.Context, addr string, ssl *sslFlags) (transport.Transport, transport.ConnID, error) {
	if ssl.enabled() {
		cfg, err := ssl.clientConfig()
		if err != nil {
			return nil, "", err
		}
		return tcp.DialTLS(ctx, addr, cfg)
	}
	return tcp.Dial(ctx, addr)
}
