package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/reasonchip/reasonchip/internal/broker"
	"github.com/reasonchip/reasonchip/internal/transport/tcp"
)

type brokerOptions struct {
	clientAddr string
	workerAddr string
	ssl        sslFlags
}

func newBrokerCmd(root *rootFlags) *cobra.Command {
	opts := &brokerOptions{}

	cmd := &cobra.Command{
		Use:   "broker",
		Short: "Run a broker routing RUN/CANCEL/RESULT packets between clients and workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyConfigDefault(cmd, root, "client-listen", "broker", "client-listen", &opts.clientAddr); err != nil {
				return err
			}
			if err := applyConfigDefault(cmd, root, "worker-listen", "broker", "worker-listen", &opts.workerAddr); err != nil {
				return err
			}
			return runBroker(cmd.Context(), root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.clientAddr, "client-listen", ":7001", "client-facing listen address")
	cmd.Flags().StringVar(&opts.workerAddr, "worker-listen", ":7002", "worker-facing listen address")
	opts.ssl.register(cmd)

	return cmd
}

func runBroker(ctx context.Context, root *rootFlags, opts *brokerOptions) error {
	ctx, cancel := withSignalCancel(ctx)
	defer cancel()

	log := root.logContext().Logger("broker")

	listen := tcp.Listen
	if opts.ssl.enabled() {
		cfg, err := opts.ssl.serverConfig()
		if err != nil {
			return err
		}
		listen = func(ctx context.Context, addr string) (*tcp.Transport, error) {
			return tcp.ListenTLS(ctx, addr, cfg)
		}
	}

	clientTransport, err := listen(ctx, opts.clientAddr)
	if err != nil {
		return err
	}
	defer clientTransport.Close()

	workerTransport, err := listen(ctx, opts.workerAddr)
	if err != nil {
		return err
	}
	defer workerTransport.Close()

	broker.New(clientTransport, workerTransport, log)

	log.Info(ctx, "broker listening", "client_addr", opts.clientAddr, "worker_addr", opts.workerAddr)
	<-ctx.Done()
	log.Info(ctx, "broker shutting down")
	return nil
}
