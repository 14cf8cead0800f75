package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nextdotid/sdk-go/cmd/flags"
	"github.com/nextdotid/sdk-go/httpserver"
	"github.com/urfave/cli/v2"
)

var listenAddrFlag = &cli.StringFlag{
	Name:  "listen-addr",
	Value: "127.0.0.1:8080",
	Usage: "address to listen on for API",
}

func main() {
	app := &cli.App{
		Name:  "registry-stub",
		Usage: "Serve an in-memory ProofService and KVService registry for local development",
		Flags: append([]cli.Flag{
			listenAddrFlag,
			flags.LogServiceFlagFn("registry-stub"),
		}, flags.CommonFlags...),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)
			cfg := flags.ConfigureServer(cCtx, logger, cCtx.String(listenAddrFlag.Name))

			handler := httpserver.NewHandler(logger)
			server, err := httpserver.New(cfg, handler)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			logger.Info("Starting server")
			server.RunInBackground()

			// Wait for termination signal
			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
			<-exit

			logger.Info("Shutting down")
			server.Shutdown()
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
