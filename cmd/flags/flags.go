package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nextdotid/sdk-go/api/clients"
	"github.com/nextdotid/sdk-go/common"
	"github.com/nextdotid/sdk-go/httpserver"
	"github.com/urfave/cli/v2"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String("log-service")

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger, listenAddr string) *httpserver.HTTPServerConfig {
	enablePprof := cCtx.Bool(PprofFlag.Name)
	drainDuration := time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second

	return &httpserver.HTTPServerConfig{
		ListenAddr:               listenAddr,
		Log:                      logger,
		EnablePprof:              enablePprof,
		DrainDuration:            drainDuration,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}

var ProofServiceAddrFlag = &cli.StringFlag{
	Name:  "proof-service-addr",
	Value: clients.ProofServiceStaging,
	Usage: "ProofService deployment to talk to",
}

var KVServiceAddrFlag = &cli.StringFlag{
	Name:  "kv-service-addr",
	Value: clients.KVServiceStaging,
	Usage: "KVService deployment to talk to",
}

var SecretKeyFlag = &cli.StringFlag{
	Name:    "avatar-secret-key",
	Usage:   "hex-encoded avatar secret key. 64 hex chars, 0x prefix optional",
	EnvVars: []string{"NEXTID_AVATAR_SECRET_KEY"},
}

var PlatformFlag = &cli.StringFlag{
	Name:     "platform",
	Required: true,
	Usage:    "identity platform, e.g. twitter, github, ethereum",
}

var IdentityFlag = &cli.StringFlag{
	Name:     "identity",
	Required: true,
	Usage:    "identity on the platform: username, or account address for ethereum",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}

var LogServiceFlagFn = func(service string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "log-service",
		Value: service,
		Usage: "add 'service' tag to logs",
	}
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}

var CommonFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	PprofFlag,
	DrainSecondsFlag,
}
