package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/alwitt/takbridge/bin"
	"github.com/alwitt/takbridge/common"
	"github.com/apex/log"
	apexJSON "github.com/apex/log/handlers/json"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
)

type bridgeNodeCliArgs struct {
	ConfigFile string `validate:"required,file"`
	DBPassword string
}

type cliArgs struct {
	JSONLog  bool
	LogLevel string `validate:"required,oneof=debug info warn error"`
	Hostname string
}

var s3CredsArgs common.S3Credentials

var bridgeNodeArgs bridgeNodeCliArgs

var cmdArgs cliArgs

var logTags log.Fields

// @title takbridge
// @version v0.1.0
// @description TAK server web backend bridge

// @host localhost:8080
// @BasePath /
// @query.collection.format multi
func main() {
	hostname, err := os.Hostname()
	if err != nil {
		log.WithError(err).Fatal("Unable to read hostname")
	}
	cmdArgs.Hostname = hostname
	logTags = log.Fields{
		"module":    "main",
		"component": "main",
		"instance":  hostname,
	}

	app := &cli.App{
		Version:     "v0.1.0",
		Usage:       "application entrypoint",
		Description: "Bridge node linking TAK clients with mission data, media leases, and packages",
		Flags: []cli.Flag{
			// LOGGING
			&cli.BoolFlag{
				Name:        "json-log",
				Usage:       "Whether to log in JSON format",
				Aliases:     []string{"j"},
				EnvVars:     []string{"LOG_AS_JSON"},
				Value:       false,
				DefaultText: "false",
				Destination: &cmdArgs.JSONLog,
				Required:    false,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "Logging level: [debug info warn error]",
				Aliases:     []string{"l"},
				EnvVars:     []string{"LOG_LEVEL"},
				Value:       "warn",
				DefaultText: "warn",
				Destination: &cmdArgs.LogLevel,
				Required:    false,
			},
			// Config file
			&cli.StringFlag{
				Name:        "config-file",
				Usage:       "Application config file",
				Aliases:     []string{"c"},
				EnvVars:     []string{"CONFIG_FILE"},
				Destination: &bridgeNodeArgs.ConfigFile,
				Required:    true,
			},
			&cli.StringFlag{
				Name:        "db-password",
				Usage:       "Database user password",
				Aliases:     []string{"p"},
				EnvVars:     []string{"DB_USER_PASSWORD"},
				Value:       "",
				DefaultText: "",
				Destination: &bridgeNodeArgs.DBPassword,
				Required:    false,
			},
			// S3 Creds
			&cli.StringFlag{
				Name:        "s3-access-key",
				Usage:       "S3 user access key",
				EnvVars:     []string{"AWS_ACCESS_KEY_ID"},
				Destination: &s3CredsArgs.AccessKey,
				Required:    false,
			},
			&cli.StringFlag{
				Name:        "s3-secret-access-key",
				Usage:       "S3 user secret access key",
				EnvVars:     []string{"AWS_SECRET_ACCESS_KEY"},
				Destination: &s3CredsArgs.SecretAccessKey,
				Required:    false,
			},
		},
		Action: startBridgeNode,
	}

	err = app.Run(os.Args)
	if err != nil {
		log.WithError(err).WithFields(logTags).Fatal("Program shutdown")
	}
}

// setupLogging helper function to prepare the app logging
func setupLogging() {
	if cmdArgs.JSONLog {
		log.SetHandler(apexJSON.New(os.Stderr))
	}
	switch cmdArgs.LogLevel {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.ErrorLevel)
	}
}

func startBridgeNode(c *cli.Context) error {
	validate := validator.New()

	// Validate general config
	if err := validate.Struct(&cmdArgs); err != nil {
		return err
	}

	setupLogging()

	// ================================================================================
	// Process bridge node config
	if err := validate.Struct(&bridgeNodeArgs); err != nil {
		log.
			WithError(err).
			WithFields(logTags).
			Error("Invalid parameters provided to start bridge node")
		return err
	}

	// Process the config file
	common.InstallDefaultBridgeNodeConfigValues()
	var configs common.BridgeNodeConfig
	viper.SetConfigFile(bridgeNodeArgs.ConfigFile)
	if err := viper.ReadInConfig(); err != nil {
		log.WithError(err).WithFields(logTags).Error("Failed to load bridge node config")
		return err
	}
	if err := viper.Unmarshal(&configs); err != nil {
		log.WithError(err).WithFields(logTags).Error("Failed to parse bridge node config")
		return err
	}

	// Inject the S3 creds if provided
	if s3CredsArgs.AccessKey != "" {
		configs.PackageStorage.S3.Creds = &s3CredsArgs
	}

	// Validate bridge node config
	if err := validate.Struct(&configs); err != nil {
		log.WithError(err).WithFields(logTags).Error("Bridge node config file is not valid")
		return err
	}

	{
		t, _ := json.MarshalIndent(&configs, "", "  ")
		log.WithFields(logTags).Debugf("Running with config:\n%s", string(t))
	}

	// ================================================================================
	// Define bridge node

	runtimeCtxt, cancel := context.WithCancel(context.Background())
	defer cancel()

	bridgeNode, err := bin.DefineBridgeNode(
		runtimeCtxt, cmdArgs.Hostname, configs, bridgeNodeArgs.DBPassword,
	)
	if err != nil {
		log.WithError(err).WithFields(logTags).Error("Unable to define and start bridge node")
		return err
	}
	defer func() {
		if err := bridgeNode.Cleanup(runtimeCtxt); err != nil {
			log.WithError(err).WithFields(logTags).Error("Failure during bridge node clean up")
		}
	}()

	// ================================================================================
	// Start HTTP servers

	wg := sync.WaitGroup{}
	defer wg.Wait()
	apiServers := map[string]*http.Server{}

	defer func() {
		// Shutdown the servers
		for svrInstance, svr := range apiServers {
			ctx, cancel := context.WithTimeout(runtimeCtxt, time.Second*10)
			if err := svr.Shutdown(ctx); err != nil {
				log.
					WithError(err).
					WithFields(logTags).
					Errorf("Failure during HTTP Server %s shutdown", svrInstance)
			}
			cancel()
		}
	}()

	// Start bridge API HTTP server
	if configs.APIServer.Enabled {
		svr := bridgeNode.APIServer
		apiServers["bridge-api"] = svr
		// Start the server
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := svr.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("Bridge API HTTP server failure")
			}
		}()
	}

	// Start metrics HTTP server
	{
		svr := bridgeNode.MetricsServer
		apiServers["metrics-api"] = svr
		// Start the server
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := svr.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("Metrics API HTTP server failure")
			}
		}()
	}

	// ------------------------------------------------------------------------------------
	// Wait for termination

	cc := make(chan os.Signal, 1)
	// We'll accept graceful shutdowns when quit via SIGINT (Ctrl+C)
	// SIGKILL, SIGQUIT or SIGTERM (Ctrl+/) will not be caught.
	signal.Notify(cc, os.Interrupt)
	<-cc

	return nil
}
