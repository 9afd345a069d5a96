package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/Mitranim/repr"
	"github.com/pkg/errors"
	"github.com/purelabio/web3"
	"github.com/purelabio/web3/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	flagConfig = "config"
	flagFormat = "format"
)

var (
	conf   config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:           "web3",
	Short:         "Ethereum JSON-RPC client",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
		if path := viper.GetString(flagConfig); path != "" {
			viper.SetConfigFile(path)
			err = viper.ReadInConfig()
			if err != nil {
				return errors.Wrapf(err, "failed to read %q", path)
			}
		}

		conf, err = config.Load(viper.GetViper())
		if err != nil {
			return err
		}

		logger, err = conf.Log.Logger()
		return err
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		_ = logger.Sync()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String(flagConfig, "", "path to a config file (yaml, toml or json)")
	flags.String(config.Endpoint, config.DefaultConfig.Endpoint, "node URL or IPC path")
	flags.Duration(config.Timeout, config.DefaultConfig.Timeout, "per-command timeout; 0 disables it")
	flags.StringSlice(config.Transports, nil, "allowed transports: http, ws, ipc")
	flags.String(config.Log_Level, config.DefaultConfig.Log.Level, "log level: debug, info, warn, error")
	flags.String(config.Log_File, "", "log to this file, with rotation, instead of stderr")
	flags.Bool(config.TLS_Insecure, false, "skip TLS certificate verification")
	flags.String(flagFormat, "json", `output format: "json" or "go"`)

	for _, name := range []string{
		flagConfig, config.Endpoint, config.Timeout, config.Transports,
		config.Log_Level, config.Log_File, config.TLS_Insecure, flagFormat,
	} {
		err := viper.BindPFlag(name, flags.Lookup(name))
		if err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(callCmd, batchCmd, blockNumberCmd, subscribeCmd)
}

// Dials the configured endpoint. The caller must close the transport.
func dial(ctx context.Context) (web3.Trans, error) {
	opts, err := conf.DialOptions(logger, nil)
	if err != nil {
		return nil, err
	}
	return web3.Dial(ctx, conf.Endpoint, opts...)
}

// Command context, bounded by the configured timeout.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if conf.Timeout > 0 {
		return context.WithTimeout(ctx, conf.Timeout)
	}
	return context.WithCancel(ctx)
}

/*
Writes a JSON value in the selected format. "go" renders it as a Go literal,
which is handy for pasting node output into tests.
*/
func printValue(out io.Writer, input json.RawMessage) error {
	switch format := viper.GetString(flagFormat); format {
	case "json":
		var val interface{}
		err := json.Unmarshal(input, &val)
		if err != nil {
			return errors.WithStack(err)
		}
		pretty, err := json.MarshalIndent(val, "", "  ")
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = fmt.Fprintf(out, "%s\n", pretty)
		return errors.WithStack(err)

	case "go":
		var val interface{}
		err := json.Unmarshal(input, &val)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = fmt.Fprintln(out, repr.String(val))
		return errors.WithStack(err)

	default:
		return errors.Errorf(`unknown output format %q`, format)
	}
}

func stdout() io.Writer { return os.Stdout }
