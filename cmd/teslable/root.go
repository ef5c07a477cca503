package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/backkem/teslable/pkg/config"
	"github.com/backkem/teslable/pkg/keystore"
)

// app holds the state shared by all commands.
type app struct {
	v          *viper.Viper
	configFile string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:           "teslable",
		Short:         "Vehicle security protocol client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ReadFile(a.v, a.configFile); err != nil {
				return err
			}
			cfg, err := config.FromViper(a.v)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "YAML configuration file")
	flags.String("keys", "", "key file path (default teslable_key.json)")
	flags.String("passphrase", "", "passphrase sealing the key file")
	flags.String("log-level", "", "log level: disabled, error, warn, info, debug, trace")
	_ = a.v.BindPFlag("keys.path", flags.Lookup("keys"))
	_ = a.v.BindPFlag("keys.passphrase", flags.Lookup("passphrase"))
	_ = a.v.BindPFlag("log_level", flags.Lookup("log-level"))

	root.AddCommand(a.keygenCmd(), a.pubkeyCmd(), a.simulateCmd())
	return root
}

func (a *app) keyStore() *keystore.FileStore {
	return keystore.NewFileStore(keystore.FileStoreConfig{
		Path:       a.cfg.Keys.Path,
		Passphrase: a.cfg.Keys.Passphrase,
	})
}
