package main

import (
	"fmt"
	"os"

	"github.com/axonledger/axon/axi/db_cmd"
	"github.com/axonledger/axon/axi/init_cmd"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "axi",
	Short: "a simple CLI for the Axon DAG ledger",
	Long: `axi is a CLI tool for the Axon DAG ledger.
It provides:
      - node configuration bootstrap and validator key generation
      - database level access to the checkpoint chain for admin purposes
`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		initConfig()
	},
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is axon.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(
		init_cmd.Init(),
		db_cmd.Init(),
	)
	rootCmd.InitDefaultHelpCmd()
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if configFile != "" {
		viper.SetConfigName(configFile)
	} else {
		viper.SetConfigName("axon")
	}
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		_, _ = fmt.Fprintf(os.Stderr, "Using config profile: %s\n", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
