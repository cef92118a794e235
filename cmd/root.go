package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/radiantsdao/burnwatch/internal/utils"
	"github.com/spf13/cobra"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `	 _                                  _       _
	| |__  _   _ _ __ _ ____      ____ _| |_ ___| |__
	| '_ \| | | | '__| '_ \ \ /\ / / _` + "`" + ` | __/ __| '_ \
	| |_) | |_| | |  | | | \ V  V / (_| | || (__| | | |
	|_.__/ \__,_|_|  |_| |_|\_/\_/ \__,_|\__\___|_| |_|

`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "burnwatch",
	Short: "Discord alerts for incinerator auctions and raffles.",
	Long: LOGO + `burnwatch follows the bidding program on Solana and posts a message to every configured Discord channel when a new high bid is set or NFTs are burned for raffle tickets.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.burnwatch.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("proxy", "", "", "HTTP Proxy for RPC calls and the stream (Example: http://127.0.0.1:8080)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().String("logformat", "text", "Log format. Available: text, json")
	rootCmd.PersistentFlags().String("network", "", "Helius network: mainnet or devnet (overrides helius.network)")

	viper.BindPFlag("helius.network", rootCmd.PersistentFlags().Lookup("network"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// A .env next to the binary is optional.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Printf("Error loading .env: %s\n", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".burnwatch")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	viper.BindEnv("discord.token", "DISCORD_TOKEN", "TOKEN")

	setDefaults(viper.GetViper())

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.burnwatch.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s\n", err)
			}
		} else {
			fmt.Printf("Error reading config file: %s\n", err)
		}
	}

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
	formatString, _ := rootCmd.PersistentFlags().GetString("logformat")
	utils.SetLogFormat(formatString)
}

// setDefaults registers every configuration key so that it shows up in the
// generated config file and can be set from the environment.
func setDefaults(v *viper.Viper) {
	v.SetDefault("helius.api_key", "")
	v.SetDefault("helius.network", "mainnet")
	v.SetDefault("helius.ws_url", "")
	v.SetDefault("helius.rpc_url", "")
	v.SetDefault("program.id", defaultProgramID)
	v.SetDefault("discord.token", "")
	v.SetDefault("discord.destinations", "discords.json")
	v.SetDefault("rpc.connect_timeout", "120s")
	v.SetDefault("rpc.retries", 3)
	v.SetDefault("rpc.rps", 0)
	v.SetDefault("watch.reconnect_delay", "5s")
	v.SetDefault("watch.backoff", backoffFixed)
	v.SetDefault("watch.max_delay", "1m")
	v.SetDefault("watch.workers", 4)
	v.SetDefault("watch.queue_size", 64)
	v.SetDefault("metrics.listen", "")
	v.SetDefault("metrics.username", "")
	v.SetDefault("metrics.password", "")
}
