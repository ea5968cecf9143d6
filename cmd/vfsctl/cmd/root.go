package cmd

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/mwantia/asyncvfs/async"
	"github.com/mwantia/asyncvfs/backend"
	"github.com/mwantia/asyncvfs/log"
	"github.com/mwantia/asyncvfs/vfs"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "vfsctl",
	Short: "Inspect and copy files across virtual filesystem backends",
	Long: `vfsctl layers one or more backend locations into a single tree and runs
file operations against it. Locations are plain directories or URIs such as
memory:, zip:archive.zip, sqlite:vfs.db, https://host/base or s3://host/bucket.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default: ~/.config/vfsctl/config.yaml)")
	flags.StringSliceP("mount", "m", []string{"."}, "backend locations layered in order, first match wins")
	flags.Bool("read-only", false, "reject every mutation")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	flags.String("log-file", "", "write logs to this file instead of stdout")
	flags.Int("workers", 4, "size of the blocking worker pool")
	flags.Float64("rate-limit", 0, "requests per second for HTTP backends (0 = unlimited)")
	flags.String("s3-access-key", "", "access key for s3:// locations")
	flags.String("s3-secret-key", "", "secret key for s3:// locations")
	flags.Bool("s3-ssl", false, "use TLS for s3:// locations")

	viper.BindPFlag("mount", flags.Lookup("mount"))
	viper.BindPFlag("read_only", flags.Lookup("read-only"))
	viper.BindPFlag("log_level", flags.Lookup("log-level"))
	viper.BindPFlag("log_file", flags.Lookup("log-file"))
	viper.BindPFlag("workers", flags.Lookup("workers"))
	viper.BindPFlag("rate_limit", flags.Lookup("rate-limit"))
	viper.BindPFlag("s3.access_key", flags.Lookup("s3-access-key"))
	viper.BindPFlag("s3.secret_key", flags.Lookup("s3-secret-key"))
	viper.BindPFlag("s3.ssl", flags.Lookup("s3-ssl"))
}

func initConfig() {
	if cfg := rootCmd.PersistentFlags().Lookup("config").Value.String(); cfg != "" {
		viper.SetConfigFile(cfg)
	} else {
		viper.AddConfigPath(configDir())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("VFSCTL")
	viper.AutomaticEnv()

	viper.ReadInConfig()
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "vfsctl")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "vfsctl")
	}
	return ".vfsctl"
}

func newLogger() (*log.Logger, error) {
	level, err := log.Parse(viper.GetString("log_level"))
	if err != nil {
		return nil, err
	}

	file := viper.GetString("log_file")
	return log.NewLogger("vfsctl", level, file, file != ""), nil
}

// withTree sets up the scheduler and the mounted tree, runs fn on its root and
// tears everything down again.
func withTree(cmd *cobra.Command, fn func(ctx context.Context, root vfs.File) error) (err error) {
	logger, err := newLogger()
	if err != nil {
		return err
	}

	scheduler, err := async.NewScheduler(
		async.WithWorkers(viper.GetInt("workers")),
		async.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if cerr := scheduler.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()

	ctx := async.WithScheduler(cmd.Context(), scheduler)

	opts := []backend.Option{
		backend.WithLogger(logger),
		backend.WithRateLimit(viper.GetFloat64("rate_limit")),
		backend.WithS3Credentials(
			viper.GetString("s3.access_key"),
			viper.GetString("s3.secret_key"),
			viper.GetBool("s3.ssl"),
		),
	}
	if viper.GetBool("read_only") {
		opts = append(opts, backend.WithReadOnly())
	}

	tree, err := backend.Union(ctx, viper.GetStringSlice("mount"), opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := backend.Close(tree); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return fn(ctx, vfs.Root(tree))
}
