package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagBinding ties a command flag to a viper configuration key.
type flagBinding struct {
	key  string
	flag string
}

func mustBind(flags *pflag.FlagSet, key, flag string) {
	if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
		panic(fmt.Sprintf("failed to bind flag %s: %v", flag, err))
	}
}

// bindOnRun binds the flags of cmd when it runs. Several commands share keys
// such as output.format, so the running command has to own them.
func bindOnRun(cmd *cobra.Command, bindings []flagBinding) {
	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		for _, b := range bindings {
			mustBind(cmd.Flags(), b.key, b.flag)
		}
	}
}

// openOutput returns the file named by path, or stdout when path is empty.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}
