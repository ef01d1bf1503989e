package cmd

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/cardscan/internal/detector"
	"github.com/MeKo-Tech/cardscan/internal/onnx/mock"
	"github.com/MeKo-Tech/cardscan/internal/pipeline"
	"github.com/MeKo-Tech/cardscan/internal/testutil"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

const (
	visaNumber   = "4111111111111111"
	visaBadLuhn  = "4111111111111112"
	masterNumber = "5555555555554444"
)

// cliEnv runs commands against the synthetic model.
type cliEnv struct {
	tagged  *mock.Tagged
	factory *mock.Factory
	dir     string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	resetFlags(rootCmd)

	tagged := mock.NewTagged(detector.DefaultConfig())
	factory := mock.NewFactory(tagged.Classify)
	modelFactory = func() (pipeline.Model, error) {
		m, err := factory.Build()
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	t.Cleanup(func() {
		modelFactory = nil
		resetFlags(rootCmd)
	})
	return &cliEnv{tagged: tagged, factory: factory, dir: t.TempDir()}
}

// frame writes a PNG showing number on one line and returns its path.
func (e *cliEnv) frame(t *testing.T, name, number string) string {
	t.Helper()
	digits, err := mock.LineDigits(number, 0.45, 0.1)
	require.NoError(t, err)
	path := filepath.Join(e.dir, name)
	testutil.SaveImage(t, e.tagged.Add(mock.Shuffle(digits)), path)
	return path
}

// blank writes a frame without any digits.
func (e *cliEnv) blank(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	testutil.SaveImage(t, testutil.CardFrame(), path)
	return path
}

// execute runs the root command with args and returns what it printed.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

// resetFlags restores every flag in the tree to its default so that one
// test's flags do not leak into the next.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func sequence(prefix string, n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("%s_%02d.png", prefix, i)
	}
	return names
}
