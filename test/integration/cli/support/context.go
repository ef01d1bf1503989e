// Package support holds the step definitions of the CLI and server feature
// tests. Commands run in-process against a synthetic detector so no ONNX
// model is needed.
package support

import (
	"bytes"
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"strings"

	"github.com/MeKo-Tech/cardscan/cmd/cardscan/cmd"
	"github.com/MeKo-Tech/cardscan/internal/detector"
	"github.com/MeKo-Tech/cardscan/internal/onnx/mock"
	"github.com/MeKo-Tech/cardscan/internal/pipeline"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	TempDir string

	Tagged  *mock.Tagged
	Factory *mock.Factory

	// Command execution state
	LastCommand string
	LastOutput  string
	LastStderr  string
	LastError   error

	// Server state
	Server         *httptest.Server
	closeServer    func() error
	LastHTTPStatus int
	LastHTTPBody   []byte
	LastHTTPType   string

	WS         *websocket.Conn
	WSMessages []map[string]any

	restoreFactory func()
}

// NewTestContext creates a scenario context with its own temp directory and
// synthetic model.
func NewTestContext() (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "cardscan-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	tagged := mock.NewTagged(detector.DefaultConfig())
	testCtx := &TestContext{
		TempDir: tempDir,
		Tagged:  tagged,
		Factory: mock.NewFactory(tagged.Classify),
	}
	testCtx.restoreFactory = cmd.SetModelFactory(testCtx.ModelFactory())
	resetFlags(cmd.GetRootCommand())
	return testCtx, nil
}

// ModelFactory adapts the mock factory to the predictor.
func (testCtx *TestContext) ModelFactory() pipeline.ModelFactory {
	return func() (pipeline.Model, error) {
		m, err := testCtx.Factory.Build()
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}

// Cleanup stops servers and removes the temp directory.
func (testCtx *TestContext) Cleanup() error {
	var errs []error
	if testCtx.WS != nil {
		errs = append(errs, testCtx.WS.Close())
		testCtx.WS = nil
	}
	if testCtx.Server != nil {
		testCtx.Server.Close()
		errs = append(errs, testCtx.closeServer())
		testCtx.Server = nil
	}
	if testCtx.restoreFactory != nil {
		testCtx.restoreFactory()
	}
	resetFlags(cmd.GetRootCommand())
	errs = append(errs, os.RemoveAll(testCtx.TempDir))
	return errors.Join(errs...)
}

// Expand replaces {tmp} with the scenario temp directory.
func (testCtx *TestContext) Expand(s string) string {
	return strings.ReplaceAll(s, "{tmp}", testCtx.TempDir)
}

// RunCommand executes the CLI in-process with the whitespace separated args.
func (testCtx *TestContext) RunCommand(args string) {
	testCtx.LastCommand = testCtx.Expand(args)

	root := cmd.GetRootCommand()
	resetFlags(root)
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(strings.Fields(testCtx.LastCommand))
	testCtx.LastError = root.Execute()
	root.SetOut(nil)
	root.SetErr(nil)

	testCtx.LastOutput = stdout.String()
	testCtx.LastStderr = stderr.String()
}

// resetFlags restores every flag to its default; the command tree is shared
// by all scenarios.
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
