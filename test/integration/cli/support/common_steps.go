package support

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/cucumber/godog"
)

func (testCtx *TestContext) iRun(args string) error {
	testCtx.RunCommand(args)
	return nil
}

func (testCtx *TestContext) theCommandSucceeds() error {
	if testCtx.LastError != nil {
		return fmt.Errorf("command %q failed: %v\nstdout:\n%s\nstderr:\n%s",
			testCtx.LastCommand, testCtx.LastError, testCtx.LastOutput, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) theCommandFails() error {
	if testCtx.LastError == nil {
		return fmt.Errorf("command %q succeeded, expected failure\nstdout:\n%s", testCtx.LastCommand, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theErrorMentions(text string) error {
	if testCtx.LastError == nil || !strings.Contains(testCtx.LastError.Error(), text) {
		return fmt.Errorf("error %v does not mention %q", testCtx.LastError, text)
	}
	return nil
}

func (testCtx *TestContext) theOutputContains(text string) error {
	text = testCtx.Expand(text)
	if !strings.Contains(testCtx.LastOutput, text) {
		return fmt.Errorf("output does not contain %q:\n%s", text, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputDoesNotContain(text string) error {
	if strings.Contains(testCtx.LastOutput, testCtx.Expand(text)) {
		return fmt.Errorf("output unexpectedly contains %q:\n%s", text, testCtx.LastOutput)
	}
	return nil
}

// theJSONOutputField checks a dotted path such as "0.digits" in the JSON
// output.
func (testCtx *TestContext) theJSONOutputField(path, want string) error {
	return checkJSONField([]byte(testCtx.LastOutput), path, want)
}

func (testCtx *TestContext) theFileExists(path string) error {
	path = testCtx.Expand(path)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("expected file %s: %w", path, err)
	}
	return nil
}

// checkJSONField walks object keys and array indexes along path and compares
// the leaf, formatted with %v, against want.
func checkJSONField(data []byte, path, want string) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid JSON: %w\n%s", err, data)
	}
	for _, key := range strings.Split(path, ".") {
		switch node := v.(type) {
		case map[string]any:
			next, ok := node[key]
			if !ok {
				return fmt.Errorf("field %q missing in %s", key, path)
			}
			v = next
		case []any:
			var i int
			if _, err := fmt.Sscan(key, &i); err != nil || i < 0 || i >= len(node) {
				return fmt.Errorf("index %q out of range in %s", key, path)
			}
			v = node[i]
		default:
			return fmt.Errorf("cannot descend into %T at %q", v, key)
		}
	}
	if got := fmt.Sprint(v); got != want {
		return fmt.Errorf("%s = %s, want %s", path, got, want)
	}
	return nil
}

// RegisterCommonSteps registers command execution and output steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRun)
	sc.Step(`^the command succeeds$`, testCtx.theCommandSucceeds)
	sc.Step(`^the command fails$`, testCtx.theCommandFails)
	sc.Step(`^the error mentions "([^"]*)"$`, testCtx.theErrorMentions)
	sc.Step(`^the output contains "([^"]*)"$`, testCtx.theOutputContains)
	sc.Step(`^the output does not contain "([^"]*)"$`, testCtx.theOutputDoesNotContain)
	sc.Step(`^the JSON output field "([^"]*)" is "([^"]*)"$`, testCtx.theJSONOutputField)
	sc.Step(`^the file "([^"]*)" exists$`, testCtx.theFileExists)
}
