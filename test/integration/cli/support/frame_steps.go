package support

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/cardscan/internal/onnx/mock"
	"github.com/cucumber/godog"
)

// writeFrame renders number on one line into a PNG under the temp dir. An
// empty number gives a frame without digits.
func (testCtx *TestContext) writeFrame(name, number string) error {
	var digits []mock.Digit
	if number != "" {
		var err error
		digits, err = mock.LineDigits(number, 0.45, 0.1)
		if err != nil {
			return err
		}
		digits = mock.Shuffle(digits)
	}

	path := filepath.Join(testCtx.TempDir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, testCtx.Tagged.Add(digits)); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (testCtx *TestContext) aFrameShowing(name, number string) error {
	return testCtx.writeFrame(name, number)
}

func (testCtx *TestContext) aFrameWithoutDigits(name string) error {
	return testCtx.writeFrame(name, "")
}

func (testCtx *TestContext) aCorruptFrame(name string) error {
	return os.WriteFile(filepath.Join(testCtx.TempDir, name), []byte("not an image"), 0o600)
}

// aBurstDirectory writes one frame per table row; the first column is the
// number, "-" meaning no digits.
func (testCtx *TestContext) aBurstDirectory(dir string, table *godog.Table) error {
	for i, row := range table.Rows {
		if i == 0 {
			continue
		}
		number := row.Cells[0].Value
		if number == "-" {
			number = ""
		}
		if err := testCtx.writeFrame(filepath.Join(dir, fmt.Sprintf("frame_%02d.png", i)), number); err != nil {
			return err
		}
	}
	return nil
}

func (testCtx *TestContext) theModelFailsNextCalls(n int) error {
	testCtx.Factory.FailClassifies(n)
	return nil
}

// RegisterFrameSteps registers the frame fixture steps.
func (testCtx *TestContext) RegisterFrameSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a frame "([^"]*)" showing "([^"]*)"$`, testCtx.aFrameShowing)
	sc.Step(`^a frame "([^"]*)" without digits$`, testCtx.aFrameWithoutDigits)
	sc.Step(`^a corrupt frame "([^"]*)"$`, testCtx.aCorruptFrame)
	sc.Step(`^a burst directory "([^"]*)" with frames:$`, testCtx.aBurstDirectory)
	sc.Step(`^the detector fails its next (\d+) inference calls$`, testCtx.theModelFailsNextCalls)
}
