package batch

import (
	"context"
	"embed"
	"fmt"
	"image"
	"os"
	"testing"
	"time"

	"github.com/MeKo-Tech/cardscan/internal/detector"
	"github.com/MeKo-Tech/cardscan/internal/onnx/mock"
	"github.com/MeKo-Tech/cardscan/internal/pipeline"
	"github.com/cucumber/godog"
)

//go:embed features/*.feature
var features embed.FS

type burstScenario struct {
	frames    *mock.Frames
	predictor *pipeline.Predictor
	burst     []image.Image

	digits    string
	present   bool
	callbacks int
}

func (s *burstScenario) aBurstReader() error {
	return s.aBurstReaderWithFailures(0)
}

func (s *burstScenario) aBurstReaderWithFailures(n int) error {
	s.frames = mock.NewFrames(detector.DefaultConfig())
	factory := mock.NewFactory(s.frames.Classify).FailClassifies(n)
	p, err := pipeline.NewBuilder().WithModelFactory(func() (pipeline.Model, error) {
		m, err := factory.Build()
		if err != nil {
			return nil, err
		}
		return m, nil
	}).Build()
	if err != nil {
		return err
	}
	s.predictor = p
	return nil
}

func (s *burstScenario) framesShowing(n int, number string) error {
	for range n {
		digits, err := mock.LineDigits(number, 0.45, 0.1)
		if err != nil {
			return err
		}
		s.burst = append(s.burst, s.frames.Add(mock.Shuffle(digits)))
	}
	return nil
}

func (s *burstScenario) blankFrames(n int) error {
	for range n {
		s.burst = append(s.burst, s.frames.Add(nil))
	}
	return nil
}

func (s *burstScenario) theBurstIsRun() error {
	loop := NewMainLoop(1)
	defer loop.Close()

	NewAggregator(s.predictor, WithDispatcher(loop)).Run(s.burst, func(d string, ok bool) {
		s.digits, s.present = d, ok
		s.callbacks++
	})

	done := make(chan bool, 1)
	go func() { done <- loop.RunOne() }()
	select {
	case <-done:
		return nil
	case <-time.After(30 * time.Second):
		return fmt.Errorf("burst did not complete")
	}
}

func (s *burstScenario) burstResultIs(want string) error {
	if !s.present || s.digits != want {
		return fmt.Errorf("got %q (present=%v), want %q", s.digits, s.present, want)
	}
	return nil
}

func (s *burstScenario) noBurstResult() error {
	if s.present {
		return fmt.Errorf("expected no result, got %q", s.digits)
	}
	return nil
}

func (s *burstScenario) callbackRanOnce() error {
	if s.callbacks != 1 {
		return fmt.Errorf("completion callback ran %d times", s.callbacks)
	}
	return nil
}

func (s *burstScenario) noUnrecoverableFailure() error {
	if s.predictor.HadUnrecoverableFailure() {
		return fmt.Errorf("predictor reports an unrecoverable failure")
	}
	return nil
}

func initializeBurstScenario(sc *godog.ScenarioContext) {
	s := &burstScenario{}

	sc.Step(`^a burst reader$`, s.aBurstReader)
	sc.Step(`^a burst reader whose next (\d+) inference calls fail$`, s.aBurstReaderWithFailures)
	sc.Step(`^(\d+) frames showing "([^"]*)"$`, s.framesShowing)
	sc.Step(`^(\d+) blank frames$`, s.blankFrames)
	sc.Step(`^the burst is run$`, s.theBurstIsRun)
	sc.Step(`^the burst result is "([^"]*)"$`, s.burstResultIs)
	sc.Step(`^there is no burst result$`, s.noBurstResult)
	sc.Step(`^the completion callback ran once$`, s.callbackRanOnce)
	sc.Step(`^the predictor has not had an unrecoverable failure$`, s.noUnrecoverableFailure)

	sc.After(func(ctx context.Context, _ *godog.Scenario, err error) (context.Context, error) {
		if s.predictor != nil {
			_ = s.predictor.Close()
		}
		return ctx, err
	})
}

func TestFeatures(t *testing.T) {
	format := os.Getenv("GODOG_FORMAT")
	if format == "" {
		format = "progress"
	}

	suite := godog.TestSuite{
		ScenarioInitializer: initializeBurstScenario,
		Options: &godog.Options{
			Format:   format,
			Paths:    []string{"features"},
			FS:       features,
			Strict:   true,
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
