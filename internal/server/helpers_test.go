package server

import (
	"bytes"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MeKo-Tech/cardscan/internal/detector"
	"github.com/MeKo-Tech/cardscan/internal/onnx/mock"
	"github.com/MeKo-Tech/cardscan/internal/pipeline"
	"github.com/stretchr/testify/require"
)

const (
	visaNumber    = "4111111111111111"
	visaBadLuhn   = "4111111111111112"
	masterNumber  = "5555555555554444"
	discoverBurst = "6011111111111117"
)

// testEnv is a server backed by the synthetic model. Frames are tagged so
// they can be uploaded as PNG and still be recognized.
type testEnv struct {
	tagged  *mock.Tagged
	factory *mock.Factory
	server  *Server
}

func newTestEnv(t *testing.T, configure ...func(*Config)) *testEnv {
	t.Helper()
	tagged := mock.NewTagged(detector.DefaultConfig())
	factory := mock.NewFactory(tagged.Classify)

	pcfg := pipeline.DefaultConfig()
	pcfg.ModelsDir = t.TempDir()
	cfg := Config{
		CORSOrigin:     "*",
		MaxUploadMB:    10,
		MaxBurstFrames: 5,
		Strict:         true,
		OverlayEnabled: true,
		PipelineConfig: pcfg,
		ModelFactory: func() (pipeline.Model, error) {
			m, err := factory.Build()
			if err != nil {
				return nil, err
			}
			return m, nil
		},
	}
	for _, fn := range configure {
		fn(&cfg)
	}

	s, err := NewServer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return &testEnv{tagged: tagged, factory: factory, server: s}
}

func (e *testEnv) handler() http.Handler {
	mux := http.NewServeMux()
	e.server.SetupRoutes(mux)
	return mux
}

// cardPNG renders a frame showing number on one line.
func (e *testEnv) cardPNG(t *testing.T, number string) []byte {
	t.Helper()
	digits, err := mock.LineDigits(number, 0.45, 0.1)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, e.tagged.Add(mock.Shuffle(digits))))
	return buf.Bytes()
}

// gridPNG renders a frame showing number as four rows of four.
func (e *testEnv) gridPNG(t *testing.T, number string) []byte {
	t.Helper()
	digits, err := mock.GridDigits(number)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, e.tagged.Add(digits)))
	return buf.Bytes()
}

// multipartRequest builds a POST with each file under field and the given
// extra form values.
func multipartRequest(t *testing.T, target, field string, files [][]byte, values map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range values {
		require.NoError(t, mw.WriteField(k, v))
	}
	for i, data := range files {
		fw, err := mw.CreateFormFile(field, "frame"+string(rune('a'+i))+".png")
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
