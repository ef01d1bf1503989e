package support

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/MeKo-Tech/cardscan/internal/pipeline"
	"github.com/MeKo-Tech/cardscan/internal/server"
	"github.com/cucumber/godog"
	"github.com/gorilla/websocket"
)

const httpTimeout = 10 * time.Second

func (testCtx *TestContext) theServerIsRunning() error {
	return testCtx.startServer(server.Config{})
}

func (testCtx *TestContext) theServerIsRunningWithMaxFrames(n int) error {
	return testCtx.startServer(server.Config{MaxBurstFrames: n})
}

func (testCtx *TestContext) startServer(cfg server.Config) error {
	pcfg := pipeline.DefaultConfig()
	pcfg.ModelsDir = testCtx.TempDir
	cfg.CORSOrigin = "*"
	cfg.Strict = true
	cfg.OverlayEnabled = true
	cfg.PipelineConfig = pcfg
	cfg.ModelFactory = testCtx.ModelFactory()

	s, err := server.NewServer(cfg)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	testCtx.Server = httptest.NewServer(mux)
	testCtx.closeServer = s.Close
	return nil
}

func (testCtx *TestContext) post(endpoint, field string, files []string, fields map[string]string) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		part, err := w.CreateFormFile(field, filepath.Base(path))
		if err != nil {
			return err
		}
		if _, err := part.Write(data); err != nil {
			return err
		}
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	client := &http.Client{Timeout: httpTimeout}
	resp, err := client.Post(testCtx.Server.URL+endpoint, w.FormDataContentType(), &body)
	if err != nil {
		return err
	}
	return testCtx.storeResponse(resp)
}

func (testCtx *TestContext) storeResponse(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastHTTPStatus = resp.StatusCode
	testCtx.LastHTTPBody = data
	testCtx.LastHTTPType = resp.Header.Get("Content-Type")
	return nil
}

func (testCtx *TestContext) iUploadTo(name, endpoint string) error {
	return testCtx.post(endpoint, "image", []string{filepath.Join(testCtx.TempDir, name)}, nil)
}

func (testCtx *TestContext) iUploadWithFormat(name, endpoint, format string) error {
	return testCtx.post(endpoint, "image", []string{filepath.Join(testCtx.TempDir, name)}, map[string]string{"format": format})
}

func (testCtx *TestContext) burstFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(testCtx.TempDir, dir, "*.png"))
	if err != nil {
		return nil, err
	}
	slices.Sort(files)
	return files, nil
}

func (testCtx *TestContext) iUploadTheBurst(dir string) error {
	files, err := testCtx.burstFiles(dir)
	if err != nil {
		return err
	}
	return testCtx.post("/burst", "frames", files, nil)
}

func (testCtx *TestContext) iRequest(endpoint string) error {
	client := &http.Client{Timeout: httpTimeout}
	resp, err := client.Get(testCtx.Server.URL + endpoint)
	if err != nil {
		return err
	}
	return testCtx.storeResponse(resp)
}

func (testCtx *TestContext) theResponseStatusIs(code int) error {
	if testCtx.LastHTTPStatus != code {
		return fmt.Errorf("status %d, want %d: %s", testCtx.LastHTTPStatus, code, testCtx.LastHTTPBody)
	}
	return nil
}

func (testCtx *TestContext) theResponseField(path, want string) error {
	return checkJSONField(testCtx.LastHTTPBody, path, want)
}

func (testCtx *TestContext) theResponseIsPNG() error {
	if testCtx.LastHTTPType != "image/png" {
		return fmt.Errorf("content type %q, want image/png", testCtx.LastHTTPType)
	}
	if !bytes.HasPrefix(testCtx.LastHTTPBody, []byte("\x89PNG")) {
		return fmt.Errorf("body is not a PNG")
	}
	return nil
}

func (testCtx *TestContext) theResponseContains(text string) error {
	if !strings.Contains(string(testCtx.LastHTTPBody), text) {
		return fmt.Errorf("response does not contain %q", text)
	}
	return nil
}

func (testCtx *TestContext) iOpenAScanWebSocket() error {
	url := "ws" + strings.TrimPrefix(testCtx.Server.URL, "http") + "/ws/scan"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return err
	}
	testCtx.WS = conn
	return nil
}

func (testCtx *TestContext) readWebSocket() error {
	if err := testCtx.WS.SetReadDeadline(time.Now().Add(httpTimeout)); err != nil {
		return err
	}
	_, data, err := testCtx.WS.ReadMessage()
	if err != nil {
		return err
	}
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	testCtx.WSMessages = append(testCtx.WSMessages, msg)
	return nil
}

func (testCtx *TestContext) iStreamTheBurst(dir string) error {
	files, err := testCtx.burstFiles(dir)
	if err != nil {
		return err
	}
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := testCtx.WS.WriteMessage(websocket.BinaryMessage, data); err != nil {
			return err
		}
		if err := testCtx.readWebSocket(); err != nil {
			return err
		}
	}
	return nil
}

func (testCtx *TestContext) iSendOverTheWebSocket(msgType string) error {
	data, err := json.Marshal(server.WebSocketRequest{Type: msgType})
	if err != nil {
		return err
	}
	if err := testCtx.WS.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	return testCtx.readWebSocket()
}

func (testCtx *TestContext) theWebSocketReceived(n int, msgType string) error {
	count := 0
	for _, msg := range testCtx.WSMessages {
		if msg["type"] == msgType {
			count++
		}
	}
	if count != n {
		return fmt.Errorf("received %d %q messages, want %d", count, msgType, n)
	}
	return nil
}

func (testCtx *TestContext) theLastWebSocketField(path, want string) error {
	if len(testCtx.WSMessages) == 0 {
		return fmt.Errorf("no WebSocket messages received")
	}
	data, err := json.Marshal(testCtx.WSMessages[len(testCtx.WSMessages)-1])
	if err != nil {
		return err
	}
	return checkJSONField(data, path, want)
}

// RegisterServerSteps registers the HTTP and WebSocket steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the card scan server is running$`, testCtx.theServerIsRunning)
	sc.Step(`^the card scan server is running with at most (\d+) burst frames$`, testCtx.theServerIsRunningWithMaxFrames)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)"$`, testCtx.iUploadTo)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)" with format "([^"]*)"$`, testCtx.iUploadWithFormat)
	sc.Step(`^I upload the frames in "([^"]*)" to "/burst"$`, testCtx.iUploadTheBurst)
	sc.Step(`^I request "([^"]*)"$`, testCtx.iRequest)
	sc.Step(`^the response status is (\d+)$`, testCtx.theResponseStatusIs)
	sc.Step(`^the response field "([^"]*)" is "([^"]*)"$`, testCtx.theResponseField)
	sc.Step(`^the response is a PNG image$`, testCtx.theResponseIsPNG)
	sc.Step(`^the response contains "([^"]*)"$`, testCtx.theResponseContains)
	sc.Step(`^I open a scan WebSocket$`, testCtx.iOpenAScanWebSocket)
	sc.Step(`^I stream the frames in "([^"]*)" over the WebSocket$`, testCtx.iStreamTheBurst)
	sc.Step(`^I send "([^"]*)" over the WebSocket$`, testCtx.iSendOverTheWebSocket)
	sc.Step(`^the WebSocket received (\d+) "([^"]*)" messages$`, testCtx.theWebSocketReceived)
	sc.Step(`^the last WebSocket message field "([^"]*)" is "([^"]*)"$`, testCtx.theLastWebSocketField)
}
