package support

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/textspot/internal/pipeline"
	"github.com/MeKo-Tech/textspot/internal/server"
	"github.com/MeKo-Tech/textspot/internal/testutil"
)

// HTTPTestServerWrapper wraps httptest.Server for integration tests.
type HTTPTestServerWrapper struct {
	Server     *httptest.Server
	TestServer *server.Server
}

// theDecodeServerIsRunning starts an in-process server without models.
func (testCtx *TestContext) theDecodeServerIsRunning() error {
	if testCtx.HTTPTestServer != nil {
		return nil
	}
	srv, err := server.NewServer(server.Config{
		CORSOrigin:     "*",
		MaxUploadMB:    1,
		TimeoutSec:     10,
		PipelineConfig: pipeline.DefaultConfig(),
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	testCtx.HTTPTestServer = &HTTPTestServerWrapper{
		Server:     httptest.NewServer(srv.Handler()),
		TestServer: srv,
	}
	return nil
}

// StopServer shuts the in-process server down.
func (testCtx *TestContext) StopServer() error {
	if testCtx.HTTPTestServer == nil {
		return nil
	}
	testCtx.HTTPTestServer.Server.Close()
	err := testCtx.HTTPTestServer.TestServer.Close()
	testCtx.HTTPTestServer = nil
	return err
}

func (testCtx *TestContext) makeHTTPRequest(method, endpoint, contentType string, body io.Reader) error {
	if testCtx.HTTPTestServer == nil {
		return errors.New("server is not running")
	}
	req, err := http.NewRequest(method, testCtx.HTTPTestServer.Server.URL+endpoint, body) //nolint:noctx // test request
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := testCtx.HTTPTestServer.Server.Client().Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(data)
	testCtx.LastHTTPHeaders = map[string]string{}
	for k := range resp.Header {
		testCtx.LastHTTPHeaders[k] = resp.Header.Get(k)
	}
	return nil
}

// iGET issues a GET request.
func (testCtx *TestContext) iGET(endpoint string) error {
	return testCtx.makeHTTPRequest(http.MethodGet, endpoint, "", nil)
}

// iPOSTScenarioTo uploads a scenario dump with its frame size.
func (testCtx *TestContext) iPOSTScenarioTo(name, endpoint string) error {
	sc, err := testutil.Scenario(name)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(testCtx.dumpPath(name))
	if err != nil {
		return err
	}
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	url := fmt.Sprintf("%s%swidth=%d&height=%d", endpoint, sep, sc.Width, sc.Height)
	return testCtx.makeHTTPRequest(http.MethodPost, url, "application/json", bytes.NewReader(data))
}

// iPOSTBodyTo uploads a literal body.
func (testCtx *TestContext) iPOSTBodyTo(endpoint string, body *godog.DocString) error {
	return testCtx.makeHTTPRequest(http.MethodPost, endpoint, "application/json", strings.NewReader(body.Content))
}

func (testCtx *TestContext) theResponseStatusShouldBe(expected int) error {
	if testCtx.LastHTTPStatusCode != expected {
		return fmt.Errorf("expected status %d, got %d\nBody: %s",
			expected, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(testCtx.LastHTTPResponse, text) {
		return fmt.Errorf("response does not contain %q\nBody: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, value string) error {
	if got := testCtx.LastHTTPHeaders[name]; got != value {
		return fmt.Errorf("expected header %s=%q, got %q", name, value, got)
	}
	return nil
}

func (testCtx *TestContext) theHealthResponseShouldReportNoModels() error {
	var health server.HealthResponse
	if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &health); err != nil {
		return fmt.Errorf("invalid health response: %w", err)
	}
	if health.ModelsLoaded {
		return errors.New("expected models_loaded=false")
	}
	return nil
}

// RegisterServerSteps registers HTTP steps against the in-process server.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the decode server is running$`, testCtx.theDecodeServerIsRunning)
	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^I POST scenario "([^"]*)" to "([^"]*)"$`, testCtx.iPOSTScenarioTo)
	sc.Step(`^I POST to "([^"]*)" with body:$`, testCtx.iPOSTBodyTo)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
	sc.Step(`^the health response should report no models loaded$`, testCtx.theHealthResponseShouldReportNoModels)
}
