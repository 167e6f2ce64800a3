package main_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/joho/godotenv"

	"visionsync/backend/internal/auth"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	testAppBinary         = "./visionsync_test_app" // Name for the test binary
	testAppPort           = "8089"                  // Port for the test server
	testServiceApiPortApi = "8091"                  // Port for Service API run by API process
	testServiceApiPortBg  = "8092"                  // Port for Service API run by BG process
	testAppURL            = "http://localhost:" + testAppPort
	testServiceApiURL     = "http://localhost:" + testServiceApiPortApi
	startupTimeout        = 15 * time.Second
	pingEndpoint          = testAppURL + "/v1/ping"

	testMongoDbName    = "visionsync_integration_test"
	testAdminEmail     = "admin@visionsync.test"
	testAdminPassword  = "integration-test-password"
	testNotifyAddress  = "sales@visionsync.test"
	testJwtSecret      = "integration-test-secret"
	testMongoURIEnvKey = "MONGO_URI"
)

func testMongoURI() string {
	if uri := os.Getenv(testMongoURIEnvKey); uri != "" {
		return uri
	}
	return "mongodb://localhost:27017"
}

// TestMain manages the setup and teardown of the integration test environment.
func TestMain(m *testing.M) {
	// Defer cleanup actions to ensure they run even if setup fails
	defer func() {
		log.Println("Integration Test Teardown: Cleaning up test binary...")
		_ = os.Remove(testAppBinary)
	}()

	log.Println("Integration Test Setup: Building application...")
	godotenv.Load()
	buildCmd := exec.Command("go", "build", "-o", testAppBinary, ".")
	buildOutput, err := buildCmd.CombinedOutput()
	if err != nil {
		log.Printf("Failed to build application: %v\nOutput:\n%s", err, string(buildOutput))
		os.Exit(1)
	}
	log.Printf("Integration Test Setup: Build successful: %s", testAppBinary)

	// Drop any leftover state from a previous run
	if err := dropTestDatabase(); err != nil {
		log.Printf("Failed to drop stale test database: %v", err)
		os.Exit(1)
	}
	defer func() {
		if err := dropTestDatabase(); err != nil {
			log.Printf("Teardown: failed to drop test database: %v", err)
		}
	}()

	adminPasswordHash, err := auth.HashPassword(testAdminPassword)
	if err != nil {
		log.Printf("Failed to hash admin password: %v", err)
		os.Exit(1)
	}

	commonEnv := []string{
		testMongoURIEnvKey + "=" + testMongoURI(),
		"MONGO_DB_NAME=" + testMongoDbName,
		"JWT_SECRET=" + testJwtSecret,
		"GIN_MODE=release",
		"MOCK_SERVICES=true",
		"REDIS_ADDR=localhost:6379",
		"SMTP_FROM_ADDRESS=test@visionsync.test",
		"ADMIN_EMAIL=" + testAdminEmail,
		"ADMIN_PASSWORD_HASH=" + adminPasswordHash,
		"NOTIFY_EMAIL_ADDRESS=" + testNotifyAddress,
	}

	// --- Start API Process ---
	apiCmd := exec.Command(testAppBinary, "-m", "api")
	apiCmd.Env = append(append(os.Environ(), commonEnv...),
		"API_PORT="+testAppPort,
		"SERVICE_API_PORT="+testServiceApiPortApi,
		"RATE_LIMIT_SOFT_BUCKET_SIZE=100",
		"RATE_LIMIT_SOFT_REFILL_RATE=100",
		"RATE_LIMIT_HARD_BUCKET_SIZE=200",
		"RATE_LIMIT_HARD_REFILL_RATE=200",
	)
	apiCmd.Stderr = os.Stderr
	apiCmd.Stdout = os.Stdout

	log.Println("Integration Test Setup: Starting API process...")
	err = apiCmd.Start()
	if err != nil {
		log.Printf("Failed to start API process: %v", err)
		os.Exit(1)
	}
	log.Printf("Integration Test Setup: API process started (PID: %d)...", apiCmd.Process.Pid)

	// --- Start Background Worker Process ---
	bgCmd := exec.Command(testAppBinary, "-m", "bg")
	bgCmd.Env = append(append(os.Environ(), commonEnv...),
		"SERVICE_API_PORT="+testServiceApiPortBg,
	)
	bgCmd.Stderr = os.Stderr
	bgCmd.Stdout = os.Stdout

	log.Println("Integration Test Setup: Starting Background Worker process...")
	err = bgCmd.Start()
	if err != nil {
		_ = apiCmd.Process.Kill()
		log.Printf("Failed to start Background Worker process: %v", err)
		os.Exit(1)
	}
	log.Printf("Integration Test Setup: Background Worker process started (PID: %d)...", bgCmd.Process.Pid)

	// Defer shutdown logic for BOTH processes
	defer func() {
		log.Println("Integration Test Teardown: Shutting down application processes...")
		log.Println("Sending SIGTERM to Background Worker...")
		if processErr := bgCmd.Process.Signal(syscall.SIGTERM); processErr != nil {
			log.Printf("Integration Test Teardown: Failed to send SIGTERM to BG Worker: %v. Killing.", processErr)
			_ = bgCmd.Process.Kill()
		} else {
			_, waitErr := bgCmd.Process.Wait()
			if waitErr != nil && waitErr.Error() != "signal: killed" && waitErr.Error() != "exit status 1" {
				log.Printf("Integration Test Teardown: Error waiting for BG Worker exit: %v", waitErr)
			}
		}
		log.Println("Sending SIGTERM to API Process...")
		if processErr := apiCmd.Process.Signal(syscall.SIGTERM); processErr != nil {
			log.Printf("Integration Test Teardown: Failed to send SIGTERM to API Process: %v. Killing.", processErr)
			_ = apiCmd.Process.Kill()
		} else {
			_, waitErr := apiCmd.Process.Wait()
			if waitErr != nil && waitErr.Error() != "signal: killed" && waitErr.Error() != "exit status 1" {
				log.Printf("Integration Test Teardown: Error waiting for API Process exit: %v", waitErr)
			}
		}
		log.Println("Integration Test Teardown: Application processes stopped.")
	}()

	// Wait for the API application to be ready by polling the ping endpoint
	log.Printf("Integration Test Setup: Waiting for API application to become ready at %s...", pingEndpoint)
	startTime := time.Now()
	ready := false
	for time.Since(startTime) < startupTimeout {
		resp, err := http.Get(pingEndpoint)
		if err == nil && resp.StatusCode == http.StatusOK {
			bodyBytes, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			if string(bodyBytes) == "pong" {
				log.Println("Integration Test Setup: Application is ready!")
				ready = true
				break
			}
		}
		if resp != nil {
			resp.Body.Close()
		}
		time.Sleep(200 * time.Millisecond)
	}

	if !ready {
		log.Printf("Application failed to start within %v", startupTimeout)
		os.Exit(1)
	}

	// Allow the background worker to finish registering its handlers.
	log.Println("Integration Test Setup: Pausing briefly for background worker startup...")
	time.Sleep(2 * time.Second)

	log.Println("Integration Test Setup: Running tests...")
	exitCode := m.Run()
	log.Printf("Integration Test Teardown: Tests finished with exit code %d.", exitCode)
	// Let TestMain return normally so deferred cleanup runs.
}

func dropTestDatabase() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(testMongoURI()))
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB for cleanup: %w", err)
	}
	defer client.Disconnect(ctx)
	return client.Database(testMongoDbName).Drop(ctx)
}

// TestIntegration_Ping tests the /v1/ping endpoint of the running application.
func TestIntegration_Ping(t *testing.T) {
	resp, err := http.Get(pingEndpoint)
	require.NoError(t, err, "Request to %s should not fail", pingEndpoint)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	bodyBytes, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)
	assert.Equal(t, "pong", string(bodyBytes))
}

// TestIntegration_LeadCapture exercises the full lead pipeline: public form
// submission, Mongo persistence, and both queued emails delivered through
// the background worker into the Redis mock sender.
func TestIntegration_LeadCapture(t *testing.T) {
	visitorEmail := fmt.Sprintf("visitor_%d@example.com", time.Now().UnixNano())

	payload := map[string]interface{}{
		"source":  "custom-build",
		"name":    "Grace",
		"email":   visitorEmail,
		"company": "Hopper Industries",
		"message": "We need a rebuild of our customer portal.",
		"custom_build": map[string]interface{}{
			"project_type": "web-platform",
			"budget":       "over-250k",
			"timeline":     "3-6-months",
			"urgency":      "high",
		},
	}
	respBody, resp := postJSON(t, testAppURL+"/v1/leads", payload, "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode, "lead submission should succeed: %+v", respBody)

	// Urgency high forces urgent priority regardless of budget.
	assert.Equal(t, "urgent", respBody["priority"])
	assert.Equal(t, "new", respBody["status"])
	leadID, _ := respBody["id"].(string)
	require.NotEmpty(t, leadID)

	// Both emails flow through the bg worker into the Redis mock sender.
	notifData := getEmailFromServiceAPI(t, "lead_notification", testNotifyAddress)
	assert.Contains(t, notifData["subject"], "New lead")
	assert.Contains(t, notifData["body"], "Grace")

	ackData := getEmailFromServiceAPI(t, "lead_acknowledgement", visitorEmail)
	assert.Contains(t, ackData["subject"], "Thanks for reaching out")

	// The delivery handler flips the notified flag after the send.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(testMongoURI()))
	require.NoError(t, err)
	defer client.Disconnect(ctx)

	var leadDoc bson.M
	deadline := time.Now().Add(5 * time.Second)
	for {
		err = client.Database(testMongoDbName).Collection("leads").
			FindOne(ctx, bson.M{"email": visitorEmail}).Decode(&leadDoc)
		if err == nil && leadDoc["notified"] == true {
			break
		}
		if time.Now().After(deadline) {
			require.NoError(t, err, "lead should be persisted")
			assert.Equal(t, true, leadDoc["notified"], "lead should be marked notified after delivery")
			break
		}
		time.Sleep(250 * time.Millisecond)
	}
}

// TestIntegration_AdminLoginAndLeadAccess covers the admin auth flow and the
// protected lead endpoints.
func TestIntegration_AdminLoginAndLeadAccess(t *testing.T) {
	// Unauthenticated access is rejected.
	resp, err := http.Get(testAppURL + "/v1/admin/leads")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Wrong password is rejected.
	respBody, resp := postJSON(t, testAppURL+"/v1/admin/login", map[string]interface{}{
		"email":    testAdminEmail,
		"password": "wrong-password",
	}, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Correct credentials yield a token.
	respBody, resp = postJSON(t, testAppURL+"/v1/admin/login", map[string]interface{}{
		"email":    testAdminEmail,
		"password": testAdminPassword,
	}, "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, "admin login should succeed: %+v", respBody)
	token, _ := respBody["token"].(string)
	require.NotEmpty(t, token)

	// Token grants access to the admin lead listing.
	req, err := http.NewRequest("GET", testAppURL+"/v1/admin/leads", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	listResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer listResp.Body.Close()
	assert.Equal(t, http.StatusOK, listResp.StatusCode)

	// Stats endpoint responds with the aggregate shape.
	req, err = http.NewRequest("GET", testAppURL+"/v1/admin/leads/stats", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	statsResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer statsResp.Body.Close()
	assert.Equal(t, http.StatusOK, statsResp.StatusCode)

	statsBytes, err := io.ReadAll(statsResp.Body)
	require.NoError(t, err)
	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(statsBytes, &stats))
	assert.Contains(t, stats, "total")
	assert.Contains(t, stats, "by_status")
}

// TestIntegration_TrackingAndAnalytics records events and reads the admin
// aggregate back.
func TestIntegration_TrackingAndAnalytics(t *testing.T) {
	pages := []string{"/", "/services", "/services", "/portfolio"}
	for _, page := range pages {
		respBody, resp := postJSON(t, testAppURL+"/v1/track/page-view", map[string]interface{}{
			"page":      page,
			"client_id": "integration-client",
		}, "")
		resp.Body.Close()
		require.Equal(t, http.StatusAccepted, resp.StatusCode, "page view should be accepted: %+v", respBody)
	}

	_, resp := postJSON(t, testAppURL+"/v1/track/interaction", map[string]interface{}{
		"type":    "click",
		"element": "cta-quote",
		"page":    "/services",
	}, "")
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	// Unknown funnel stages are rejected.
	_, resp = postJSON(t, testAppURL+"/v1/track/conversion", map[string]interface{}{
		"stage": "nonsense",
		"page":  "/",
	}, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	token := adminToken(t)
	req, err := http.NewRequest("GET", testAppURL+"/v1/admin/analytics", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	analyticsResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer analyticsResp.Body.Close()
	require.Equal(t, http.StatusOK, analyticsResp.StatusCode)

	bodyBytes, err := io.ReadAll(analyticsResp.Body)
	require.NoError(t, err)
	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(bodyBytes, &data))
	totalViews, _ := data["total_page_views"].(float64)
	assert.GreaterOrEqual(t, totalViews, float64(len(pages)))
}

// TestIntegration_CurrencySelection stores and reads back a per-client
// display currency.
func TestIntegration_CurrencySelection(t *testing.T) {
	clientSession := fmt.Sprintf("it-session-%d", time.Now().UnixNano())

	// Default selection is the base currency.
	req, err := http.NewRequest("GET", testAppURL+"/v1/currencies/selection", nil)
	require.NoError(t, err)
	req.Header.Set("X-SPA", clientSession)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	bodyBytes, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(bodyBytes), `"EUR"`)

	// Store a selection.
	payloadBytes, _ := json.Marshal(map[string]string{"code": "USD"})
	req, err = http.NewRequest("PUT", testAppURL+"/v1/currencies/selection", bytes.NewReader(payloadBytes))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-SPA", clientSession)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Read it back.
	req, err = http.NewRequest("GET", testAppURL+"/v1/currencies/selection", nil)
	require.NoError(t, err)
	req.Header.Set("X-SPA", clientSession)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	bodyBytes, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(bodyBytes), `"USD"`)
}

// --- Helpers ---

func postJSON(t *testing.T, url string, payload interface{}, jwtToken string) (map[string]interface{}, *http.Response) {
	t.Helper()
	bodyBytes, err := json.Marshal(payload)
	require.NoError(t, err, "Failed to marshal request payload")

	req, err := http.NewRequest("POST", url, bytes.NewReader(bodyBytes))
	require.NoError(t, err, "Failed to create HTTP request")
	req.Header.Set("Content-Type", "application/json")
	if jwtToken != "" {
		req.Header.Set("Authorization", "Bearer "+jwtToken)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err, "Request to %s failed", url)

	respBodyBytes, readErr := io.ReadAll(resp.Body)
	require.NoError(t, readErr, "Failed to read response body")
	resp.Body = io.NopCloser(bytes.NewReader(respBodyBytes))

	var respBody map[string]interface{}
	if unmarshalErr := json.Unmarshal(respBodyBytes, &respBody); unmarshalErr != nil {
		respBody = map[string]interface{}{"raw_body": string(respBodyBytes)}
	}
	return respBody, resp
}

func adminToken(t *testing.T) string {
	t.Helper()
	respBody, resp := postJSON(t, testAppURL+"/v1/admin/login", map[string]interface{}{
		"email":    testAdminEmail,
		"password": testAdminPassword,
	}, "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, "admin login should succeed: %+v", respBody)
	token, _ := respBody["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func callServiceAPI(t *testing.T, method string, args []interface{}) (map[string]interface{}, *http.Response, error) {
	t.Helper()
	payload := map[string]interface{}{
		"method":    method,
		"arguments": args,
	}
	bodyBytes, err := json.Marshal(payload)
	require.NoError(t, err, "Failed to marshal service API payload")

	req, err := http.NewRequest("POST", testServiceApiURL+"/api", bytes.NewReader(bodyBytes))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)

	var respBodyBytes []byte
	if resp != nil && resp.Body != nil {
		respBodyBytes, _ = io.ReadAll(resp.Body)
		resp.Body.Close()
	}

	if err != nil {
		return nil, resp, err
	}

	var respBody map[string]interface{}
	if unmarshalErr := json.Unmarshal(respBodyBytes, &respBody); unmarshalErr != nil {
		respBody = map[string]interface{}{"raw_body": string(respBodyBytes)}
	}
	return respBody, resp, nil
}

// getEmailFromServiceAPI polls the Service API until the mock email of the
// given kind shows up for the address.
func getEmailFromServiceAPI(t *testing.T, kind string, emailAddr string) map[string]interface{} {
	t.Helper()
	var emailData map[string]interface{}
	found := false
	pollTimeout := time.After(10 * time.Second)
	pollTicker := time.NewTicker(500 * time.Millisecond)
	defer pollTicker.Stop()

	log.Printf("Polling Service API for email: Kind=%s, Email=%s", kind, emailAddr)

	for !found {
		select {
		case <-pollTimeout:
			t.Fatalf("Timeout waiting for email via Service API (Kind: %s, Email: %s)", kind, emailAddr)
		case <-pollTicker.C:
			respBody, resp, err := callServiceAPI(t, "getTestEmail", []interface{}{kind, emailAddr})
			if err != nil {
				log.Printf("Error calling getTestEmail Service API: %v", err)
				continue
			}
			if resp.StatusCode == http.StatusOK {
				success, _ := respBody["success"].(bool)
				if success {
					actualEmailPayload, ok := respBody["data"].(map[string]interface{})
					if ok {
						log.Printf("Found email via Service API: subject=%q", actualEmailPayload["subject"])
						emailData = actualEmailPayload
						found = true
					} else {
						log.Printf("Service API returned success but 'data' field was not a map: %+v", respBody["data"])
					}
				} else {
					log.Printf("getTestEmail unsuccessful (Code: %d): %s. Polling...", resp.StatusCode, respBody["error"])
				}
			} else if resp.StatusCode != http.StatusNotFound {
				log.Printf("getTestEmail returned status %d. Polling...", resp.StatusCode)
			}
		}
	}
	require.True(t, found, "Failed to find email via Service API")
	require.True(t, strings.Contains(fmt.Sprint(emailData["to"]), emailAddr), "email recipient mismatch")
	return emailData
}
