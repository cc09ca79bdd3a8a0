package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Venkatesh-Arikatla/Network-Intrusion-Detection-System/internal/config"
	"github.com/Venkatesh-Arikatla/Network-Intrusion-Detection-System/internal/engine"
	"github.com/Venkatesh-Arikatla/Network-Intrusion-Detection-System/internal/oracle"
	"github.com/Venkatesh-Arikatla/Network-Intrusion-Detection-System/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg
}

func testServer(t *testing.T, fake *oracle.Fake) *httptest.Server {
	t.Helper()
	srv := New(testConfig(t), engine.New(fake), store.NewNoop(), nil, "disabled")
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func normalRecord() map[string]any {
	return map[string]any{
		"duration": 0.1, "src_bytes": 100, "dst_bytes": 200,
		"count": 2, "srv_count": 1,
		"serror_rate": 0.001, "srv_serror_rate": 0.001,
		"dst_host_count": 10, "dst_host_srv_count": 5,
		"dst_host_serror_rate": 0.002, "dst_host_srv_serror_rate": 0.002,
	}
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestPredictNormalTraffic(t *testing.T) {
	ts := testServer(t, oracle.NewFake(0.97, 0.03, nil))

	resp := postJSON(t, ts.URL+"/api/predict", normalRecord())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)

	if body["success"] != true {
		t.Fatalf("success = %v, want true", body["success"])
	}
	if got := body["prediction"].(float64); got != 0 {
		t.Errorf("prediction = %v, want 0", got)
	}
	if got := body["prediction_label"]; got != "Normal" {
		t.Errorf("prediction_label = %v, want Normal", got)
	}
	if got := body["detection_method"]; got != engine.DetectionMLModel {
		t.Errorf("detection_method = %v, want %s", got, engine.DetectionMLModel)
	}
	if body["database_saved"] != false {
		t.Errorf("database_saved = %v, want false with disabled store", body["database_saved"])
	}
}

func TestPredictManualRuleAttack(t *testing.T) {
	fake := oracle.NewFake(0.40, 0.60, nil)
	ts := testServer(t, fake)

	rec := normalRecord()
	rec["count"] = 600
	rec["serror_rate"] = 1.0
	rec["srv_serror_rate"] = 1.0

	body := decodeBody(t, postJSON(t, ts.URL+"/api/predict", rec))

	if got := body["prediction"].(float64); got != 1 {
		t.Fatalf("prediction = %v, want 1", got)
	}
	if got := body["detection_method"]; got != engine.DetectionManualRules {
		t.Errorf("detection_method = %v, want %s", got, engine.DetectionManualRules)
	}
	if got := body["confidence"].(float64); got != 99.9 {
		t.Errorf("confidence = %v, want 99.9", got)
	}
	if fake.Calls() != 1 {
		t.Errorf("oracle calls = %d, want 1 even on the rule path", fake.Calls())
	}
}

func TestPredictMissingFeatures(t *testing.T) {
	ts := testServer(t, oracle.NewFake(0.97, 0.03, nil))

	rec := normalRecord()
	delete(rec, "src_bytes")
	delete(rec, "serror_rate")

	resp := postJSON(t, ts.URL+"/api/predict", rec)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	body := decodeBody(t, resp)

	if body["success"] != false {
		t.Errorf("success = %v, want false", body["success"])
	}
	errMsg, _ := body["error"].(string)
	if !strings.Contains(errMsg, "src_bytes") || !strings.Contains(errMsg, "serror_rate") {
		t.Errorf("error %q should name the missing features", errMsg)
	}
	required, ok := body["required_features"].([]any)
	if !ok || len(required) != 11 {
		t.Errorf("required_features = %v, want all 11", body["required_features"])
	}
}

func TestPredictInvalidJSON(t *testing.T) {
	ts := testServer(t, oracle.NewFake(0.97, 0.03, nil))

	resp, err := http.Post(ts.URL+"/api/predict", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestPredictMethodNotAllowed(t *testing.T) {
	ts := testServer(t, oracle.NewFake(0.97, 0.03, nil))

	resp, err := http.Get(ts.URL + "/api/predict")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestPredictScoringFailure(t *testing.T) {
	fake := oracle.NewFake(0, 0, nil)
	fake.Err = errSentinel{}
	ts := testServer(t, fake)

	resp := postJSON(t, ts.URL+"/api/predict", normalRecord())
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	resp.Body.Close()
}

type errSentinel struct{}

func (errSentinel) Error() string { return "model backend down" }

const batchHeader = "duration,src_bytes,dst_bytes,count,srv_count,serror_rate,srv_serror_rate,dst_host_count,dst_host_srv_count,dst_host_serror_rate,dst_host_srv_serror_rate"

func postCSV(t *testing.T, url, filename, content string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	mw.Close()

	resp, err := http.Post(url, mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func TestBatchPredict(t *testing.T) {
	ts := testServer(t, oracle.NewFake(0.97, 0.03, nil))

	csv := batchHeader + "\n" +
		"0.1,100,200,2,1,0.001,0.001,10,5,0.002,0.002\n" +
		"0,0,0,600,500,1.0,1.0,255,255,1.0,1.0\n"

	resp := postCSV(t, ts.URL+"/api/batch-predict", "traffic.csv", csv)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)

	preds, ok := body["predictions"].([]any)
	if !ok || len(preds) != 2 {
		t.Fatalf("predictions = %v, want 2 rows", body["predictions"])
	}
	summary := body["summary"].(map[string]any)
	if got := summary["total_records"].(float64); got != 2 {
		t.Errorf("total_records = %v, want 2", got)
	}
	if got := summary["attack_count"].(float64); got != 1 {
		t.Errorf("attack_count = %v, want 1", got)
	}
	dbStatus := body["database_status"].(map[string]any)
	if dbStatus["connected"] != false {
		t.Errorf("database_status.connected = %v, want false", dbStatus["connected"])
	}
}

func TestBatchPredictMalformedRowIsolated(t *testing.T) {
	ts := testServer(t, oracle.NewFake(0.97, 0.03, nil))

	csv := batchHeader + "\n" +
		"0.1,100,200,2,1,0.001,0.001,10,5,0.002,0.002\n" +
		"garbage,100,200,2,1,0.001,0.001,10,5,0.002,0.002\n" +
		"0.2,150,250,3,2,0.001,0.001,12,6,0.002,0.002\n"

	body := decodeBody(t, postCSV(t, ts.URL+"/api/batch-predict", "mixed.csv", csv))

	preds := body["predictions"].([]any)
	if len(preds) != 3 {
		t.Fatalf("predictions = %d rows, want 3", len(preds))
	}
	bad := preds[1].(map[string]any)
	if bad["prediction_label"] != "ERROR" {
		t.Errorf("row 2 label = %v, want ERROR", bad["prediction_label"])
	}
	if bad["risk_level"] != "UNKNOWN" {
		t.Errorf("row 2 risk = %v, want UNKNOWN", bad["risk_level"])
	}
	summary := body["summary"].(map[string]any)
	if got := summary["error_count"].(float64); got != 1 {
		t.Errorf("error_count = %v, want 1", got)
	}
	if got := summary["normal_count"].(float64); got != 2 {
		t.Errorf("normal_count = %v, want 2", got)
	}
}

func TestBatchPredictRejectsNonCSV(t *testing.T) {
	ts := testServer(t, oracle.NewFake(0.97, 0.03, nil))

	resp := postCSV(t, ts.URL+"/api/batch-predict", "traffic.txt", "whatever")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

// A record classified via batch upload must match the single-record path
// exactly for the same input.
func TestBatchMatchesSinglePrediction(t *testing.T) {
	ts := testServer(t, oracle.NewFake(0.40, 0.60, nil))

	rec := map[string]any{
		"duration": 0, "src_bytes": 0, "dst_bytes": 0,
		"count": 600, "srv_count": 500,
		"serror_rate": 1.0, "srv_serror_rate": 1.0,
		"dst_host_count": 255, "dst_host_srv_count": 255,
		"dst_host_serror_rate": 1.0, "dst_host_srv_serror_rate": 1.0,
	}
	single := decodeBody(t, postJSON(t, ts.URL+"/api/predict", rec))

	csv := batchHeader + "\n0,0,0,600,500,1.0,1.0,255,255,1.0,1.0\n"
	batchBody := decodeBody(t, postCSV(t, ts.URL+"/api/batch-predict", "one.csv", csv))
	row := batchBody["predictions"].([]any)[0].(map[string]any)

	for _, field := range []string{"prediction", "prediction_label", "risk_level", "confidence", "detection_method"} {
		if single[field] != row[field] {
			t.Errorf("%s: single=%v batch=%v", field, single[field], row[field])
		}
	}
}

func TestStatsEndpoint(t *testing.T) {
	ts := testServer(t, oracle.NewFake(0.97, 0.03, nil))

	resp, err := http.Get(ts.URL + "/api/stats")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["database"] != "disabled" {
		t.Errorf("database = %v, want disabled", body["database"])
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := testServer(t, oracle.NewFake(0.97, 0.03, nil))

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body := decodeBody(t, resp)
	if body["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", body["status"])
	}
	if body["model"] != "loaded" {
		t.Errorf("model = %v, want loaded", body["model"])
	}
}

func TestTestEndpoint(t *testing.T) {
	ts := testServer(t, oracle.NewFake(0.97, 0.03, nil))

	resp, err := http.Get(ts.URL + "/api/test")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body := decodeBody(t, resp)
	tests, ok := body["tests"].([]any)
	if !ok || len(tests) != 2 {
		t.Fatalf("tests = %v, want 2 samples", body["tests"])
	}
	first := tests[0].(map[string]any)
	if first["name"] != "Normal Web Traffic" {
		t.Errorf("first sample name = %v", first["name"])
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := testServer(t, oracle.NewFake(0.97, 0.03, nil))

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/predict", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
	resp.Body.Close()
}
