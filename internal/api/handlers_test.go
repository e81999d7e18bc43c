package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	dto "github.com/prometheus/client_model/go"

	"slotting/internal/config"
	"slotting/internal/logging"
	"slotting/internal/metrics"
	"slotting/internal/model"
	"slotting/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Config{Port: "0", SolveTimeout: 5 * time.Second}
	return NewServer(cfg, logging.Nop(), store.NewMemory(), NewBroker())
}

func sampleDoc() model.InstanceDoc {
	return model.InstanceDoc{
		Adjacency: [][]int{
			{0, 1, 2, 3},
			{1, 0, 1, 2},
			{2, 1, 0, 1},
			{3, 2, 1, 0},
		},
		RackCapacity:   []int{2, 2, 2, 2},
		ProductCircuit: []int{1, 0, 1, 0, 2},
		AislesRacks:    [][]int{{0, 1}, {2, 3}},
		Orders:         [][]int{{0, 1}, {4}},
		Metadata:       map[string]float64{"num_products": 5, "aeration_rate": 0},
	}
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func createInstance(t *testing.T, h http.Handler) string {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/v1/instances", model.CreateInstanceRequest{Name: "demo", Instance: sampleDoc()})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create instance: got %d %s", rr.Code, rr.Body)
	}
	var out model.InstanceOut
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.ID == "" || out.Summary.NumRacks != 4 || out.Summary.TotalCapacity != 8 || out.Summary.NumProducts != 5 {
		t.Fatalf("unexpected instance: %+v", out)
	}
	return out.ID
}

func TestHealthReady(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != 200 {
		t.Fatalf("health: got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != 200 {
		t.Fatalf("ready: got %d", rr.Code)
	}
}

func TestInstanceLifecycle(t *testing.T) {
	h := newTestServer(t).Routes()
	id := createInstance(t, h)

	rr := do(t, h, http.MethodGet, "/v1/instances/"+id, nil)
	if rr.Code != 200 {
		t.Fatalf("get instance: %d", rr.Code)
	}
	var got model.InstanceOut
	_ = json.Unmarshal(rr.Body.Bytes(), &got)
	if got.Instance == nil {
		t.Fatal("instance document missing")
	}
	if diff := cmp.Diff(sampleDoc(), *got.Instance); diff != "" {
		t.Fatalf("document mismatch (-want +got):\n%s", diff)
	}

	rr = do(t, h, http.MethodGet, "/v1/instances?limit=10", nil)
	var list struct {
		Items      []model.InstanceOut `json:"items"`
		NextCursor string              `json:"nextCursor"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &list)
	if rr.Code != 200 || len(list.Items) != 1 || list.Items[0].Instance != nil {
		t.Fatalf("list instances: %d %s", rr.Code, rr.Body)
	}

	rr = do(t, h, http.MethodDelete, "/v1/instances/"+id, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rr.Code)
	}
	rr = do(t, h, http.MethodGet, "/v1/instances/"+id, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete: %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("problem content type = %q", ct)
	}
}

func TestCreateInstanceErrors(t *testing.T) {
	h := newTestServer(t).Routes()
	bad := sampleDoc()
	bad.Adjacency = [][]int{{0, 1, 2}, {1, 0, 1}}
	tests := []struct {
		name string
		body any
		want int
	}{
		{"non-square adjacency", model.CreateInstanceRequest{Instance: bad}, http.StatusUnprocessableEntity},
		{"missing adjacency", model.CreateInstanceRequest{Instance: model.InstanceDoc{RackCapacity: []int{1}}}, http.StatusBadRequest},
		{"unknown field", map[string]any{"bogus": 1}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/v1/instances", tt.body)
			if rr.Code != tt.want {
				t.Fatalf("got %d, want %d: %s", rr.Code, tt.want, rr.Body)
			}
			var p Problem
			if err := json.Unmarshal(rr.Body.Bytes(), &p); err != nil || p.Status != tt.want {
				t.Fatalf("bad problem body: %s", rr.Body)
			}
		})
	}
}

func TestSummaryEndpoint(t *testing.T) {
	h := newTestServer(t).Routes()
	id := createInstance(t, h)
	rr := do(t, h, http.MethodGet, "/v1/instances/"+id+"/summary", nil)
	if rr.Code != 200 {
		t.Fatalf("summary: %d", rr.Code)
	}
	var out model.SummaryOut
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	want := "WarehouseInstance(num_racks=4, capacity=8, num_products=5, num_orders=2)\n" +
		"Metadata:\n  - aeration_rate: 0.0\n  - num_products: 5.0\n"
	if out.Report != want {
		t.Fatalf("report = %q, want %q", out.Report, want)
	}
}

func TestSolveCheckAndSolutions(t *testing.T) {
	s := newTestServer(t)
	h := s.Routes()
	id := createInstance(t, h)

	rr := do(t, h, http.MethodPost, "/v1/instances/"+id+"/solve", model.SolveRequest{Algorithm: "naive"})
	if rr.Code != 200 {
		t.Fatalf("solve: %d %s", rr.Code, rr.Body)
	}
	var solved struct {
		Solution model.SolutionRecord `json:"solution"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &solved)
	if solved.Solution.ID == "" || !solved.Solution.Feasible || solved.Solution.Cost != 6 {
		t.Fatalf("unexpected solution: %+v", solved.Solution)
	}
	if diff := cmp.Diff([]int{1, 0, 1, 0, 2}, solved.Solution.Positions); diff != "" {
		t.Fatalf("positions (-want +got):\n%s", diff)
	}

	// empty body selects the default algorithm; persist=false skips storage
	rr = do(t, h, http.MethodPost, "/v1/instances/"+id+"/solve", nil)
	if rr.Code != 200 {
		t.Fatalf("solve default: %d %s", rr.Code, rr.Body)
	}
	no := false
	rr = do(t, h, http.MethodPost, "/v1/instances/"+id+"/solve", model.SolveRequest{Persist: &no})
	if rr.Code != 200 {
		t.Fatalf("solve no persist: %d", rr.Code)
	}

	rr = do(t, h, http.MethodGet, "/v1/instances/"+id+"/solutions", nil)
	var list struct {
		Items []model.SolutionRecord `json:"items"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &list)
	if rr.Code != 200 || len(list.Items) != 2 {
		t.Fatalf("solutions: %d %s", rr.Code, rr.Body)
	}
	rr = do(t, h, http.MethodGet, "/v1/instances/"+id+"/solutions/"+solved.Solution.ID, nil)
	if rr.Code != 200 {
		t.Fatalf("get solution: %d", rr.Code)
	}

	rr = do(t, h, http.MethodPost, "/v1/instances/"+id+"/check", model.CheckRequest{Positions: []int{0, 0, 0, 1, 2}})
	var chk model.CheckOut
	_ = json.Unmarshal(rr.Body.Bytes(), &chk)
	if rr.Code != 200 || chk.Feasible || len(chk.Violations) == 0 {
		t.Fatalf("check infeasible: %d %+v", rr.Code, chk)
	}
	if !strings.Contains(strings.Join(chk.Violations, "\n"), "rack 0 holds 3 products for capacity 2") {
		t.Fatalf("violations = %v", chk.Violations)
	}
	rr = do(t, h, http.MethodPost, "/v1/instances/"+id+"/check", model.CheckRequest{Positions: []int{1, 0, 1, 0, 2}})
	_ = json.Unmarshal(rr.Body.Bytes(), &chk)
	if !chk.Feasible || chk.Cost != 6 {
		t.Fatalf("check feasible: %+v", chk)
	}

	rr = do(t, h, http.MethodGet, "/v1/admin/solver-metrics?instanceId="+id, nil)
	if rr.Code != 200 || !strings.Contains(rr.Body.String(), `"naive"`) {
		t.Fatalf("solver metrics: %d %s", rr.Code, rr.Body)
	}
}

func TestSolveErrors(t *testing.T) {
	h := newTestServer(t).Routes()
	id := createInstance(t, h)
	if rr := do(t, h, http.MethodPost, "/v1/instances/"+id+"/solve", model.SolveRequest{Algorithm: "mip"}); rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown algorithm: %d", rr.Code)
	}
	if rr := do(t, h, http.MethodPost, "/v1/instances/missing/solve", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("missing instance: %d", rr.Code)
	}

	doc := sampleDoc()
	doc.Metadata["aeration_rate"] = 50
	rr := do(t, h, http.MethodPost, "/v1/instances", model.CreateInstanceRequest{Instance: doc})
	var out model.InstanceOut
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	if rr := do(t, h, http.MethodPost, "/v1/instances/"+out.ID+"/solve", nil); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("insufficient capacity: %d %s", rr.Code, rr.Body)
	}
	if rr := do(t, h, http.MethodGet, "/v1/instances/"+id+"/solve", nil); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET solve: %d", rr.Code)
	}
}

func createDoc(t *testing.T, h http.Handler, doc model.InstanceDoc) string {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/v1/instances", model.CreateInstanceRequest{Instance: doc})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create instance: got %d %s", rr.Code, rr.Body)
	}
	var out model.InstanceOut
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	return out.ID
}

func TestRacksOutsideGraph(t *testing.T) {
	h := newTestServer(t).Routes()
	// Three racks but only two graph nodes: rack 2 cannot be priced.
	id := createDoc(t, h, model.InstanceDoc{
		Adjacency:      [][]int{{0, 1}, {1, 0}},
		RackCapacity:   []int{1, 1, 1},
		ProductCircuit: []int{0, 1, 2},
		AislesRacks:    [][]int{{0, 1, 2}},
		Orders:         [][]int{{0, 1, 2}},
	})

	rr := do(t, h, http.MethodPost, "/v1/instances/"+id+"/check", model.CheckRequest{Positions: []int{0, 1, 2}})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("check: got %d %s", rr.Code, rr.Body)
	}
	if !strings.Contains(rr.Body.String(), "rack 2 is not a graph node") {
		t.Fatalf("check detail: %s", rr.Body)
	}
	if rr := do(t, h, http.MethodPost, "/v1/instances/"+id+"/solve", nil); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("solve: got %d %s", rr.Code, rr.Body)
	}
}

func TestSolveRejectsOverlappingAisles(t *testing.T) {
	h := newTestServer(t).Routes()
	id := createDoc(t, h, model.InstanceDoc{
		Adjacency:      [][]int{{0, 1}, {1, 0}},
		RackCapacity:   []int{1, 1},
		ProductCircuit: []int{0, 1},
		AislesRacks:    [][]int{{0}, {0}},
		Orders:         [][]int{{0, 1}},
	})
	rr := do(t, h, http.MethodPost, "/v1/instances/"+id+"/solve", nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("solve: got %d %s", rr.Code, rr.Body)
	}
	if !strings.Contains(rr.Body.String(), "rack 0 appears in aisles 0 and 1") {
		t.Fatalf("solve detail: %s", rr.Body)
	}
}

func TestInstanceGaugeFollowsStore(t *testing.T) {
	gauge := func() float64 {
		t.Helper()
		var m dto.Metric
		if err := metrics.Instances.Write(&m); err != nil {
			t.Fatal(err)
		}
		return m.GetGauge().GetValue()
	}
	st := store.NewMemory()
	inst, err := model.FromDoc(sampleDoc())
	if err != nil {
		t.Fatal(err)
	}
	// Written before this server existed, as after a restart.
	if _, err := st.CreateInstance(context.Background(), "old", inst); err != nil {
		t.Fatal(err)
	}
	s := NewServer(config.Config{Port: "0"}, logging.Nop(), st, NewBroker())
	s.syncInstanceGauge(context.Background())
	if got := gauge(); got != 1 {
		t.Fatalf("gauge after start = %v, want 1", got)
	}

	h := s.Routes()
	id := createInstance(t, h)
	if got := gauge(); got != 2 {
		t.Fatalf("gauge after create = %v, want 2", got)
	}
	if rr := do(t, h, http.MethodDelete, "/v1/instances/"+id, nil); rr.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rr.Code)
	}
	if rr := do(t, h, http.MethodDelete, "/v1/instances/"+id, nil); rr.Code != http.StatusNotFound {
		t.Fatalf("second delete: %d", rr.Code)
	}
	if got := gauge(); got != 1 {
		t.Fatalf("gauge after delete = %v, want 1", got)
	}
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t)
	s.Config.RateRPS = 0.001
	s.Config.RateBurst = 1
	h := s.Routes()
	if rr := do(t, h, http.MethodGet, "/v1/instances", nil); rr.Code != 200 {
		t.Fatalf("first request: %d", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/v1/instances", nil); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: %d", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/healthz", nil); rr.Code != 200 {
		t.Fatalf("health is never limited: %d", rr.Code)
	}
}

func TestMetricsAndDebug(t *testing.T) {
	h := newTestServer(t).Routes()
	_ = do(t, h, http.MethodGet, "/healthz", nil)
	rr := do(t, h, http.MethodGet, "/metrics", nil)
	if rr.Code != 200 || !strings.Contains(rr.Body.String(), "http_requests_total") {
		t.Fatalf("metrics: %d", rr.Code)
	}
	rr = do(t, h, http.MethodGet, "/debug/info", nil)
	if rr.Code != 200 || !strings.Contains(rr.Body.String(), `"build"`) {
		t.Fatalf("debug: %d %s", rr.Code, rr.Body)
	}
}

func TestOpenAPI(t *testing.T) {
	h := newTestServer(t).Routes()
	rr := do(t, h, http.MethodGet, "/openapi.json", nil)
	var doc map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &doc); err != nil || rr.Code != 200 {
		t.Fatalf("openapi.json: %d %v", rr.Code, err)
	}
	paths, _ := doc["paths"].(map[string]any)
	if _, ok := paths["/v1/instances/{id}/solve"]; !ok {
		t.Fatalf("solve path missing from %v", paths)
	}
	if rr := do(t, h, http.MethodGet, "/openapi.yaml", nil); rr.Code != 200 || !strings.HasPrefix(rr.Body.String(), "openapi:") {
		t.Fatalf("openapi.yaml: %d", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/docs", nil); rr.Code != 200 {
		t.Fatalf("docs: %d", rr.Code)
	}
}

func TestRouteLabel(t *testing.T) {
	for in, want := range map[string]string{
		"/healthz":                       "/healthz",
		"/v1/instances":                  "/v1/instances",
		"/v1/instances/abc":              "/v1/instances/{id}",
		"/v1/instances/abc/solve":        "/v1/instances/{id}/solve",
		"/v1/instances/abc/solutions/x1": "/v1/instances/{id}/solutions/{solutionId}",
		"/v1/instances/abc/events/ws":    "/v1/instances/{id}/events/ws",
		"/wp-login.php":                  "other",
		"/v1/instances/abc/x/y/z":        "other",
		"/v1/instances/":                 "other",
	} {
		if got := routeLabel(in); got != want {
			t.Errorf("routeLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEventStreamSSE(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()
	id := createInstance(t, s.Routes())

	resp, err := http.Get(ts.URL + "/v1/instances/" + id + "/events/stream")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
	rd := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		var name, data string
		for {
			line, err := rd.ReadString('\n')
			if err != nil {
				t.Fatalf("read stream: %v", err)
			}
			line = strings.TrimRight(line, "\n")
			switch {
			case line == "":
				return name, data
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			}
		}
	}
	if name, _ := readEvent(); name != "heartbeat" {
		t.Fatalf("first event = %q", name)
	}
	s.publish(id, "solution.created", map[string]any{"cost": 6})
	name, data := readEvent()
	if name != "solution.created" || !strings.Contains(data, id) {
		t.Fatalf("event = %q %s", name, data)
	}
}

func TestEventStreamWebSocket(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()
	id := createInstance(t, s.Routes())

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/instances/" + id + "/events/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg wsMessage
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != "connection_ack" {
		t.Fatalf("ack = %+v, %v", msg, err)
	}
	s.publish(id, "solution.created", nil)
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != "next" {
		t.Fatalf("next = %+v, %v", msg, err)
	}
	var evt model.InstanceEvent
	if err := json.Unmarshal(msg.Payload, &evt); err != nil || evt.Type != "solution.created" || evt.InstanceID != id {
		t.Fatalf("event = %+v, %v", evt, err)
	}
	if err := conn.WriteJSON(wsMessage{Type: "ping"}); err != nil {
		t.Fatal(err)
	}
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != "pong" {
		t.Fatalf("pong = %+v, %v", msg, err)
	}

	missing := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/instances/nope/events/ws"
	if _, resp, err := websocket.DefaultDialer.Dial(missing, nil); err == nil || resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("dial missing instance: %v", err)
	}
}
