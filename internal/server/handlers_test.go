package server

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aigentive/openai-image-mcp/internal/history"
	"github.com/aigentive/openai-image-mcp/internal/organizer"
	"github.com/aigentive/openai-image-mcp/internal/provider"
	"github.com/aigentive/openai-image-mcp/internal/session"
	"github.com/aigentive/openai-image-mcp/pkg/models"
)

type fakeClient struct {
	generateCalls int
	editCalls     int
	lastRequest   *models.Request
	lastEdit      *models.EditRequest
	generateErr   error
	editErr       error
}

func (f *fakeClient) Generate(_ context.Context, req *models.Request) (*models.Response, error) {
	f.generateCalls++
	f.lastRequest = req
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	count := req.Count
	if count < 1 {
		count = 1
	}
	resp := &models.Response{RevisedPrompt: "revised: " + req.Prompt}
	for i := 0; i < count; i++ {
		resp.Images = append(resp.Images, models.GeneratedImage{
			Data:  []byte("fake-image-bytes"),
			Index: i,
		})
	}
	return resp, nil
}

func (f *fakeClient) Edit(_ context.Context, req *models.EditRequest) (*models.Response, error) {
	f.editCalls++
	f.lastEdit = req
	if f.editErr != nil {
		return nil, f.editErr
	}
	return &models.Response{
		Images: []models.GeneratedImage{{Data: []byte("fake-edited-bytes")}},
	}, nil
}

func (f *fakeClient) Download(_ context.Context, _ string) ([]byte, error) {
	return []byte("fake-downloaded-bytes"), nil
}

func newTestServer(t *testing.T, client provider.Client) (*Server, string) {
	t.Helper()

	root := t.TempDir()
	org, err := organizer.New(root)
	if err != nil {
		t.Fatalf("organizer.New: %v", err)
	}

	srv := New(Options{
		Store:     session.NewStore(0, 0),
		Client:    client,
		Organizer: org,
	})
	return srv, root
}

// callTool drives a full tools/call round trip and decodes the JSON
// payload out of the MCP content wrapper.
func callTool(t *testing.T, srv *Server, name string, args map[string]any) map[string]any {
	t.Helper()

	rawArgs, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("marshal args: %v", err)
	}
	params, err := json.Marshal(map[string]any{
		"name":      name,
		"arguments": json.RawMessage(rawArgs),
	})
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}

	resp := srv.handleRequest(&Request{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: params})
	if resp == nil {
		t.Fatal("expected a response")
	}
	if resp.Error != nil {
		t.Fatalf("unexpected RPC error: %+v", resp.Error)
	}

	result, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatalf("unexpected result type %T", resp.Result)
	}
	content := result["content"].([]map[string]any)
	text := content[0]["text"].(string)

	var payload map[string]any
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		t.Fatalf("decode payload: %v\npayload: %s", err, text)
	}
	return payload
}

func assertFailure(t *testing.T, payload map[string]any, wantKind string) {
	t.Helper()
	if payload["success"] != false {
		t.Fatalf("expected failure, got %v", payload)
	}
	if payload["error_kind"] != wantKind {
		t.Errorf("error_kind = %v, want %q (error: %v)", payload["error_kind"], wantKind, payload["error"])
	}
}

func createSession(t *testing.T, srv *Server, name string) string {
	t.Helper()
	payload := callTool(t, srv, "create_image_session", map[string]any{
		"name":        name,
		"description": "test session",
	})
	if payload["success"] != true {
		t.Fatalf("create_image_session failed: %v", payload)
	}
	return payload["session_id"].(string)
}

func TestInitializeAndToolsList(t *testing.T) {
	srv, _ := newTestServer(t, &fakeClient{})

	resp := srv.handleRequest(&Request{JSONRPC: "2.0", ID: 1, Method: "initialize"})
	result := resp.Result.(map[string]any)
	info := result["serverInfo"].(map[string]any)
	if info["name"] != serverName {
		t.Errorf("serverInfo.name = %v, want %q", info["name"], serverName)
	}

	resp = srv.handleRequest(&Request{JSONRPC: "2.0", ID: 2, Method: "tools/list"})
	tools := resp.Result.(map[string]any)["tools"].([]Tool)
	if len(tools) != 13 {
		t.Errorf("tools/list returned %d tools, want 13", len(tools))
	}
	seen := make(map[string]bool)
	for _, tool := range tools {
		if tool.InputSchema == nil {
			t.Errorf("tool %s has no input schema", tool.Name)
		}
		seen[tool.Name] = true
	}
	for _, name := range []string{"generate_image", "generate_in_session", "edit_image", "batch_generate", "get_server_stats"} {
		if !seen[name] {
			t.Errorf("tools/list missing %s", name)
		}
	}
}

func TestUnknownMethod(t *testing.T) {
	srv, _ := newTestServer(t, &fakeClient{})

	resp := srv.handleRequest(&Request{JSONRPC: "2.0", ID: 1, Method: "bogus/method"})
	if resp.Error == nil || resp.Error.Code != -32601 {
		t.Fatalf("expected -32601, got %+v", resp.Error)
	}
}

func TestGenerateImageSavesArtifactAndSidecar(t *testing.T) {
	client := &fakeClient{}
	srv, root := newTestServer(t, client)

	payload := callTool(t, srv, "generate_image", map[string]any{
		"prompt": "a lighthouse at dusk",
	})

	if payload["success"] != true {
		t.Fatalf("generate_image failed: %v", payload)
	}
	if client.generateCalls != 1 {
		t.Errorf("generateCalls = %d, want 1", client.generateCalls)
	}

	images := payload["images"].([]any)
	if len(images) != 1 {
		t.Fatalf("got %d images, want 1", len(images))
	}
	img := images[0].(map[string]any)
	path := img["file_path"].(string)

	if !strings.HasPrefix(path, filepath.Join(root, "generated_images", "general")) {
		t.Errorf("artifact outside general category: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading artifact: %v", err)
	}
	if string(data) != "fake-image-bytes" {
		t.Errorf("artifact bytes mismatch")
	}

	rec, err := organizer.ReadMetadata(img["metadata_path"].(string))
	if err != nil {
		t.Fatalf("reading sidecar: %v", err)
	}
	if rec.Prompt != "a lighthouse at dusk" {
		t.Errorf("sidecar prompt = %q", rec.Prompt)
	}
	if rec.FilePath != path {
		t.Errorf("sidecar file_path = %q, want %q", rec.FilePath, path)
	}
}

func TestGenerateImageMissingPrompt(t *testing.T) {
	client := &fakeClient{}
	srv, _ := newTestServer(t, client)

	payload := callTool(t, srv, "generate_image", map[string]any{})
	assertFailure(t, payload, "invalid_params")
	if client.generateCalls != 0 {
		t.Errorf("upstream called despite invalid params")
	}
}

func TestGenerateImageUpstreamErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind string
	}{
		{"terminal rejection", provider.ErrRequestRejected, "request_rejected"},
		{"retry budget exhausted", provider.ErrUpstreamUnavailable, "upstream_unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{generateErr: tt.err}
			srv, root := newTestServer(t, client)

			payload := callTool(t, srv, "generate_image", map[string]any{"prompt": "anything"})
			assertFailure(t, payload, tt.wantKind)

			// A failed call must leave no artifacts behind.
			entries, _ := filepath.Glob(filepath.Join(root, "generated_images", "general", "*"))
			if len(entries) != 0 {
				t.Errorf("artifacts written on failure: %v", entries)
			}
		})
	}
}

func TestGenerateInSessionUnknownSession(t *testing.T) {
	client := &fakeClient{}
	srv, root := newTestServer(t, client)

	payload := callTool(t, srv, "generate_in_session", map[string]any{
		"session_id": "no-such-session",
		"prompt":     "make it blue",
	})
	assertFailure(t, payload, "session_not_found")

	if client.generateCalls != 0 {
		t.Errorf("upstream called for a dead session")
	}
	entries, _ := filepath.Glob(filepath.Join(root, "generated_images", "sessions", "*"))
	if len(entries) != 0 {
		t.Errorf("artifacts written for a dead session: %v", entries)
	}
}

func TestGenerateInSessionAppendsTurnsAndContext(t *testing.T) {
	client := &fakeClient{}
	srv, _ := newTestServer(t, client)
	id := createSession(t, srv, "logo work")

	first := callTool(t, srv, "generate_in_session", map[string]any{
		"session_id": id,
		"prompt":     "a minimalist fox logo",
	})
	if first["success"] != true {
		t.Fatalf("first turn failed: %v", first)
	}

	second := callTool(t, srv, "generate_in_session", map[string]any{
		"session_id": id,
		"prompt":     "make the fox orange",
	})
	if second["success"] != true {
		t.Fatalf("second turn failed: %v", second)
	}

	// The second upstream prompt must replay the first turn as context.
	got := client.lastRequest.Prompt
	if !strings.Contains(got, "a minimalist fox logo") {
		t.Errorf("context missing earlier turn: %q", got)
	}
	if !strings.Contains(got, "Next instruction: make the fox orange") {
		t.Errorf("context missing new instruction: %q", got)
	}

	status := callTool(t, srv, "get_session_status", map[string]any{"session_id": id})
	sess := status["session"].(map[string]any)
	if sess["turn_count"].(float64) != 4 {
		t.Errorf("turn_count = %v, want 4 (user+image per generation)", sess["turn_count"])
	}
	if sess["image_count"].(float64) != 2 {
		t.Errorf("image_count = %v, want 2", sess["image_count"])
	}
}

func TestCreateSessionNameIsOptional(t *testing.T) {
	srv, _ := newTestServer(t, &fakeClient{})

	payload := callTool(t, srv, "create_image_session", map[string]any{
		"description": "Logo test",
	})
	if payload["success"] != true {
		t.Fatalf("create without name failed: %v", payload)
	}
	if payload["session_id"].(string) == "" {
		t.Error("no session_id returned")
	}

	payload = callTool(t, srv, "create_image_session", map[string]any{
		"name": "nameless",
	})
	assertFailure(t, payload, "invalid_params")
}

func TestCreateSessionAcceptsAutoModel(t *testing.T) {
	srv, _ := newTestServer(t, &fakeClient{})

	payload := callTool(t, srv, "create_image_session", map[string]any{
		"description": "auto model session",
		"model":       "auto",
	})
	if payload["success"] != true {
		t.Fatalf("create with model=auto failed: %v", payload)
	}
	sess := payload["session"].(map[string]any)
	if model, ok := sess["model"]; ok && model != "" {
		t.Errorf("model = %v, want unset until first generation", model)
	}
}

func TestGenerateImageWithSessionAttachesImage(t *testing.T) {
	client := &fakeClient{}
	srv, root := newTestServer(t, client)

	created := callTool(t, srv, "create_image_session", map[string]any{
		"name":        "logo",
		"description": "Logo test",
	})
	id := created["session_id"].(string)

	payload := callTool(t, srv, "generate_image", map[string]any{
		"prompt":     "blue circle logo",
		"session_id": id,
	})
	if payload["success"] != true {
		t.Fatalf("generate failed: %v", payload)
	}

	img := payload["images"].([]any)[0].(map[string]any)
	path := img["file_path"].(string)
	if !strings.HasPrefix(path, filepath.Join(root, "generated_images", "sessions")) {
		t.Errorf("session artifact outside sessions category: %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("artifact missing: %v", err)
	}

	rec, err := organizer.ReadMetadata(img["metadata_path"].(string))
	if err != nil {
		t.Fatalf("sidecar missing: %v", err)
	}
	if rec.SessionID != id {
		t.Errorf("sidecar session_id = %q, want %q", rec.SessionID, id)
	}

	status := callTool(t, srv, "get_session_status", map[string]any{"session_id": id})
	sess := status["session"].(map[string]any)
	if sess["image_count"].(float64) != 1 {
		t.Errorf("image_count = %v, want 1", sess["image_count"])
	}
}

func TestSessionCapacityExceeded(t *testing.T) {
	root := t.TempDir()
	org, err := organizer.New(root)
	if err != nil {
		t.Fatal(err)
	}
	srv := New(Options{
		Store:     session.NewStore(1, 0),
		Client:    &fakeClient{},
		Organizer: org,
	})

	createSession(t, srv, "first")
	payload := callTool(t, srv, "create_image_session", map[string]any{
		"name":        "second",
		"description": "should not fit",
	})
	assertFailure(t, payload, "capacity_exceeded")
}

func TestCloseSessionTwice(t *testing.T) {
	srv, _ := newTestServer(t, &fakeClient{})
	id := createSession(t, srv, "short-lived")

	payload := callTool(t, srv, "close_session", map[string]any{"session_id": id})
	if payload["success"] != true {
		t.Fatalf("first close failed: %v", payload)
	}

	payload = callTool(t, srv, "close_session", map[string]any{"session_id": id})
	assertFailure(t, payload, "session_not_found")
}

func TestListActiveSessions(t *testing.T) {
	srv, _ := newTestServer(t, &fakeClient{})
	createSession(t, srv, "one")
	createSession(t, srv, "two")

	payload := callTool(t, srv, "list_active_sessions", nil)
	if payload["count"].(float64) != 2 {
		t.Errorf("count = %v, want 2", payload["count"])
	}
}

func TestEditImageFromLocalPath(t *testing.T) {
	client := &fakeClient{}
	srv, root := newTestServer(t, client)

	src := filepath.Join(root, "source.png")
	if err := os.WriteFile(src, []byte("source-bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	payload := callTool(t, srv, "edit_image", map[string]any{
		"image_path": src,
		"prompt":     "remove the background",
	})
	if payload["success"] != true {
		t.Fatalf("edit_image failed: %v", payload)
	}
	if client.editCalls != 1 {
		t.Fatalf("editCalls = %d, want 1", client.editCalls)
	}
	if string(client.lastEdit.Image) != "source-bytes" {
		t.Errorf("edit did not receive source bytes")
	}

	images := payload["images"].([]any)
	path := images[0].(map[string]any)["file_path"].(string)
	if !strings.Contains(path, filepath.Join("generated_images", "edited_images")) {
		t.Errorf("edited image outside edited_images: %s", path)
	}
}

func TestEditImageRejectsPlainHTTP(t *testing.T) {
	client := &fakeClient{}
	srv, _ := newTestServer(t, client)

	payload := callTool(t, srv, "edit_image", map[string]any{
		"image_url": "http://example.com/image.png",
		"prompt":    "sharpen it",
	})
	assertFailure(t, payload, "invalid_params")
	if client.editCalls != 0 {
		t.Errorf("upstream called for a rejected URL")
	}
}

func TestEditImageRejectsTraversalPath(t *testing.T) {
	srv, _ := newTestServer(t, &fakeClient{})

	payload := callTool(t, srv, "edit_image", map[string]any{
		"image_path": "../../etc/passwd",
		"prompt":     "anything",
	})
	assertFailure(t, payload, "invalid_params")
}

func TestPromoteImageToSession(t *testing.T) {
	client := &fakeClient{}
	srv, _ := newTestServer(t, client)

	generated := callTool(t, srv, "generate_image", map[string]any{"prompt": "a red barn"})
	img := generated["images"].([]any)[0].(map[string]any)
	path := img["file_path"].(string)

	payload := callTool(t, srv, "promote_image_to_session", map[string]any{
		"image_path":  path,
		"description": "iterate on the barn",
	})
	if payload["success"] != true {
		t.Fatalf("promote failed: %v", payload)
	}

	id := payload["session_id"].(string)
	status := callTool(t, srv, "get_session_status", map[string]any{"session_id": id})
	sess := status["session"].(map[string]any)
	if sess["image_count"].(float64) != 1 {
		t.Errorf("promoted session has %v images, want 1", sess["image_count"])
	}

	// The seeded record comes from the sidecar, so the original prompt
	// survives into the new session.
	rec := payload["image"].(map[string]any)
	if rec["prompt"] != "a red barn" {
		t.Errorf("promoted record prompt = %v, want the original", rec["prompt"])
	}
}

func TestProductImageEnumValidation(t *testing.T) {
	client := &fakeClient{}
	srv, _ := newTestServer(t, client)

	payload := callTool(t, srv, "generate_product_image", map[string]any{
		"description":     "a ceramic mug",
		"background_type": "plaid",
	})
	assertFailure(t, payload, "invalid_params")
	if client.generateCalls != 0 {
		t.Errorf("upstream called despite invalid enum")
	}
}

func TestProductImageComposesPrompt(t *testing.T) {
	client := &fakeClient{}
	srv, root := newTestServer(t, client)

	payload := callTool(t, srv, "generate_product_image", map[string]any{
		"description":     "a ceramic mug",
		"background_type": "white",
		"angle":           "angle45",
		"lighting":        "dramatic",
		"batch_count":     2,
	})
	if payload["success"] != true {
		t.Fatalf("product generation failed: %v", payload)
	}

	prompt := client.lastRequest.Prompt
	for _, want := range []string{"a ceramic mug", "white seamless background", "45-degree angle", "dramatic"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q: %s", want, prompt)
		}
	}
	if client.lastRequest.Count != 2 {
		t.Errorf("count = %d, want 2", client.lastRequest.Count)
	}

	entries, _ := filepath.Glob(filepath.Join(root, "generated_images", "products", "*", "*.png"))
	if len(entries) != 2 {
		t.Errorf("got %d product artifacts, want 2", len(entries))
	}
}

func TestUIAssetIconGetsTransparentBackground(t *testing.T) {
	client := &fakeClient{}
	srv, _ := newTestServer(t, client)

	payload := callTool(t, srv, "generate_ui_asset", map[string]any{
		"asset_type":  "icon",
		"description": "settings gear",
	})
	if payload["success"] != true {
		t.Fatalf("ui asset generation failed: %v", payload)
	}
	if client.lastRequest.Background != "transparent" {
		t.Errorf("background = %q, want transparent", client.lastRequest.Background)
	}
	if client.lastRequest.Model != "gpt-image-1" {
		t.Errorf("model = %q, want gpt-image-1", client.lastRequest.Model)
	}
}

func TestUIAssetBadType(t *testing.T) {
	srv, _ := newTestServer(t, &fakeClient{})

	payload := callTool(t, srv, "generate_ui_asset", map[string]any{
		"asset_type":  "favicon",
		"description": "anything",
	})
	assertFailure(t, payload, "invalid_params")
}

func TestBatchGenerateLimits(t *testing.T) {
	srv, _ := newTestServer(t, &fakeClient{})

	prompts := make([]string, 11)
	for i := range prompts {
		prompts[i] = "prompt"
	}
	payload := callTool(t, srv, "batch_generate", map[string]any{"prompts": prompts})
	assertFailure(t, payload, "invalid_params")

	payload = callTool(t, srv, "batch_generate", map[string]any{
		"prompts":               []string{"a"},
		"variations_per_prompt": 4,
	})
	assertFailure(t, payload, "invalid_params")
}

func TestBatchGeneratePartialFailure(t *testing.T) {
	client := &fakeClient{}
	srv, _ := newTestServer(t, client)

	payload := callTool(t, srv, "batch_generate", map[string]any{
		"prompts": []string{"a red door", "", "a green door"},
	})
	if payload["success"] != true {
		t.Fatalf("batch failed outright: %v", payload)
	}
	if payload["succeeded"].(float64) != 2 {
		t.Errorf("succeeded = %v, want 2", payload["succeeded"])
	}
	if payload["failed"].(float64) != 1 {
		t.Errorf("failed = %v, want 1", payload["failed"])
	}

	results := payload["results"].([]any)
	empty := results[1].(map[string]any)
	if empty["success"] != false || empty["error_kind"] != "invalid_params" {
		t.Errorf("empty prompt entry = %v", empty)
	}
}

func TestServerStatsCountsCalls(t *testing.T) {
	srv, _ := newTestServer(t, &fakeClient{})

	callTool(t, srv, "generate_image", map[string]any{"prompt": "one"})
	callTool(t, srv, "generate_image", map[string]any{})

	payload := callTool(t, srv, "get_server_stats", nil)
	if payload["success"] != true {
		t.Fatalf("stats failed: %v", payload)
	}
	tools := payload["tools"].(map[string]any)
	if tools["errors"].(float64) != 1 {
		t.Errorf("errors = %v, want 1", tools["errors"])
	}
	calls := tools["calls"].(map[string]any)
	if calls["generate_image"].(float64) != 2 {
		t.Errorf("generate_image calls = %v, want 2", calls["generate_image"])
	}
}

func TestServerStatsIncludesGenerationTotals(t *testing.T) {
	root := t.TempDir()
	org, err := organizer.New(root)
	if err != nil {
		t.Fatal(err)
	}
	genLog, err := history.Open(filepath.Join(root, "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer genLog.Close()

	srv := New(Options{
		Store:     session.NewStore(0, 0),
		Client:    &fakeClient{},
		Organizer: org,
		History:   genLog,
	})

	callTool(t, srv, "generate_image", map[string]any{"prompt": "a red kite"})

	payload := callTool(t, srv, "get_server_stats", nil)
	gens, ok := payload["generations"].(map[string]any)
	if !ok {
		t.Fatalf("stats missing generations block: %v", payload)
	}
	if gens["images"].(float64) != 1 {
		t.Errorf("images = %v, want 1", gens["images"])
	}
	if gens["total_bytes"].(float64) != float64(len("fake-image-bytes")) {
		t.Errorf("total_bytes = %v", gens["total_bytes"])
	}
}

func TestUsageGuideMentionsEveryTool(t *testing.T) {
	srv, _ := newTestServer(t, &fakeClient{})

	payload := callTool(t, srv, "get_usage_guide", nil)
	guide := payload["guide"].(string)
	for _, tool := range toolDefinitions() {
		if !strings.Contains(guide, tool.Name) {
			t.Errorf("guide missing %s", tool.Name)
		}
	}
}

func TestUnknownToolIsRPCError(t *testing.T) {
	srv, _ := newTestServer(t, &fakeClient{})

	params, _ := json.Marshal(map[string]any{"name": "no_such_tool"})
	resp := srv.handleRequest(&Request{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: params})
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Fatalf("expected -32602 for unknown tool, got %+v", resp.Error)
	}
}
