package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"teslo/internal/auth"
	"teslo/internal/files"
	"teslo/internal/gateway"
	"teslo/internal/presence"
	"teslo/internal/seed"
	"teslo/internal/storage"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
)

type testEnv struct {
	srv   *httptest.Server
	store *storage.SQLiteStore
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	store, err := storage.NewSQLiteStore(filepath.Join(dir, "teslo-test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	tokens, err := auth.NewTokenManager(auth.TokenConfig{Secret: []byte("test-secret"), TTL: time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	authSvc := auth.NewService(store, tokens)
	gw := gateway.New(presence.NewRegistry(), authSvc, authSvc, gateway.Options{AuthTimeout: time.Second})
	uploads := files.NewUploads(filepath.Join(dir, "uploads"), "http://localhost:3000/api", 1<<20)
	data, err := seed.Load()
	if err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(NewServer(store, authSvc, uploads, gw, data).Handler())
	t.Cleanup(func() {
		gw.CloseAll()
		srv.Close()
	})
	return &testEnv{srv: srv, store: store}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, r)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return v
}

type errorBody struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

type authBody struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"fullName"`
	Roles    []string `json:"roles"`
	Token    string   `json:"token"`
}

func (e *testEnv) seed(t *testing.T) {
	t.Helper()
	status, body := e.do(t, http.MethodGet, "/api/seed", "", nil)
	if status != http.StatusOK || string(body) != seed.Done {
		t.Fatalf("seed: %d %s", status, body)
	}
}

func (e *testEnv) login(t *testing.T, email, password string) string {
	t.Helper()
	status, body := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password})
	if status != http.StatusCreated {
		t.Fatalf("login %s: %d %s", email, status, body)
	}
	return decode[authBody](t, body).Token
}

func TestAuthFlow(t *testing.T) {
	env := setupTestServer(t)

	status, body := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "New@Google.com", "password": "Abc123", "fullName": "New User",
	})
	if status != http.StatusCreated {
		t.Fatalf("register: %d %s", status, body)
	}
	reg := decode[authBody](t, body)
	if reg.Email != "new@google.com" || reg.Token == "" {
		t.Errorf("register body = %+v", reg)
	}
	if diff := cmp.Diff([]string{"user"}, reg.Roles); diff != "" {
		t.Errorf("default roles mismatch (-want +got):\n%s", diff)
	}
	if strings.Contains(string(body), "password") {
		t.Error("response must not expose the password")
	}

	token := env.login(t, "new@google.com", "Abc123")

	status, body = env.do(t, http.MethodGet, "/api/auth/check-status", token, nil)
	if status != http.StatusOK {
		t.Fatalf("check-status: %d %s", status, body)
	}
	if got := decode[authBody](t, body); got.ID != reg.ID || got.Token == "" {
		t.Errorf("check-status body = %+v", got)
	}

	status, body = env.do(t, http.MethodGet, "/api/auth/private", token, nil)
	if status != http.StatusOK {
		t.Fatalf("private: %d %s", status, body)
	}
	priv := decode[map[string]any](t, body)
	if priv["userEmail"] != "new@google.com" {
		t.Errorf("userEmail = %v", priv["userEmail"])
	}
}

func TestAuthErrors(t *testing.T) {
	env := setupTestServer(t)
	env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "a@b.com", "password": "Abc123", "fullName": "A",
	})

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		body       any
		wantStatus int
		wantMsg    string
	}{
		{"weak password", http.MethodPost, "/api/auth/register", "", map[string]string{"email": "x@b.com", "password": "abcdef", "fullName": "X"},
			http.StatusBadRequest, auth.ErrWeakPassword.Error()},
		{"duplicate email", http.MethodPost, "/api/auth/register", "", map[string]string{"email": "a@b.com", "password": "Abc123", "fullName": "A"},
			http.StatusBadRequest, ""},
		{"bad email", http.MethodPost, "/api/auth/login", "", map[string]string{"email": "nobody@b.com", "password": "Abc123"},
			http.StatusUnauthorized, "Credentials are not valid (email)"},
		{"bad password", http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@b.com", "password": "Wrong123"},
			http.StatusUnauthorized, "Credentials are not valid (password)"},
		{"missing token", http.MethodGet, "/api/auth/check-status", "", nil,
			http.StatusUnauthorized, "Token not valid"},
		{"garbage token", http.MethodGet, "/api/auth/check-status", "garbage", nil,
			http.StatusUnauthorized, "Token not valid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.do(t, tt.method, tt.path, tt.token, tt.body)
			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", status, tt.wantStatus, body)
			}
			if tt.wantMsg != "" {
				if got := decode[errorBody](t, body).Message; got != tt.wantMsg {
					t.Errorf("message = %q, want %q", got, tt.wantMsg)
				}
			}
		})
	}
}

func TestRoleGuard(t *testing.T) {
	env := setupTestServer(t)
	env.seed(t)

	admin := env.login(t, "test1@google.com", "Abc123")
	super := env.login(t, "test2@google.com", "Abc123")

	if status, body := env.do(t, http.MethodGet, "/api/auth/private2", super, nil); status != http.StatusOK {
		t.Errorf("private2 as super-user: %d %s", status, body)
	}
	if status, body := env.do(t, http.MethodGet, "/api/auth/private3", admin, nil); status != http.StatusOK {
		t.Errorf("private3 as admin: %d %s", status, body)
	}

	status, body := env.do(t, http.MethodGet, "/api/auth/private3", super, nil)
	if status != http.StatusForbidden {
		t.Fatalf("private3 as super-user: %d %s", status, body)
	}
	if got, want := decode[errorBody](t, body).Message, "User Test Two need a valid role: [admin]"; got != want {
		t.Errorf("message = %q, want %q", got, want)
	}
}

type productBody struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Slug   string   `json:"slug"`
	Price  float64  `json:"price"`
	Tags   []string `json:"tags"`
	Images []string `json:"images"`
	User   *struct {
		ID string `json:"id"`
	} `json:"user"`
}

func TestProductsCRUD(t *testing.T) {
	env := setupTestServer(t)
	env.seed(t)
	admin := env.login(t, "test1@google.com", "Abc123")

	newProduct := map[string]any{
		"title":  "Teslo Test Shirt",
		"price":  25.5,
		"sizes":  []string{"S", "M"},
		"gender": "unisex",
		"images": []string{"a.jpg", "b.jpg"},
	}

	if status, _ := env.do(t, http.MethodPost, "/api/products", "", newProduct); status != http.StatusUnauthorized {
		t.Errorf("create without token: status %d, want 401", status)
	}

	status, body := env.do(t, http.MethodPost, "/api/products", admin, newProduct)
	if status != http.StatusCreated {
		t.Fatalf("create: %d %s", status, body)
	}
	created := decode[productBody](t, body)
	if created.Slug != "teslo_test_shirt" {
		t.Errorf("slug = %q", created.Slug)
	}
	if diff := cmp.Diff([]string{"a.jpg", "b.jpg"}, created.Images); diff != "" {
		t.Errorf("images mismatch (-want +got):\n%s", diff)
	}

	if status, body := env.do(t, http.MethodPost, "/api/products", admin, newProduct); status != http.StatusBadRequest {
		t.Errorf("duplicate title: %d %s", status, body)
	}

	for _, term := range []string{created.ID, "TESLO TEST SHIRT", "teslo_test_shirt"} {
		status, body := env.do(t, http.MethodGet, "/api/products/"+strings.ReplaceAll(term, " ", "%20"), "", nil)
		if status != http.StatusOK {
			t.Errorf("find %q: %d %s", term, status, body)
			continue
		}
		if got := decode[productBody](t, body); got.ID != created.ID {
			t.Errorf("find %q returned %s", term, got.ID)
		}
	}

	status, body = env.do(t, http.MethodPatch, "/api/products/"+created.ID, admin, map[string]any{
		"price":  30,
		"images": []string{"c.jpg"},
	})
	if status != http.StatusOK {
		t.Fatalf("patch: %d %s", status, body)
	}
	patched := decode[productBody](t, body)
	if patched.Price != 30 || patched.Title != "Teslo Test Shirt" {
		t.Errorf("patched = %+v", patched)
	}
	if diff := cmp.Diff([]string{"c.jpg"}, patched.Images); diff != "" {
		t.Errorf("patched images mismatch (-want +got):\n%s", diff)
	}

	if status, _ := env.do(t, http.MethodPatch, "/api/products/not-a-uuid", admin, map[string]any{"price": 1}); status != http.StatusBadRequest {
		t.Errorf("patch with bad id: status %d, want 400", status)
	}
	if status, _ := env.do(t, http.MethodPatch, "/api/products/"+created.ID, admin, map[string]any{"gender": "robot"}); status != http.StatusBadRequest {
		t.Errorf("patch with bad gender: status %d, want 400", status)
	}

	if status, body := env.do(t, http.MethodDelete, "/api/products/"+created.ID, admin, nil); status != http.StatusOK {
		t.Fatalf("delete: %d %s", status, body)
	}
	status, body = env.do(t, http.MethodGet, "/api/products/"+created.ID, "", nil)
	if status != http.StatusNotFound {
		t.Errorf("find after delete: %d %s", status, body)
	}
}

func TestListProducts(t *testing.T) {
	env := setupTestServer(t)
	env.seed(t)

	status, body := env.do(t, http.MethodGet, "/api/products?limit=2&offset=1", "", nil)
	if status != http.StatusOK {
		t.Fatalf("list: %d %s", status, body)
	}
	page := decode[[]productBody](t, body)
	if len(page) != 2 {
		t.Fatalf("got %d products, want 2", len(page))
	}
	for _, p := range page {
		if len(p.Images) == 0 {
			t.Errorf("%s has no image urls", p.Title)
		}
		if p.User != nil {
			t.Errorf("list should not embed the owner")
		}
	}

	if status, _ := env.do(t, http.MethodGet, "/api/products?limit=0&offset=-1", "", nil); status != http.StatusBadRequest {
		t.Errorf("negative offset: status %d, want 400", status)
	}
}

func multipartImage(t *testing.T, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="shirt.png"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(data)
	w.Close()
	return &buf, w.FormDataContentType()
}

func TestUploadAndServeImage(t *testing.T) {
	env := setupTestServer(t)

	body, ct := multipartImage(t, "image/png", []byte("png-bytes"))
	resp, err := http.Post(env.srv.URL+"/api/files/product", ct, body)
	if err != nil {
		t.Fatal(err)
	}
	out, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload: %d %s", resp.StatusCode, out)
	}

	fileURL := decode[map[string]string](t, out)["fileName"]
	prefix := "http://localhost:3000/api/files/product/"
	if !strings.HasPrefix(fileURL, prefix) {
		t.Fatalf("fileName = %q", fileURL)
	}
	name := strings.TrimPrefix(fileURL, prefix)

	status, got := env.do(t, http.MethodGet, "/api/files/product/"+name, "", nil)
	if status != http.StatusOK || string(got) != "png-bytes" {
		t.Errorf("serve: %d %q", status, got)
	}

	status, got = env.do(t, http.MethodGet, "/api/files/product/missing.png", "", nil)
	if status != http.StatusBadRequest || decode[errorBody](t, got).Message != "Image not found" {
		t.Errorf("missing image: %d %s", status, got)
	}
}

func TestUploadRejectsNonImage(t *testing.T) {
	env := setupTestServer(t)

	body, ct := multipartImage(t, "application/pdf", []byte("%PDF"))
	resp, err := http.Post(env.srv.URL+"/api/files/product", ct, body)
	if err != nil {
		t.Fatal(err)
	}
	out, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if got := decode[errorBody](t, out).Message; got != "Make sure that the file is an image" {
		t.Errorf("message = %q", got)
	}
}

func TestWebsocketWithRealToken(t *testing.T) {
	env := setupTestServer(t)
	env.seed(t)
	token := env.login(t, "test1@google.com", "Abc123")

	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/ws"
	header := http.Header{"Authorization": []string{"Bearer " + token}}
	ws, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer ws.Close()

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f gateway.Frame
	if err := ws.ReadJSON(&f); err != nil {
		t.Fatal(err)
	}
	if f.Event != gateway.EventConnectedClients {
		t.Errorf("event = %q", f.Event)
	}
}
