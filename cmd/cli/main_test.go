package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func withTmpConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return filepath.Join(dir, "authentic-caller")
}

func Test_cfgDir_And_Paths(t *testing.T) {
	base := withTmpConfig(t)
	if got := cfgDir(); got != base {
		t.Fatalf("cfgDir=%q, want %q", got, base)
	}
	if !strings.HasPrefix(tokenPath(), base) || !strings.HasSuffix(tokenPath(), "token.json") {
		t.Fatalf("tokenPath unexpected: %s", tokenPath())
	}
}

func Test_token_SaveLoad(t *testing.T) {
	_ = withTmpConfig(t)

	if _, err := loadToken(); err == nil {
		t.Fatalf("expected error when token file missing")
	}
	if err := saveToken("tok", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("saveToken: %v", err)
	}
	tok, err := loadToken()
	if err != nil || tok != "tok" {
		t.Fatalf("loadToken: tok=%q err=%v", tok, err)
	}
	st, err := os.Stat(tokenPath())
	if err != nil || st.Mode().Perm() != 0o600 {
		t.Fatalf("token file should be private: %v %v", st, err)
	}
	if err := saveToken("tok2", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("saveToken expired: %v", err)
	}
	if _, err := loadToken(); err == nil {
		t.Fatalf("want error for expired token")
	}
}

func Test_tokenExpiry(t *testing.T) {
	t.Parallel()

	exp := time.Now().Add(42 * time.Minute).Truncate(time.Second)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if got := tokenExpiry(tok, time.Hour); !got.Equal(exp) {
		t.Fatalf("exp=%v, want %v", got, exp)
	}
	if got := tokenExpiry("garbage", time.Hour); time.Until(got) < 59*time.Minute {
		t.Fatalf("fallback not applied: %v", got)
	}
}

func Test_readAll_File_And_Stdin(t *testing.T) {
	// file path
	tmp := filepath.Join(t.TempDir(), "f.csv")
	_ = os.WriteFile(tmp, []byte("hello"), 0o600)
	b, err := readAll(tmp)
	if err != nil || string(b) != "hello" {
		t.Fatalf("readAll(file): %q %v", b, err)
	}

	// stdin
	r, w, _ := os.Pipe()
	old := os.Stdin
	os.Stdin = r
	defer func() { os.Stdin = old }()
	go func() { _, _ = io.WriteString(w, "from-stdin"); _ = w.Close() }()
	b, err = readAll("-")
	if err != nil || string(b) != "from-stdin" {
		t.Fatalf("readAll(stdin): %q %v", b, err)
	}
}

func Test_printJSON_WritesPretty(t *testing.T) {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w
	defer func() { os.Stdout = old }()

	printJSON(map[string]any{"a": 1})
	_ = w.Close()
	out, _ := io.ReadAll(r)

	var m map[string]any
	if json.Unmarshal(out, &m) != nil || m["a"] != float64(1) {
		t.Fatalf("printJSON produced invalid json: %s", string(out))
	}
	if !bytes.Contains(out, []byte("\n  ")) {
		t.Fatalf("printJSON should indent")
	}
}

func Test_loadTLS_Variants(t *testing.T) {
	t.Parallel()

	tc, err := loadTLS("", true)
	if err != nil || tc == nil || !tc.InsecureSkipVerify {
		t.Fatalf("insecure: %v %v", tc, err)
	}

	tc, err = loadTLS("", false)
	if err != nil || tc != nil {
		t.Fatalf("system roots should leave config nil: %v %v", tc, err)
	}

	tmp := filepath.Join(t.TempDir(), "bad.pem")
	_ = os.WriteFile(tmp, []byte("not pem"), 0o600)
	if _, err := loadTLS(tmp, false); err == nil {
		t.Fatalf("bad CA should error")
	}
}

type recorded struct {
	method, path, auth, body string
	upload, uploadType       string
}

// fakeAPI records the last request and replies with a fixed envelope.
type fakeAPI struct {
	code  int
	reply string

	mu   sync.Mutex
	last recorded
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := recorded{method: r.Method, path: r.URL.EscapedPath(), auth: r.Header.Get("Authorization")}
	mt, params, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "multipart/form-data" {
		mr := multipart.NewReader(r.Body, params["boundary"])
		if part, err := mr.NextPart(); err == nil {
			b, _ := io.ReadAll(part)
			rec.upload, rec.uploadType = part.FormName()+":"+string(b), part.Header.Get("Content-Type")
		}
	} else {
		b, _ := io.ReadAll(r.Body)
		rec.body = string(b)
	}
	f.mu.Lock()
	f.last = rec
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.code)
	_, _ = io.WriteString(w, f.reply)
}

func (f *fakeAPI) got() recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func newFake(t *testing.T, code int, reply string) (*fakeAPI, string) {
	t.Helper()
	f := &fakeAPI{code: code, reply: reply}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv.URL
}

func Test_client_LoginAndAuthHeader(t *testing.T) {
	t.Parallel()
	f, url := newFake(t, http.StatusOK, `{"status":true,"token":"T1"}`)

	c, err := newClient(url, "", false, "")
	if err != nil {
		t.Fatalf("newClient: %v", err)
	}
	resp, err := c.login(context.Background(), identity{Phone: "5550001111"}, "Passw0rd!")
	if err != nil || resp.Token != "T1" {
		t.Fatalf("login: %+v %v", resp, err)
	}
	got := f.got()
	if got.method != http.MethodPost || got.path != "/auth/login" {
		t.Fatalf("unexpected request %s %s", got.method, got.path)
	}
	var body map[string]string
	if err := json.Unmarshal([]byte(got.body), &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if body["phone"] != "5550001111" || body["password"] != "Passw0rd!" {
		t.Fatalf("body mismatch: %v", body)
	}
	if _, ok := body["email"]; ok {
		t.Fatalf("empty email should be omitted: %v", body)
	}

	c, _ = newClient(url, "", false, "T1")
	if _, err := c.search(context.Background(), "Alice Smith"); err != nil {
		t.Fatalf("search: %v", err)
	}
	if got = f.got(); got.auth != "Bearer T1" || got.path != "/global/search/Alice%20Smith" {
		t.Fatalf("auth=%q path=%q", got.auth, got.path)
	}
}

func Test_client_ErrorEnvelope(t *testing.T) {
	t.Parallel()
	_, url := newFake(t, http.StatusConflict, `{"status":false,"error":"phone already registered"}`)

	c, _ := newClient(url, "", false, "")
	_, err := c.register(context.Background(), "Alice", "5550001111", "", "Passw0rd!")
	var ae *apiError
	if !errors.As(err, &ae) || ae.Code != http.StatusConflict || ae.Msg != "phone already registered" {
		t.Fatalf("want apiError 409, got %v", err)
	}
}

func Test_client_OTPAndSpam(t *testing.T) {
	t.Parallel()
	f, url := newFake(t, http.StatusOK, `{"status":true,"data":{"spamCount":2}}`)
	c, _ := newClient(url, "", false, "T")
	ctx := context.Background()

	if _, err := c.verifyOTP(ctx, identity{Email: "a@x.com"}, "1234"); err != nil {
		t.Fatalf("verifyOTP: %v", err)
	}
	if got := f.got().body; !strings.Contains(got, `"otp":"1234"`) || !strings.Contains(got, `"email":"a@x.com"`) {
		t.Fatalf("verify body: %s", got)
	}

	if _, err := c.resetPassword(ctx, identity{Email: "a@x.com"}, "N3wPass!x"); err != nil {
		t.Fatalf("resetPassword: %v", err)
	}
	if got := f.got(); got.method != http.MethodPut || got.path != "/auth/reset-password" {
		t.Fatalf("reset request %s %s", got.method, got.path)
	}

	resp, err := c.reportSpam(ctx, 9)
	if err != nil {
		t.Fatalf("reportSpam: %v", err)
	}
	if got := f.got().body; got != `{"userId":9}` {
		t.Fatalf("report body: %s", got)
	}
	if string(resp.Data) != `{"spamCount":2}` {
		t.Fatalf("data: %s", resp.Data)
	}

	if _, err := c.user(ctx, 9); err != nil || f.got().path != "/global/user/9" {
		t.Fatalf("user: %v %s", err, f.got().path)
	}
}

func Test_client_Upload(t *testing.T) {
	t.Parallel()
	f, url := newFake(t, http.StatusOK, `{"status":true,"data":[]}`)
	c, _ := newClient(url, "", false, "T")

	if _, err := c.upload(context.Background(), "c.csv", strings.NewReader("h\nBob,1")); err != nil {
		t.Fatalf("upload: %v", err)
	}
	got := f.got()
	if got.path != "/global/upload-contacts" || got.upload != "contactcsv:h\nBob,1" || got.uploadType != "text/csv" {
		t.Fatalf("upload mismatch: path=%s part=%q type=%q", got.path, got.upload, got.uploadType)
	}
}
