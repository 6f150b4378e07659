package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunonalves/sysprov/internal/accounts"
	"github.com/tunonalves/sysprov/internal/auth"
	"github.com/tunonalves/sysprov/internal/config"
	"github.com/tunonalves/sysprov/internal/journal"
	"github.com/tunonalves/sysprov/internal/provision"
	"github.com/tunonalves/sysprov/internal/sshkey"
	"github.com/tunonalves/sysprov/internal/sysreport"
)

const (
	testPasswd = "root:x:0:0:root:/root:/bin/bash\nadmin:x:1000:1000::/home/admin:/bin/bash\nalice:x:1001:1001::/home/alice:/bin/bash\n"
	testGroup  = "root:x:0:\nsudo:x:27:admin\nadmin:x:1000:\nalice:x:1001:\ndevs:x:2000:alice\n"
)

func newTestApp(t *testing.T) (*App, http.Handler) {
	t.Helper()
	root := t.TempDir()
	etc := filepath.Join(root, "etc")
	data := filepath.Join(root, "data")
	require.NoError(t, os.MkdirAll(etc, 0755))
	require.NoError(t, os.MkdirAll(data, 0755))

	adminHash, err := auth.HashPassword("adminpw")
	require.NoError(t, err)
	aliceHash, err := auth.HashPassword("alicepw")
	require.NoError(t, err)
	shadow := "root:*:19000:0:99999:7:::\nadmin:" + adminHash + ":19000:0:99999:7:::\nalice:" + aliceHash + ":19000:0:99999:7:::\n"

	write := func(name, content string) string {
		p := filepath.Join(etc, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
		return p
	}
	passwdPath := write("passwd", testPasswd)
	shadowPath := write("shadow", shadow)
	groupPath := write("group", testGroup)

	dir := &accounts.DB{PasswdPath: passwdPath, GroupPath: groupPath}
	prov := provision.New(dir, sshkey.Generator{Bits: 1024})
	prov.FSRoot = root
	prov.Hostname = "testhost"
	prov.Chown = func(string, int, int) error { return nil }

	a := &App{
		secret:     []byte("test-secret"),
		cookieName: auth.DefaultCookieName,
		authn:      &auth.Authenticator{ShadowPath: shadowPath, GroupPath: groupPath},
		dir:        dir,
		mgr: &accounts.Manager{
			PasswdPath: passwdPath,
			ShadowPath: shadowPath,
			GroupPath:  groupPath,
			FSRoot:     root,
		},
		prov:     prov,
		coll:     sysreport.NewCollector(filepath.Join(root, "proc"), passwdPath),
		samples:  sysreport.NewStore(filepath.Join(data, "report_history")),
		runs:     journal.NewStore(filepath.Join(data, "journal.json")),
		settings: config.NewStore(filepath.Join(data, "settings.json")),
	}
	require.NoError(t, a.settings.Ensure())
	require.NoError(t, a.runs.Ensure())
	require.NoError(t, a.samples.Ensure())
	return a, a.routes()
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, h http.Handler, user, pass string) string {
	t.Helper()
	rec := doJSON(t, h, "POST", "/api/login", "", map[string]string{"username": user, "password": pass})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestHealthzIsPublic(t *testing.T) {
	_, h := newTestApp(t)
	rec := doJSON(t, h, "GET", "/api/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginGoodAndBadCredentials(t *testing.T) {
	_, h := newTestApp(t)

	token := login(t, h, "admin", "adminpw")
	rec := doJSON(t, h, "GET", "/api/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		Username string `json:"username"`
		Admin    bool   `json:"admin"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "admin", me.Username)
	assert.True(t, me.Admin)

	rec = doJSON(t, h, "POST", "/api/login", "", map[string]string{"username": "admin", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRequiredAndAdminGate(t *testing.T) {
	_, h := newTestApp(t)

	rec := doJSON(t, h, "GET", "/api/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	aliceTok := login(t, h, "alice", "alicepw")
	rec = doJSON(t, h, "GET", "/api/users", aliceTok, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	adminTok := login(t, h, "admin", "adminpw")
	rec = doJSON(t, h, "GET", "/api/users", adminTok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUserCRUDOverAPI(t *testing.T) {
	_, h := newTestApp(t)
	tok := login(t, h, "admin", "adminpw")

	rec := doJSON(t, h, "POST", "/api/users", tok, map[string]any{
		"username": "dave",
		"password": "davepw",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, h, "GET", "/api/users", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"dave"`)

	rec = doJSON(t, h, "DELETE", "/api/users/dave", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, "DELETE", "/api/users/dave", tok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGroupEndpoints(t *testing.T) {
	_, h := newTestApp(t)
	tok := login(t, h, "admin", "adminpw")

	rec := doJSON(t, h, "POST", "/api/groups", tok, map[string]string{"name": "builders"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, h, "POST", "/api/groups/builders/members", tok, map[string]string{"username": "alice"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, h, "POST", "/api/groups/builders/members", tok, map[string]string{"username": "nosuch"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, "DELETE", "/api/groups/builders", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestProvisionUserEndpointJournals(t *testing.T) {
	a, h := newTestApp(t)
	tok := login(t, h, "admin", "adminpw")

	rec := doJSON(t, h, "POST", "/api/provision/user/alice", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"generated":true`)

	runs, err := a.runs.List()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, journal.TargetUser, runs[0].Target.Kind)
	assert.Equal(t, "alice", runs[0].Target.Name)
	assert.Equal(t, "admin", runs[0].Actor)
	assert.Equal(t, 0, runs[0].Failed())

	rec = doJSON(t, h, "GET", "/api/journal", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"alice"`)
}

func TestProvisionUnknownUserReturns404(t *testing.T) {
	_, h := newTestApp(t)
	tok := login(t, h, "admin", "adminpw")

	rec := doJSON(t, h, "POST", "/api/provision/user/mallory", tok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProvisionGroupPartialFailure(t *testing.T) {
	a, h := newTestApp(t)
	tok := login(t, h, "admin", "adminpw")

	// devs has alice (exists); add a ghost member directly in the file.
	groupPath := a.dir.GroupPath
	b, err := os.ReadFile(groupPath)
	require.NoError(t, err)
	updated := bytes.Replace(b, []byte("devs:x:2000:alice"), []byte("devs:x:2000:alice,mallory"), 1)
	require.NoError(t, os.WriteFile(groupPath, updated, 0644))

	rec := doJSON(t, h, "POST", "/api/provision/group/devs", tok, nil)
	assert.Equal(t, http.StatusMultiStatus, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"failed":1`)
}

func TestMOTDRoundTrip(t *testing.T) {
	_, h := newTestApp(t)
	tok := login(t, h, "admin", "adminpw")

	rec := doJSON(t, h, "PUT", "/api/motd", tok, map[string]string{"markdown": "# Hello"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, "GET", "/api/motd", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Markdown string `json:"markdown"`
		HTML     string `json:"html"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "# Hello", resp.Markdown)
	assert.Contains(t, resp.HTML, "<h1")
}

func TestSettingsEndpoints(t *testing.T) {
	a, h := newTestApp(t)
	tok := login(t, h, "admin", "adminpw")

	rec := doJSON(t, h, "PUT", "/api/settings/provisioning", tok, map[string]int{"key_bits": 1024})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, "PUT", "/api/settings/provisioning", tok, map[string]int{"key_bits": 2048, "key_timeout_seconds": 5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	st, err := a.settings.Get()
	require.NoError(t, err)
	assert.Equal(t, 2048, st.Provisioning.KeyBits)

	rec = doJSON(t, h, "GET", "/api/settings", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"key_bits":2048`)
}
