package server

import (
	"encoding/base64"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/tunonalves/sysprov/internal/accounts"
	"github.com/tunonalves/sysprov/internal/auth"
	"github.com/tunonalves/sysprov/internal/config"
	"github.com/tunonalves/sysprov/internal/journal"
	"github.com/tunonalves/sysprov/internal/logger"
	"github.com/tunonalves/sysprov/internal/provision"
	"github.com/tunonalves/sysprov/internal/sshkey"
	"github.com/tunonalves/sysprov/internal/sysreport"
)

type App struct {
	secret     []byte
	cookieName string

	authn    *auth.Authenticator
	dir      *accounts.DB
	mgr      *accounts.Manager
	prov     *provision.Provisioner
	coll     *sysreport.Collector
	samples  *sysreport.Store
	runs     *journal.Store
	settings *config.Store
}

func newApp(cfg Config) (*App, error) {
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = filepath.Dir(config.DefaultPath())
	}

	secret := cfg.Secret
	if len(secret) == 0 {
		if env := os.Getenv("SYSPROV_JWT_SECRET"); env != "" {
			if b, err := base64.RawURLEncoding.DecodeString(env); err == nil && len(b) > 0 {
				secret = b
			} else {
				secret = []byte(env)
			}
		}
	}
	if len(secret) == 0 {
		s, err := auth.NewRandomSecretB64(32)
		if err != nil {
			return nil, err
		}
		secret = []byte(s)
		logger.Warn("SYSPROV_JWT_SECRET not set; sessions will not survive a restart")
	}

	dir, err := accounts.OpenHostDB()
	if err != nil {
		return nil, err
	}
	mgr, err := accounts.NewHostManager()
	if err != nil {
		return nil, err
	}
	authn, err := auth.NewHostAuthenticator()
	if err != nil {
		return nil, err
	}
	a := &App{
		secret:     secret,
		cookieName: auth.DefaultCookieName,
		authn:      authn,
		dir:        dir,
		mgr:        mgr,
		prov:       provision.New(dir, sshkey.Generator{}),
		coll:       sysreport.NewCollector("", dir.PasswdPath),
		samples:    sysreport.NewStore(filepath.Join(dataDir, "report_history")),
		runs:       journal.NewStore(filepath.Join(dataDir, "journal.json")),
		settings:   config.NewStore(filepath.Join(dataDir, "settings.json")),
	}

	if err := a.settings.Ensure(); err != nil {
		return nil, err
	}
	if err := a.runs.Ensure(); err != nil {
		return nil, err
	}
	if err := a.samples.Ensure(); err != nil {
		return nil, err
	}
	if err := a.samples.Load(); err != nil {
		logger.Warn("load sample history: %v", err)
	}
	a.applySettings()
	return a, nil
}

// applySettings pushes the persisted provisioning knobs into the
// provisioner; called at startup and after settings writes.
func (a *App) applySettings() {
	st, err := a.settings.Get()
	if err != nil {
		logger.Warn("read settings: %v", err)
		return
	}
	if st.Provisioning.KeyTimeoutSeconds > 0 {
		a.prov.KeyTimeout = time.Duration(st.Provisioning.KeyTimeoutSeconds) * time.Second
	}
	if st.Provisioning.KeyBits > 0 {
		a.prov.Keys = sshkey.Generator{Bits: st.Provisioning.KeyBits}
	}
}

func (a *App) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/healthz", a.handleHealthz)
	mux.HandleFunc("POST /api/login", a.handleLogin)
	mux.HandleFunc("POST /api/logout", a.handleLogout)
	mux.HandleFunc("GET /api/me", a.requireAuth(a.handleMe))

	mux.HandleFunc("GET /api/report", a.requireAuth(a.handleReport))
	mux.HandleFunc("GET /api/report/history", a.requireAuth(a.handleReportHistory))
	mux.HandleFunc("GET /api/motd", a.requireAuth(a.handleGetMOTD))
	mux.HandleFunc("PUT /api/motd", a.requireAdmin(a.handleSetMOTD))

	mux.HandleFunc("GET /api/users", a.requireAdmin(a.handleListUsers))
	mux.HandleFunc("POST /api/users", a.requireAdmin(a.handleCreateUser))
	mux.HandleFunc("DELETE /api/users/{name}", a.requireAdmin(a.handleDeleteUser))
	mux.HandleFunc("GET /api/groups", a.requireAdmin(a.handleListGroups))
	mux.HandleFunc("POST /api/groups", a.requireAdmin(a.handleCreateGroup))
	mux.HandleFunc("DELETE /api/groups/{name}", a.requireAdmin(a.handleDeleteGroup))
	mux.HandleFunc("POST /api/groups/{name}/members", a.requireAdmin(a.handleAddMember))

	mux.HandleFunc("POST /api/provision/user/{login}", a.requireAdmin(a.handleProvisionUser))
	mux.HandleFunc("POST /api/provision/group/{name}", a.requireAdmin(a.handleProvisionGroup))
	mux.HandleFunc("GET /api/journal", a.requireAdmin(a.handleJournal))

	mux.HandleFunc("GET /api/settings", a.requireAdmin(a.handleGetSettings))
	mux.HandleFunc("PUT /api/settings/provisioning", a.requireAdmin(a.handleSetProvisioning))
	mux.HandleFunc("PUT /api/settings/report", a.requireAdmin(a.handleSetReportConfig))

	return a.withAuthContext(mux)
}
