package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/tunonalves/sysprov/internal/accounts"
	"github.com/tunonalves/sysprov/internal/auth"
	"github.com/tunonalves/sysprov/internal/config"
	"github.com/tunonalves/sysprov/internal/journal"
	"github.com/tunonalves/sysprov/internal/logger"
	"github.com/tunonalves/sysprov/internal/provision"
	"github.com/tunonalves/sysprov/internal/sysreport"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if err := a.authn.VerifyPassword(req.Username, req.Password); err != nil {
		logger.Warn("login failed for %s: %v", req.Username, err)
		writeError(w, http.StatusUnauthorized, auth.HumanAuthError(err))
		return
	}
	admin, err := a.authn.IsAdmin(req.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	tok, err := auth.SignHS256(a.secret, req.Username, admin, auth.DefaultTokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookieName,
		Value:    tok,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(auth.DefaultTokenTTL),
	})
	logger.Info("login ok for %s (admin=%v)", req.Username, admin)
	writeJSON(w, http.StatusOK, map[string]any{
		"token":    tok,
		"username": req.Username,
		"admin":    admin,
	})
}

func (a *App) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"username": usernameFrom(r),
		"admin":    isAdminFrom(r),
	})
}

func (a *App) handleReport(w http.ResponseWriter, r *http.Request) {
	st, err := a.settings.Get()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	rep, err := a.coll.Report(st.Report)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (a *App) handleReportHistory(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC 3339")
			return
		}
		since = t
	}
	writeJSON(w, http.StatusOK, map[string]any{"samples": a.samples.List(since)})
}

func (a *App) handleGetMOTD(w http.ResponseWriter, r *http.Request) {
	st, err := a.settings.Get()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"markdown": st.MOTD,
		"html":     renderMarkdown(st.MOTD),
	})
}

func (a *App) handleSetMOTD(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Markdown string `json:"markdown"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if err := a.settings.SetMOTD(req.Markdown); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type userView struct {
	Name  string `json:"name"`
	UID   int    `json:"uid"`
	GID   int    `json:"gid"`
	Home  string `json:"home"`
	Shell string `json:"shell"`
}

func (a *App) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.dir.Users()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]userView, 0, len(users))
	for _, u := range users {
		out = append(out, userView{Name: u.Name, UID: u.UID, GID: u.GID, Home: u.Home, Shell: u.Shell})
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out})
}

func (a *App) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username   string   `json:"username"`
		Password   string   `json:"password,omitempty"`
		Home       string   `json:"home,omitempty"`
		Shell      string   `json:"shell,omitempty"`
		Admin      bool     `json:"admin,omitempty"`
		Groups     []string `json:"groups,omitempty"`
		CreateHome bool     `json:"create_home,omitempty"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	hash := ""
	if req.Password != "" {
		h, err := auth.HashPassword(req.Password)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		hash = h
	}
	groups := req.Groups
	if len(groups) == 0 {
		if st, err := a.settings.Get(); err == nil {
			groups = st.DefaultGroups
		}
	}
	err := a.mgr.CreateUser(accounts.CreateUserRequest{
		Username:     req.Username,
		PasswordHash: hash,
		Home:         req.Home,
		Shell:        req.Shell,
		AddToSudo:    req.Admin,
		ExtraGroups:  groups,
		CreateHome:   req.CreateHome,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	logger.Info("created user %s (by %s)", req.Username, usernameFrom(r))
	writeJSON(w, http.StatusCreated, map[string]string{"status": "created", "username": req.Username})
}

func (a *App) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	removeHome := r.URL.Query().Get("remove_home") == "true"
	if err := a.mgr.DeleteUser(name, removeHome); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, accounts.ErrUserNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	logger.Info("deleted user %s (by %s)", name, usernameFrom(r))
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (a *App) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := a.dir.Groups()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func (a *App) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	g, err := a.mgr.CreateGroup(req.Name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	logger.Info("created group %s gid=%d (by %s)", g.Name, g.GID, usernameFrom(r))
	writeJSON(w, http.StatusCreated, g)
}

func (a *App) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := a.mgr.DeleteGroup(name); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, accounts.ErrGroupNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	logger.Info("deleted group %s (by %s)", name, usernameFrom(r))
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (a *App) handleAddMember(w http.ResponseWriter, r *http.Request) {
	group := r.PathValue("name")
	var req struct {
		Username string `json:"username"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if err := a.mgr.AddMember(group, req.Username); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, accounts.ErrGroupNotFound) || errors.Is(err, accounts.ErrUserNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type outcomeView struct {
	Login          string `json:"login"`
	Generated      bool   `json:"generated"`
	KeyAdded       bool   `json:"key_added"`
	AuthorizedKeys string `json:"authorized_keys,omitempty"`
	Error          string `json:"error,omitempty"`
}

func outcomeViews(outs []provision.Outcome) ([]outcomeView, int) {
	views := make([]outcomeView, 0, len(outs))
	failed := 0
	for _, o := range outs {
		v := outcomeView{
			Login:          o.Login,
			Generated:      o.Generated,
			KeyAdded:       o.KeyAdded,
			AuthorizedKeys: o.AuthorizedKeys,
		}
		if o.Err != nil {
			v.Error = o.Err.Error()
			failed++
		}
		views = append(views, v)
	}
	return views, failed
}

func (a *App) journalRun(r *http.Request, kind journal.TargetKind, name string, outs []provision.Outcome) {
	entries := make([]journal.Entry, 0, len(outs))
	for _, o := range outs {
		e := journal.Entry{
			Login:          o.Login,
			Generated:      o.Generated,
			KeyAdded:       o.KeyAdded,
			AuthorizedKeys: o.AuthorizedKeys,
		}
		if o.Err != nil {
			e.Error = o.Err.Error()
		}
		entries = append(entries, e)
	}
	_, err := a.runs.Append(journal.Run{
		Actor:   usernameFrom(r),
		Target:  journal.Target{Kind: kind, Name: name},
		Entries: entries,
	})
	if err != nil {
		logger.Error("journal provisioning run for %s %s: %v", kind, name, err)
	}
}

func (a *App) handleProvisionUser(w http.ResponseWriter, r *http.Request) {
	login := r.PathValue("login")
	out := a.prov.ProvisionUser(r.Context(), login)
	a.journalRun(r, journal.TargetUser, login, []provision.Outcome{out})

	views, failed := outcomeViews([]provision.Outcome{out})
	status := http.StatusOK
	if failed > 0 {
		if errors.Is(out.Err, accounts.ErrUserNotFound) {
			status = http.StatusNotFound
		} else {
			status = http.StatusInternalServerError
		}
	}
	writeJSON(w, status, map[string]any{"outcomes": views})
}

func (a *App) handleProvisionGroup(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	outs, err := a.prov.ProvisionGroup(r.Context(), name)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, accounts.ErrGroupNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	a.journalRun(r, journal.TargetGroup, name, outs)

	views, failed := outcomeViews(outs)
	status := http.StatusOK
	if failed > 0 {
		// Partial failure still reports every outcome.
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, map[string]any{"outcomes": views, "failed": failed})
}

func (a *App) handleJournal(w http.ResponseWriter, r *http.Request) {
	runs, err := a.runs.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (a *App) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	st, err := a.settings.Get()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *App) handleSetProvisioning(w http.ResponseWriter, r *http.Request) {
	var req config.Provisioning
	if !readJSON(w, r, &req) {
		return
	}
	if req.KeyBits != 0 && req.KeyBits < 2048 {
		writeError(w, http.StatusBadRequest, "key_bits must be at least 2048")
		return
	}
	if err := a.settings.SetProvisioning(req); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.applySettings()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) handleSetReportConfig(w http.ResponseWriter, r *http.Request) {
	var req sysreport.Config
	if !readJSON(w, r, &req) {
		return
	}
	if err := a.settings.SetReportConfig(req); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
