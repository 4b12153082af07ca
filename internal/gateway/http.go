// ABOUTME: HTTP endpoints for health checks and the Google OAuth callback
// ABOUTME: The callback stores the granted credential and notifies the user's chat

package gateway

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/2389/ally-gateway/internal/credential"
	"github.com/2389/ally-gateway/internal/i18n"
	"github.com/2389/ally-gateway/internal/pipeline"
)

const readyTimeout = 2 * time.Second

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 32rem; margin: 4rem auto; padding: 0 1rem; color: #222; }
h1 { font-size: 1.4rem; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
</body>
</html>
`))

type callbackView struct {
	Title   string
	Message string
}

func (g *Gateway) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", g.handleHealth)
	mux.HandleFunc("GET /health/ready", g.handleReady)
	mux.HandleFunc("GET /oauth/google/callback", g.handleOAuthCallback)
	return mux
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK when both the session backend and the database respond.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := g.kv.Ping(ctx); err != nil {
		g.logger.Warn("readiness check failed", "dependency", "kv", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("session store unavailable"))
		return
	}
	if err := g.store.Ping(ctx); err != nil {
		g.logger.Warn("readiness check failed", "dependency", "database", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("database unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handleOAuthCallback completes the consent redirect started by the credential stage.
func (g *Gateway) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if reason := q.Get("error"); reason != "" {
		g.logger.Info("calendar consent declined", "reason", reason)
		g.renderCallback(w, http.StatusOK, callbackView{
			Title:   "Access not granted",
			Message: "Calendar access was not granted. Return to the chat to try again.",
		})
		return
	}

	code := q.Get("code")
	if code == "" {
		g.renderCallback(w, http.StatusBadRequest, callbackView{
			Title:   "Invalid link",
			Message: "This link is missing its authorization code.",
		})
		return
	}

	st, err := g.connector.Complete(r.Context(), code, q.Get("state"))
	switch {
	case errors.Is(err, credential.ErrExpiredState):
		g.renderCallback(w, http.StatusBadRequest, callbackView{
			Title:   "Link expired",
			Message: "This link has expired. Send any message in the chat to get a new one.",
		})
		return
	case errors.Is(err, credential.ErrInvalidState):
		g.logger.Warn("oauth callback with invalid state", "remote", r.RemoteAddr)
		g.renderCallback(w, http.StatusBadRequest, callbackView{
			Title:   "Invalid link",
			Message: "This link is not valid.",
		})
		return
	case err != nil:
		g.logger.Error("completing oauth callback", "error", err)
		g.renderCallback(w, http.StatusBadGateway, callbackView{
			Title:   "Something went wrong",
			Message: "Calendar access could not be saved. Please try again from the chat.",
		})
		return
	}

	p := i18n.For(g.config.Matrix.Language)
	if st.ChatID != "" {
		msg := p.T(i18n.CredentialConnected, "email", st.Email)
		if err := g.transport.SendReply(r.Context(), st.ChatID, msg, pipeline.FormatOptions{Markdown: true}); err != nil {
			g.logger.Warn("notifying chat after connect", "chat", st.ChatID, "error", err)
		}
	}

	g.renderCallback(w, http.StatusOK, callbackView{
		Title:   "Calendar connected",
		Message: p.T(i18n.CredentialConnected, "email", st.Email),
	})
}

func (g *Gateway) renderCallback(w http.ResponseWriter, status int, view callbackView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := callbackPage.Execute(w, view); err != nil {
		g.logger.Error("rendering callback page", "error", err)
	}
}
