// Package api exposes the message protocol and the control panel over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgnsrekt/twintype/internal/cdpcontrol"
	"github.com/dgnsrekt/twintype/internal/panel"
	"github.com/dgnsrekt/twintype/internal/provider"
	"github.com/dgnsrekt/twintype/internal/relay"
	"github.com/dgnsrekt/twintype/internal/types"
)

// Gateway is the tab messaging surface.
type Gateway interface {
	Handle(ctx context.Context, msg types.Message) any
	ListEligibleTabs(ctx context.Context) []types.EligibleTab
	Ping(ctx context.Context, id types.TabID, tabURL string) types.PingResult
	SetText(ctx context.Context, id types.TabID, tabURL, text string) types.Result
	SendCommand(ctx context.Context, id types.TabID) types.Result
	GetText(ctx context.Context, id types.TabID) types.Reply
	OpenProvider(ctx context.Context, name provider.Name) (types.TabID, error)
}

// Panel is the control surface.
type Panel interface {
	View() panel.View
	SetText(text string) error
	SelectTargets(a, b types.TabID) error
	SetLiveSync(on bool)
	CycleTheme() panel.Theme
	Clear()
	SyncText(ctx context.Context) (panel.Dispatch, error)
	SendAll(ctx context.Context) (panel.Dispatch, error)
	RefreshTabs(ctx context.Context) []types.EligibleTab
	Statuses(ctx context.Context) []panel.Status
	Diagnostics() []types.Diagnostic
}

type tabIDInput struct {
	TabID int `path:"tab_id" minimum:"1" doc:"Tab id as listed by GET /api/v1/tabs"`
}

func NewServer(gw Gateway, p Panel, broker *relay.Broker) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("TwinType API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		writeHTML(w, docsHTML)
	})
	router.Get("/docs/events", func(w http.ResponseWriter, r *http.Request) {
		writeHTML(w, eventsDocsHTML)
	})
	router.Get("/api/v1/events", relay.SSEHandler(broker))

	registerMiscHandlers(api, gw)
	registerTabHandlers(api, gw)
	registerPanelHandlers(api, p)

	return router
}

func writeHTML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := w.Write([]byte(body)); err != nil {
		slog.Debug("docs response write failed", "error", err)
	}
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *cdpcontrol.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case cdpcontrol.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case cdpcontrol.CodeTabNotFound:
			return huma.Error404NotFound(coded.Message)
		case cdpcontrol.CodeNoReceiver:
			return huma.Error409Conflict(coded.Message)
		case cdpcontrol.CodePermissionDenied:
			return huma.Error403Forbidden(coded.Message)
		case cdpcontrol.CodeEvalTimeout:
			return huma.Error504GatewayTimeout(coded.Message)
		case cdpcontrol.CodeCDPUnavailable:
			return huma.Error502BadGateway(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	switch {
	case errors.Is(err, types.ErrTextTooLong):
		return huma.NewError(http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, panel.ErrTargetNotEligible), errors.Is(err, types.ErrUnknownProvider):
		return huma.Error422UnprocessableEntity(err.Error())
	}
	return huma.Error500InternalServerError(err.Error())
}
