package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/twintype/internal/panel"
	"github.com/dgnsrekt/twintype/internal/types"
)

func registerPanelHandlers(api huma.API, p Panel) {
	type viewOutput struct {
		Body panel.View
	}
	huma.Register(api, huma.Operation{OperationID: "get-panel", Method: http.MethodGet, Path: "/api/v1/panel", Summary: "Get panel state", Tags: []string{"Panel"}},
		func(ctx context.Context, input *struct{}) (*viewOutput, error) {
			return &viewOutput{Body: p.View()}, nil
		})

	type textInput struct {
		Body struct {
			Text string `json:"text"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "set-panel-text", Method: http.MethodPut, Path: "/api/v1/panel/text", Summary: "Replace the master buffer", Tags: []string{"Panel"}},
		func(ctx context.Context, input *textInput) (*viewOutput, error) {
			if err := p.SetText(input.Body.Text); err != nil {
				return nil, mapErr(err)
			}
			return &viewOutput{Body: p.View()}, nil
		})

	type targetsInput struct {
		Body struct {
			TargetA types.TabID `json:"targetA,omitempty"`
			TargetB types.TabID `json:"targetB,omitempty"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "set-panel-targets", Method: http.MethodPut, Path: "/api/v1/panel/targets", Summary: "Select targets A and B", Tags: []string{"Panel"}},
		func(ctx context.Context, input *targetsInput) (*viewOutput, error) {
			if err := p.SelectTargets(input.Body.TargetA, input.Body.TargetB); err != nil {
				return nil, mapErr(err)
			}
			return &viewOutput{Body: p.View()}, nil
		})

	type liveSyncInput struct {
		Body struct {
			Enabled bool `json:"enabled"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "set-panel-live-sync", Method: http.MethodPut, Path: "/api/v1/panel/live-sync", Summary: "Turn live sync on or off", Tags: []string{"Panel"}},
		func(ctx context.Context, input *liveSyncInput) (*viewOutput, error) {
			p.SetLiveSync(input.Body.Enabled)
			return &viewOutput{Body: p.View()}, nil
		})

	type themeOutput struct {
		Body struct {
			Theme panel.Theme `json:"theme"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "cycle-panel-theme", Method: http.MethodPost, Path: "/api/v1/panel/theme/cycle", Summary: "Cycle the theme", Tags: []string{"Panel"}},
		func(ctx context.Context, input *struct{}) (*themeOutput, error) {
			out := &themeOutput{}
			out.Body.Theme = p.CycleTheme()
			return out, nil
		})

	type dispatchOutput struct {
		Body panel.Dispatch
	}
	huma.Register(api, huma.Operation{OperationID: "sync-panel", Method: http.MethodPost, Path: "/api/v1/panel/sync", Summary: "Sync the buffer into the targets", Tags: []string{"Panel"}},
		func(ctx context.Context, input *struct{}) (*dispatchOutput, error) {
			d, err := p.SyncText(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &dispatchOutput{Body: d}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "send-panel", Method: http.MethodPost, Path: "/api/v1/panel/send", Summary: "Sync, then send in every target", Tags: []string{"Panel"}},
		func(ctx context.Context, input *struct{}) (*dispatchOutput, error) {
			d, err := p.SendAll(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &dispatchOutput{Body: d}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "clear-panel", Method: http.MethodPost, Path: "/api/v1/panel/clear", Summary: "Clear the buffer", Tags: []string{"Panel"}},
		func(ctx context.Context, input *struct{}) (*viewOutput, error) {
			p.Clear()
			return &viewOutput{Body: p.View()}, nil
		})

	type tabsOutput struct {
		Body types.TabsReply
	}
	huma.Register(api, huma.Operation{OperationID: "refresh-panel", Method: http.MethodPost, Path: "/api/v1/panel/refresh", Summary: "Refresh eligible tabs and validate targets", Tags: []string{"Panel"}},
		func(ctx context.Context, input *struct{}) (*tabsOutput, error) {
			return &tabsOutput{Body: types.TabsReply{Tabs: p.RefreshTabs(ctx)}}, nil
		})

	type statusesOutput struct {
		Body struct {
			Statuses []panel.Status `json:"statuses"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "get-panel-statuses", Method: http.MethodGet, Path: "/api/v1/panel/statuses", Summary: "Ping both target slots", Tags: []string{"Panel"}},
		func(ctx context.Context, input *struct{}) (*statusesOutput, error) {
			out := &statusesOutput{}
			out.Body.Statuses = p.Statuses(ctx)
			return out, nil
		})

	type diagnosticsOutput struct {
		Body struct {
			Diagnostics []types.Diagnostic `json:"diagnostics"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "get-panel-diagnostics", Method: http.MethodGet, Path: "/api/v1/panel/diagnostics", Summary: "Diagnostics log, newest first", Tags: []string{"Panel"}},
		func(ctx context.Context, input *struct{}) (*diagnosticsOutput, error) {
			out := &diagnosticsOutput{}
			out.Body.Diagnostics = p.Diagnostics()
			return out, nil
		})
}
