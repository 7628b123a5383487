package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/twintype/internal/provider"
	"github.com/dgnsrekt/twintype/internal/types"
)

func registerTabHandlers(api huma.API, gw Gateway) {
	type tabsOutput struct {
		Body types.TabsReply
	}
	huma.Register(api, huma.Operation{OperationID: "list-tabs", Method: http.MethodGet, Path: "/api/v1/tabs", Summary: "List eligible provider tabs", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *struct{}) (*tabsOutput, error) {
			return &tabsOutput{Body: types.TabsReply{Tabs: gw.ListEligibleTabs(ctx)}}, nil
		})

	type openInput struct {
		Body struct {
			Provider string `json:"provider" enum:"chatgpt,gemini,claude"`
		}
	}
	type openOutput struct {
		Body struct {
			TabID types.TabID `json:"tabId"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "open-tab", Method: http.MethodPost, Path: "/api/v1/tabs", Summary: "Open a provider tab", Tags: []string{"Tabs"}, DefaultStatus: http.StatusCreated},
		func(ctx context.Context, input *openInput) (*openOutput, error) {
			name, ok := provider.Parse(input.Body.Provider)
			if !ok {
				return nil, mapErr(types.ErrUnknownProvider)
			}
			id, err := gw.OpenProvider(ctx, name)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &openOutput{}
			out.Body.TabID = id
			return out, nil
		})

	type pingInput struct {
		TabID int `path:"tab_id" minimum:"1" doc:"Tab id as listed by GET /api/v1/tabs"`
		Body struct {
			TabURL string `json:"tabUrl,omitempty" doc:"Looked up when omitted"`
		}
	}
	type pingOutput struct {
		Body types.PingResult
	}
	huma.Register(api, huma.Operation{OperationID: "ping-tab", Method: http.MethodPost, Path: "/api/v1/tabs/{tab_id}/ping", Summary: "Ping a tab, injecting the page bundle if needed", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *pingInput) (*pingOutput, error) {
			return &pingOutput{Body: gw.Ping(ctx, types.TabID(input.TabID), input.Body.TabURL)}, nil
		})

	type setTextInput struct {
		TabID int `path:"tab_id" minimum:"1" doc:"Tab id as listed by GET /api/v1/tabs"`
		Body struct {
			Text   string `json:"text"`
			TabURL string `json:"tabUrl,omitempty"`
		}
	}
	type resultOutput struct {
		Body types.Result
	}
	huma.Register(api, huma.Operation{OperationID: "set-tab-text", Method: http.MethodPost, Path: "/api/v1/tabs/{tab_id}/text", Summary: "Write text into a tab's composer", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *setTextInput) (*resultOutput, error) {
			return &resultOutput{Body: gw.SetText(ctx, types.TabID(input.TabID), input.Body.TabURL, input.Body.Text)}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "send-tab", Method: http.MethodPost, Path: "/api/v1/tabs/{tab_id}/send", Summary: "Trigger send in a tab", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *tabIDInput) (*resultOutput, error) {
			return &resultOutput{Body: gw.SendCommand(ctx, types.TabID(input.TabID))}, nil
		})

	type textOutput struct {
		Body types.Reply
	}
	huma.Register(api, huma.Operation{OperationID: "get-tab-text", Method: http.MethodGet, Path: "/api/v1/tabs/{tab_id}/text", Summary: "Read a tab's composer text", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *tabIDInput) (*textOutput, error) {
			return &textOutput{Body: gw.GetText(ctx, types.TabID(input.TabID))}, nil
		})
}
