package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/twintype/internal/types"
)

func registerMiscHandlers(api huma.API, gw Gateway) {
	type healthOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			return out, nil
		})

	type messageInput struct {
		Body types.Message
	}
	type messageOutput struct {
		Body any
	}
	huma.Register(api, huma.Operation{
		OperationID: "post-message",
		Method:      http.MethodPost,
		Path:        "/api/v1/messages",
		Summary:     "Dispatch a raw protocol message",
		Description: "Accepts GET_ELIGIBLE_TABS, PING_TAB, SET_TEXT, SEND_COMMAND and GET_TEXT. The response shape follows the message type; unknown types answer {ok:false, error}.",
		Tags:        []string{"Messages"},
	}, func(ctx context.Context, input *messageInput) (*messageOutput, error) {
		return &messageOutput{Body: gw.Handle(ctx, input.Body)}, nil
	})
}
