package provider_test

import (
	"context"
	"strings"
	"testing"

	"github.com/uezo/aiolinebot/asyncgen/ir"
	"github.com/uezo/aiolinebot/asyncgen/provider"
)

const fixturePkg = "github.com/uezo/aiolinebot/internal/testfixtures/linebotapi"

func extract(t *testing.T, exclude ...string) *ir.ClientDescriptor {
	t.Helper()
	desc, err := provider.Extract(context.Background(), provider.Options{
		Package:        fixturePkg,
		ClientType:     "Client",
		ExcludeMethods: exclude,
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	return desc
}

func endpointNames(desc *ir.ClientDescriptor) []string {
	names := make([]string, len(desc.Endpoints))
	for i, ep := range desc.Endpoints {
		names[i] = ep.Name
	}
	return names
}

func TestExtractEndpoints(t *testing.T) {
	desc := extract(t)

	// Source order of the reference client.
	want := []string{
		"ReplyMessage",
		"PushMessage",
		"BroadcastMessage",
		"GetProfile",
		"GetMessageQuota",
		"GetFollowerIDs",
		"GetMessageContent",
		"DeleteRichMenu",
	}
	got := endpointNames(desc)
	if len(got) != len(want) {
		t.Fatalf("endpoints = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("endpoints = %v, want %v", got, want)
		}
	}
	if len(desc.Warnings) != 0 {
		t.Errorf("warnings = %v, want none", desc.Warnings)
	}
}

func TestExtractSignatures(t *testing.T) {
	desc := extract(t)

	reply := desc.Endpoint("ReplyMessage")
	if reply == nil {
		t.Fatal("ReplyMessage not extracted")
	}
	if !reply.Variadic {
		t.Error("ReplyMessage should be variadic")
	}
	if len(reply.Params) != 2 || reply.Params[0].Name != "replyToken" || reply.Params[1].Name != "messages" {
		t.Errorf("ReplyMessage params = %+v", reply.Params)
	}
	if reply.Streaming {
		t.Error("ReplyMessage should not be streaming")
	}
	if len(reply.Results) != 2 {
		t.Errorf("ReplyMessage results = %d, want 2", len(reply.Results))
	}

	quota := desc.Endpoint("GetMessageQuota")
	if quota == nil {
		t.Fatal("GetMessageQuota not extracted")
	}
	if len(quota.Params) != 0 {
		t.Errorf("GetMessageQuota params = %+v, want none", quota.Params)
	}

	del := desc.Endpoint("DeleteRichMenu")
	if del == nil {
		t.Fatal("DeleteRichMenu not extracted")
	}
	if len(del.Results) != 1 {
		t.Errorf("DeleteRichMenu results = %d, want 1", len(del.Results))
	}
}

func TestExtractStreamingClassification(t *testing.T) {
	desc := extract(t)

	for _, ep := range desc.Endpoints {
		want := ep.Name == "GetMessageContent"
		if ep.Streaming != want {
			t.Errorf("%s.Streaming = %v, want %v", ep.Name, ep.Streaming, want)
		}
	}
}

func TestExtractFields(t *testing.T) {
	desc := extract(t)

	transport := desc.TransportFields()
	if len(transport) != 1 || transport[0].Name != "httpClient" {
		t.Fatalf("transport fields = %+v, want httpClient", transport)
	}

	var mirrored []string
	for _, f := range desc.MirroredFields() {
		mirrored = append(mirrored, f.Name)
	}
	want := []string{"channelToken", "endpoint", "dataEndpoint"}
	if len(mirrored) != len(want) {
		t.Fatalf("mirrored fields = %v, want %v", mirrored, want)
	}
	for i := range want {
		if mirrored[i] != want[i] {
			t.Fatalf("mirrored fields = %v, want %v", mirrored, want)
		}
	}
}

func TestExtractHelpers(t *testing.T) {
	desc := extract(t)

	var names []string
	for _, h := range desc.Helpers {
		names = append(names, h.Name)
	}
	want := []string{"post", "get", "do", "checkResponse"}
	if len(names) != len(want) {
		t.Fatalf("helpers = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("helpers = %v, want %v", names, want)
		}
	}
}

func TestExtractConstructor(t *testing.T) {
	desc := extract(t)

	if len(desc.Constructors) != 1 || desc.Constructors[0].Name != "New" {
		t.Fatalf("constructors = %+v, want New", desc.Constructors)
	}
	if desc.Constructors[0].Sig.Results().Len() != 2 {
		t.Errorf("New results = %d, want 2", desc.Constructors[0].Sig.Results().Len())
	}
}

func TestExtractModuleIdentity(t *testing.T) {
	desc := extract(t)
	if desc.ModulePath != "github.com/uezo/aiolinebot" {
		t.Errorf("ModulePath = %q, want the enclosing module", desc.ModulePath)
	}
}

func TestExtractExclusions(t *testing.T) {
	desc := extract(t, "GetProfile")
	for _, name := range endpointNames(desc) {
		if name == "GetProfile" {
			t.Error("excluded method GetProfile still extracted")
		}
	}
	if len(desc.Endpoints) != 7 {
		t.Errorf("endpoints = %d, want 7", len(desc.Endpoints))
	}
}

func TestExtractZeroEndpoints(t *testing.T) {
	all := []string{
		"ReplyMessage", "PushMessage", "BroadcastMessage", "GetProfile",
		"GetMessageQuota", "GetFollowerIDs", "GetMessageContent", "DeleteRichMenu",
	}
	desc := extract(t, all...)

	// Zero qualifying methods is absence, not failure.
	if len(desc.Endpoints) != 0 {
		t.Errorf("endpoints = %v, want none", endpointNames(desc))
	}
	if len(desc.Helpers) != 0 {
		t.Errorf("helpers = %d, want none (nothing reachable)", len(desc.Helpers))
	}
}

func TestExtractErrors(t *testing.T) {
	tests := []struct {
		name    string
		opts    provider.Options
		wantMsg string
	}{
		{
			name:    "missing package",
			opts:    provider.Options{ClientType: "Client"},
			wantMsg: "no reference package",
		},
		{
			name:    "missing client type",
			opts:    provider.Options{Package: fixturePkg},
			wantMsg: "no client type",
		},
		{
			name:    "unknown type",
			opts:    provider.Options{Package: fixturePkg, ClientType: "Nope"},
			wantMsg: "not found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := provider.Extract(context.Background(), tt.opts)
			if err == nil {
				t.Fatal("Extract() succeeded, want error")
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Extract() error = %v, want containing %q", err, tt.wantMsg)
			}
		})
	}
}
