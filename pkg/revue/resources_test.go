package revue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"reflect"
	"testing"

	"go.miloapis.com/email-provider-revue/pkg/revue/revuetest"
)

func newTestClient(t *testing.T, transport *revuetest.Transport) *Client {
	t.Helper()
	client, err := NewClient("token", WithHost("https://revue.test"), WithHTTPClient(transport))
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}
	return client
}

func TestResources_Routes(t *testing.T) {
	tests := []struct {
		name       string
		call       func(ctx context.Context, c *Client) (*Response, error)
		wantMethod string
		wantPath   string
	}{
		{"Lists", func(ctx context.Context, c *Client) (*Response, error) { return c.Lists(ctx) }, http.MethodGet, "/v2/lists"},
		{"ListByID", func(ctx context.Context, c *Client) (*Response, error) { return c.ListByID(ctx, "42") }, http.MethodGet, "/v2/lists/42"},
		{"ListByID empty id", func(ctx context.Context, c *Client) (*Response, error) { return c.ListByID(ctx, "") }, http.MethodGet, "/v2/lists"},
		{"ExportByID", func(ctx context.Context, c *Client) (*Response, error) { return c.ExportByID(ctx, "1") }, http.MethodGet, "/v2/exports/1"},
		{"RawExports", func(ctx context.Context, c *Client) (*Response, error) { return c.RawExports(ctx) }, http.MethodGet, "/v2/exports"},
		{"ExportList", func(ctx context.Context, c *Client) (*Response, error) { return c.ExportList(ctx, "7") }, http.MethodPost, "/v2/exports/lists/7"},
		{"Issues", func(ctx context.Context, c *Client) (*Response, error) { return c.Issues(ctx, StageDefault) }, http.MethodGet, "/v2/issues"},
		{"Issues latest", func(ctx context.Context, c *Client) (*Response, error) { return c.Issues(ctx, StageLatest) }, http.MethodGet, "/v2/issues/latest"},
		{"Issues current", func(ctx context.Context, c *Client) (*Response, error) { return c.Issues(ctx, StageCurrent) }, http.MethodGet, "/v2/issues/current"},
		{"Subscribers", func(ctx context.Context, c *Client) (*Response, error) { return c.Subscribers(ctx) }, http.MethodGet, "/v2/subscribers"},
		{"Unsubscribed", func(ctx context.Context, c *Client) (*Response, error) { return c.Unsubscribed(ctx) }, http.MethodGet, "/v2/subscribers/unsubscribed"},
		{"Me", func(ctx context.Context, c *Client) (*Response, error) { return c.Me(ctx) }, http.MethodGet, "/v2/accounts/me"},
		{"Items", func(ctx context.Context, c *Client) (*Response, error) { return c.Items(ctx) }, http.MethodGet, "/v2/items"},
		{"AddItems", func(ctx context.Context, c *Client) (*Response, error) { return c.AddItems(ctx, "1", nil) }, http.MethodPost, "/v2/issues/1/items"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := revuetest.NewTransport().Append(http.StatusOK, `{}`)
			client := newTestClient(t, transport)

			if _, err := tt.call(context.Background(), client); err != nil {
				t.Fatalf("%s() failed: %v", tt.name, err)
			}

			reqs := transport.Requests()
			if len(reqs) != 1 {
				t.Fatalf("Expected exactly 1 request, got %d", len(reqs))
			}
			if reqs[0].Method != tt.wantMethod {
				t.Errorf("Expected %s request, got %s", tt.wantMethod, reqs[0].Method)
			}
			if reqs[0].Path != tt.wantPath {
				t.Errorf("Expected path %s, got %s", tt.wantPath, reqs[0].Path)
			}
			if got := reqs[0].Header.Get("Authorization"); got != "Token token" {
				t.Errorf("Expected Authorization header Token token, got %s", got)
			}
		})
	}
}

func TestMe(t *testing.T) {
	body := `{"profile_id":"string"}`
	transport := revuetest.NewTransport().Append(http.StatusOK, body)
	client := newTestClient(t, transport)

	resp, err := client.Me(context.Background())
	if err != nil {
		t.Fatalf("Me() failed: %v", err)
	}

	v, err := resp.AsValue()
	if err != nil {
		t.Fatalf("AsValue() failed: %v", err)
	}
	want := map[string]any{"profile_id": "string"}
	if !reflect.DeepEqual(v.Interface(), want) {
		t.Errorf("AsValue() = %v, want %v", v.Interface(), want)
	}
	if resp.AsJSON() != body {
		t.Errorf("AsJSON() = %s, want %s", resp.AsJSON(), body)
	}
}

func TestUnauthorized(t *testing.T) {
	transport := revuetest.NewTransport().Append(http.StatusUnauthorized, "")
	client := newTestClient(t, transport)

	resp, err := client.Me(context.Background())
	if !IsUnauthorized(err) {
		t.Fatalf("Expected 401 error, got %v", err)
	}
	if resp != nil {
		t.Error("Expected nil response on error")
	}
}

func TestSubscribe(t *testing.T) {
	transport := revuetest.NewTransport().Append(http.StatusOK, `{"email":"user@getrevue.io","first_name":"Ada","last_name":null}`)
	client := newTestClient(t, transport)

	_, err := client.Subscribe(context.Background(), "user@getrevue.io", map[string]any{
		"first_name":    "Ada",
		"double_opt_in": false,
	})
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}

	reqs := transport.Requests()
	if len(reqs) != 1 {
		t.Fatalf("Expected 1 request, got %d", len(reqs))
	}
	if ct := reqs[0].Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %s", ct)
	}

	var payload map[string]any
	if err := json.Unmarshal(reqs[0].Body, &payload); err != nil {
		t.Fatalf("Failed to decode request body: %v", err)
	}
	want := map[string]any{
		"email":         "user@getrevue.io",
		"first_name":    "Ada",
		"double_opt_in": false,
	}
	if !reflect.DeepEqual(payload, want) {
		t.Errorf("Payload = %v, want %v", payload, want)
	}
}

func TestSubscribe_EmailWins(t *testing.T) {
	transport := revuetest.NewTransport().Append(http.StatusOK, `{}`)
	client := newTestClient(t, transport)

	fields := map[string]any{"email": "not-an-email"}
	if _, err := client.Subscribe(context.Background(), "user@getrevue.io", fields); err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(transport.Requests()[0].Body, &payload); err != nil {
		t.Fatalf("Failed to decode request body: %v", err)
	}
	if payload["email"] != "user@getrevue.io" {
		t.Errorf("Expected validated email to win, got %v", payload["email"])
	}
	if fields["email"] != "not-an-email" {
		t.Error("Subscribe() must not mutate the caller's fields")
	}
}

func TestSubscribe_InvalidEmail(t *testing.T) {
	for _, email := range []string{"getrevue.io", "", "user@", "@getrevue.io", "user name@getrevue.io"} {
		t.Run(email, func(t *testing.T) {
			transport := revuetest.NewTransport().Append(http.StatusOK, `{}`)
			client := newTestClient(t, transport)

			_, err := client.Subscribe(context.Background(), email, nil)
			if !IsInvalidArgument(err) {
				t.Errorf("Expected invalid argument error, got %v", err)
			}
			if n := len(transport.Requests()); n != 0 {
				t.Errorf("Expected no request, got %d", n)
			}
			if transport.Pending() != 1 {
				t.Error("Queued response must not be consumed")
			}
		})
	}
}

func TestIssues_InvalidStage(t *testing.T) {
	transport := revuetest.NewTransport().Append(http.StatusOK, `[]`)
	client := newTestClient(t, transport)

	_, err := client.Issues(context.Background(), Stage("previous"))
	if !IsInvalidArgument(err) {
		t.Errorf("Expected invalid argument error, got %v", err)
	}
	if n := len(transport.Requests()); n != 0 {
		t.Errorf("Expected no request, got %d", n)
	}
}

func TestParseStage(t *testing.T) {
	tests := []struct {
		in      string
		want    Stage
		wantErr bool
	}{
		{"", StageDefault, false},
		{"latest", StageLatest, false},
		{"current", StageCurrent, false},
		{"previous", "", true},
		{"Latest", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStage(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStage(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseStage(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAddItems(t *testing.T) {
	body := `{"title":"Revue","url":"https://getrevue.io","order":null,"hash_id":"7PdEoo"}`
	transport := revuetest.NewTransport().Append(http.StatusOK, body)
	client := newTestClient(t, transport)

	data := url.Values{}
	data.Set("url", "https://getrevue.io")
	data.Set("title", "Revue")
	data.Set("description", "Editorial newsletters")

	resp, err := client.AddItems(context.Background(), "1", data)
	if err != nil {
		t.Fatalf("AddItems() failed: %v", err)
	}

	req := transport.Requests()[0]
	if ct := req.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
		t.Errorf("Expected form content type, got %s", ct)
	}
	form, err := url.ParseQuery(string(req.Body))
	if err != nil {
		t.Fatalf("Failed to parse form body: %v", err)
	}
	if !reflect.DeepEqual(form, data) {
		t.Errorf("Form = %v, want %v", form, data)
	}

	var item Item
	if err := resp.Decode(&item); err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if item.HashID != "7PdEoo" || item.Order != nil {
		t.Errorf("Unexpected item %+v", item)
	}
}

func TestItems(t *testing.T) {
	body := `[{"title":"Revue","url":"https://getrevue.io","hash_id":"7PdEoo"}]`
	transport := revuetest.NewTransport().Append(http.StatusOK, body)
	client := newTestClient(t, transport)

	resp, err := client.Items(context.Background())
	if err != nil {
		t.Fatalf("Items() failed: %v", err)
	}
	var items []Item
	if err := resp.Decode(&items); err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if len(items) != 1 || items[0].Title != "Revue" {
		t.Errorf("Unexpected items %+v", items)
	}
}

const exportTuples = `[[1,"subscribed.csv",100,"text/plain","unsubscribed.csv",100,"text/plain"]]`

func TestExports_Formatted(t *testing.T) {
	transport := revuetest.NewTransport().Append(http.StatusOK, exportTuples)
	client := newTestClient(t, transport)

	resp, err := client.Exports(context.Background())
	if err != nil {
		t.Fatalf("Exports() failed: %v", err)
	}

	want := `[{"id":1,"subscribed_file_name":"subscribed.csv","subscribed_file_size":100,"subscribed_content_type":"text/plain","unsubscribed_file_name":"unsubscribed.csv","unsubscribed_file_size":100,"unsubscribed_content_type":"text/plain"}]`
	if resp.AsJSON() != want {
		t.Errorf("AsJSON() = %s, want %s", resp.AsJSON(), want)
	}

	v, err := resp.AsValue()
	if err != nil {
		t.Fatalf("AsValue() failed: %v", err)
	}
	if !reflect.DeepEqual(v.Index(0).Keys(), ExportKeys) {
		t.Errorf("Keys = %v, want %v", v.Index(0).Keys(), ExportKeys)
	}

	var records []ExportRecord
	if err := resp.Decode(&records); err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if records[0].UnsubscribedFileName != "unsubscribed.csv" || records[0].SubscribedFileSize != 100 {
		t.Errorf("Unexpected record %+v", records[0])
	}
}

func TestExports_Raw(t *testing.T) {
	transport := revuetest.NewTransport().Append(http.StatusOK, exportTuples)
	client := newTestClient(t, transport)

	resp, err := client.RawExports(context.Background())
	if err != nil {
		t.Fatalf("RawExports() failed: %v", err)
	}
	if resp.AsJSON() != exportTuples {
		t.Errorf("AsJSON() = %s, want %s", resp.AsJSON(), exportTuples)
	}
}

func TestExports_ShapeMismatch(t *testing.T) {
	transport := revuetest.NewTransport().Append(http.StatusOK, `[[1,"subscribed.csv",100]]`)
	client := newTestClient(t, transport)

	resp, err := client.Exports(context.Background())
	if err == nil {
		t.Fatal("Expected shape mismatch error")
	}
	if resp != nil {
		t.Error("Expected nil response on error")
	}
}

func TestExportByID(t *testing.T) {
	body := `{"id":1,"subscribed_file_name":"subscribed.csv","subscribed_file_size":100,"subscribed_content_type":"text/plain","unsubscribed_file_name":"unsubscribed.csv","unsubscribed_file_size":100,"unsubscribed_content_type":"text/plain","unsubscribe_url":"https://getrevue.io/unsubscribed.csv","subscribed_url":"https://getrevue.io/subscribed.csv"}`
	transport := revuetest.NewTransport().Append(http.StatusOK, body)
	client := newTestClient(t, transport)

	resp, err := client.ExportByID(context.Background(), "1")
	if err != nil {
		t.Fatalf("ExportByID() failed: %v", err)
	}

	var export Export
	if err := resp.Decode(&export); err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if export.ID != 1 || export.SubscribedURL != "https://getrevue.io/subscribed.csv" {
		t.Errorf("Unexpected export %+v", export)
	}
	if resp.AsJSON() != body {
		t.Error("AsJSON() must return the literal body")
	}
}
