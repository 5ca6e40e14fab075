package apiv1

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const openAPIPath = "../../../public/docs/v1/openapi.yml"

var fiberParam = regexp.MustCompile(`:([A-Za-z]+)`)

func loadOpenAPI(t *testing.T) *openapi3.T {
	t.Helper()
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(openAPIPath)
	require.NoError(t, err)
	require.NoError(t, doc.Validate(context.Background()))
	return doc
}

func TestOpenAPIDocumentIsValid(t *testing.T) {
	doc := loadOpenAPI(t)
	assert.Equal(t, "3.0.3", doc.OpenAPI)
	require.NotEmpty(t, doc.Servers)
	assert.Equal(t, "/api/v1", doc.Servers[0].URL)
}

func TestOpenAPIDocumentsEveryRoute(t *testing.T) {
	doc := loadOpenAPI(t)
	ta := newTestApp(t, testToken, true)

	for _, route := range ta.app.GetRoutes(true) {
		if !strings.HasPrefix(route.Path, "/api/v1/") || route.Method == "HEAD" {
			continue
		}
		path := fiberParam.ReplaceAllString(strings.TrimPrefix(route.Path, "/api/v1"), "{$1}")
		item := doc.Paths.Find(path)
		if !assert.NotNil(t, item, "route %s %s is not documented", route.Method, path) {
			continue
		}
		assert.NotNil(t, item.GetOperation(route.Method), "operation %s %s is not documented", route.Method, path)
	}
}

func TestOpenAPIWebhookUnauthorizedMentionsHotmart(t *testing.T) {
	doc := loadOpenAPI(t)
	item := doc.Paths.Find("/webhooks/{workspaceId}/{webhookId}")
	require.NotNil(t, item)
	require.NotNil(t, item.Post)

	resp := item.Post.Responses.Status(401)
	require.NotNil(t, resp)
	require.NotNil(t, resp.Value)
	require.NotNil(t, resp.Value.Description)
	assert.Contains(t, *resp.Value.Description, "HOTMART")
}
