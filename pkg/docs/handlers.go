// Package docs serves the portal's OpenAPI description and a browser
// UI for it. The document is embedded at build time so the binary is
// self-contained.
package docs

import (
	_ "embed"
	"html/template"
	"net/http"

	"github.com/gorilla/mux"
	"gopkg.in/yaml.v3"

	"github.com/hdcn/ledenportaal/pkg/httputil"
)

//go:embed openapi.yaml
var openapiSpec []byte

// Handlers serves the API documentation endpoints.
type Handlers struct{}

// NewHandlers creates the documentation handlers.
func NewHandlers() *Handlers {
	return &Handlers{}
}

// RegisterRoutes registers the documentation routes. They sit outside
// /api/v1 and need no session.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/openapi.yaml", h.serveSpec).Methods("GET")
	router.HandleFunc("/openapi.json", h.serveSpecJSON).Methods("GET")
	router.HandleFunc("/docs", h.serveUI).Methods("GET")
	router.HandleFunc("/api-docs", h.serveUI).Methods("GET") // Alias
}

// serveSpec serves the OpenAPI document as authored.
func (h *Handlers) serveSpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/x-yaml")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	w.Write(openapiSpec)
}

// serveSpecJSON serves the same document converted to JSON, for
// tooling that cannot read YAML.
func (h *Handlers) serveSpecJSON(w http.ResponseWriter, r *http.Request) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(openapiSpec, &doc); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	w.Header().Set("Access-Control-Allow-Origin", "*")
	httputil.WriteJSON(w, http.StatusOK, doc)
}

// serveUI serves a Swagger UI page loading the embedded document.
func (h *Handlers) serveUI(w http.ResponseWriter, r *http.Request) {
	// Swagger UI comes from the CDN; the portal only hosts the document.
	tmpl := template.Must(template.New("docs").Parse(uiTemplate))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, nil); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
}

const uiTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>H-DCN Ledenportaal API</title>
  <link rel="stylesheet" type="text/css" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5.10.5/swagger-ui.css" />
  <link rel="icon" type="image/png" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5.10.5/favicon-32x32.png" sizes="32x32" />
  <link rel="icon" type="image/png" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5.10.5/favicon-16x16.png" sizes="16x16" />
  <style>
    html {
      box-sizing: border-box;
      overflow: -moz-scrollbars-vertical;
      overflow-y: scroll;
    }
    *, *:before, *:after {
      box-sizing: inherit;
    }
    body {
      margin:0;
      padding:0;
    }
  </style>
</head>
<body>
<div id="swagger-ui"></div>

<script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5.10.5/swagger-ui-bundle.js" charset="UTF-8"></script>
<script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5.10.5/swagger-ui-standalone-preset.js" charset="UTF-8"></script>
<script>
window.onload = function() {
  window.ui = SwaggerUIBundle({
    url: "/openapi.yaml",
    dom_id: '#swagger-ui',
    deepLinking: true,
    presets: [
      SwaggerUIBundle.presets.apis,
      SwaggerUIStandalonePreset
    ],
    plugins: [
      SwaggerUIBundle.plugins.DownloadUrl
    ],
    layout: "StandaloneLayout",
    requestInterceptor: function(request) {
      // Reuse the portal session token when one is stored.
      const token = localStorage.getItem('hdcn_portal_token');
      if (token) {
        request.headers['Authorization'] = 'Bearer ' + token;
      }
      return request;
    }
  });
};
</script>
</body>
</html>`
