// Package docs embeds the OpenAPI description served at
// /.well-known/openapi.json and rendered by the swagger UI.
package docs

import _ "embed"

//go:embed openapi.json
var OpenAPI []byte
