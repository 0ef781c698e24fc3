package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

const landingHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>docchat</title>
<style>
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; background: #0f172a; color: #e2e8f0; display: flex; justify-content: center; padding: 4rem 1rem; }
  .card { max-width: 640px; width: 100%; background: #1e293b; border-radius: 12px; padding: 2rem; }
  h1 { margin-top: 0; }
  .endpoint { font-family: "SF Mono", Menlo, monospace; color: #a5b4fc; }
  pre { background: #0f172a; border: 1px solid #334155; border-radius: 8px; padding: 1rem; overflow-x: auto; }
</style>
</head>
<body>
<div class="card">
  <h1>docchat</h1>
  <p>Ask questions about your own documents. Answers cite the passages they are based on.</p>
  <p><span class="endpoint">POST /api/documents</span> upload files</p>
  <p><span class="endpoint">POST /api/chat</span> stream an answer as JSON lines</p>
  <p><span class="endpoint">/mcp</span> MCP Streamable HTTP</p>
  <p><span class="endpoint">/health</span> health check, <span class="endpoint">/metrics</span> Prometheus</p>
  <pre><code>curl -N -H 'X-Owner-ID: me' -d '{"message":"What is the leave policy?"}' \
  -H 'Content-Type: application/json' http://localhost:8080/api/chat</code></pre>
</div>
</body>
</html>`

func landing(c echo.Context) error {
	return c.HTML(http.StatusOK, landingHTML)
}
