package filter

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// indexPage is the submission form served at GET /. It posts to
// /analyze?format=html and the browser renders the returned report.
const indexPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Phishing Email Detector</title>
<style>
body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; background: #f4f5f7; margin: 0; }
.container { background: #fff; max-width: 640px; margin: 40px auto; padding: 32px; border-radius: 12px; box-shadow: 0 4px 20px rgba(0,0,0,.1); }
label { display: block; margin: 16px 0 4px; font-weight: 600; }
input, textarea { width: 100%; padding: 8px; border: 1px solid #ccc; border-radius: 6px; box-sizing: border-box; }
textarea { min-height: 200px; }
button { margin-top: 20px; padding: 10px 24px; border: 0; border-radius: 6px; background: #667eea; color: #fff; cursor: pointer; }
</style>
</head>
<body>
<div class="container">
<h1>Phishing Email Detector</h1>
<form method="post" action="/analyze?format=html">
<label for="sender">Sender</label>
<input id="sender" name="sender" placeholder="sender@example.com" required>
<label for="subject">Subject</label>
<input id="subject" name="subject">
<label for="body">Body</label>
<textarea id="body" name="body" required></textarea>
<button type="submit">Analyze</button>
</form>
</div>
</body>
</html>
`

func (f *HTTPFilter) index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexPage))
}
