package connector

import (
	"bytes"
	"html/template"
	"net/http"
	"time"
)

// indexPageTemplate is the HTML for the root page. It only points operators
// at the callback URL; everything else is JSON API.
const indexPageTemplate = `<!DOCTYPE html>
<html lang="pt-BR">
<head><meta charset="utf-8"><title>HubSpot PABX Connector</title></head>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 50px auto;">
  <h1>HubSpot OAuth Integration</h1>
  <p>Servidor em execução</p>
  <p>Use /oauth/callback para o redirect do HubSpot</p>
</body>
</html>
`

// callbackSuccessTemplate is rendered after a successful code exchange. It
// shows the resolved portal id and expiry, then sends the user back to the
// HubSpot integration settings page after a short delay.
const callbackSuccessTemplate = `<!DOCTYPE html>
<html lang="pt-BR">
<head><meta charset="utf-8"><title>Integração Concluída</title></head>
<body>
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 50px auto; padding: 20px; text-align: center;">
  <h1 style="color: #00A4BD;">Integração Concluída!</h1>
  <p>Portal ID: <strong>{{.HubID}}</strong></p>
  <p>Token expira em: <strong>{{.ExpiresAt}}</strong></p>
  <div style="margin: 20px 0; padding: 15px; background: #f8f9fa; border-radius: 8px; text-align: left;">
    <h3>Debug Info:</h3>
    <p><strong>Portal ID final:</strong> {{.HubID}}</p>
    <p><strong>Método usado:</strong> {{.HubIDSource}}</p>
  </div>
  <p style="margin: 30px 0;">
    <a href="{{.RedirectURL}}" style="background: #00A4BD; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px; display: inline-block;">
      Voltar para o HubSpot
    </a>
  </p>
  <p style="color: #666; font-size: 14px;">Você será redirecionado automaticamente em 5 segundos...</p>
  <script>
    setTimeout(function() { window.location.href = {{.RedirectURL}}; }, 5000);
  </script>
</div>
</body>
</html>
`

// callbackErrorTemplate is rendered when the code exchange fails.
const callbackErrorTemplate = `<!DOCTYPE html>
<html lang="pt-BR">
<head><meta charset="utf-8"><title>Erro</title></head>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 50px auto;">
  <h1 style="color: red;">Erro ao autenticar</h1>
  <p>{{.Message}}</p>
</body>
</html>
`

var (
	callbackSuccessTmpl = template.Must(template.New("callback-success").Parse(callbackSuccessTemplate))
	callbackErrorTmpl   = template.Must(template.New("callback-error").Parse(callbackErrorTemplate))
)

// callbackSuccessData holds the template data for the callback success page.
type callbackSuccessData struct {
	HubID       string
	HubIDSource string
	ExpiresAt   string
	RedirectURL string
}

// serveCallbackSuccess renders the post-authorization page. The template is
// executed to a buffer first so a render failure never produces a partial
// response.
func (h *Handler) serveCallbackSuccess(w http.ResponseWriter, hubID, hubIDSource string, expiresAt time.Time) {
	data := callbackSuccessData{
		HubID:       hubID,
		HubIDSource: hubIDSource,
		ExpiresAt:   expiresAt.Format("02/01/2006 15:04:05"),
		RedirectURL: "https://app.hubspot.com/integrations-settings/" + hubID + "/installed",
	}

	var buf bytes.Buffer
	if err := callbackSuccessTmpl.Execute(&buf, data); err != nil {
		h.logger.Error("failed to render callback success page", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Integração concluída. Portal ID: " + hubID))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// serveCallbackError renders the authorization failure page.
func (h *Handler) serveCallbackError(w http.ResponseWriter, status int, message string) {
	var buf bytes.Buffer
	if err := callbackErrorTmpl.Execute(&buf, struct{ Message string }{Message: message}); err != nil {
		h.logger.Error("failed to render callback error page", "error", err)
		http.Error(w, message, status)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// serveIndex renders the static landing page.
func (h *Handler) serveIndex(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexPageTemplate))
}
