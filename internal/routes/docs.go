package routes

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/coachdesk/coachdesk-backend/internal/config"
)

const docsIndexHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{ .Title }}</title>
  <style>
    :root {
      color-scheme: light;
      --bg: #f6f7f4;
      --text: #132019;
      --muted: #536258;
      --accent: #1f6f4a;
      --border: #d8ddd6;
    }
    * { box-sizing: border-box; }
    body {
      margin: 0;
      font-family: Georgia, "Times New Roman", serif;
      color: var(--text);
      background: var(--bg);
    }
    main {
      max-width: 960px;
      margin: 0 auto;
      padding: 48px 20px 64px;
    }
    h1 { margin: 0 0 8px; }
    p.lede { color: var(--muted); margin: 0 0 32px; }
    section {
      background: #fff;
      border: 1px solid var(--border);
      border-radius: 12px;
      padding: 20px 24px;
      margin-bottom: 16px;
    }
    h2 { margin: 0 0 12px; font-size: 1.2rem; color: var(--accent); }
    table { width: 100%; border-collapse: collapse; }
    td {
      padding: 6px 12px 6px 0;
      border-top: 1px solid var(--border);
      font-size: 0.95rem;
    }
    td.method { font-family: monospace; font-weight: 700; width: 70px; }
    td.path { font-family: monospace; }
    footer { color: var(--muted); font-size: 0.85rem; margin-top: 24px; }
  </style>
</head>
<body>
  <main>
    <h1>{{ .Title }}</h1>
    <p class="lede">Endpoint catalog, generated at startup. Development only.</p>
    {{ range .Groups }}
    <section>
      <h2>{{ .Name }}</h2>
      <table>
        {{ range .Endpoints }}
        <tr>
          <td class="method">{{ .Method }}</td>
          <td class="path">{{ .Path }}</td>
          <td>{{ .Summary }}</td>
        </tr>
        {{ end }}
      </table>
    </section>
    {{ end }}
    <footer>Rendered {{ .LoadedAt }}</footer>
  </main>
</body>
</html>
`

type docsEndpoint struct {
	Method  string `json:"method"`
	Path    string `json:"path"`
	Summary string `json:"summary"`
}

type docsGroup struct {
	Name      string         `json:"name"`
	Endpoints []docsEndpoint `json:"endpoints"`
}

type docsPageData struct {
	Title    string
	LoadedAt string
	Groups   []docsGroup
}

func endpointCatalog() []docsGroup {
	return []docsGroup{
		{Name: "Auth", Endpoints: []docsEndpoint{
			{"POST", "/api/auth/register", "Create a coach or client account"},
			{"POST", "/api/auth/login", "Exchange credentials for a JWT"},
			{"GET", "/api/auth/me", "Current user"},
		}},
		{Name: "Clients", Endpoints: []docsEndpoint{
			{"POST", "/api/v1/clients", "Attach an existing client user to the coach"},
			{"GET", "/api/v1/clients", "List the coach's clients"},
			{"GET", "/api/v1/clients/:id/programs", "List a client's program enrollments"},
		}},
		{Name: "Program templates", Endpoints: []docsEndpoint{
			{"POST", "/api/v1/templates", "Create a template with its elements"},
			{"GET", "/api/v1/templates", "List the coach's templates"},
			{"GET", "/api/v1/templates/stats", "Template and enrollment counts"},
			{"GET", "/api/v1/templates/:id", "Template with elements"},
			{"PUT", "/api/v1/templates/:id", "Replace template definition"},
			{"DELETE", "/api/v1/templates/:id", "Delete an unused template"},
			{"POST", "/api/v1/templates/:id/duplicate", "Copy a template"},
			{"POST", "/api/v1/templates/:id/enroll", "Enroll a client"},
			{"GET", "/api/v1/templates/:id/clients", "Enrolled clients with progress"},
		}},
		{Name: "Enrollments", Endpoints: []docsEndpoint{
			{"POST", "/api/v1/enrollments/:id/start", "Start the program; day 1 goes out now"},
			{"POST", "/api/v1/enrollments/:id/restart", "Reset progress and start over"},
			{"PUT", "/api/v1/enrollments/:id/status", "Pause, resume or complete"},
			{"POST", "/api/v1/enrollments/:id/complete-element", "Mark one element done"},
		}},
		{Name: "Tasks", Endpoints: []docsEndpoint{
			{"POST", "/api/v1/tasks", "Assign a task to a client"},
			{"GET", "/api/v1/tasks", "List tasks for the current actor"},
			{"PUT", "/api/v1/tasks/:id/status", "Flip pending/completed"},
		}},
		{Name: "Chat", Endpoints: []docsEndpoint{
			{"GET", "/api/v1/conversations", "Conversations with unread counts"},
			{"POST", "/api/v1/conversations", "Open the thread with the other party"},
			{"GET", "/api/v1/conversations/:id/messages", "Paged messages, marks them read"},
			{"POST", "/api/v1/conversations/:id/messages", "Send a message"},
			{"GET", "/api/v1/ws", "Websocket upgrade (token in query)"},
		}},
		{Name: "Resources", Endpoints: []docsEndpoint{
			{"POST", "/api/v1/resources", "Create a link resource"},
			{"POST", "/api/v1/resources/upload", "Upload a file resource"},
			{"GET", "/api/v1/resources", "The coach's library"},
			{"POST", "/api/v1/resources/:id/share", "Share with a client"},
			{"GET", "/api/v1/resources/shared", "Resources shared with the client"},
		}},
		{Name: "Scheduler", Endpoints: []docsEndpoint{
			{"GET", "/api/cron/daily-program-delivery", "Daily delivery run, secret-gated"},
		}},
	}
}

func registerDocsRoutes(app fiber.Router, cfg *config.Config) error {
	if !cfg.DocsEnabled() {
		return nil
	}

	indexTemplate, err := template.New("docs-index").Parse(docsIndexHTML)
	if err != nil {
		return fmt.Errorf("parse docs template: %w", err)
	}

	pageData := docsPageData{
		Title:    "CoachDesk API Docs",
		LoadedAt: time.Now().UTC().Format(time.RFC3339),
		Groups:   endpointCatalog(),
	}

	indexHandler := func(c *fiber.Ctx) error {
		applyDocsBaseHeaders(c, fiber.MIMETextHTMLCharsetUTF8)
		c.Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; img-src 'self' data:; base-uri 'none'; form-action 'none'; frame-ancestors 'none'")

		var body bytes.Buffer
		if err := indexTemplate.Execute(&body, pageData); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to render api docs")
		}

		return c.Status(fiber.StatusOK).Send(body.Bytes())
	}

	app.Get("/docs", indexHandler)
	app.Get("/docs/", indexHandler)
	app.Get("/docs/endpoints.json", func(c *fiber.Ctx) error {
		applyDocsBaseHeaders(c, fiber.MIMEApplicationJSONCharsetUTF8)
		return c.JSON(fiber.Map{"groups": pageData.Groups})
	})

	return nil
}

func applyDocsBaseHeaders(c *fiber.Ctx, contentType string) {
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderCacheControl, "no-store, max-age=0")
	c.Set(fiber.HeaderPragma, "no-cache")
	c.Set(fiber.HeaderExpires, "0")
	c.Set(fiber.HeaderXContentTypeOptions, "nosniff")
	c.Set(fiber.HeaderXFrameOptions, "DENY")
	c.Set("Referrer-Policy", "no-referrer")
	c.Set("X-Robots-Tag", "noindex, nofollow")
}
