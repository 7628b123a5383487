package api

const docsHTML = `<!doctype html>
<html lang="en" data-theme="dark">
<head>
  <meta charset="utf-8" />
  <meta name="referrer" content="same-origin" />
  <meta name="viewport" content="width=device-width, initial-scale=1, shrink-to-fit=no" />
  <title>TwinType API</title>
  <link href="https://unpkg.com/@stoplight/elements@9.0.0/styles.min.css" rel="stylesheet" />
  <script src="https://unpkg.com/@stoplight/elements@9.0.0/web-components.min.js" crossorigin="anonymous"></script>
</head>
<body style="height: 100vh; margin: 0; position: relative;">
  <a href="/docs/events" style="
    position: fixed;
    top: 12px;
    right: 16px;
    z-index: 9999;
    background: #161b22;
    border: 1px solid #30363d;
    border-radius: 6px;
    color: #58a6ff;
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif;
    font-size: 12px;
    font-weight: 500;
    padding: 5px 12px;
    text-decoration: none;
  ">Event Stream Docs →</a>
  <elements-api
    apiDescriptionUrl="/openapi.json"
    router="hash"
    layout="sidebar"
    tryItCredentialsPolicy="same-origin"
    darkMode
  />
</body>
</html>`

const eventsDocsHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Event Stream — TwinType</title>
  <style>
    body {
      margin: 0;
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
      font-size: 14px;
      line-height: 1.65;
      background: #0d1117;
      color: #c9d1d9;
    }
    main { max-width: 860px; margin: 0 auto; padding: 24px; }
    a { color: #58a6ff; text-decoration: none; }
    h1, h2 { color: #e6edf3; }
    code, pre {
      font-family: ui-monospace, SFMono-Regular, Menlo, monospace;
      background: #161b22;
      border: 1px solid #30363d;
      border-radius: 6px;
    }
    code { padding: 1px 5px; }
    pre { padding: 12px 16px; overflow-x: auto; }
    table { border-collapse: collapse; width: 100%; }
    td, th { border: 1px solid #30363d; padding: 6px 10px; text-align: left; }
  </style>
</head>
<body>
<main>
  <p><a href="/docs">← API reference</a></p>
  <h1>Event stream</h1>
  <p><code>GET /api/v1/events</code> streams Server-Sent Events. Each event name is a feed;
  the data line is one JSON object.</p>
  <table>
    <tr><th>Feed</th><th>Payload</th></tr>
    <tr><td><code>composer_changed</code></td><td><code>{tabId, provider, text}</code>, an edit typed directly in a provider tab</td></tr>
    <tr><td><code>toast</code></td><td><code>{id, level, message, at}</code>, a transient panel notice</td></tr>
    <tr><td><code>diagnostic</code></td><td><code>{id, level, message, tabId, at}</code>, a diagnostics log entry</td></tr>
  </table>
  <h2>Filtering</h2>
  <p>Pass <code>?feeds=</code> with a comma-separated list to receive only some feeds.</p>
  <pre><code>curl -N http://127.0.0.1:8190/api/v1/events
curl -N 'http://127.0.0.1:8190/api/v1/events?feeds=composer_changed,toast'</code></pre>
  <h2>Browser</h2>
  <pre><code>const sse = new EventSource('http://127.0.0.1:8190/api/v1/events');
sse.addEventListener('composer_changed', (e) => console.log(JSON.parse(e.data)));</code></pre>
  <p>Slow clients have events dropped rather than stalling the panel. Comment lines
  keep idle connections open.</p>
</main>
</body>
</html>`
