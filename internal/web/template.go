package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/gesture-button/internal/logic"
	"github.com/sweeney/gesture-button/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"stateClass": func(s logic.State) string {
		switch s {
		case logic.StateUp:
			return "idle"
		case logic.StatePressed:
			return "pressed"
		default:
			return "active"
		}
	},
	"ms": func(d time.Duration) int64 {
		return d.Milliseconds()
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Gesture Buttons</title>
<style>
body { font-family: monospace; max-width: 720px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
.idle { color: #888; }
.active { color: orange; }
.pressed { color: green; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Gesture Buttons</h1>

<h2>Buttons</h2>
{{if .Buttons}}<table>
<tr><th>ID</th><th>Driver</th><th>State</th><th>Press</th><th>Clicks</th><th>Double</th><th>Long</th><th>Last</th></tr>
{{range .Buttons}}<tr>
<td><a href="/buttons/{{.ID}}.json">{{.ID}}</a></td>
<td>{{.Driver}}</td>
<td class="{{stateClass .State}}">{{.State}}</td>
<td>{{if .Pressed}}#{{.PressCounter}} {{ms .PressDuration}}ms{{else}}-{{end}}</td>
<td>{{.Counts.Click}}</td>
<td>{{.Counts.DoubleClick}}</td>
<td>{{.Counts.PressStart}}</td>
<td>{{if .LastEvent}}{{.LastEvent}}{{else}}-{{end}}</td>
</tr>
{{end}}</table>{{else}}<p>No buttons configured.</p>{{end}}

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Topic prefix</th><td>{{.Config.TopicPrefix}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
{{if .Config.ConfigPath}}<tr><th>Config</th><td>{{.Config.ConfigPath}}</td></tr>{{end}}
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
