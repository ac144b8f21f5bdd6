package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/firebot/firebot/internal/status"
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
	"flame": func(lit bool) string {
		if lit {
			return "FLAME"
		}
		return "-"
	},
	"orUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="2">
<title>Firebot</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.flame { color: red; font-weight: bold; }
.idle { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Firebot</h1>

<h2>State</h2>
<table>
<tr><th>Mode</th><td id="mode" class="{{if eq .Mode.String "IDLE"}}idle{{end}}">{{.Mode}}</td></tr>
<tr><th>Behavior</th><td id="behavior">{{orUnknown (printf "%s" .Behavior)}}</td></tr>
{{if .Sensed}}<tr><th>Flames (L / C / R)</th><td id="flames"{{if .Flames.Any}} class="flame"{{end}}>{{flame .Flames.Left}} / {{flame .Flames.Center}} / {{flame .Flames.Right}}</td></tr>
<tr><th>Distance</th><td id="distance">{{printf "%.2f" .DistanceCM}} cm</td></tr>{{else}}<tr><th>Sensors</th><td>no reading yet</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Counts</h2>
<table>
<tr><th>Ticks</th><td>{{.Counts.Ticks}}</td></tr>
<tr><th>Fires</th><td>{{.Counts.Fires}}</td></tr>
<tr><th>Extinguishes</th><td>{{.Counts.Extinguishes}}</td></tr>
<tr><th>Avoids</th><td>{{.Counts.Avoids}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Obstacle</th><td>{{.Config.ObstacleCM}}cm</td></tr>
<tr><th>Fire near</th><td>{{.Config.FireNearCM}}cm</td></tr>
<tr><th>Pump</th><td>{{.Config.PumpMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has methods but the template wants plain fields.
	data := struct {
		status.Snapshot
		Uptime     time.Duration
		DistanceCM float64
	}{
		Snapshot:   snap,
		Uptime:     snap.Uptime(),
		DistanceCM: float64(snap.Distance),
	}
	return indexTmpl.Execute(w, data)
}
