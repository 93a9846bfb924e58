package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/button-sensor/internal/status"
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
	"eventOrNone": func(s string) string {
		if s == "" {
			return "-"
		}
		return s
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Button Sensor</title>
<style>
body { font-family: monospace; max-width: 720px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
.pressed { color: green; font-weight: bold; }
.released { color: #888; }
.disabled { color: #bbb; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Button Sensor{{if .Live}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>Buttons</h2>
<table>
<tr><th>Name</th><th>Pin</th><th>State</th><th>Latch</th><th>Last</th><th>Duration</th><th>S/L/D</th></tr>
{{range $i, $b := .Buttons}}<tr id="button-{{$i}}"{{if not $b.Enabled}} class="disabled"{{end}}>
<td>{{$b.Name}}</td>
<td>{{$b.Pin}}</td>
<td class="state {{if $b.Pressed}}pressed{{else}}released{{end}}">{{if not $b.Enabled}}disabled{{else if $b.Pressed}}pressed{{else}}released{{end}}</td>
<td class="latch">{{if $b.Latched}}on{{else}}off{{end}}</td>
<td class="last">{{eventOrNone $b.LastEvent}}</td>
<td class="duration">{{$b.LastDurationMs}}ms</td>
<td class="counts">{{$b.Counts.Short}}/{{$b.Counts.Long}}/{{$b.Counts.Double}}</td>
</tr>
{{end}}</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .MQTTBuffered}}<tr><th>Queued</th><td>{{.MQTTBuffered}}</td></tr>{{end}}
{{if .Config.RedisAddr}}<tr><th>Redis</th><td class="{{if .RedisConnected}}connected{{else}}disconnected{{end}}">{{.Config.RedisAddr}}</td></tr>{{end}}
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
{{if .InputErrors}}<tr><th>Read errors</th><td>{{.InputErrors}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Input</th><td>{{.Config.Backend}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.Timing.Debounce}}ms</td></tr>
<tr><th>Short / Long</th><td>{{.Config.Timing.ShortPressMin}}ms / {{.Config.Timing.LongPressMin}}ms</td></tr>
<tr><th>Double-click gap</th><td>{{.Config.Timing.DoubleClickMaxGap}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
{{if .Live}}
<script>
(function() {
  var dot = document.getElementById("live-dot");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function apply(b, i) {
    var row = document.getElementById("button-" + i);
    if (!row) { return; }
    var st = row.querySelector(".state");
    st.textContent = b.enabled === false ? "disabled" : (b.pressed ? "pressed" : "released");
    st.className = "state " + (b.pressed ? "pressed" : "released");
    row.querySelector(".latch").textContent = b.latched ? "on" : "off";
  }

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() {
      setDot("err", "offline");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(m) {
      try {
        var msg = JSON.parse(m.data);
        if (msg.type === "status_init" || msg.type === "status_update") {
          msg.data.status.buttons.forEach(apply);
        } else if (msg.type === "button_event") {
          var row = document.getElementById("button-" + msg.data.index);
          if (row) {
            row.querySelector(".latch").textContent = msg.data.latched ? "on" : "off";
            row.querySelector(".last").textContent = msg.data.event;
            if (msg.data.event !== "LATCH") {
              row.querySelector(".duration").textContent = msg.data.duration_ms + "ms";
            }
          }
        }
      } catch (e) {}
    };
  }
  connect();
})();
</script>
{{end}}
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot, live bool) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Live   bool
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Live:     live,
	}
	return indexTmpl.Execute(w, data)
}
