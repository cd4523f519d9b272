package server

import (
	"net/http"
)

// indexHTML is a minimal dashboard over the JSON API. It lists jobs and
// follows the event stream so scores appear as they complete.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>imgdist</title>
<style>
body { font-family: sans-serif; margin: 2em; color: #222; }
table { border-collapse: collapse; margin-top: 1em; }
th, td { border: 1px solid #ccc; padding: 0.4em 0.8em; text-align: left; }
th { background: #f0f0f0; }
td.num { text-align: right; font-variant-numeric: tabular-nums; }
.state-completed { color: #1a7f37; }
.state-failed { color: #cf222e; }
.state-running { color: #9a6700; }
</style>
</head>
<body>
<h1>imgdist</h1>
<p>Perceptual image comparison jobs. Submit with
<code>POST /api/compare</code>, follow live updates on
<code>/api/events</code>.</p>
<table>
<thead><tr><th>Job</th><th>State</th><th>Reference</th><th>Distorted</th>
<th>Distance</th><th>PSNR</th></tr></thead>
<tbody id="jobs"></tbody>
</table>
<script>
function render(jobs) {
  const tbody = document.getElementById('jobs');
  tbody.innerHTML = '';
  for (const job of jobs) {
    const row = tbody.insertRow();
    row.insertCell().textContent = job.id.slice(0, 8);
    const state = row.insertCell();
    state.textContent = job.state;
    state.className = 'state-' + job.state;
    row.insertCell().textContent = job.request.ref;
    row.insertCell().textContent = job.request.dist;
    const distance = row.insertCell();
    distance.className = 'num';
    distance.textContent = job.result ? job.result.distance.toFixed(4) : '';
    const psnr = row.insertCell();
    psnr.className = 'num';
    psnr.textContent = job.result ? job.result.psnr.toFixed(2) : '';
  }
}
async function refresh() {
  const resp = await fetch('/api/jobs');
  render(await resp.json());
}
refresh();
new EventSource('/api/events').onmessage = refresh;
</script>
</body>
</html>
`

// handleIndex handles GET /
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	// Only handle exact root path
	if r.URL.Path != "/" {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexHTML))
}
