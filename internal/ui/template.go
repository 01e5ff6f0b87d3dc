package ui

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Thread Topology</title>
    <script src="https://unpkg.com/vis-network/standalone/umd/vis-network.min.js"></script>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }

        :root {
            --bg-primary: #0f172a;
            --bg-secondary: #1e293b;
            --bg-card: #334155;
            --text-primary: #f8fafc;
            --text-secondary: #94a3b8;
            --accent: #3b82f6;
            --success: #22c55e;
            --warning: #f59e0b;
            --error: #ef4444;
            --border: #475569;
        }

        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background: var(--bg-primary);
            color: var(--text-primary);
            min-height: 100vh;
            display: flex;
            flex-direction: column;
        }

        header {
            padding: 16px 24px;
            background: var(--bg-secondary);
            border-bottom: 1px solid var(--border);
            display: flex;
            align-items: center;
            gap: 24px;
        }

        header h1 { font-size: 18px; font-weight: 600; }
        .stat { color: var(--text-secondary); font-size: 13px; }
        .stat b { color: var(--text-primary); }

        .status-dot {
            width: 8px; height: 8px; border-radius: 50%;
            background: var(--warning); display: inline-block; margin-right: 6px;
        }
        .status-dot.live { background: var(--success); }
        .status-dot.down { background: var(--error); }

        main { flex: 1; display: flex; min-height: 0; }
        #graph { flex: 1; min-height: 600px; }

        aside {
            width: 340px;
            background: var(--bg-secondary);
            border-left: 1px solid var(--border);
            padding: 20px;
            overflow-y: auto;
        }

        aside h2 { font-size: 14px; color: var(--text-secondary); margin-bottom: 12px; text-transform: uppercase; }
        table { width: 100%; border-collapse: collapse; font-size: 13px; }
        td { padding: 6px 0; border-bottom: 1px solid var(--border); vertical-align: top; }
        td:first-child { color: var(--text-secondary); width: 45%; }
        pre { font-size: 11px; white-space: pre-wrap; color: var(--text-secondary); margin-top: 16px; }

        button {
            background: var(--accent); color: white; border: none;
            padding: 6px 12px; border-radius: 4px; cursor: pointer; font-size: 13px;
        }
        footer { padding: 8px 24px; font-size: 12px; color: var(--text-secondary); }
    </style>
</head>
<body>
    <header>
        <h1><span id="status" class="status-dot"></span>Thread Topology</h1>
        <span class="stat">Network <b id="network-name">-</b></span>
        <span class="stat">Leader <b id="leader">-</b></span>
        <span class="stat">Routers <b id="router-count">0</b></span>
        <span class="stat">Nodes <b id="node-count">0</b></span>
        <button id="refresh">Refresh</button>
        <button id="follow">Follow border router</button>
    </header>
    <main>
        <div id="graph"></div>
        <aside>
            <h2>Selected node</h2>
            <table id="detail"><tr><td>Node</td><td>Unknown</td></tr></table>
            <pre id="raw"></pre>
        </aside>
    </main>
    <footer>otbr-web {{.Version}} &middot; border router {{.BorderRouter}}</footer>

    <script>
        const colors = { Leader: '#a855f7', Router: '#3b82f6', Child: '#22c55e' };
        const nodes = new vis.DataSet();
        const edges = new vis.DataSet();
        const network = new vis.Network(document.getElementById('graph'), { nodes, edges }, {
            physics: { stabilization: false, barnesHut: { springLength: 120 } },
            nodes: { shape: 'dot', font: { color: '#f8fafc' } },
            edges: { smooth: false }
        });

        let current = null;
        let socket = null;

        function render(graph) {
            current = graph;
            document.getElementById('network-name').textContent = graph.networkName || '-';
            document.getElementById('leader').textContent = graph.leaderHex;
            document.getElementById('router-count').textContent = graph.routerCount;
            document.getElementById('node-count').textContent = graph.nodes.length;

            nodes.clear();
            edges.clear();
            graph.nodes.forEach((n, i) => nodes.add({
                id: i,
                label: n.Rloc16,
                size: n.Role === 'Child' ? 8 : 16,
                color: colors[n.Role]
            }));
            graph.links.forEach((l, i) => edges.add({
                id: i,
                from: l.source,
                to: l.target,
                dashes: l.type === 1,
                title: l.type === 0
                    ? 'LQ in ' + l.linkInfo.inQuality + ' / out ' + l.linkInfo.outQuality
                    : 'timeout ' + l.linkInfo.Timeout + 's, mode ' + l.linkInfo.Mode
            }));
            renderDetail(graph.selectedNode);
        }

        function renderDetail(node) {
            const table = document.getElementById('detail');
            const raw = document.getElementById('raw');
            table.innerHTML = '';
            if (!node || node === 'Unknown') {
                table.innerHTML = '<tr><td>Node</td><td>Unknown</td></tr>';
                raw.textContent = '';
                return;
            }
            const rows = [['Rloc16', node.Rloc16], ['Role', node.Role], ['Route ID', node.RouteId]];
            if (node.ExtAddress) rows.push(['Ext address', node.ExtAddress]);
            if (node.LeaderData) rows.push(['Leader router', node.LeaderData.LeaderRouterId]);
            if (node.ChildTable) rows.push(['Children', node.ChildTable.length]);
            if (node.Route) rows.push(['Routes', node.Route.RouteData.length]);
            rows.forEach(([k, v]) => {
                const tr = table.insertRow();
                tr.insertCell().textContent = k;
                tr.insertCell().textContent = v;
            });
            raw.textContent = JSON.stringify(node, null, 2);
        }

        function select(rloc16) {
            if (socket && socket.readyState === WebSocket.OPEN) {
                socket.send(JSON.stringify({ rloc16 }));
                return;
            }
            fetch('/api/topology/selected?rloc16=' + encodeURIComponent(rloc16), { method: 'POST' })
                .then(() => load());
        }

        network.on('click', (e) => {
            if (e.nodes.length && current) select(current.nodes[e.nodes[0]].Rloc16);
        });

        function setStatus(state) {
            document.getElementById('status').className = 'status-dot ' + state;
        }

        function load() {
            fetch('/api/topology')
                .then(r => r.ok ? r.json() : Promise.reject(r.status))
                .then(render)
                .catch(() => setStatus('down'));
        }

        function connect() {
            const proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
            socket = new WebSocket(proto + location.host + '/api/live');
            socket.onopen = () => setStatus('live');
            socket.onmessage = (e) => render(JSON.parse(e.data));
            socket.onclose = () => {
                setStatus('down');
                setTimeout(connect, 3000);
            };
        }

        document.getElementById('refresh').onclick = () =>
            fetch('/api/topology/refresh', { method: 'POST' })
                .then(r => r.ok ? r.json() : Promise.reject(r.status))
                .then(render)
                .catch(() => setStatus('down'));
        document.getElementById('follow').onclick = () => select('auto');

        load();
        connect();
    </script>
</body>
</html>`
