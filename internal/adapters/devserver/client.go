package devserver

// eventsPath is the websocket route of the live-update channel. The client
// script below connects to it, so both live in this package.
const eventsPath = "/__bale/events"

// clientScript is the live-update client served at domain.ClientScriptPath.
// It connects to the events endpoint, applies targeted updates through the
// module runtime (window.__bale), swaps stylesheet links, shows the build
// error overlay, and falls back to a full reload whenever an update cannot
// be applied in place.
const clientScript = `(() => {
  if (window.__bale_live) return;
  window.__bale_live = true;

  let revision = 0;
  let overlay = null;

  function showOverlay(diagnostics) {
    clearOverlay();
    overlay = document.createElement('div');
    overlay.id = '__bale-overlay';
    overlay.style.cssText = 'position:fixed;inset:0;z-index:2147483647;' +
      'background:rgba(18,18,18,.93);color:#fca5a5;font:14px/1.6 monospace;' +
      'padding:2rem;overflow:auto;white-space:pre-wrap';
    const lines = (diagnostics || []).map((d) => {
      const where = d.unit ? d.unit + (d.line ? ':' + d.line : '') + ' ' : '';
      return '[' + d.severity + '] ' + where + d.message;
    });
    overlay.textContent = 'build failed\n\n' + lines.join('\n');
    document.body.appendChild(overlay);
  }

  function clearOverlay() {
    if (overlay) { overlay.remove(); overlay = null; }
  }

  function swapStylesheets(swaps) {
    for (const swap of swaps || []) {
      for (const link of document.querySelectorAll('link[rel="stylesheet"]')) {
        const href = link.getAttribute('href') || '';
        if (href.endsWith(swap.old)) {
          link.setAttribute('href', href.slice(0, -swap.old.length) + swap.new);
        }
      }
    }
  }

  function connect() {
    const proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
    const ws = new WebSocket(proto + location.host + '/__bale/events');

    const ack = () => {
      if (ws.readyState === WebSocket.OPEN) {
        ws.send(JSON.stringify({ type: 'ack', revision: revision }));
      }
    };

    ws.onmessage = (e) => {
      let msg;
      try { msg = JSON.parse(e.data); } catch (_) { return; }
      revision = msg.revision;
      switch (msg.type) {
        case 'sync':
          clearOverlay();
          break;
        case 'update':
          if (window.__bale && window.__bale.apply(msg.moduleId, msg.newSource)) {
            console.log('[bale] updated ' + msg.moduleId);
            clearOverlay();
          } else {
            location.reload();
            return;
          }
          break;
        case 'css-swap':
          swapStylesheets(msg.swaps);
          clearOverlay();
          break;
        case 'full-reload':
          location.reload();
          return;
        case 'error':
          showOverlay(msg.diagnostics);
          break;
      }
      ack();
    };

    ws.onclose = () => {
      console.warn('[bale] live-update connection lost - retrying');
      setTimeout(connect, 2000);
    };
  }

  connect();
})();
`
