package emitter

// runtimePrelude is the module runtime emitted at the top of every script
// chunk. It installs window.__bale exactly once, so loading several chunks
// on one page shares a single registry. The apply hook is what the dev
// server's client calls to re-execute a changed module in place; it mutates
// the existing exports object so importers holding a reference observe the
// new values.
//
// The prelude is plain ES5 so emitted chunks run without any transpilation,
// including in pages that load them through a file:// shell.
const runtimePrelude = `(function (global) {
  if (global.__bale) { return; }
  var modules = {};
  var cache = {};
  function require(id) {
    var entry = cache[id];
    if (entry) { return entry.exports; }
    var factory = modules[id];
    if (!factory) {
      throw new Error('bale: module "' + id + '" is not registered (external imports are not bundled)');
    }
    entry = { exports: {} };
    cache[id] = entry;
    factory.call(global, require, entry.exports);
    return entry.exports;
  }
  function lazyRequire(id) {
    try {
      return Promise.resolve(require(id));
    } catch (err) {
      return Promise.reject(err);
    }
  }
  function injectStyle(id, css) {
    var el = document.querySelector('style[data-bale-id="' + id + '"]');
    if (!el) {
      el = document.createElement('style');
      el.setAttribute('data-bale-id', id);
      document.head.appendChild(el);
    }
    el.textContent = css;
  }
  function apply(id, source) {
    if (!modules[id]) { return false; }
    try {
      (0, eval)(source);
      var entry = cache[id];
      if (entry) {
        var exportsObj = entry.exports;
        for (var key in exportsObj) {
          if (Object.prototype.hasOwnProperty.call(exportsObj, key)) {
            delete exportsObj[key];
          }
        }
        modules[id].call(global, require, exportsObj);
      }
      return true;
    } catch (err) {
      if (global.console && global.console.error) {
        global.console.error('bale: applying update for "' + id + '" failed', err);
      }
      return false;
    }
  }
  global.__bale = {
    register: function (id, deps, factory) { modules[id] = factory; },
    require: require,
    "import": lazyRequire,
    injectStyle: injectStyle,
    apply: apply
  };
  global.__bale_register = global.__bale.register;
  global.__bale_require = require;
  global.__bale_import = lazyRequire;
  global.__bale_inject_style = injectStyle;
})(typeof window !== "undefined" ? window : this);
`
