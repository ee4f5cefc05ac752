package browser

// In-page functions evaluated through Runtime.callFunctionOn. Each is a
// function expression; arguments arrive through EvalOptions.JSArgs.

const snapshotJS = `() => {
	const nav = performance.getEntriesByType('navigation')[0];
	return {
		navigation: nav ? { domInteractive: nav.domInteractive, loadEventEnd: nav.loadEventEnd } : null,
		paints: performance.getEntriesByType('paint').map((p) => ({ name: p.name, startTime: p.startTime })),
		resources: performance.getEntriesByType('resource').map((r) => ({
			name: r.name,
			initiatorType: r.initiatorType,
			duration: r.duration,
			transferSize: r.transferSize || 0,
		})),
	};
}`

const viewportJS = `() => ({ width: window.innerWidth, height: window.innerHeight })`

// mountJS inserts the panel unless an element with its id already exists.
const mountJS = `(id, html) => {
	if (document.getElementById(id)) return false;
	const tpl = document.createElement('template');
	tpl.innerHTML = html;
	const root = tpl.content.firstElementChild;
	if (!root) return false;
	document.body.appendChild(root);
	return true;
}`

const replaceChildrenJS = `(id, html) => {
	const el = document.getElementById(id);
	if (!el) return false;
	el.innerHTML = html;
	return true;
}`

const setStyleJS = `(id, css) => {
	const el = document.getElementById(id);
	if (!el) return false;
	el.setAttribute('style', css);
	return true;
}`

const setTextJS = `(id, text) => {
	const el = document.getElementById(id);
	if (!el) return false;
	el.textContent = text;
	return true;
}`

const ensureScriptJS = `(src) => {
	if (document.querySelector('script[src="' + src + '"]')) return false;
	const script = document.createElement('script');
	script.src = src;
	script.async = true;
	document.head.appendChild(script);
	return true;
}`

const capabilityReadyJS = `() => typeof window.apifree !== 'undefined' && typeof window.apifree.chat === 'function'`

const chatJS = `async (prompt) => {
	const reply = await window.apifree.chat(prompt);
	return typeof reply === 'string' ? reply : JSON.stringify(reply);
}`

// hooksJS installs the event buffer drained by Watch: buffered LCP
// candidates, viewport resizes and clicks on the details toggle.
const hooksJS = `(toggleId) => {
	const w = window;
	if (w.__perfoverlayHooked) return false;
	w.__perfoverlayHooked = true;
	w.__perfoverlayEvents = [];
	const push = (ev) => w.__perfoverlayEvents.push(Object.assign({ ts: Date.now() }, ev));

	try {
		new PerformanceObserver((list) => {
			const entries = list.getEntries();
			const last = entries[entries.length - 1];
			if (last) push({ type: 'lcp', value: last.startTime });
		}).observe({ type: 'largest-contentful-paint', buffered: true });
	} catch (e) {}

	w.addEventListener('resize', () => push({ type: 'resize', width: w.innerWidth, height: w.innerHeight }));

	document.addEventListener('click', (ev) => {
		const target = ev.target;
		if (target && target.closest && target.closest('#' + toggleId)) push({ type: 'toggle' });
	}, true);
	return true;
}`

const drainEventsJS = `() => (window.__perfoverlayEvents || []).splice(0)`
