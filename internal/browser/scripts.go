package browser

// Binding names exposed to the page with Runtime.addBinding.
const (
	ActivateBinding = "credifyActivate"
	DismissBinding  = "credifyDismiss"
)

// insertControlFn runs with `this` bound to the resolved anchor node.
// It returns "detached" when the anchor left the page.
const insertControlFn = `function() {
	const markup = %s, position = %s, itemID = %s;
	if (!this.isConnected) return "detached";
	this.insertAdjacentHTML(position, markup);
	const el = position === "afterend" ? this.nextElementSibling : this.lastElementChild;
	if (!el) return "missing";
	const btn = el.matches(".credi-btn") ? el : el.querySelector(".credi-btn");
	if (btn) {
		btn.addEventListener("click", (e) => {
			e.preventDefault();
			e.stopPropagation();
			window.credifyActivate(itemID);
		});
	}
	return "ok";
}`

// deepQueryAllJS walks the document and every open shadow root.
const deepQueryAllJS = `const credifyDeepQueryAll = (sel) => {
	const out = [];
	const visit = (root) => {
		root.querySelectorAll(sel).forEach((n) => out.push(n));
		root.querySelectorAll("*").forEach((n) => { if (n.shadowRoot) visit(n.shadowRoot); });
	};
	visit(document);
	return out;
};`

// restyleJS recolours existing controls after a theme switch.
const restyleJS = `(() => {
	` + deepQueryAllJS + `
	const c = %s;
	credifyDeepQueryAll(".credi-button-container").forEach((n) => {
		n.style.background = c.ContainerBg;
		n.style.borderTop = "1px solid " + c.ContainerBorder;
	});
	credifyDeepQueryAll(".credi-btn").forEach((n) => { n.style.background = c.ButtonBg; });
	return true;
})()`

// renderOverlayJS replaces any overlay with markup and wires its dismiss
// controls to the dismiss binding.
const renderOverlayJS = `(() => {
	const markup = %s, css = %s, styleID = %s, modalClass = %s, closeClass = %s;
	document.querySelectorAll("." + modalClass).forEach((n) => n.remove());
	if (!document.getElementById(styleID)) {
		const s = document.createElement("style");
		s.id = styleID;
		s.textContent = css;
		(document.head || document.documentElement).appendChild(s);
	}
	document.body.insertAdjacentHTML("beforeend", markup);
	const modal = document.body.lastElementChild;
	modal.querySelectorAll("." + closeClass).forEach((b) =>
		b.addEventListener("click", () => window.credifyDismiss("close")));
	modal.addEventListener("click", (e) => { if (e.target === modal) window.credifyDismiss("backdrop"); });
	if (!window.__credifyEscape) {
		window.__credifyEscape = true;
		document.addEventListener("keydown", (e) => {
			if (e.key === "Escape" && document.querySelector("." + modalClass)) window.credifyDismiss("escape");
		});
	}
	return true;
})()`

const removeOverlayJS = `(() => {
	document.querySelectorAll("." + %s).forEach((n) => n.remove());
	return true;
})()`
