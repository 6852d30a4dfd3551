package quality

import "github.com/JakeFAU/web-presence-auditor/internal/browser"

// Scripts evaluated against the live document. Every script is read-only and
// wraps its body in try/catch so hostile pages yield neutral values.
var (
	// ScriptMixedContent counts sub-resources requested over plain http.
	ScriptMixedContent = browser.Script{
		Name: "mixed-content",
		Source: `(() => {
	try {
		const insecure = new Set();
		const attrs = [["img","src"],["script","src"],["iframe","src"],["video","src"],
			["audio","src"],["source","src"],["link[rel~='stylesheet']","href"]];
		for (const [sel, attr] of attrs) {
			document.querySelectorAll(sel).forEach(el => {
				const v = el.getAttribute(attr) || "";
				if (v.toLowerCase().startsWith("http:")) { insecure.add(v); }
			});
		}
		(performance.getEntriesByType("resource") || []).forEach(e => {
			if (e.name.startsWith("http:")) { insecure.add(e.name); }
		});
		return {count: insecure.size};
	} catch (e) { return {count: 0}; }
})()`,
	}

	// ScriptResponsive reports the layout signals for the current viewport.
	ScriptResponsive = browser.Script{
		Name: "responsive",
		Source: `(() => {
	try {
		const meta = !!document.querySelector('meta[name="viewport"]');
		let media = false;
		for (const sheet of Array.from(document.styleSheets)) {
			try {
				const walk = rules => Array.from(rules || []).some(r =>
					(r.media && r.media.mediaText.includes("max-width")) ||
					(r.cssRules && walk(r.cssRules)));
				if (walk(sheet.cssRules)) { media = true; break; }
			} catch (e) {}
		}
		const body = document.body || document.documentElement;
		return {
			hasViewportMeta: meta,
			hasMediaQueries: media,
			scrollWidth: Math.max(body.scrollWidth, document.documentElement.scrollWidth),
			innerWidth: window.innerWidth
		};
	} catch (e) { return {hasViewportMeta: false, hasMediaQueries: false, scrollWidth: 0, innerWidth: 0}; }
})()`,
	}

	// ScriptModernity lists modern CSS features, UI patterns and font usage.
	ScriptModernity = browser.Script{
		Name: "modernity",
		Source: `(() => {
	const out = {features: [], patterns: [], customFonts: false, lastModified: document.lastModified || ""};
	try {
		const found = new Set();
		const els = Array.from(document.querySelectorAll("body *")).slice(0, 2000);
		for (const el of els) {
			const s = window.getComputedStyle(el);
			if (s.display.includes("flex")) { found.add("flexbox"); }
			if (s.display.includes("grid")) { found.add("grid"); }
			if (s.transform && s.transform !== "none") { found.add("transform"); }
			if (s.transitionDuration && s.transitionDuration.split(",").some(d => parseFloat(d) > 0)) { found.add("transition"); }
			if (s.borderRadius && s.borderRadius !== "0px") { found.add("rounded corners"); }
			if (s.boxShadow && s.boxShadow !== "none") { found.add("shadows"); }
			if (s.backgroundImage && s.backgroundImage.includes("gradient")) { found.add("gradients"); }
		}
		out.features = Array.from(found);
		const patterns = {
			"mobile menu": '.hamburger, .menu-toggle, .navbar-toggler, [class*="mobile-menu"], [aria-label*="menu"]',
			"hero banner": '.hero, [class*="hero"], [class*="banner"], [class*="header-image"]',
			"cards": '[class*="card"]',
			"modal": '[class*="modal"], dialog',
			"carousel": '[class*="carousel"], [class*="slider"], [class*="swiper"], [class*="slick"]'
		};
		for (const [name, sel] of Object.entries(patterns)) {
			if (document.querySelector(sel)) { out.patterns.push(name); }
		}
		const defaults = ["serif", "sans-serif", "times new roman", "times", "arial", "helvetica", "verdana", "georgia", "courier new", "monospace"];
		const family = window.getComputedStyle(document.body).fontFamily.split(",")[0].replace(/["']/g, "").trim().toLowerCase();
		const webFonts = document.fonts && Array.from(document.fonts).some(f => f.status === "loaded");
		const fontLinks = !!document.querySelector('link[href*="fonts.googleapis"], link[href*="typekit"], link[href*="fonts.com"]');
		out.customFonts = webFonts || fontLinks || (family !== "" && !defaults.includes(family));
	} catch (e) {}
	return out;
})()`,
	}

	// ScriptTechnology detects frameworks that only show up as globals.
	ScriptTechnology = browser.Script{
		Name: "technology",
		Source: `(() => {
	const found = [];
	try {
		if (window.jQuery) { found.push("jQuery"); }
		if (window.React || document.querySelector("[data-reactroot]")) { found.push("React"); }
		if (window.Vue || document.querySelector("[data-v-app]")) { found.push("Vue"); }
		if (window.angular || document.querySelector("[ng-version]")) { found.push("Angular"); }
		if (window.__NEXT_DATA__) { found.push("Next.js"); }
		if (window.__NUXT__) { found.push("Nuxt"); }
		if (window.___gatsby) { found.push("Gatsby"); }
		if (window.Shopify) { found.push("Shopify"); }
		if (window.wixBiSession) { found.push("Wix"); }
		if (window.Squarespace) { found.push("Squarespace"); }
	} catch (e) {}
	return found;
})()`,
	}
)

type mixedContentSignals struct {
	Count int `json:"count"`
}

type viewportSignals struct {
	HasViewportMeta bool `json:"hasViewportMeta"`
	HasMediaQueries bool `json:"hasMediaQueries"`
	ScrollWidth     int  `json:"scrollWidth"`
	InnerWidth      int  `json:"innerWidth"`
}

type modernitySignals struct {
	Features     []string `json:"features"`
	Patterns     []string `json:"patterns"`
	CustomFonts  bool     `json:"customFonts"`
	LastModified string   `json:"lastModified"`
}
