package browser

// introspectVersion tags the injected script so state payloads can be matched
// to the script revision that produced them.
const introspectVersion = "v2"

// introspectScript is the single introspection routine evaluated on every
// extraction. It is a parameterized function literal: the only value spliced
// in at call time is the numeric element cap, so no page or user data is ever
// interpolated into the source.
//
// The routine scans interactive candidates, keeps visible ones, computes the
// selector ladder for each (id, name, data-testid, aria-label, engine attr,
// href, first class) and separately looks for a blocking overlay. When an
// overlay is found, buttons matching consent wording are flagged and moved to
// the front of the element list.
const introspectScript = `(maxElements) => {
	const consentWords = ["accept", "agree", "allow", "consent", "got it", "ok", "dismiss", "continue", "understand"];
	const overlayWords = ["cookie", "consent", "privacy", "gdpr"];

	const visible = (el) => {
		const style = window.getComputedStyle(el);
		if (!style || style.display === "none" || style.visibility === "hidden") return false;
		const rect = el.getBoundingClientRect();
		return rect.width > 1 && rect.height > 1;
	};

	const textOf = (el) => {
		const raw = el.innerText || el.value || el.placeholder ||
			el.getAttribute("aria-label") || el.getAttribute("title") || "";
		return raw.trim().replace(/\s+/g, " ").slice(0, 120);
	};

	let pilotSeq = 0;
	const selectorsFor = (el) => {
		const tag = el.tagName.toLowerCase();
		const out = [];
		if (el.id) out.push("#" + CSS.escape(el.id));
		const name = el.getAttribute("name");
		if (name) out.push(tag + '[name="' + CSS.escape(name) + '"]');
		const testId = el.getAttribute("data-testid") || el.getAttribute("data-test-id");
		if (testId) out.push('[data-testid="' + CSS.escape(testId) + '"],[data-test-id="' + CSS.escape(testId) + '"]');
		const aria = el.getAttribute("aria-label");
		if (aria) out.push(tag + '[aria-label="' + CSS.escape(aria) + '"]');
		let pilotId = el.getAttribute("data-pilot-id");
		if (!pilotId) {
			pilotId = "p-" + (pilotSeq++);
			el.setAttribute("data-pilot-id", pilotId);
		}
		out.push('[data-pilot-id="' + pilotId + '"]');
		const href = el.getAttribute("href");
		if (tag === "a" && href) out.push('a[href="' + CSS.escape(href) + '"]');
		if (el.classList.length > 0) out.push(tag + "." + CSS.escape(el.classList[0]));
		return out;
	};

	const kindOf = (el) => {
		const tag = el.tagName.toLowerCase();
		if (tag === "a") return "link";
		if (tag === "button" || el.getAttribute("role") === "button") return "button";
		if (tag === "input" || tag === "textarea" || tag === "select") return "input";
		return "clickable";
	};

	const findOverlay = () => {
		const candidates = document.querySelectorAll(
			'[role="dialog"], [aria-modal="true"], ' +
			'[class*="consent"], [class*="cookie"], [id*="consent"], [id*="cookie"]');
		let best = null, bestArea = 0;
		for (const el of candidates) {
			if (!visible(el)) continue;
			const rect = el.getBoundingClientRect();
			const area = rect.width * rect.height;
			if (area > bestArea) { best = el; bestArea = area; }
		}
		if (!best) {
			const bodyText = (document.body.innerText || "").toLowerCase().slice(0, 3000);
			const hit = overlayWords.some(w => bodyText.includes(w)) &&
				consentWords.some(w => bodyText.includes(w));
			if (!hit) return null;
			return { detected: true, kind: "consent-text", selector: "", text: "", node: null };
		}
		const marker = (best.className + " " + best.id).toLowerCase();
		const kind = overlayWords.some(w => marker.includes(w)) ? "consent" : "modal";
		return {
			detected: true,
			kind: kind,
			selector: selectorsFor(best)[0],
			text: textOf(best).slice(0, 200),
			node: best,
		};
	};

	const overlay = findOverlay();
	const elements = [];
	const seen = new Set();
	const candidates = document.querySelectorAll(
		'a, button, input, textarea, select, ' +
		'[role="button"], [role="link"], [role="textbox"], [onclick], [tabindex]');

	for (const el of candidates) {
		if (elements.length >= maxElements) break;
		if (!visible(el)) continue;
		const selectors = selectorsFor(el);
		if (seen.has(selectors[0])) continue;
		seen.add(selectors[0]);
		const rect = el.getBoundingClientRect();
		const text = textOf(el);
		const lower = text.toLowerCase();
		const insideOverlay = overlay && overlay.node && overlay.node.contains(el);
		const isConsent = Boolean(overlay) && insideOverlay &&
			consentWords.some(w => lower.includes(w));
		elements.push({
			tag: el.tagName.toLowerCase(),
			kind: kindOf(el),
			text: text,
			selector: selectors[0],
			altSelectors: selectors.slice(1),
			href: el.tagName.toLowerCase() === "a" ? (el.getAttribute("href") || "") : "",
			rect: { x: rect.x, y: rect.y, w: rect.width, h: rect.height },
			isConsentButton: isConsent,
		});
	}

	if (overlay) {
		elements.sort((a, b) => Number(b.isConsentButton) - Number(a.isConsentButton));
	}

	return {
		url: String(window.location.href || ""),
		title: String(document.title || ""),
		viewport: { width: window.innerWidth, height: window.innerHeight },
		overlay: overlay ? {
			detected: true, kind: overlay.kind, selector: overlay.selector, text: overlay.text,
		} : null,
		elements: elements,
	};
}`

// centerScript resolves an element's on-screen center, scrolling it into view
// first. Returns null when the selector resolves to nothing visible.
const centerScript = `(selector) => {
	const visible = (el) => {
		const style = window.getComputedStyle(el);
		if (!style || style.display === "none" || style.visibility === "hidden") return false;
		const rect = el.getBoundingClientRect();
		return rect.width > 1 && rect.height > 1;
	};
	const el = Array.from(document.querySelectorAll(selector)).find(visible);
	if (!el) return null;
	el.scrollIntoView({ block: "center", inline: "center" });
	const rect = el.getBoundingClientRect();
	return { x: rect.x + rect.width / 2, y: rect.y + rect.height / 2 };
}`

// focusClearScript focuses an element and clears its current value.
const focusClearScript = `(selector) => {
	const visible = (el) => {
		const style = window.getComputedStyle(el);
		if (!style || style.display === "none" || style.visibility === "hidden") return false;
		const rect = el.getBoundingClientRect();
		return rect.width > 1 && rect.height > 1;
	};
	const el = Array.from(document.querySelectorAll(selector)).find(visible);
	if (!el) return "not_found";
	el.scrollIntoView({ block: "center", inline: "center" });
	el.focus();
	if ("value" in el) {
		el.value = "";
		el.dispatchEvent(new Event("input", { bubbles: true }));
	}
	return "ok";
}`

// nativeClickScript activates an element through its DOM click method. Used as
// the fallback when center-point resolution fails.
const nativeClickScript = `(selector) => {
	const el = document.querySelector(selector);
	if (!el) return "not_found";
	el.scrollIntoView({ block: "center", inline: "center" });
	if (typeof el.focus === "function") el.focus();
	el.click();
	return "ok";
}`

// pageHTMLScript returns the document markup for the text condenser.
const pageHTMLScript = `() => document.documentElement ? document.documentElement.outerHTML : ""`
