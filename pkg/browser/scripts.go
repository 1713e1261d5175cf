package browser

// probeScript returns the state of the first element matching a CSS selector.
// Presence, visibility and clickability are all read in one evaluation so the
// stronger checks always see the same element as the weaker ones.
const probeScript = `(selector) => {
  const el = document.querySelector(selector);
  if (!el || !el.isConnected) {
    return { present: false, visible: false, enabled: false, obscured: false, text: "", width: 0, height: 0 };
  }
  const rect = el.getBoundingClientRect();
  const style = window.getComputedStyle(el);
  const visible = rect.width > 0 && rect.height > 0 &&
    style.visibility !== "hidden" && style.display !== "none" &&
    parseFloat(style.opacity || "1") > 0;
  const enabled = el.disabled !== true && el.getAttribute("aria-disabled") !== "true";
  let obscured = false;
  if (visible) {
    const top = document.elementFromPoint(rect.left + rect.width / 2, rect.top + rect.height / 2);
    obscured = top !== null && top !== el && !el.contains(top);
  }
  return {
    present: true,
    visible: visible,
    enabled: enabled,
    obscured: obscured,
    text: (el.innerText || el.textContent || "").trim(),
    width: rect.width,
    height: rect.height
  };
}`

// readinessScript reports document.readyState and, only once the document is
// complete, the number of active jQuery requests. A page without jQuery, or
// one where reading it throws, counts as idle.
const readinessScript = `() => {
  const state = document.readyState;
  if (state !== "complete") {
    return { state: state, pending: 0, checked: false };
  }
  let pending = 0;
  try {
    if (window.jQuery && typeof window.jQuery.active === "number") {
      pending = window.jQuery.active;
    }
  } catch (e) {
    pending = 0;
  }
  return { state: state, pending: pending, checked: true };
}`
