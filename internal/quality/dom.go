package quality

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/web-presence-auditor/internal/audit"
)

var (
	contactKeywords = []string{"contact", "phone", "call us", "email", "e-mail", "address", "hours", "opening times"}
	aboutKeywords   = []string{"about", "services", "our team", "what we do", "our story"}
)

// visibleText returns the lowercased text of the body without script-like
// elements.
func visibleText(doc *goquery.Document) string {
	body := doc.Find("body").Clone()
	body.Find("script, style, noscript, template, svg").Remove()
	return strings.ToLower(strings.Join(strings.Fields(body.Text()), " "))
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func contentFinding(doc *goquery.Document) audit.ProbeFinding {
	text := visibleText(doc)
	words := len(strings.Fields(text))
	h1 := doc.Find("h1").Length()
	headings := doc.Find("h1, h2, h3, h4, h5, h6").Length()
	contact := containsAny(text, contactKeywords) ||
		doc.Find(`a[href^="tel:"], a[href^="mailto:"]`).Length() > 0
	about := containsAny(text, aboutKeywords)
	images := doc.Find("img")
	withAlt := images.FilterFunction(func(_ int, s *goquery.Selection) bool {
		alt, ok := s.Attr("alt")
		return ok && strings.TrimSpace(alt) != ""
	}).Length()
	forms := doc.Find("form").Length()

	var (
		score  float64
		issues []string
	)
	if words > 200 {
		score += 2
	} else {
		issues = append(issues, fmt.Sprintf("thin content (%d words)", words))
	}
	if h1 > 0 {
		score++
	} else {
		issues = append(issues, "no H1 heading")
	}
	if headings >= 3 {
		score++
	} else {
		issues = append(issues, "few headings")
	}
	if contact {
		score += 2
	} else {
		issues = append(issues, "no contact information")
	}
	if about {
		score++
	} else {
		issues = append(issues, "no about or services information")
	}
	if n := images.Length(); n == 0 || float64(withAlt)/float64(n) > 0.8 {
		score++
	} else {
		issues = append(issues, fmt.Sprintf("images missing alt text (%d of %d described)", withAlt, n))
	}
	if forms > 0 {
		score++
	} else {
		issues = append(issues, "no contact form")
	}
	score = clamp(score)
	return audit.ProbeFinding{
		Dimension: audit.DimensionContent,
		Score:     score,
		Passed:    score >= 5,
		Issues:    issues,
		Detail:    fmt.Sprintf("%d words, %d headings", words, headings),
	}
}

func seoFinding(doc *goquery.Document) audit.ProbeFinding {
	var (
		score  float64
		issues []string
	)
	title := strings.TrimSpace(doc.Find("title").First().Text())
	switch n := utf8.RuneCountInString(title); {
	case n == 0:
		issues = append(issues, "missing page title")
	case n >= 30 && n <= 60:
		score += 2
	default:
		score++
		issues = append(issues, fmt.Sprintf("title length %d (recommended 30-60)", n))
	}

	desc := strings.TrimSpace(metaContent(doc, "name", "description"))
	switch n := utf8.RuneCountInString(desc); {
	case n == 0:
		issues = append(issues, "missing meta description")
	case n >= 120 && n <= 160:
		score += 2
	default:
		score++
		issues = append(issues, fmt.Sprintf("meta description length %d (recommended 120-160)", n))
	}

	switch h1 := doc.Find("h1").Length(); {
	case h1 == 1:
		score++
	case h1 == 0:
		issues = append(issues, "missing H1 tag")
	default:
		issues = append(issues, fmt.Sprintf("multiple H1 tags (%d)", h1))
	}

	og := doc.Find("meta").FilterFunction(func(_ int, s *goquery.Selection) bool {
		prop, _ := s.Attr("property")
		return strings.HasPrefix(strings.ToLower(prop), "og:")
	}).Length()
	if og >= 3 {
		score++
	} else {
		issues = append(issues, "missing Open Graph tags")
	}
	score = clamp(score)
	return audit.ProbeFinding{
		Dimension: audit.DimensionSEO,
		Score:     score,
		Passed:    score >= 4,
		Issues:    issues,
	}
}

func metaContent(doc *goquery.Document, attr, value string) string {
	var content string
	doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if v, _ := s.Attr(attr); strings.EqualFold(v, value) {
			content, _ = s.Attr("content")
			return false
		}
		return true
	})
	return content
}

type signature struct {
	name string
	// markers are matched against lowercased script srcs and link hrefs.
	markers []string
	// selector matches a DOM signature.
	selector string
}

var signatures = []signature{
	{name: "WordPress", markers: []string{"wp-content", "wp-includes"}},
	{name: "WooCommerce", markers: []string{"woocommerce"}, selector: ".woocommerce"},
	{name: "Shopify", markers: []string{"cdn.shopify.com"}, selector: "[data-shopify]"},
	{name: "Squarespace", markers: []string{"squarespace.com"}},
	{name: "Wix", markers: []string{"parastorage.com", "wixstatic.com"}},
	{name: "Webflow", markers: []string{"webflow"}, selector: "html[data-wf-site]"},
	{name: "Drupal", markers: []string{"/sites/default/files", "drupal.js"}},
	{name: "Joomla", markers: []string{"/media/jui/", "/media/system/js"}},
	{name: "Magento", markers: []string{"/static/frontend/", "magento"}},
	{name: "Bootstrap", markers: []string{"bootstrap"}},
	{name: "Tailwind CSS", markers: []string{"tailwind"}},
	{name: "Font Awesome", markers: []string{"font-awesome", "fontawesome"}},
	{name: "React", selector: "[data-reactroot]"},
	{name: "Next.js", markers: []string{"/_next/"}, selector: "#__next"},
	{name: "Nuxt", markers: []string{"/_nuxt/"}, selector: "#__nuxt"},
	{name: "Angular", selector: "[ng-version]"},
}

// domTechnologies detects technology signatures in the static markup,
// starting with the generator meta tag.
func domTechnologies(doc *goquery.Document) []string {
	var found []string
	if gen := strings.TrimSpace(metaContent(doc, "name", "generator")); gen != "" {
		found = append(found, gen)
	}
	var refs []string
	doc.Find("script[src], link[href]").Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr("src"); ok {
			refs = append(refs, strings.ToLower(v))
		}
		if v, ok := s.Attr("href"); ok {
			refs = append(refs, strings.ToLower(v))
		}
	})
	for _, sig := range signatures {
		if matchesSignature(doc, refs, sig) {
			found = append(found, sig.name)
		}
	}
	return found
}

func matchesSignature(doc *goquery.Document, refs []string, sig signature) bool {
	if sig.selector != "" && doc.Find(sig.selector).Length() > 0 {
		return true
	}
	for _, ref := range refs {
		if containsAny(ref, sig.markers) {
			return true
		}
	}
	return false
}

// mergeTechnologies joins detections, dropping names already covered by an
// earlier entry such as "WordPress 6.4".
func mergeTechnologies(groups ...[]string) string {
	var out []string
	for _, group := range groups {
		for _, name := range group {
			name = strings.TrimSpace(name)
			if name == "" || covered(out, name) {
				continue
			}
			out = append(out, name)
		}
	}
	if len(out) == 0 {
		return customTechnology
	}
	return strings.Join(out, ", ")
}

func covered(existing []string, name string) bool {
	lower := strings.ToLower(name)
	for _, e := range existing {
		if strings.Contains(strings.ToLower(e), lower) {
			return true
		}
	}
	return false
}

// customTechnology is reported when no signature matched.
const customTechnology = "Custom/Unknown"
