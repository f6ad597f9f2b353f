package cleaner

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StructuredContent is the markdown rendering of a first-class JSON-LD
// entity found on the page.
type StructuredContent struct {
	Markdown string
	Title    string
	// Type is the JSON-LD @type that was rendered.
	Type string
}

// ExtractJSONLD scans every <script type="application/ld+json"> block,
// flattens @graph and array forms, and renders the first supported
// entity to markdown. Returns false when no supported entity yields a
// complete result.
func ExtractJSONLD(rawHTML string) (StructuredContent, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return StructuredContent{}, false
	}

	var entities []map[string]any
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var raw any
		if err := json.Unmarshal([]byte(s.Text()), &raw); err != nil {
			return // malformed blocks fall through to the DOM path
		}
		entities = append(entities, flattenEntities(raw)...)
	})

	for _, ent := range entities {
		sc, ok := renderEntity(ent)
		if ok {
			return sc, true
		}
	}
	return StructuredContent{}, false
}

// flattenEntities unwraps arrays and @graph containers into a flat
// entity list.
func flattenEntities(raw any) []map[string]any {
	var out []map[string]any
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			out = append(out, flattenEntities(item)...)
		}
	case map[string]any:
		if graph, ok := v["@graph"]; ok {
			out = append(out, flattenEntities(graph)...)
		}
		out = append(out, v)
	}
	return out
}

// renderEntity dispatches on @type. New types extend this switch.
func renderEntity(ent map[string]any) (StructuredContent, bool) {
	for _, t := range entityTypes(ent) {
		switch t {
		case "Recipe":
			return renderRecipe(ent)
		case "Product":
			return renderProduct(ent)
		case "Article", "NewsArticle", "BlogPosting", "TechArticle":
			return renderArticle(ent, t)
		case "FAQPage":
			return renderFAQ(ent)
		case "HowTo":
			return renderHowTo(ent)
		case "Event":
			return renderEvent(ent)
		case "LocalBusiness", "Restaurant", "Store":
			return renderLocalBusiness(ent, t)
		case "Review":
			return renderReview(ent)
		}
	}
	return StructuredContent{}, false
}

// entityTypes returns the @type values; JSON-LD allows both a string
// and an array here.
func entityTypes(ent map[string]any) []string {
	switch v := ent["@type"].(type) {
	case string:
		return []string{v}
	case []any:
		var out []string
		for _, t := range v {
			if s, ok := t.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func renderRecipe(ent map[string]any) (StructuredContent, bool) {
	name := jsonStr(ent, "name")
	ingredients := jsonStrList(ent["recipeIngredient"])
	steps := instructionSteps(ent["recipeInstructions"])
	if name == "" || (len(ingredients) == 0 && len(steps) == 0) {
		return StructuredContent{}, false
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", name)
	writeLine(&b, jsonStr(ent, "description"))
	writeField(&b, "Prep time", formatDuration(jsonStr(ent, "prepTime")))
	writeField(&b, "Cook time", formatDuration(jsonStr(ent, "cookTime")))
	writeField(&b, "Total time", formatDuration(jsonStr(ent, "totalTime")))
	writeField(&b, "Yield", jsonStr(ent, "recipeYield"))

	if len(ingredients) > 0 {
		b.WriteString("\n## Ingredients\n\n")
		for _, ing := range ingredients {
			fmt.Fprintf(&b, "- %s\n", ing)
		}
	}
	if len(steps) > 0 {
		b.WriteString("\n## Instructions\n\n")
		for i, step := range steps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, step)
		}
	}
	writeRating(&b, ent)
	return StructuredContent{Markdown: finishMarkdown(&b), Title: name, Type: "Recipe"}, true
}

func renderProduct(ent map[string]any) (StructuredContent, bool) {
	name := jsonStr(ent, "name")
	if name == "" {
		return StructuredContent{}, false
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", name)
	writeLine(&b, jsonStr(ent, "description"))
	writeField(&b, "Brand", nestedName(ent["brand"]))

	offers := firstObject(ent["offers"])
	if offers != nil {
		price := jsonStr(offers, "price")
		currency := jsonStr(offers, "priceCurrency")
		if price != "" {
			writeField(&b, "Price", strings.TrimSpace(price+" "+currency))
		}
		if avail := jsonStr(offers, "availability"); avail != "" {
			writeField(&b, "Availability", strings.TrimPrefix(avail, "https://schema.org/"))
		}
	}
	writeRating(&b, ent)
	return StructuredContent{Markdown: finishMarkdown(&b), Title: name, Type: "Product"}, true
}

func renderArticle(ent map[string]any, typ string) (StructuredContent, bool) {
	headline := jsonStr(ent, "headline")
	if headline == "" {
		headline = jsonStr(ent, "name")
	}
	body := jsonStr(ent, "articleBody")
	// Headline-only Article entities are SEO decoration; the DOM path
	// does a better job there.
	if headline == "" || body == "" {
		return StructuredContent{}, false
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", headline)
	writeField(&b, "Author", nestedName(ent["author"]))
	writeField(&b, "Published", jsonStr(ent, "datePublished"))
	if desc := jsonStr(ent, "description"); desc != "" && desc != body {
		writeLine(&b, desc)
	}
	b.WriteString("\n")
	b.WriteString(body)
	b.WriteString("\n")
	return StructuredContent{Markdown: finishMarkdown(&b), Title: headline, Type: typ}, true
}

func renderFAQ(ent map[string]any) (StructuredContent, bool) {
	questions, _ := ent["mainEntity"].([]any)
	if len(questions) == 0 {
		return StructuredContent{}, false
	}
	var b strings.Builder
	title := jsonStr(ent, "name")
	if title == "" {
		title = "Frequently Asked Questions"
	}
	fmt.Fprintf(&b, "# %s\n", title)
	rendered := 0
	for _, q := range questions {
		qm, ok := q.(map[string]any)
		if !ok {
			continue
		}
		name := jsonStr(qm, "name")
		answer := ""
		if acc := firstObject(qm["acceptedAnswer"]); acc != nil {
			answer = jsonStr(acc, "text")
		}
		if name == "" || answer == "" {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n\n%s\n", name, stripHTMLTags(answer))
		rendered++
	}
	if rendered == 0 {
		return StructuredContent{}, false
	}
	return StructuredContent{Markdown: finishMarkdown(&b), Title: title, Type: "FAQPage"}, true
}

func renderHowTo(ent map[string]any) (StructuredContent, bool) {
	name := jsonStr(ent, "name")
	steps := instructionSteps(ent["step"])
	if name == "" || len(steps) == 0 {
		return StructuredContent{}, false
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", name)
	writeLine(&b, jsonStr(ent, "description"))
	writeField(&b, "Total time", formatDuration(jsonStr(ent, "totalTime")))
	if supplies := jsonStrList(ent["supply"]); len(supplies) > 0 {
		b.WriteString("\n## Supplies\n\n")
		for _, s := range supplies {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}
	if tools := jsonStrList(ent["tool"]); len(tools) > 0 {
		b.WriteString("\n## Tools\n\n")
		for _, t := range tools {
			fmt.Fprintf(&b, "- %s\n", t)
		}
	}
	b.WriteString("\n## Steps\n\n")
	for i, step := range steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	return StructuredContent{Markdown: finishMarkdown(&b), Title: name, Type: "HowTo"}, true
}

func renderEvent(ent map[string]any) (StructuredContent, bool) {
	name := jsonStr(ent, "name")
	start := jsonStr(ent, "startDate")
	if name == "" || start == "" {
		return StructuredContent{}, false
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", name)
	writeField(&b, "Starts", start)
	writeField(&b, "Ends", jsonStr(ent, "endDate"))
	if loc := firstObject(ent["location"]); loc != nil {
		place := jsonStr(loc, "name")
		if addr := formatAddress(loc["address"]); addr != "" {
			place = strings.TrimSpace(place + ", " + addr)
			place = strings.TrimPrefix(place, ", ")
		}
		writeField(&b, "Location", place)
	}
	writeLine(&b, jsonStr(ent, "description"))
	if offers := firstObject(ent["offers"]); offers != nil {
		if price := jsonStr(offers, "price"); price != "" {
			writeField(&b, "Price", strings.TrimSpace(price+" "+jsonStr(offers, "priceCurrency")))
		}
	}
	return StructuredContent{Markdown: finishMarkdown(&b), Title: name, Type: "Event"}, true
}

func renderLocalBusiness(ent map[string]any, typ string) (StructuredContent, bool) {
	name := jsonStr(ent, "name")
	if name == "" {
		return StructuredContent{}, false
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", name)
	writeLine(&b, jsonStr(ent, "description"))
	writeField(&b, "Address", formatAddress(ent["address"]))
	writeField(&b, "Phone", jsonStr(ent, "telephone"))
	writeField(&b, "Hours", strings.Join(jsonStrList(ent["openingHours"]), "; "))
	writeField(&b, "Price range", jsonStr(ent, "priceRange"))
	writeRating(&b, ent)
	return StructuredContent{Markdown: finishMarkdown(&b), Title: name, Type: typ}, true
}

func renderReview(ent map[string]any) (StructuredContent, bool) {
	item := firstObject(ent["itemReviewed"])
	body := jsonStr(ent, "reviewBody")
	if item == nil || body == "" {
		return StructuredContent{}, false
	}
	name := jsonStr(item, "name")
	var b strings.Builder
	fmt.Fprintf(&b, "# Review: %s\n\n", name)
	if rating := firstObject(ent["reviewRating"]); rating != nil {
		writeField(&b, "Rating", jsonStr(rating, "ratingValue"))
	}
	writeField(&b, "Author", nestedName(ent["author"]))
	b.WriteString("\n")
	b.WriteString(body)
	b.WriteString("\n")
	return StructuredContent{Markdown: finishMarkdown(&b), Title: name, Type: "Review"}, true
}

// ---- shared helpers ----

// jsonStr fetches a string field, accepting numbers too (JSON-LD in the
// wild mixes "4.8" and 4.8).
func jsonStr(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	case []any:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func jsonStrList(v any) []string {
	var out []string
	switch vv := v.(type) {
	case string:
		if s := strings.TrimSpace(vv); s != "" {
			out = append(out, s)
		}
	case []any:
		for _, item := range vv {
			switch it := item.(type) {
			case string:
				if s := strings.TrimSpace(it); s != "" {
					out = append(out, s)
				}
			case map[string]any:
				if name := jsonStr(it, "name"); name != "" {
					out = append(out, name)
				}
			}
		}
	}
	return out
}

// instructionSteps flattens recipeInstructions / HowTo step forms:
// plain strings, HowToStep objects, and HowToSection containers.
func instructionSteps(v any) []string {
	var out []string
	switch vv := v.(type) {
	case string:
		if s := strings.TrimSpace(vv); s != "" {
			out = append(out, s)
		}
	case []any:
		for _, item := range vv {
			switch it := item.(type) {
			case string:
				if s := strings.TrimSpace(it); s != "" {
					out = append(out, s)
				}
			case map[string]any:
				if section, ok := it["itemListElement"]; ok {
					out = append(out, instructionSteps(section)...)
					continue
				}
				if text := jsonStr(it, "text"); text != "" {
					out = append(out, text)
				} else if name := jsonStr(it, "name"); name != "" {
					out = append(out, name)
				}
			}
		}
	}
	return out
}

func firstObject(v any) map[string]any {
	switch vv := v.(type) {
	case map[string]any:
		return vv
	case []any:
		for _, item := range vv {
			if m, ok := item.(map[string]any); ok {
				return m
			}
		}
	}
	return nil
}

// nestedName handles fields that are either a bare string or an object
// with a name (author, brand, publisher).
func nestedName(v any) string {
	switch vv := v.(type) {
	case string:
		return strings.TrimSpace(vv)
	case map[string]any:
		return jsonStr(vv, "name")
	case []any:
		if m := firstObject(vv); m != nil {
			return jsonStr(m, "name")
		}
	}
	return ""
}

func formatAddress(v any) string {
	switch vv := v.(type) {
	case string:
		return strings.TrimSpace(vv)
	case map[string]any:
		parts := []string{
			jsonStr(vv, "streetAddress"),
			jsonStr(vv, "addressLocality"),
			jsonStr(vv, "addressRegion"),
			jsonStr(vv, "postalCode"),
		}
		var kept []string
		for _, p := range parts {
			if p != "" {
				kept = append(kept, p)
			}
		}
		return strings.Join(kept, ", ")
	}
	return ""
}

var isoDurationRe = regexp.MustCompile(`^P(?:(\d+)D)?T?(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// formatDuration renders an ISO-8601 duration like PT1H30M as
// "1 h 30 min". Unparseable input is passed through unchanged.
func formatDuration(iso string) string {
	if iso == "" {
		return ""
	}
	m := isoDurationRe.FindStringSubmatch(iso)
	if m == nil {
		return iso
	}
	var parts []string
	if m[1] != "" && m[1] != "0" {
		parts = append(parts, m[1]+" d")
	}
	if m[2] != "" && m[2] != "0" {
		parts = append(parts, m[2]+" h")
	}
	if m[3] != "" && m[3] != "0" {
		parts = append(parts, m[3]+" min")
	}
	if m[4] != "" && m[4] != "0" {
		parts = append(parts, m[4]+" s")
	}
	if len(parts) == 0 {
		return iso
	}
	return strings.Join(parts, " ")
}

func writeField(b *strings.Builder, label, value string) {
	if value != "" {
		fmt.Fprintf(b, "%s: %s\n", label, value)
	}
}

func writeLine(b *strings.Builder, s string) {
	if s != "" {
		b.WriteString(s)
		b.WriteString("\n\n")
	}
}

func writeRating(b *strings.Builder, ent map[string]any) {
	rating := firstObject(ent["aggregateRating"])
	if rating == nil {
		return
	}
	value := jsonStr(rating, "ratingValue")
	if value == "" {
		return
	}
	count := jsonStr(rating, "ratingCount")
	if count == "" {
		count = jsonStr(rating, "reviewCount")
	}
	b.WriteString("\n")
	if count != "" {
		fmt.Fprintf(b, "Rating: %s (%s ratings)\n", value, count)
	} else {
		fmt.Fprintf(b, "Rating: %s\n", value)
	}
}

var htmlTagRe = regexp.MustCompile(`<[^>]+>`)

func stripHTMLTags(s string) string {
	return strings.TrimSpace(htmlTagRe.ReplaceAllString(s, ""))
}

func finishMarkdown(b *strings.Builder) string {
	return CollapseNewlines(strings.TrimSpace(b.String())) + "\n"
}
