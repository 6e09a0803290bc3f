package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"veo-wizard/internal/model"
	"veo-wizard/internal/wizard"
)

var reWindowVar = regexp.MustCompile(`window\.(\w+)\s*=\s*`)

// fetchPage GETs a server-rendered page. Only transport failures are errors.
func (c *Client) fetchPage(ctx context.Context, op, path string) (int, []byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return 0, nil, transportError(op, err)
	}
	req.Header.Set("Accept", "text/html")
	status, _, body, err := c.send(req, op)
	if err != nil {
		return status, nil, err
	}
	return status, body, nil
}

func (c *Client) loadPage(ctx context.Context, step int, projectID string) (*html.Node, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, validationError(OpPage, "Missing project id.", nil)
	}
	path := wizard.StepPath(step, url.PathEscape(projectID))
	status, body, err := c.fetchPage(ctx, OpPage, path)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, applicationError(OpPage, status, "")
	}
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, protocolError(OpPage, status, "Server returned an unreadable page. Check server logs.")
	}
	return doc, nil
}

// PromptPage rebuilds the prompt editor state from the step 2 page.
func (c *Client) PromptPage(ctx context.Context, projectID string) (model.PromptPage, error) {
	doc, err := c.loadPage(ctx, wizard.StepPrompt, projectID)
	if err != nil {
		return model.PromptPage{}, err
	}
	page := model.PromptPage{ProjectID: projectID}
	if editor := findFirst(doc, func(n *html.Node) bool { return attr(n, "id") == "prompt-editor" }); editor != nil {
		page.Template = textContent(editor)
	}
	vars := windowVars(doc)
	if raw, ok := vars["fields"]; ok {
		if err := json.Unmarshal(raw, &page.Fields); err != nil {
			return model.PromptPage{}, protocolError(OpPage, http.StatusOK, "Could not read the field list from the page.")
		}
	}
	if page.Fields == nil {
		page.Fields = []string{}
	}
	return page, nil
}

// GenerationPage rebuilds the card grid from the step 3 page.
func (c *Client) GenerationPage(ctx context.Context, projectID string) (model.GenerationPage, error) {
	doc, err := c.loadPage(ctx, wizard.StepGenerate, projectID)
	if err != nil {
		return model.GenerationPage{}, err
	}
	page := model.GenerationPage{ProjectID: projectID, Items: []model.Item{}}
	if raw, ok := windowVars(doc)["totalRows"]; ok {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			if v, err := n.Int64(); err == nil {
				page.TotalRows = int(v)
			}
		}
	}

	for _, card := range findAll(doc, isVideoCard) {
		item := model.Item{
			ID:     attr(card, "data-video-id"),
			Status: model.NormalizeStatus(attr(card, "data-status")),
		}
		if v, err := strconv.Atoi(attr(card, "data-row-index")); err == nil {
			item.RowIndex = v
		}
		if p := findFirst(card, withClass("video-prompt")); p != nil {
			item.Prompt = textContent(p)
		}
		if src := findFirst(card, func(n *html.Node) bool {
			return n.Type == html.ElementNode && n.Data == "source" && n.Parent != nil && n.Parent.Data == "video"
		}); src != nil {
			item.VideoURL = attr(src, "src")
		}
		if e := findFirst(card, withClass("error-text")); e != nil {
			item.Error = textContent(e)
		}
		page.Items = append(page.Items, item)
	}
	return page, nil
}

func isVideoCard(n *html.Node) bool {
	return withClass("video-card")(n) && attr(n, "data-video-id") != ""
}

func withClass(class string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		for _, c := range strings.Fields(attr(n, "class")) {
			if c == class {
				return true
			}
		}
		return false
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if cur.Type == html.TextNode {
			b.WriteString(cur.Data)
		}
		for child := cur.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

func findFirst(root *html.Node, match func(*html.Node) bool) *html.Node {
	if match(root) {
		return root
	}
	for child := root.FirstChild; child != nil; child = child.NextSibling {
		if found := findFirst(child, match); found != nil {
			return found
		}
	}
	return nil
}

func findAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if match(n) {
			out = append(out, n)
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	return out
}

// windowVars collects `window.name = <json>;` assignments from inline
// scripts. Values that are not valid JSON are skipped.
func windowVars(doc *html.Node) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage)
	scripts := findAll(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "script"
	})
	for _, s := range scripts {
		src := textContent(s)
		for _, loc := range reWindowVar.FindAllStringSubmatchIndex(src, -1) {
			name := src[loc[2]:loc[3]]
			dec := json.NewDecoder(strings.NewReader(src[loc[1]:]))
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				continue
			}
			out[name] = raw
		}
	}
	return out
}
