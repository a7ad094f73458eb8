package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

var (
	blockLineRe = regexp.MustCompile(`^(\d+)\.\s+(.*)$`)
	fontMetaRe  = regexp.MustCompile(`^\[font [^\]]*\]\s*`)
	captionRe   = regexp.MustCompile(`(?i)^(figure|fig\.|table)\s+\d`)
	footnoteRe  = regexp.MustCompile(`^(\[\d+\]|[†‡])\s`)
	listRe      = regexp.MustCompile(`^([-*+•–—]|\d{1,3}[.)])\s+`)
)

// labelFor approximates the built-in heuristics. The stub exists to exercise
// the model path end to end, not to be smart about documents.
func labelFor(index int, text string) string {
	switch {
	case listRe.MatchString(text):
		return "list_item"
	case captionRe.MatchString(text):
		return "caption"
	case footnoteRe.MatchString(text):
		return "footnote"
	case shouted(text):
		if index == 0 {
			return "title"
		}
		return "section"
	case index == 0 && len(text) <= 80:
		return "title"
	default:
		return "body"
	}
}

func shouted(text string) bool {
	if len(text) > 80 {
		return false
	}
	letters, upper := 0, 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	return letters >= 2 && float64(upper)/float64(letters) > 0.8
}

func main() {
	model := os.Getenv("MODEL_ID")
	if strings.TrimSpace(model) == "" {
		model = "test-model"
	}
	addr := os.Getenv("ADDR")
	if strings.TrimSpace(addr) == "" {
		addr = ":8081"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"id": model, "object": "model"}},
		})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		sys := ""
		if len(req.Messages) > 0 {
			sys = req.Messages[0].Content
		}
		if !strings.Contains(sys, "document structure classifier") {
			http.Error(w, "unexpected system", http.StatusBadRequest)
			return
		}
		user := ""
		if len(req.Messages) >= 2 {
			user = req.Messages[1].Content
		}

		labels := make([]map[string]any, 0, 32)
		for _, line := range strings.Split(user, "\n") {
			m := blockLineRe.FindStringSubmatch(strings.TrimSpace(line))
			if m == nil {
				continue
			}
			idx, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			text := fontMetaRe.ReplaceAllString(m[2], "")
			labels = append(labels, map[string]any{
				"index":      idx,
				"label":      labelFor(idx, text),
				"confidence": 0.9,
			})
		}
		content, _ := json.Marshal(map[string]any{"labels": labels})

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": string(content)}},
			},
		})
	})

	log.Printf("openai-stub listening on %s (model=%s)", addr, model)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}
