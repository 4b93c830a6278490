// Package analyzer implements the LLM Analyzer (C2): per-item multimodal
// prompting against a vendor chat model, producing structured answers, a
// generated description, and a best-fit image index.
package analyzer

import (
	"fmt"

	"github.com/mhbka/itemtracker/internal/gallery"
)

// systemPreamble is the fixed instruction block every analysis prompt
// opens with. Its wording is load-bearing: the vendor must return nothing
// but the JSON object described.
const systemPreamble = `You are evaluating a single marketplace listing against a fixed set of criteria.

You will be shown, in order: one or more photos of the item, then the item's
listing data as JSON.

Respond with a single JSON object and nothing else — no prose before or
after it, no markdown fences. The object has exactly these fields:

{
  "answers": [ <one string per criterion below, in the same order> ],
  "item_description": <string, a general description excluding item-specific
    attributes such as size, condition, or serial numbers>,
  "best_fit_image": <integer index into the photos, 0 if only one photo>
}

Answer each criterion strictly in its required format. If a criterion cannot
be answered from the available information, give its safe default: "N" for
yes/no questions, "U" for yes/no/uncertain questions, "0" for numeric
questions, or "I cannot answer this." for open-ended questions.

Criteria:
`

// BuildSystemPrompt renders the fixed preamble followed by the criteria
// description, in order, with each criterion's required answer format.
func BuildSystemPrompt(criteria gallery.EvaluationCriteria) string {
	return systemPreamble + criteria.DescribeCriteria()
}

// BuildItemJSON renders the item as the JSON block appended after the
// images in the prompt's final user turn.
func BuildItemJSON(item gallery.MarketplaceItemData) string {
	return fmt.Sprintf(
		`{"name":%q,"price":%v,"description":%q,"category":%q,"item_condition":%q}`,
		item.Name, item.Price, item.Description, item.Category, item.ItemCondition,
	)
}
