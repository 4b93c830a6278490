package gallery

// MarketplaceItemData is the immutable per-item record returned by a
// Marketplace Adapter's item-scrape.
type MarketplaceItemData struct {
	ItemID        ItemId   `json:"item_id"`
	Name          string   `json:"name"`
	Price         float64  `json:"price"`
	Description   string   `json:"description"`
	Status        string   `json:"status"`
	SellerID      string   `json:"seller_id"`
	Category      string   `json:"category"`
	Thumbnails    []string `json:"thumbnails"`
	ItemCondition string   `json:"item_condition"`
	Created       UnixUtcDateTime `json:"created"`
	Updated       UnixUtcDateTime `json:"updated"`
}

// AnalyzedItem is a MarketplaceItemData that has been through the LLM
// Analyzer, carrying its parsed answers and generated description.
type AnalyzedItem struct {
	Item            MarketplaceItemData `json:"item"`
	EvaluationAnswers []CriterionAnswer `json:"evaluation_answers"`
	ItemDescription string              `json:"item_description"`
	BestFitImage    int                 `json:"best_fit_image"`
}

// ItemError pairs an item id with the reason it failed at item granularity.
type ItemError struct {
	ItemID ItemId `json:"item_id"`
	Reason string `json:"reason"`
}

// MarketplaceAnalyzedItems partitions one marketplace's items after Stage 3.
// Partitions are disjoint; their union is the input to the stage.
type MarketplaceAnalyzedItems struct {
	Relevant   []AnalyzedItem `json:"relevant"`
	Irrelevant []AnalyzedItem `json:"irrelevant"`
	Error      []ItemError    `json:"error"`
}

// EmbeddedItem is an AnalyzedItem after successful embedding.
type EmbeddedItem struct {
	Analyzed           AnalyzedItem `json:"analyzed"`
	DescriptionEmbedding []float32  `json:"description_embedding"`
	ImageEmbedding       []float32  `json:"image_embedding"`
}

// MarketplaceEmbeddedAndAnalyzedItems partitions one marketplace's items
// after Stage 4. Items never migrate between partitions once assigned.
type MarketplaceEmbeddedAndAnalyzedItems struct {
	Embedded          []EmbeddedItem `json:"embedded"`
	IrrelevantAnalyzed []AnalyzedItem `json:"irrelevant_analyzed"`
	ErrorAnalyzed     []ItemError    `json:"error_analyzed"`
	ErrorEmbedded     []ItemError    `json:"error_embedded"`
}
