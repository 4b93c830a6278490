package store

// schema is applied once at startup via a plain idempotent exec — database
// migrations are an out-of-scope external collaborator per the system's
// scope, so no migration framework is introduced here.
const schema = `
CREATE TABLE IF NOT EXISTS galleries (
	gallery_id UUID PRIMARY KEY,
	owner_id TEXT NOT NULL,
	scraping_periodicity TEXT NOT NULL,
	search_criteria JSONB NOT NULL,
	evaluation_criteria JSONB NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT true,
	mercari_last_scraped_time TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS gallery_sessions (
	session_id BIGSERIAL PRIMARY KEY,
	gallery_id UUID NOT NULL REFERENCES galleries(gallery_id) ON DELETE CASCADE,
	created TIMESTAMPTZ NOT NULL,
	used_evaluation_criteria JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS marketplace_items (
	item_id BIGSERIAL PRIMARY KEY,
	session_id BIGINT NOT NULL REFERENCES gallery_sessions(session_id) ON DELETE CASCADE,
	marketplace TEXT NOT NULL,
	marketplace_item_id TEXT NOT NULL,
	name TEXT NOT NULL,
	price DOUBLE PRECISION NOT NULL,
	description TEXT NOT NULL,
	status TEXT NOT NULL,
	seller_id TEXT NOT NULL,
	category TEXT NOT NULL,
	thumbnails TEXT[] NOT NULL,
	item_condition TEXT NOT NULL,
	item_created TIMESTAMPTZ NOT NULL,
	item_updated TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_marketplace_items_lookup
	ON marketplace_items (marketplace, marketplace_item_id, item_updated DESC);

CREATE TABLE IF NOT EXISTS embedded_marketplace_items (
	embedding_id BIGSERIAL PRIMARY KEY,
	session_id BIGINT NOT NULL REFERENCES gallery_sessions(session_id) ON DELETE CASCADE,
	item_id BIGINT NOT NULL REFERENCES marketplace_items(item_id) ON DELETE CASCADE,
	item_description TEXT NOT NULL,
	description_embedding DOUBLE PRECISION[] NOT NULL,
	image_embedding DOUBLE PRECISION[] NOT NULL,
	evaluation_answers JSONB NOT NULL
);
`
