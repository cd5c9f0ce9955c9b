package store

const SchemaVersion = 1

const schemaSQL = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS learned_words (
    locale TEXT NOT NULL,
    word TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (locale, word)
);

CREATE TABLE IF NOT EXISTS ignored_rules (
    locale TEXT NOT NULL,
    rule_id TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (locale, rule_id)
);

CREATE INDEX IF NOT EXISTS idx_learned_words_locale ON learned_words(locale);
`
